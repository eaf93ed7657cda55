package store

import (
  "context"
  "database/sql"
  "time"
)

// SettingsStore persists small key/value configuration such as the
// webhook token hash and the last sync metadata.
type SettingsStore struct {
  db *sql.DB
}

// NewSettingsStore creates a settings store.
// Args:
//   db: Database connection.
// Returns:
//   *SettingsStore: Initialized store.
func NewSettingsStore(db *sql.DB) *SettingsStore {
  return &SettingsStore{db: db}
}

// Get returns a setting value, empty string when unset.
func (s *SettingsStore) Get(ctx context.Context, name string) (string, error) {
  var value string
  err := s.db.QueryRowContext(ctx,
    "SELECT setting_value FROM settings WHERE setting_name = ?", name).Scan(&value)
  if err == sql.ErrNoRows {
    return "", nil
  }
  if err != nil {
    return "", err
  }
  return value, nil
}

// Set upserts a setting value.
func (s *SettingsStore) Set(ctx context.Context, name, value string) error {
  _, err := s.db.ExecContext(ctx,
    "INSERT INTO settings (setting_name, setting_value, updated_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value), updated_at = VALUES(updated_at)",
    name, value, time.Now())
  return err
}

// Delete removes a setting.
func (s *SettingsStore) Delete(ctx context.Context, name string) error {
  _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE setting_name = ?", name)
  return err
}
