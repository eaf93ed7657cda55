package store

import (
  "context"
  "database/sql"
  "encoding/json"

  "immoadmin-connect/internal/sync"
)

// Bound on the run log; the oldest entries beyond it are discarded.
const syncLogLimit = 50

// SyncLogStore keeps the bounded history of reconciliation outcomes.
type SyncLogStore struct {
  db *sql.DB
}

// NewSyncLogStore creates a sync log store.
// Args:
//   db: Database connection.
// Returns:
//   *SyncLogStore: Initialized store.
func NewSyncLogStore(db *sql.DB) *SyncLogStore {
  return &SyncLogStore{db: db}
}

// Append stores one run entry and trims the log to its bound.
func (s *SyncLogStore) Append(ctx context.Context, entry sync.RunEntry) error {
  statsJSON, err := json.Marshal(entry.Stats)
  if err != nil {
    return err
  }
  if _, err := s.db.ExecContext(ctx,
    "INSERT INTO sync_log (run_id, stats, duration_seconds, created_at) VALUES (?, ?, ?, ?)",
    entry.RunID, string(statsJSON), entry.DurationSeconds, entry.Time); err != nil {
    return err
  }
  _, err = s.db.ExecContext(ctx,
    "DELETE FROM sync_log WHERE id NOT IN (SELECT id FROM (SELECT id FROM sync_log ORDER BY id DESC LIMIT ?) keep)",
    syncLogLimit)
  return err
}

// List returns run entries, most recent first.
func (s *SyncLogStore) List(ctx context.Context, limit int) ([]sync.RunEntry, error) {
  if limit <= 0 || limit > syncLogLimit {
    limit = 10
  }
  rows, err := s.db.QueryContext(ctx,
    "SELECT run_id, stats, duration_seconds, created_at FROM sync_log ORDER BY id DESC LIMIT ?",
    limit)
  if err != nil {
    return nil, err
  }
  defer func() {
    _ = rows.Close()
  }()

  entries := make([]sync.RunEntry, 0, limit)
  for rows.Next() {
    var entry sync.RunEntry
    var statsJSON string
    if err := rows.Scan(&entry.RunID, &statsJSON, &entry.DurationSeconds, &entry.Time); err != nil {
      return nil, err
    }
    var stats sync.Stats
    if err := json.Unmarshal([]byte(statsJSON), &stats); err == nil {
      entry.Stats = &stats
    }
    entries = append(entries, entry)
  }
  return entries, rows.Err()
}
