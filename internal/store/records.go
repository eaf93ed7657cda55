package store

import (
  "context"
  "database/sql"
  "time"

  "immoadmin-connect/internal/sync"
)

// RecordStore persists unit records and their attribute bags in MySQL.
// One row in unit_records per external id, attributes as key/value rows
// in unit_record_attributes.
type RecordStore struct {
  db *sql.DB
}

// NewRecordStore creates a record store.
// Args:
//   db: Database connection.
// Returns:
//   *RecordStore: Initialized store.
func NewRecordStore(db *sql.DB) *RecordStore {
  return &RecordStore{db: db}
}

// ExistingRecords loads the external id to record map for all persisted
// unit records.
func (s *RecordStore) ExistingRecords(ctx context.Context) (map[string]sync.ExistingRecord, error) {
  rows, err := s.db.QueryContext(ctx,
    "SELECT id, external_id, content_fingerprint FROM unit_records")
  if err != nil {
    return nil, err
  }
  defer func() {
    _ = rows.Close()
  }()

  records := make(map[string]sync.ExistingRecord)
  for rows.Next() {
    var id int64
    var externalID string
    var fingerprint sql.NullString
    if err := rows.Scan(&id, &externalID, &fingerprint); err != nil {
      return nil, err
    }
    records[externalID] = sync.ExistingRecord{LocalID: id, Fingerprint: fingerprint.String}
  }
  return records, rows.Err()
}

// CreateRecord inserts a new unit record.
func (s *RecordStore) CreateRecord(ctx context.Context, externalID, title, description string) (int64, error) {
  now := time.Now()
  result, err := s.db.ExecContext(ctx,
    "INSERT INTO unit_records (external_id, title, description, content_fingerprint, last_synced_at, created_at, updated_at) VALUES (?, ?, ?, '', ?, ?, ?)",
    externalID, title, description, now, now, now)
  if err != nil {
    return 0, err
  }
  return result.LastInsertId()
}

// UpdateRecord rewrites title and description of an existing record.
func (s *RecordStore) UpdateRecord(ctx context.Context, localID int64, title, description string) error {
  now := time.Now()
  _, err := s.db.ExecContext(ctx,
    "UPDATE unit_records SET title = ?, description = ?, last_synced_at = ?, updated_at = ? WHERE id = ?",
    title, description, now, now, localID)
  return err
}

// SetAttribute upserts one attribute value.
func (s *RecordStore) SetAttribute(ctx context.Context, localID int64, key, value string) error {
  _, err := s.db.ExecContext(ctx,
    "INSERT INTO unit_record_attributes (record_id, attr_key, attr_value) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE attr_value = VALUES(attr_value)",
    localID, key, value)
  return err
}

// DeleteAttribute removes one attribute row.
func (s *RecordStore) DeleteAttribute(ctx context.Context, localID int64, key string) error {
  _, err := s.db.ExecContext(ctx,
    "DELETE FROM unit_record_attributes WHERE record_id = ? AND attr_key = ?",
    localID, key)
  return err
}

// CleanupMediaAttributes drops the numbered media keys of a record so a
// sync pass never leaves stale image_N entries behind.
func (s *RecordStore) CleanupMediaAttributes(ctx context.Context, localID int64) error {
  _, err := s.db.ExecContext(ctx,
    "DELETE FROM unit_record_attributes WHERE record_id = ? AND (attr_key REGEXP '^image_[0-9]+$' OR attr_key REGEXP '^floor_plan_[0-9]+$' OR attr_key REGEXP '^document_[0-9]+_(url|title)$')",
    localID)
  return err
}

// SetFingerprint stores the content fingerprint of a record.
func (s *RecordStore) SetFingerprint(ctx context.Context, localID int64, fingerprint string) error {
  _, err := s.db.ExecContext(ctx,
    "UPDATE unit_records SET content_fingerprint = ? WHERE id = ?",
    fingerprint, localID)
  return err
}

// ClearFingerprint withholds the fingerprint so the next run reprocesses
// the record.
func (s *RecordStore) ClearFingerprint(ctx context.Context, localID int64) error {
  return s.SetFingerprint(ctx, localID, "")
}

// DeleteRecord permanently removes a record and its attributes.
func (s *RecordStore) DeleteRecord(ctx context.Context, localID int64) error {
  if _, err := s.db.ExecContext(ctx,
    "DELETE FROM unit_record_attributes WHERE record_id = ?", localID); err != nil {
    return err
  }
  _, err := s.db.ExecContext(ctx, "DELETE FROM unit_records WHERE id = ?", localID)
  return err
}

// Count returns the number of persisted unit records.
func (s *RecordStore) Count(ctx context.Context) (int64, error) {
  var count int64
  err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM unit_records").Scan(&count)
  return count, err
}

// ClearAllFingerprints resets every stored fingerprint, forcing a full
// re-sync on the next run.
func (s *RecordStore) ClearAllFingerprints(ctx context.Context) (int64, error) {
  result, err := s.db.ExecContext(ctx, "UPDATE unit_records SET content_fingerprint = ''")
  if err != nil {
    return 0, err
  }
  return result.RowsAffected()
}
