package sync

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "os"
  "path/filepath"
  "sort"
  gosync "sync"
  "time"

  "github.com/google/uuid"
  "go.uber.org/zap"

  "immoadmin-connect/internal/media"
)

// Settings store keys shared between the reconciler, the auth gate and
// the operator endpoints.
const (
  SettingWebhookTokenHash   = "webhook_token_hash"
  SettingWebhookTokenMasked = "webhook_token_masked"
  SettingConnectionVerified = "connection_verified"
  SettingLastSync           = "last_sync"
  SettingLastSyncStats      = "last_sync_stats"
)

// DefaultSnapshotFilename is used when the snapshot meta carries no
// usable project slug.
const DefaultSnapshotFilename = "data.json"

// ErrRunActive is returned when a reconciliation run is already
// executing. Concurrent runs are rejected, not queued.
var ErrRunActive = errors.New("sync already running")

// ErrNoSnapshot is returned when no cached snapshot file exists.
var ErrNoSnapshot = errors.New("no snapshot file found")

// ExistingRecord is the stored identity of one persisted unit record.
type ExistingRecord struct {
  LocalID     int64
  Fingerprint string
}

// RecordStore is the persisted collection the reconciler mirrors the
// snapshot into.
type RecordStore interface {
  ExistingRecords(ctx context.Context) (map[string]ExistingRecord, error)
  CreateRecord(ctx context.Context, externalID, title, description string) (int64, error)
  UpdateRecord(ctx context.Context, localID int64, title, description string) error
  SetAttribute(ctx context.Context, localID int64, key, value string) error
  DeleteAttribute(ctx context.Context, localID int64, key string) error
  CleanupMediaAttributes(ctx context.Context, localID int64) error
  SetFingerprint(ctx context.Context, localID int64, fingerprint string) error
  ClearFingerprint(ctx context.Context, localID int64) error
  DeleteRecord(ctx context.Context, localID int64) error
  Count(ctx context.Context) (int64, error)
}

// SettingsStore holds small persisted key/value configuration.
type SettingsStore interface {
  Get(ctx context.Context, name string) (string, error)
  Set(ctx context.Context, name, value string) error
  Delete(ctx context.Context, name string) error
}

// RunEntry is one sync outcome kept in the bounded run log.
type RunEntry struct {
  RunID           string    `json:"run_id"`
  Time            time.Time `json:"time"`
  Stats           *Stats    `json:"stats"`
  DurationSeconds float64   `json:"duration"`
}

// RunLog appends reconciliation outcomes for observability.
type RunLog interface {
  Append(ctx context.Context, entry RunEntry) error
}

// MediaFetcher mirrors remote media into the local cache.
type MediaFetcher interface {
  Fetch(ctx context.Context, ref media.Ref, trustedHost string) (media.LocalRef, error)
}

// RunLocker guards against two runs executing concurrently across
// replicas. May be nil; the in-process lock always applies.
type RunLocker interface {
  Acquire(ctx context.Context) (bool, error)
  Release(ctx context.Context) error
}

// Stats aggregates the outcome of one reconciliation run.
type Stats struct {
  Created         int      `json:"created"`
  Updated         int      `json:"updated"`
  Deleted         int      `json:"deleted"`
  Skipped         int      `json:"skipped"`
  MediaDownloaded int      `json:"media_downloaded"`
  Errors          []string `json:"errors"`
}

// Result is the full outcome returned to callers.
type Result struct {
  Success  bool    `json:"success"`
  RunID    string  `json:"run_id"`
  Stats    *Stats  `json:"stats"`
  Duration float64 `json:"duration"`
}

const (
  unitCreated = "created"
  unitUpdated = "updated"
  unitSkipped = "skipped"
  unitError   = "error"
)

// Reconciler drives the create/update/skip/delete cycle that makes the
// record store mirror the latest snapshot.
type Reconciler struct {
  records  RecordStore
  settings SettingsStore
  runLog   RunLog
  fetcher  MediaFetcher
  locker   RunLocker
  dataDir  string
  logger   *zap.Logger

  mu gosync.Mutex
}

// NewReconciler creates a reconciler.
// Args:
//   records: Record store.
//   settings: Settings store.
//   runLog: Sync run log.
//   fetcher: Media fetcher.
//   locker: Cross-replica run lock, may be nil.
//   dataDir: Directory holding cached snapshot files.
//   logger: Logger instance.
// Returns:
//   *Reconciler: Initialized reconciler.
func NewReconciler(records RecordStore, settings SettingsStore, runLog RunLog, fetcher MediaFetcher, locker RunLocker, dataDir string, logger *zap.Logger) *Reconciler {
  return &Reconciler{
    records:  records,
    settings: settings,
    runLog:   runLog,
    fetcher:  fetcher,
    locker:   locker,
    dataDir:  dataDir,
    logger:   logger,
  }
}

// Reconcile applies one snapshot to the record store.
// Per-unit failures are collected and do not abort the run; only an
// invalid snapshot or an active run aborts before any mutation.
// Args:
//   ctx: Run context.
//   snap: Parsed snapshot.
// Returns:
//   *Result: Run outcome with stats.
//   error: ErrRunActive, ErrInvalidFormat or a store load failure.
func (r *Reconciler) Reconcile(ctx context.Context, snap *Snapshot) (*Result, error) {
  if snap == nil || snap.Format != FormatTag {
    return nil, fmt.Errorf("%w: missing or wrong _format", ErrInvalidFormat)
  }

  if !r.mu.TryLock() {
    return nil, ErrRunActive
  }
  defer r.mu.Unlock()

  if r.locker != nil {
    acquired, err := r.locker.Acquire(ctx)
    if err != nil {
      return nil, fmt.Errorf("acquire run lock: %w", err)
    }
    if !acquired {
      return nil, ErrRunActive
    }
    defer func() {
      _ = r.locker.Release(ctx)
    }()
  }

  start := time.Now()
  runID := uuid.NewString()
  stats := &Stats{Errors: make([]string, 0)}

  existing, err := r.records.ExistingRecords(ctx)
  if err != nil {
    return nil, fmt.Errorf("load existing records: %w", err)
  }

  buildings := snap.BuildingNames()
  trustedHost := snap.TrustedHost()
  processed := make(map[string]struct{}, len(snap.Units))

  for i := range snap.Units {
    unit := &snap.Units[i]
    processed[unit.ID] = struct{}{}

    status, downloaded, unitErr := r.syncUnit(ctx, unit, existing, buildings, trustedHost)
    stats.MediaDownloaded += downloaded

    switch status {
    case unitCreated:
      stats.Created++
    case unitUpdated:
      stats.Updated++
    case unitSkipped:
      stats.Skipped++
    case unitError:
      stats.Errors = append(stats.Errors, unitErr.Error())
    }
  }

  for externalID, record := range existing {
    if _, ok := processed[externalID]; ok {
      continue
    }
    if err := r.records.DeleteRecord(ctx, record.LocalID); err != nil {
      stats.Errors = append(stats.Errors, fmt.Sprintf("delete %s: %v", externalID, err))
      continue
    }
    stats.Deleted++
  }

  duration := roundSeconds(time.Since(start))
  result := &Result{
    Success:  len(stats.Errors) == 0,
    RunID:    runID,
    Stats:    stats,
    Duration: duration,
  }

  r.recordOutcome(ctx, runID, stats, duration)

  if r.logger != nil {
    r.logger.Info("reconcile finished",
      zap.String("run_id", runID),
      zap.Int("created", stats.Created),
      zap.Int("updated", stats.Updated),
      zap.Int("deleted", stats.Deleted),
      zap.Int("skipped", stats.Skipped),
      zap.Int("media_downloaded", stats.MediaDownloaded),
      zap.Int("errors", len(stats.Errors)),
      zap.Float64("duration", duration))
  }

  return result, nil
}

// RunFromFile reconciles the most recently cached snapshot file.
func (r *Reconciler) RunFromFile(ctx context.Context) (*Result, error) {
  path, ok := r.FindSnapshotFile()
  if !ok {
    return nil, ErrNoSnapshot
  }
  raw, err := os.ReadFile(path)
  if err != nil {
    return nil, fmt.Errorf("read snapshot file: %w", err)
  }
  snap, err := ParseSnapshot(raw)
  if err != nil {
    return nil, err
  }
  return r.Reconcile(ctx, snap)
}

// CacheSnapshot persists a raw snapshot payload under the data dir so a
// sync can be re-run without a fresh delivery.
// Args:
//   raw: Raw snapshot JSON.
//   projectSlug: Slug from the snapshot meta, may be empty.
// Returns:
//   string: Written file path.
//   error: Error when the file cannot be written.
func (r *Reconciler) CacheSnapshot(raw []byte, projectSlug string) (string, error) {
  filename := DefaultSnapshotFilename
  if slug := media.SanitizeFilename(projectSlug); slug != "" {
    filename = slug + ".json"
  }
  if err := os.MkdirAll(r.dataDir, 0755); err != nil {
    return "", fmt.Errorf("create data dir: %w", err)
  }
  path := filepath.Join(r.dataDir, filename)
  if err := os.WriteFile(path, raw, 0644); err != nil {
    return "", fmt.Errorf("write snapshot file: %w", err)
  }
  return path, nil
}

// FindSnapshotFile locates the cached snapshot in the data dir.
func (r *Reconciler) FindSnapshotFile() (string, bool) {
  matches, err := filepath.Glob(filepath.Join(r.dataDir, "*.json"))
  if err != nil || len(matches) == 0 {
    return "", false
  }
  sort.Strings(matches)
  return matches[0], true
}

func (r *Reconciler) syncUnit(ctx context.Context, unit *Unit, existing map[string]ExistingRecord, buildings map[string]string, trustedHost string) (string, int, error) {
  fingerprint := Fingerprint(unit)

  record, found := existing[unit.ID]
  if found && record.Fingerprint == fingerprint {
    return unitSkipped, 0, nil
  }

  title := SanitizeText(unit.Title)
  if title == "" {
    title = "Einheit"
  }
  description := SanitizeRichText(unit.Description)

  var localID int64
  var status string
  if found {
    if err := r.records.UpdateRecord(ctx, record.LocalID, title, description); err != nil {
      return unitError, 0, fmt.Errorf("%s: %w", title, err)
    }
    localID = record.LocalID
    status = unitUpdated
  } else {
    id, err := r.records.CreateRecord(ctx, unit.ID, title, description)
    if err != nil {
      return unitError, 0, fmt.Errorf("%s: %w", title, err)
    }
    localID = id
    status = unitCreated
  }

  var attrErr error
  setAttr := func(key, value string) {
    if err := r.records.SetAttribute(ctx, localID, key, value); err != nil && attrErr == nil {
      attrErr = err
    }
  }

  // Media keys are renumbered on every sync, stale ones must go first.
  if err := r.records.CleanupMediaAttributes(ctx, localID); err != nil && attrErr == nil {
    attrErr = err
  }

  if unit.BuildingID != "" {
    if name, ok := buildings[unit.BuildingID]; ok && name != "" {
      setAttr("building_name", SanitizeText(name))
    }
  }

  keys := make([]string, 0, len(unit.Attributes))
  for key := range unit.Attributes {
    keys = append(keys, key)
  }
  sort.Strings(keys)
  for _, key := range keys {
    value, keep := CoerceAttribute(key, unit.Attributes[key])
    if !keep {
      if err := r.records.DeleteAttribute(ctx, localID, key); err != nil && attrErr == nil {
        attrErr = err
      }
      continue
    }
    setAttr(key, value)
  }

  downloaded, mediaFailed := r.syncUnitMedia(ctx, unit, trustedHost, setAttr)

  // The fingerprint is only persisted when every media item landed; a
  // withheld fingerprint forces the next run to retry the downloads
  // while keeping the attributes that were already written.
  if mediaFailed || attrErr != nil {
    if err := r.records.ClearFingerprint(ctx, localID); err != nil && attrErr == nil {
      attrErr = err
    }
  } else {
    if err := r.records.SetFingerprint(ctx, localID, fingerprint); err != nil && attrErr == nil {
      attrErr = err
    }
  }

  if attrErr != nil {
    return unitError, downloaded, fmt.Errorf("%s: %w", title, attrErr)
  }
  return status, downloaded, nil
}

func (r *Reconciler) syncUnitMedia(ctx context.Context, unit *Unit, trustedHost string, setAttr func(key, value string)) (int, bool) {
  downloaded := 0
  failed := false

  fetchInto := func(key string, ref media.Ref) {
    local, err := r.fetcher.Fetch(ctx, ref, trustedHost)
    if err != nil {
      // Remote URL fallback keeps the record usable; the cleared
      // fingerprint retries the download on the next run.
      setAttr(key, ref.URL)
      failed = true
      if r.logger != nil {
        r.logger.Warn("media fetch failed",
          zap.String("unit", unit.ID), zap.String("key", key), zap.Error(err))
      }
      return
    }
    setAttr(key, local.URL)
    downloaded++
  }

  for i, ref := range unit.Media.Images {
    fetchInto(fmt.Sprintf("image_%d", i+1), ref)
  }
  for i, ref := range unit.Media.FloorPlans {
    fetchInto(fmt.Sprintf("floor_plan_%d", i+1), ref)
  }
  for i, ref := range unit.Media.Documents {
    fetchInto(fmt.Sprintf("document_%d_url", i+1), ref)
    if title := SanitizeText(ref.Title); title != "" {
      setAttr(fmt.Sprintf("document_%d_title", i+1), title)
    }
  }

  return downloaded, failed
}

func (r *Reconciler) recordOutcome(ctx context.Context, runID string, stats *Stats, duration float64) {
  now := time.Now().UTC()

  if r.runLog != nil {
    entry := RunEntry{RunID: runID, Time: now, Stats: stats, DurationSeconds: duration}
    if err := r.runLog.Append(ctx, entry); err != nil && r.logger != nil {
      r.logger.Warn("append sync log failed", zap.Error(err))
    }
  }

  if r.settings != nil {
    if err := r.settings.Set(ctx, SettingLastSync, now.Format(time.RFC3339)); err != nil && r.logger != nil {
      r.logger.Warn("store last sync time failed", zap.Error(err))
    }
    if raw, err := json.Marshal(stats); err == nil {
      if err := r.settings.Set(ctx, SettingLastSyncStats, string(raw)); err != nil && r.logger != nil {
        r.logger.Warn("store last sync stats failed", zap.Error(err))
      }
    }
  }
}

func roundSeconds(d time.Duration) float64 {
  return float64(int64(d.Seconds()*100)) / 100
}
