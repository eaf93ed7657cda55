package sync_test

import (
  "context"
  "errors"
  "fmt"
  "os"
  "path/filepath"
  "testing"

  "go.uber.org/zap"

  "immoadmin-connect/internal/media"
  "immoadmin-connect/internal/sync"
)

type fakeRecord struct {
  externalID  string
  title       string
  description string
  fingerprint string
  attributes  map[string]string
}

type fakeRecordStore struct {
  nextID  int64
  records map[int64]*fakeRecord
}

func newFakeRecordStore() *fakeRecordStore {
  return &fakeRecordStore{nextID: 1, records: make(map[int64]*fakeRecord)}
}

func (s *fakeRecordStore) ExistingRecords(ctx context.Context) (map[string]sync.ExistingRecord, error) {
  out := make(map[string]sync.ExistingRecord, len(s.records))
  for id, rec := range s.records {
    out[rec.externalID] = sync.ExistingRecord{LocalID: id, Fingerprint: rec.fingerprint}
  }
  return out, nil
}

func (s *fakeRecordStore) CreateRecord(ctx context.Context, externalID, title, description string) (int64, error) {
  id := s.nextID
  s.nextID++
  s.records[id] = &fakeRecord{
    externalID:  externalID,
    title:       title,
    description: description,
    attributes:  make(map[string]string),
  }
  return id, nil
}

func (s *fakeRecordStore) UpdateRecord(ctx context.Context, localID int64, title, description string) error {
  rec, ok := s.records[localID]
  if !ok {
    return fmt.Errorf("record %d not found", localID)
  }
  rec.title = title
  rec.description = description
  return nil
}

func (s *fakeRecordStore) SetAttribute(ctx context.Context, localID int64, key, value string) error {
  rec, ok := s.records[localID]
  if !ok {
    return fmt.Errorf("record %d not found", localID)
  }
  rec.attributes[key] = value
  return nil
}

func (s *fakeRecordStore) DeleteAttribute(ctx context.Context, localID int64, key string) error {
  if rec, ok := s.records[localID]; ok {
    delete(rec.attributes, key)
  }
  return nil
}

func (s *fakeRecordStore) CleanupMediaAttributes(ctx context.Context, localID int64) error {
  rec, ok := s.records[localID]
  if !ok {
    return nil
  }
  for key := range rec.attributes {
    var n int
    if _, err := fmt.Sscanf(key, "image_%d", &n); err == nil {
      delete(rec.attributes, key)
      continue
    }
    if _, err := fmt.Sscanf(key, "floor_plan_%d", &n); err == nil {
      delete(rec.attributes, key)
      continue
    }
    if _, err := fmt.Sscanf(key, "document_%d", &n); err == nil {
      delete(rec.attributes, key)
    }
  }
  return nil
}

func (s *fakeRecordStore) SetFingerprint(ctx context.Context, localID int64, fingerprint string) error {
  if rec, ok := s.records[localID]; ok {
    rec.fingerprint = fingerprint
  }
  return nil
}

func (s *fakeRecordStore) ClearFingerprint(ctx context.Context, localID int64) error {
  if rec, ok := s.records[localID]; ok {
    rec.fingerprint = ""
  }
  return nil
}

func (s *fakeRecordStore) DeleteRecord(ctx context.Context, localID int64) error {
  delete(s.records, localID)
  return nil
}

func (s *fakeRecordStore) Count(ctx context.Context) (int64, error) {
  return int64(len(s.records)), nil
}

func (s *fakeRecordStore) byExternalID(externalID string) *fakeRecord {
  for _, rec := range s.records {
    if rec.externalID == externalID {
      return rec
    }
  }
  return nil
}

type fakeSettings struct {
  values map[string]string
}

func newFakeSettings() *fakeSettings {
  return &fakeSettings{values: make(map[string]string)}
}

func (s *fakeSettings) Get(ctx context.Context, name string) (string, error) {
  return s.values[name], nil
}

func (s *fakeSettings) Set(ctx context.Context, name, value string) error {
  s.values[name] = value
  return nil
}

func (s *fakeSettings) Delete(ctx context.Context, name string) error {
  delete(s.values, name)
  return nil
}

type fakeRunLog struct {
  entries []sync.RunEntry
}

func (l *fakeRunLog) Append(ctx context.Context, entry sync.RunEntry) error {
  l.entries = append(l.entries, entry)
  return nil
}

type fakeFetcher struct {
  failing map[string]bool
  fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref media.Ref, trustedHost string) (media.LocalRef, error) {
  f.fetched = append(f.fetched, ref.URL)
  if f.failing[ref.URL] {
    return media.LocalRef{}, &media.FetchError{Kind: media.KindNetwork, URL: ref.URL, Err: errors.New("connection refused")}
  }
  name := media.CacheFilename(ref)
  return media.LocalRef{Path: "/cache/" + name, URL: "/api/media-files/" + name}, nil
}

type deniedLocker struct{}

func (deniedLocker) Acquire(ctx context.Context) (bool, error) { return false, nil }
func (deniedLocker) Release(ctx context.Context) error         { return nil }

type fixture struct {
  records  *fakeRecordStore
  settings *fakeSettings
  runLog   *fakeRunLog
  fetcher  *fakeFetcher
  engine   *sync.Reconciler
}

func newFixture(t *testing.T, locker sync.RunLocker) *fixture {
  t.Helper()
  f := &fixture{
    records:  newFakeRecordStore(),
    settings: newFakeSettings(),
    runLog:   &fakeRunLog{},
    fetcher:  &fakeFetcher{failing: make(map[string]bool)},
  }
  f.engine = sync.NewReconciler(f.records, f.settings, f.runLog, f.fetcher, locker, t.TempDir(), zap.NewNop())
  return f
}

func snapshotWith(units ...sync.Unit) *sync.Snapshot {
  return &sync.Snapshot{
    Format: sync.FormatTag,
    Meta:   sync.Meta{ProjectName: "Parkresidenz", ProjectSlug: "parkresidenz", BaseURL: "https://portal.example.com"},
    Buildings: []sync.Building{
      {ID: "b-1", Name: "Haus A"},
    },
    Units: units,
  }
}

func TestReconcileCreatesAndSkips(t *testing.T) {
  f := newFixture(t, nil)
  snap := snapshotWith(sync.Unit{
    ID:          "u-1",
    Title:       "Top 1",
    BuildingID:  "b-1",
    Attributes:  map[string]any{"price": 250000.0, "status": "available"},
  })

  result, err := f.engine.Reconcile(context.Background(), snap)
  if err != nil {
    t.Fatalf("first run failed: %v", err)
  }
  if !result.Success || result.Stats.Created != 1 {
    t.Fatalf("unexpected first run stats: %+v", result.Stats)
  }

  rec := f.records.byExternalID("u-1")
  if rec == nil {
    t.Fatalf("record not created")
  }
  if rec.title != "Top 1" {
    t.Fatalf("unexpected title %q", rec.title)
  }
  if rec.attributes["price"] != "250000" {
    t.Fatalf("price not stored: %+v", rec.attributes)
  }
  if rec.attributes["building_name"] != "Haus A" {
    t.Fatalf("building name not resolved: %+v", rec.attributes)
  }
  if rec.fingerprint == "" {
    t.Fatalf("fingerprint not persisted")
  }

  result, err = f.engine.Reconcile(context.Background(), snap)
  if err != nil {
    t.Fatalf("second run failed: %v", err)
  }
  if result.Stats.Skipped != 1 || result.Stats.Created != 0 || result.Stats.Updated != 0 {
    t.Fatalf("identical snapshot not skipped: %+v", result.Stats)
  }
}

func TestReconcileUpdatesChangedUnit(t *testing.T) {
  f := newFixture(t, nil)
  first := snapshotWith(sync.Unit{ID: "u-1", Title: "Top 1"})
  if _, err := f.engine.Reconcile(context.Background(), first); err != nil {
    t.Fatalf("seed run failed: %v", err)
  }

  second := snapshotWith(sync.Unit{ID: "u-1", Title: "Top 1", Attributes: map[string]any{"price": 260000.0}})
  result, err := f.engine.Reconcile(context.Background(), second)
  if err != nil {
    t.Fatalf("update run failed: %v", err)
  }
  if result.Stats.Updated != 1 {
    t.Fatalf("changed unit not updated: %+v", result.Stats)
  }
  if got := f.records.byExternalID("u-1").attributes["price"]; got != "260000" {
    t.Fatalf("new price not stored: %q", got)
  }
}

func TestReconcileDeletesMissingUnits(t *testing.T) {
  f := newFixture(t, nil)
  seed := snapshotWith(
    sync.Unit{ID: "u-1", Title: "Top 1"},
    sync.Unit{ID: "u-2", Title: "Top 2"},
  )
  if _, err := f.engine.Reconcile(context.Background(), seed); err != nil {
    t.Fatalf("seed run failed: %v", err)
  }

  result, err := f.engine.Reconcile(context.Background(), snapshotWith(sync.Unit{ID: "u-1", Title: "Top 1"}))
  if err != nil {
    t.Fatalf("delete run failed: %v", err)
  }
  if result.Stats.Deleted != 1 {
    t.Fatalf("removed unit not deleted: %+v", result.Stats)
  }
  if f.records.byExternalID("u-2") != nil {
    t.Fatalf("u-2 still present after delete pass")
  }
  if f.records.byExternalID("u-1") == nil {
    t.Fatalf("u-1 deleted although still in the snapshot")
  }
}

func TestReconcileNullAttributeDeletes(t *testing.T) {
  f := newFixture(t, nil)
  seed := snapshotWith(sync.Unit{ID: "u-1", Title: "Top 1", Attributes: map[string]any{"price": 250000.0}})
  if _, err := f.engine.Reconcile(context.Background(), seed); err != nil {
    t.Fatalf("seed run failed: %v", err)
  }

  next := snapshotWith(sync.Unit{ID: "u-1", Title: "Top 1", Attributes: map[string]any{"price": nil}})
  if _, err := f.engine.Reconcile(context.Background(), next); err != nil {
    t.Fatalf("null run failed: %v", err)
  }
  if _, ok := f.records.byExternalID("u-1").attributes["price"]; ok {
    t.Fatalf("null attribute not deleted")
  }
}

func TestReconcileMediaFailureWithholdsFingerprint(t *testing.T) {
  f := newFixture(t, nil)
  f.fetcher.failing["https://portal.example.com/img/broken.jpg"] = true

  snap := snapshotWith(sync.Unit{
    ID:    "u-1",
    Title: "Top 1",
    Media: sync.UnitMedia{Images: []media.Ref{
      {URL: "https://portal.example.com/img/ok.jpg"},
      {URL: "https://portal.example.com/img/broken.jpg"},
    }},
  })

  result, err := f.engine.Reconcile(context.Background(), snap)
  if err != nil {
    t.Fatalf("run failed: %v", err)
  }
  if result.Stats.MediaDownloaded != 1 {
    t.Fatalf("unexpected download count: %+v", result.Stats)
  }

  rec := f.records.byExternalID("u-1")
  if rec.fingerprint != "" {
    t.Fatalf("fingerprint persisted despite media failure")
  }
  if rec.attributes["image_1"] != "/api/media-files/ok.jpg" {
    t.Fatalf("cached image url not stored: %+v", rec.attributes)
  }
  if rec.attributes["image_2"] != "https://portal.example.com/img/broken.jpg" {
    t.Fatalf("remote fallback url not stored: %+v", rec.attributes)
  }

  // The withheld fingerprint makes the unchanged unit retry instead of
  // skipping on the next run.
  f.fetcher.fetched = nil
  if _, err := f.engine.Reconcile(context.Background(), snap); err != nil {
    t.Fatalf("retry run failed: %v", err)
  }
  if len(f.fetcher.fetched) == 0 {
    t.Fatalf("media downloads not retried")
  }
}

func TestReconcileDocumentTitles(t *testing.T) {
  f := newFixture(t, nil)
  snap := snapshotWith(sync.Unit{
    ID:    "u-1",
    Title: "Top 1",
    Media: sync.UnitMedia{Documents: []media.Ref{
      {URL: "https://portal.example.com/docs/expose.pdf", Title: "Exposé"},
    }},
  })

  if _, err := f.engine.Reconcile(context.Background(), snap); err != nil {
    t.Fatalf("run failed: %v", err)
  }
  rec := f.records.byExternalID("u-1")
  if rec.attributes["document_1_url"] == "" {
    t.Fatalf("document url not stored: %+v", rec.attributes)
  }
  if rec.attributes["document_1_title"] != "Exposé" {
    t.Fatalf("document title not stored: %+v", rec.attributes)
  }
}

func TestReconcileRejectsWrongFormat(t *testing.T) {
  f := newFixture(t, nil)
  snap := &sync.Snapshot{Format: "other"}
  if _, err := f.engine.Reconcile(context.Background(), snap); !errors.Is(err, sync.ErrInvalidFormat) {
    t.Fatalf("expected ErrInvalidFormat, got %v", err)
  }
}

func TestReconcileRejectsActiveRun(t *testing.T) {
  f := newFixture(t, deniedLocker{})
  snap := snapshotWith(sync.Unit{ID: "u-1", Title: "Top 1"})
  if _, err := f.engine.Reconcile(context.Background(), snap); !errors.Is(err, sync.ErrRunActive) {
    t.Fatalf("expected ErrRunActive, got %v", err)
  }
}

func TestReconcileEmptyTitleDefaults(t *testing.T) {
  f := newFixture(t, nil)
  snap := snapshotWith(sync.Unit{ID: "u-1"})
  if _, err := f.engine.Reconcile(context.Background(), snap); err != nil {
    t.Fatalf("run failed: %v", err)
  }
  if got := f.records.byExternalID("u-1").title; got != "Einheit" {
    t.Fatalf("empty title not defaulted: %q", got)
  }
}

func TestReconcileRecordsOutcome(t *testing.T) {
  f := newFixture(t, nil)
  snap := snapshotWith(sync.Unit{ID: "u-1", Title: "Top 1"})
  result, err := f.engine.Reconcile(context.Background(), snap)
  if err != nil {
    t.Fatalf("run failed: %v", err)
  }

  if len(f.runLog.entries) != 1 {
    t.Fatalf("expected one log entry, got %d", len(f.runLog.entries))
  }
  if f.runLog.entries[0].RunID != result.RunID {
    t.Fatalf("log entry run id mismatch")
  }
  if f.settings.values[sync.SettingLastSync] == "" {
    t.Fatalf("last sync time not stored")
  }
  if f.settings.values[sync.SettingLastSyncStats] == "" {
    t.Fatalf("last sync stats not stored")
  }
}

func TestCacheSnapshotAndRunFromFile(t *testing.T) {
  f := newFixture(t, nil)
  raw := []byte(`{
    "_format": "immoadmin-sync",
    "meta": {"projectSlug": "parkresidenz"},
    "units": [{"id": "u-1", "title": "Top 1"}]
  }`)

  path, err := f.engine.CacheSnapshot(raw, "parkresidenz")
  if err != nil {
    t.Fatalf("cache failed: %v", err)
  }
  if filepath.Base(path) != "parkresidenz.json" {
    t.Fatalf("unexpected cache name %q", path)
  }
  if _, err := os.Stat(path); err != nil {
    t.Fatalf("cache file missing: %v", err)
  }

  result, err := f.engine.RunFromFile(context.Background())
  if err != nil {
    t.Fatalf("run from file failed: %v", err)
  }
  if result.Stats.Created != 1 {
    t.Fatalf("cached snapshot not applied: %+v", result.Stats)
  }
}

func TestRunFromFileWithoutSnapshot(t *testing.T) {
  f := newFixture(t, nil)
  if _, err := f.engine.RunFromFile(context.Background()); !errors.Is(err, sync.ErrNoSnapshot) {
    t.Fatalf("expected ErrNoSnapshot, got %v", err)
  }
}
