package sync

import (
  "context"
  "encoding/json"
  "os"
  "path/filepath"
)

// Status builds the operator-facing status snapshot.
// Args:
//   ctx: Request context.
//   mediaDir: Local media cache directory.
// Returns:
//   map[string]any: Status payload.
func (r *Reconciler) Status(ctx context.Context, mediaDir string) map[string]any {
  path, exists := r.FindSnapshotFile()

  var meta *Meta
  buildingCount := 0
  if exists {
    if raw, err := os.ReadFile(path); err == nil {
      if snap, err := ParseSnapshot(raw); err == nil {
        meta = &snap.Meta
        buildingCount = len(snap.Buildings)
      }
    }
  }

  unitCount := int64(0)
  if count, err := r.records.Count(ctx); err == nil {
    unitCount = count
  }

  status := map[string]any{
    "json_exists":        exists,
    "json_file":          nil,
    "json_meta":          meta,
    "media_dir_writable": dirWritable(mediaDir) || dirWritable(r.dataDir),
    "unit_count":         unitCount,
    "building_count":     buildingCount,
    "last_sync":          r.settingOrEmpty(ctx, SettingLastSync),
    "webhook_token":      r.settingOrEmpty(ctx, SettingWebhookTokenMasked),
    "webhook_configured": r.settingOrEmpty(ctx, SettingWebhookTokenHash) != "",
    "verified":           r.settingOrEmpty(ctx, SettingConnectionVerified) == "1",
  }
  if exists {
    status["json_file"] = filepath.Base(path)
  }

  var lastStats *Stats
  if raw := r.settingOrEmpty(ctx, SettingLastSyncStats); raw != "" {
    var stats Stats
    if err := json.Unmarshal([]byte(raw), &stats); err == nil {
      lastStats = &stats
    }
  }
  status["last_stats"] = lastStats

  return status
}

func (r *Reconciler) settingOrEmpty(ctx context.Context, name string) string {
  if r.settings == nil {
    return ""
  }
  value, err := r.settings.Get(ctx, name)
  if err != nil {
    return ""
  }
  return value
}

func dirWritable(dir string) bool {
  if dir == "" {
    return false
  }
  info, err := os.Stat(dir)
  if err != nil || !info.IsDir() {
    return false
  }
  probe := filepath.Join(dir, ".writable")
  f, err := os.Create(probe)
  if err != nil {
    return false
  }
  _ = f.Close()
  _ = os.Remove(probe)
  return true
}
