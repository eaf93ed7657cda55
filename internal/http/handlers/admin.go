package handlers

import (
  "crypto/sha256"
  "encoding/hex"
  "errors"
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "go.uber.org/zap"

  "immoadmin-connect/internal/config"
  "immoadmin-connect/internal/store"
  "immoadmin-connect/internal/sync"
)

// AdminHandler exposes the operator controls: webhook token management,
// manual sync, run log and a forced full re-sync.
type AdminHandler struct {
  cfg      *config.Config
  settings *store.SettingsStore
  records  *store.RecordStore
  syncLog  *store.SyncLogStore
  engine   *sync.Reconciler
  logger   *zap.Logger
}

type tokenRequest struct {
  Token string `json:"token"`
}

// NewAdminHandler creates a handler for operator requests.
// Args:
//   cfg: App config instance.
//   settings: Settings store.
//   records: Record store.
//   syncLog: Sync log store.
//   engine: Reconciler instance.
//   logger: Logger instance.
// Returns:
//   *AdminHandler: Initialized handler.
func NewAdminHandler(cfg *config.Config, settings *store.SettingsStore, records *store.RecordStore, syncLog *store.SyncLogStore, engine *sync.Reconciler, logger *zap.Logger) *AdminHandler {
  return &AdminHandler{cfg: cfg, settings: settings, records: records, syncLog: syncLog, engine: engine, logger: logger}
}

// SetWebhookToken stores a new shared-secret token. Only the SHA-256
// hash and a masked display form are persisted; storing a token resets
// the verification latch.
// Args:
//   c: Gin context.
// Returns:
//   None.
func (h *AdminHandler) SetWebhookToken(c *gin.Context) {
  var req tokenRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
    return
  }

  token := strings.TrimSpace(req.Token)
  if token == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
    return
  }

  hash := sha256.Sum256([]byte(token))
  ctx := c.Request.Context()
  if err := h.settings.Set(ctx, sync.SettingWebhookTokenHash, hex.EncodeToString(hash[:])); err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
    return
  }
  if err := h.settings.Set(ctx, sync.SettingWebhookTokenMasked, maskToken(token)); err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
    return
  }
  _ = h.settings.Delete(ctx, sync.SettingConnectionVerified)

  c.JSON(http.StatusOK, gin.H{"success": true, "token_masked": maskToken(token)})
}

// ClearWebhookToken removes the token and resets the connection state
// to unconfigured.
// Args:
//   c: Gin context.
// Returns:
//   None.
func (h *AdminHandler) ClearWebhookToken(c *gin.Context) {
  ctx := c.Request.Context()
  _ = h.settings.Delete(ctx, sync.SettingWebhookTokenHash)
  _ = h.settings.Delete(ctx, sync.SettingWebhookTokenMasked)
  _ = h.settings.Delete(ctx, sync.SettingConnectionVerified)
  c.JSON(http.StatusOK, gin.H{"success": true})
}

// ManualSync reconciles the cached snapshot on operator request.
// Args:
//   c: Gin context.
// Returns:
//   None.
func (h *AdminHandler) ManualSync(c *gin.Context) {
  result, err := h.engine.RunFromFile(c.Request.Context())
  if err != nil {
    status := http.StatusInternalServerError
    switch {
    case errors.Is(err, sync.ErrRunActive):
      status = http.StatusConflict
    case errors.Is(err, sync.ErrNoSnapshot):
      status = http.StatusNotFound
    }
    c.JSON(status, gin.H{"success": false, "message": err.Error()})
    return
  }

  status := http.StatusOK
  if !result.Success {
    status = http.StatusInternalServerError
  }
  c.JSON(status, gin.H{
    "success":  result.Success,
    "stats":    result.Stats,
    "duration": result.Duration,
    "run_id":   result.RunID,
  })
}

// SyncLog lists recent reconciliation outcomes, most recent first.
// Args:
//   c: Gin context.
// Returns:
//   None.
func (h *AdminHandler) SyncLog(c *gin.Context) {
  limit := parseIntQuery(c, "limit", 10)
  entries, err := h.syncLog.List(c.Request.Context(), limit)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Status returns the same status payload as the webhook status route.
// Args:
//   c: Gin context.
// Returns:
//   None.
func (h *AdminHandler) Status(c *gin.Context) {
  status := h.engine.Status(c.Request.Context(), h.cfg.MediaDir())
  c.JSON(http.StatusOK, gin.H{"success": true, "status": status})
}

// ForceResync clears all stored fingerprints so the next run rewrites
// every record.
// Args:
//   c: Gin context.
// Returns:
//   None.
func (h *AdminHandler) ForceResync(c *gin.Context) {
  cleaned, err := h.records.ClearAllFingerprints(c.Request.Context())
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
    return
  }
  if h.logger != nil {
    h.logger.Info("fingerprints cleared for full re-sync", zap.Int64("records", cleaned))
  }
  c.JSON(http.StatusOK, gin.H{"success": true, "cleaned": cleaned})
}

func maskToken(token string) string {
  if len(token) < 8 {
    return strings.Repeat("•", len(token))
  }
  return token[:4] + strings.Repeat("•", 24) + token[len(token)-4:]
}
