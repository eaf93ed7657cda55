package handlers

import (
  "errors"
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "go.uber.org/zap"

  "immoadmin-connect/internal/config"
  "immoadmin-connect/internal/store"
  "immoadmin-connect/internal/sync"
)

// WebhookHandler serves the delivery endpoints used by the ImmoAdmin
// backend: sync, verify and status. All three sit behind WebhookAuth.
type WebhookHandler struct {
  cfg      *config.Config
  settings *store.SettingsStore
  engine   *sync.Reconciler
  logger   *zap.Logger
}

// NewWebhookHandler creates a handler for delivery requests.
// Args:
//   cfg: App config instance.
//   settings: Settings store.
//   engine: Reconciler instance.
//   logger: Logger instance.
// Returns:
//   *WebhookHandler: Initialized handler.
func NewWebhookHandler(cfg *config.Config, settings *store.SettingsStore, engine *sync.Reconciler, logger *zap.Logger) *WebhookHandler {
  return &WebhookHandler{cfg: cfg, settings: settings, engine: engine, logger: logger}
}

// Sync receives a snapshot delivery and reconciles it. An empty body
// (or bare "{}") re-runs the previously cached snapshot instead.
// Args:
//   c: Gin context.
// Returns:
//   None.
func (h *WebhookHandler) Sync(c *gin.Context) {
  h.markVerified(c)

  raw, err := c.GetRawData()
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "read body failed"})
    return
  }

  body := strings.TrimSpace(string(raw))
  if body == "" || body == "{}" {
    h.runFromFile(c)
    return
  }

  snap, err := sync.ParseSnapshot(raw)
  if err != nil {
    status := http.StatusInternalServerError
    if errors.Is(err, sync.ErrParse) || errors.Is(err, sync.ErrInvalidFormat) {
      status = http.StatusBadRequest
    }
    c.JSON(status, gin.H{"success": false, "message": err.Error()})
    return
  }

  if _, err := h.engine.CacheSnapshot(raw, snap.Meta.ProjectSlug); err != nil {
    if h.logger != nil {
      h.logger.Error("cache snapshot failed", zap.Error(err))
    }
    c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "could not store snapshot file"})
    return
  }

  result, err := h.engine.Reconcile(c.Request.Context(), snap)
  h.respond(c, result, err, "direct")
}

// Verify confirms the token is valid and latches the connection state.
// Args:
//   c: Gin context.
// Returns:
//   None.
func (h *WebhookHandler) Verify(c *gin.Context) {
  h.markVerified(c)

  c.JSON(http.StatusOK, gin.H{
    "success":   true,
    "message":   "token valid",
    "site_url":  h.cfg.SiteURL,
    "site_name": h.cfg.SiteName,
  })
}

// Status returns the current sync status snapshot.
// Args:
//   c: Gin context.
// Returns:
//   None.
func (h *WebhookHandler) Status(c *gin.Context) {
  status := h.engine.Status(c.Request.Context(), h.cfg.MediaDir())
  c.JSON(http.StatusOK, gin.H{"success": true, "status": status})
}

func (h *WebhookHandler) runFromFile(c *gin.Context) {
  result, err := h.engine.RunFromFile(c.Request.Context())
  h.respond(c, result, err, "file")
}

func (h *WebhookHandler) respond(c *gin.Context, result *sync.Result, err error, method string) {
  if err != nil {
    status := http.StatusInternalServerError
    switch {
    case errors.Is(err, sync.ErrRunActive):
      status = http.StatusConflict
    case errors.Is(err, sync.ErrInvalidFormat), errors.Is(err, sync.ErrParse):
      status = http.StatusBadRequest
    }
    c.JSON(status, gin.H{"success": false, "message": err.Error(), "method": method})
    return
  }

  status := http.StatusOK
  message := "sync completed"
  if !result.Success {
    status = http.StatusInternalServerError
    message = "sync completed with errors"
  }
  c.JSON(status, gin.H{
    "success":  result.Success,
    "message":  message,
    "stats":    result.Stats,
    "duration": result.Duration,
    "run_id":   result.RunID,
    "method":   method,
  })
}

// First successful authenticated call switches the connection from
// TokenSet to Verified. One-way latch; only clearing the token resets it.
func (h *WebhookHandler) markVerified(c *gin.Context) {
  if err := h.settings.Set(c.Request.Context(), sync.SettingConnectionVerified, "1"); err != nil && h.logger != nil {
    h.logger.Warn("mark connection verified failed", zap.Error(err))
  }
}
