package handlers

import (
  "errors"
  "net/http"
  "os"
  "path/filepath"
  "strings"

  "github.com/gin-gonic/gin"

  "immoadmin-connect/internal/config"
)

// MediaFileHandler serves the local media cache under the public media
// base URL.
type MediaFileHandler struct {
  cfg *config.Config
}

// NewMediaFileHandler creates a handler for cached media files.
// Args:
//   cfg: App config instance.
// Returns:
//   *MediaFileHandler: Initialized handler.
func NewMediaFileHandler(cfg *config.Config) *MediaFileHandler {
  return &MediaFileHandler{cfg: cfg}
}

// Serve returns a cached media file.
// Args:
//   c: Gin context.
// Returns:
//   None.
func (h *MediaFileHandler) Serve(c *gin.Context) {
  raw := strings.TrimPrefix(c.Param("path"), "/")
  absPath, err := buildMediaFilePath(h.cfg, raw)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
    return
  }
  if _, err := os.Stat(absPath); err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
    return
  }
  c.File(absPath)
}

// buildMediaFilePath resolves a request path inside the media cache
// directory, refusing traversal outside it.
func buildMediaFilePath(cfg *config.Config, relativePath string) (string, error) {
  cleaned := filepath.Clean("/" + strings.TrimSpace(relativePath))
  if strings.HasPrefix(cleaned, "/..") {
    return "", errors.New("invalid path")
  }
  relative := strings.TrimPrefix(cleaned, "/")
  if relative == "" {
    return "", errors.New("path is empty")
  }
  return filepath.Join(cfg.MediaDir(), relative), nil
}
