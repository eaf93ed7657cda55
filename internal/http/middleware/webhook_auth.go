package middleware

import (
  "bytes"
  "crypto/hmac"
  "crypto/sha256"
  "crypto/subtle"
  "encoding/hex"
  "io"
  "net/http"
  "strconv"
  "strings"
  "time"

  "github.com/gin-gonic/gin"

  "immoadmin-connect/internal/sync"
)

// Staleness window for signed requests.
const signatureMaxAgeSeconds = 300

// Rejection codes surfaced to the delivery side.
const (
  ReasonMissingToken     = "missing_token"
  ReasonUnauthorized     = "unauthorized"
  ReasonExpired          = "expired"
  ReasonInvalidSignature = "invalid_signature"
)

// WebhookAuth authenticates inbound delivery requests.
// The shared-secret token arrives in X-Auth-Token (fallback: token query
// parameter) and is compared as a SHA-256 hash in constant time against
// the stored hash. When X-Signature and X-Timestamp are both present the
// request must additionally carry a fresh HMAC-SHA256 over
// timestamp+body keyed by the plaintext token.
// Args:
//   settings: Settings store holding the token hash.
// Returns:
//   gin.HandlerFunc: Middleware handler.
func WebhookAuth(settings sync.SettingsStore) gin.HandlerFunc {
  return func(c *gin.Context) {
    token := strings.TrimSpace(c.GetHeader("X-Auth-Token"))
    if token == "" {
      token = strings.TrimSpace(c.Query("token"))
    }
    if token == "" {
      reject(c, ReasonMissingToken, "missing auth token")
      return
    }

    storedHash, err := settings.Get(c.Request.Context(), sync.SettingWebhookTokenHash)
    if err != nil {
      c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "settings unavailable"})
      c.Abort()
      return
    }
    if storedHash == "" {
      reject(c, ReasonUnauthorized, "no token configured")
      return
    }

    receivedHash := sha256.Sum256([]byte(token))
    received := hex.EncodeToString(receivedHash[:])
    if subtle.ConstantTimeCompare([]byte(received), []byte(storedHash)) != 1 {
      reject(c, ReasonUnauthorized, "invalid token")
      return
    }

    signature := strings.TrimSpace(c.GetHeader("X-Signature"))
    timestamp := strings.TrimSpace(c.GetHeader("X-Timestamp"))
    if signature != "" && timestamp != "" {
      requestTime, err := strconv.ParseInt(timestamp, 10, 64)
      if err != nil {
        reject(c, ReasonInvalidSignature, "invalid timestamp")
        return
      }
      age := time.Now().Unix() - requestTime
      if age < 0 {
        age = -age
      }
      if age > signatureMaxAgeSeconds {
        reject(c, ReasonExpired, "request expired")
        return
      }

      body, err := readBody(c)
      if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "read body failed"})
        c.Abort()
        return
      }

      mac := hmac.New(sha256.New, []byte(token))
      mac.Write([]byte(timestamp))
      mac.Write(body)
      expected := hex.EncodeToString(mac.Sum(nil))
      if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) != 1 {
        reject(c, ReasonInvalidSignature, "invalid signature")
        return
      }
    }

    c.Next()
  }
}

// readBody drains the request body and restores it for the handler.
func readBody(c *gin.Context) ([]byte, error) {
  if c.Request.Body == nil {
    return nil, nil
  }
  body, err := io.ReadAll(c.Request.Body)
  if err != nil {
    return nil, err
  }
  c.Request.Body = io.NopCloser(bytes.NewReader(body))
  return body, nil
}

func reject(c *gin.Context, code, message string) {
  c.JSON(http.StatusUnauthorized, gin.H{
    "success": false,
    "code":    code,
    "message": message,
  })
  c.Abort()
}
