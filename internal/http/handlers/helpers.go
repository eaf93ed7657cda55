package handlers

import (
  "database/sql"
  "strconv"
  "strings"

  "github.com/gin-gonic/gin"
)

func nullableStringValue(value sql.NullString) string {
  if value.Valid {
    return value.String
  }
  return ""
}

func nullIfEmpty(value string) interface{} {
  if strings.TrimSpace(value) == "" {
    return nil
  }
  return value
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
  raw := strings.TrimSpace(c.Query(name))
  if raw == "" {
    return fallback
  }
  parsed, err := strconv.Atoi(raw)
  if err != nil {
    return fallback
  }
  return parsed
}
