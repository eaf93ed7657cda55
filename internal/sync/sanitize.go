package sync

import (
  "strings"

  "github.com/microcosm-cc/bluemonday"
)

var (
  richTextPolicy = bluemonday.UGCPolicy()
  plainPolicy    = bluemonday.StrictPolicy()
)

// SanitizeText strips all markup from a string, for titles and plain
// attribute values.
func SanitizeText(value string) string {
  return strings.TrimSpace(plainPolicy.Sanitize(value))
}

// SanitizeRichText keeps safe user-generated markup in a description and
// drops everything else. Descriptions arrive as untrusted HTML.
func SanitizeRichText(value string) string {
  return strings.TrimSpace(richTextPolicy.Sanitize(value))
}
