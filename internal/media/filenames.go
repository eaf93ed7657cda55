package media

import (
  "net/url"
  "path"
  "strings"

  "github.com/mozillazg/go-pinyin"
)

var umlautReplacer = strings.NewReplacer(
  "ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
  "Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
)

// SanitizeFilename reduces a filename to safe ASCII characters.
// German umlauts are transliterated, CJK characters are converted to
// pinyin, everything else outside [A-Za-z0-9._-] becomes a dash.
// Args:
//   name: Raw filename.
// Returns:
//   string: Sanitized filename, may be empty.
func SanitizeFilename(name string) string {
  trimmed := umlautReplacer.Replace(strings.TrimSpace(name))
  if trimmed == "" {
    return ""
  }

  args := pinyin.NewArgs()
  args.Style = pinyin.Normal

  var b strings.Builder
  for _, r := range trimmed {
    switch {
    case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
      b.WriteRune(r)
    case r == '.' || r == '_' || r == '-':
      b.WriteRune(r)
    case r < 128:
      b.WriteByte('-')
    default:
      if parts := pinyin.LazyPinyin(string(r), args); len(parts) > 0 {
        b.WriteString(parts[0])
      }
    }
  }

  out := b.String()
  for strings.Contains(out, "..") {
    out = strings.ReplaceAll(out, "..", ".")
  }
  for strings.Contains(out, "--") {
    out = strings.ReplaceAll(out, "--", "-")
  }
  out = strings.Trim(out, "-.")
  return out
}

// CacheFilename computes the deterministic local cache name for a media
// reference. When the source supplies a content hash the name is
// <stem>-<hash8><ext> so identical content maps to the same file;
// otherwise the sanitized basename of the URL path is used.
// Args:
//   ref: Media reference.
// Returns:
//   string: Filename, empty when no safe name can be derived.
func CacheFilename(ref Ref) string {
  parsed, err := url.Parse(ref.URL)
  if err != nil {
    return ""
  }
  urlBase := path.Base(parsed.Path)
  if urlBase == "/" || urlBase == "." {
    urlBase = ""
  }

  hash := strings.ToLower(strings.TrimSpace(ref.ContentHash))
  if len(hash) >= 8 {
    original := strings.TrimSpace(ref.OriginalFilename)
    if original == "" {
      original = urlBase
    }
    if original == "" {
      original = "file"
    }
    stem := strings.TrimSuffix(original, path.Ext(original))
    name := SanitizeFilename(stem)
    if name == "" {
      name = "file"
    }
    return name + "-" + hash[:8] + sanitizeExt(path.Ext(original))
  }

  return SanitizeFilename(urlBase)
}

func sanitizeExt(ext string) string {
  ext = strings.ToLower(strings.TrimPrefix(ext, "."))
  var b strings.Builder
  for _, r := range ext {
    if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
      b.WriteRune(r)
    }
  }
  if b.Len() == 0 {
    return ""
  }
  return "." + b.String()
}
