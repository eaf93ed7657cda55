package sync

import (
  "encoding/json"
  "math"
  "strconv"
  "strings"
)

type attrKind int

const (
  attrString attrKind = iota
  attrNumber
  attrInteger
  attrJSON
)

// Known attribute keys and their destination types. Keys not listed here
// are coerced from the value's JSON type.
var attributeKinds = map[string]attrKind{
  "price":             attrNumber,
  "price_per_sqm":     attrNumber,
  "area_living":       attrNumber,
  "area_total":        attrNumber,
  "area_balcony":      attrNumber,
  "area_garden":       attrNumber,
  "rooms":             attrNumber,
  "bedrooms":          attrInteger,
  "bathrooms":         attrInteger,
  "floor":             attrInteger,
  "year_built":        attrInteger,
  "parking_spaces":    attrInteger,
  "energy_rating":     attrString,
  "energy_demand":     attrNumber,
  "heating_type":      attrString,
  "availability":      attrString,
  "status":            attrString,
  "orientation":       attrString,
  "features":          attrJSON,
  "extras":            attrJSON,
}

// CoerceAttribute converts a snapshot attribute value into its stored
// string form. Numeric attributes coerce non-numeric input to zero,
// strings are stripped to plain text, objects and arrays are stored as
// compact JSON.
// Args:
//   key: Attribute key.
//   value: Decoded JSON value.
// Returns:
//   string: Value to store.
//   bool: False when the stored attribute should be deleted instead.
func CoerceAttribute(key string, value any) (string, bool) {
  if value == nil {
    return "", false
  }

  kind, known := attributeKinds[key]
  if !known {
    kind = inferKind(value)
  }

  switch kind {
  case attrNumber:
    return formatFloat(toFloat(value)), true
  case attrInteger:
    return strconv.FormatInt(int64(toFloat(value)), 10), true
  case attrJSON:
    raw, err := json.Marshal(value)
    if err != nil {
      return "", false
    }
    return string(raw), true
  default:
    switch v := value.(type) {
    case string:
      return SanitizeText(v), true
    case bool:
      if v {
        return "1", true
      }
      return "0", true
    case float64:
      return formatFloat(v), true
    default:
      raw, err := json.Marshal(value)
      if err != nil {
        return "", false
      }
      return string(raw), true
    }
  }
}

func inferKind(value any) attrKind {
  switch value.(type) {
  case float64:
    return attrNumber
  case map[string]any, []any:
    return attrJSON
  default:
    return attrString
  }
}

func toFloat(value any) float64 {
  switch v := value.(type) {
  case float64:
    return v
  case bool:
    if v {
      return 1
    }
    return 0
  case string:
    parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
    if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
      return 0
    }
    return parsed
  default:
    return 0
  }
}

func formatFloat(v float64) string {
  return strconv.FormatFloat(v, 'f', -1, 64)
}
