package sync

import (
  "crypto/sha256"
  "encoding/hex"
  "encoding/json"
)

// Scheme tag hashed into every fingerprint. Bumping it invalidates all
// stored fingerprints at once instead of silently matching stale ones.
const fingerprintScheme = "v3"

type fingerprintPayload struct {
  Title       string         `json:"title"`
  Description string         `json:"description"`
  BuildingID  string         `json:"buildingId"`
  Attributes  map[string]any `json:"attributes"`
  Media       UnitMedia      `json:"media"`
}

// Fingerprint computes the stable content fingerprint of a unit.
// json.Marshal emits map keys in sorted order, so two semantically
// identical units always serialize to the same bytes regardless of the
// key order they arrived in.
// Args:
//   unit: Unit to fingerprint.
// Returns:
//   string: Hex SHA-256 fingerprint.
func Fingerprint(unit *Unit) string {
  payload := fingerprintPayload{
    Title:       unit.Title,
    Description: unit.Description,
    BuildingID:  unit.BuildingID,
    Attributes:  unit.Attributes,
    Media:       unit.Media,
  }
  raw, err := json.Marshal(payload)
  if err != nil {
    raw = []byte(unit.ID)
  }

  h := sha256.New()
  h.Write([]byte(fingerprintScheme + ":"))
  h.Write(raw)
  return hex.EncodeToString(h.Sum(nil))
}

// HasChanged reports whether a unit differs from its stored fingerprint.
func HasChanged(stored string, unit *Unit) bool {
  return stored != Fingerprint(unit)
}
