package sync

import (
  "encoding/json"
  "errors"
  "fmt"
  "net/url"
  "strings"

  "immoadmin-connect/internal/media"
)

// FormatTag is the fixed format marker every snapshot must carry.
const FormatTag = "immoadmin-sync"

var (
  ErrParse         = errors.New("snapshot parse error")
  ErrInvalidFormat = errors.New("invalid snapshot format")
)

// Snapshot is one full delivery from the ImmoAdmin backend. It describes
// the desired end state; reconciliation makes the record store mirror it.
type Snapshot struct {
  Format    string     `json:"_format"`
  Meta      Meta       `json:"meta"`
  Buildings []Building `json:"buildings"`
  Units     []Unit     `json:"units"`
}

type Meta struct {
  ProjectName string `json:"projectName"`
  ProjectSlug string `json:"projectSlug"`
  BaseURL     string `json:"baseUrl"`
}

type Building struct {
  ID   string `json:"id"`
  Name string `json:"name"`
}

type Unit struct {
  ID          string         `json:"id"`
  Title       string         `json:"title"`
  Description string         `json:"description"`
  BuildingID  string         `json:"buildingId,omitempty"`
  Attributes  map[string]any `json:"attributes"`
  Media       UnitMedia      `json:"media"`
}

type UnitMedia struct {
  Images     []media.Ref `json:"images"`
  FloorPlans []media.Ref `json:"floorPlans"`
  Documents  []media.Ref `json:"documents"`
}

// ParseSnapshot decodes and validates a raw snapshot payload.
// Args:
//   raw: Raw JSON bytes.
// Returns:
//   *Snapshot: Parsed snapshot.
//   error: ErrParse or ErrInvalidFormat wrapped with detail.
func ParseSnapshot(raw []byte) (*Snapshot, error) {
  var instance any
  if err := json.Unmarshal(raw, &instance); err != nil {
    return nil, fmt.Errorf("%w: %v", ErrParse, err)
  }

  if err := validateSnapshotSchema(instance); err != nil {
    return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
  }

  var snap Snapshot
  if err := json.Unmarshal(raw, &snap); err != nil {
    return nil, fmt.Errorf("%w: %v", ErrParse, err)
  }
  if snap.Format != FormatTag {
    return nil, fmt.Errorf("%w: _format %q", ErrInvalidFormat, snap.Format)
  }
  return &snap, nil
}

// BuildingNames returns the id to display name lookup. Duplicate ids are
// undefined; the last entry wins.
func (s *Snapshot) BuildingNames() map[string]string {
  names := make(map[string]string, len(s.Buildings))
  for _, b := range s.Buildings {
    names[b.ID] = b.Name
  }
  return names
}

// TrustedHost extracts the hostname of the source system from the
// snapshot meta, used to whitelist media fetches.
func (s *Snapshot) TrustedHost() string {
  base := strings.TrimSpace(s.Meta.BaseURL)
  if base == "" {
    return ""
  }
  parsed, err := url.Parse(base)
  if err != nil {
    return ""
  }
  return strings.ToLower(parsed.Hostname())
}
