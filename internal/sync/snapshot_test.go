package sync_test

import (
  "errors"
  "testing"

  "immoadmin-connect/internal/sync"
)

const validSnapshot = `{
  "_format": "immoadmin-sync",
  "meta": {"projectName": "Parkresidenz", "projectSlug": "parkresidenz", "baseUrl": "https://Portal.Example.com/api"},
  "buildings": [{"id": "b-1", "name": "Haus A"}],
  "units": [
    {
      "id": "u-1",
      "title": "Top 1",
      "buildingId": "b-1",
      "attributes": {"price": 250000, "rooms": 2},
      "media": {"images": [{"url": "https://portal.example.com/img/a.jpg"}]}
    }
  ]
}`

func TestParseSnapshot(t *testing.T) {
  snap, err := sync.ParseSnapshot([]byte(validSnapshot))
  if err != nil {
    t.Fatalf("parse failed: %v", err)
  }
  if snap.Format != sync.FormatTag {
    t.Fatalf("unexpected format %q", snap.Format)
  }
  if len(snap.Units) != 1 || snap.Units[0].ID != "u-1" {
    t.Fatalf("units not decoded: %+v", snap.Units)
  }
  if snap.Units[0].Attributes["price"] != 250000.0 {
    t.Fatalf("attributes not decoded: %+v", snap.Units[0].Attributes)
  }
  if len(snap.Units[0].Media.Images) != 1 {
    t.Fatalf("media not decoded")
  }
}

func TestParseSnapshotRejectsInvalidJSON(t *testing.T) {
  _, err := sync.ParseSnapshot([]byte("{not json"))
  if !errors.Is(err, sync.ErrParse) {
    t.Fatalf("expected ErrParse, got %v", err)
  }
}

func TestParseSnapshotRejectsWrongFormat(t *testing.T) {
  _, err := sync.ParseSnapshot([]byte(`{"_format": "something-else", "units": []}`))
  if !errors.Is(err, sync.ErrInvalidFormat) {
    t.Fatalf("expected ErrInvalidFormat, got %v", err)
  }
}

func TestParseSnapshotRejectsMissingUnitID(t *testing.T) {
  raw := `{"_format": "immoadmin-sync", "units": [{"title": "Top 1"}]}`
  _, err := sync.ParseSnapshot([]byte(raw))
  if !errors.Is(err, sync.ErrInvalidFormat) {
    t.Fatalf("expected ErrInvalidFormat, got %v", err)
  }
}

func TestBuildingNames(t *testing.T) {
  snap, err := sync.ParseSnapshot([]byte(validSnapshot))
  if err != nil {
    t.Fatalf("parse failed: %v", err)
  }
  names := snap.BuildingNames()
  if names["b-1"] != "Haus A" {
    t.Fatalf("unexpected lookup: %+v", names)
  }
}

func TestTrustedHost(t *testing.T) {
  snap, err := sync.ParseSnapshot([]byte(validSnapshot))
  if err != nil {
    t.Fatalf("parse failed: %v", err)
  }
  if host := snap.TrustedHost(); host != "portal.example.com" {
    t.Fatalf("unexpected trusted host %q", host)
  }

  empty := &sync.Snapshot{}
  if host := empty.TrustedHost(); host != "" {
    t.Fatalf("expected empty host, got %q", host)
  }
}
