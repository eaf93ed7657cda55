package sync_test

import (
  "testing"

  "immoadmin-connect/internal/sync"
)

func TestCoerceAttributeNumbers(t *testing.T) {
  cases := []struct {
    key   string
    value any
    want  string
  }{
    {"price", 250000.0, "250000"},
    {"price", "250000.50", "250000.5"},
    {"price", "not a number", "0"},
    {"rooms", 2.5, "2.5"},
    {"bedrooms", 2.9, "2"},
    {"floor", "3", "3"},
    {"year_built", true, "1"},
  }

  for _, tc := range cases {
    got, keep := sync.CoerceAttribute(tc.key, tc.value)
    if !keep {
      t.Fatalf("%s=%v: unexpected delete", tc.key, tc.value)
    }
    if got != tc.want {
      t.Fatalf("%s=%v: got %q, want %q", tc.key, tc.value, got, tc.want)
    }
  }
}

func TestCoerceAttributeStrings(t *testing.T) {
  got, keep := sync.CoerceAttribute("heating_type", "  Fernwärme  ")
  if !keep || got != "Fernwärme" {
    t.Fatalf("got %q keep=%v", got, keep)
  }

  got, keep = sync.CoerceAttribute("energy_rating", "<script>alert(1)</script>A+")
  if !keep {
    t.Fatalf("unexpected delete")
  }
  if got != "A+" {
    t.Fatalf("markup not stripped: %q", got)
  }
}

func TestCoerceAttributeJSON(t *testing.T) {
  got, keep := sync.CoerceAttribute("features", []any{"balkon", "lift"})
  if !keep || got != `["balkon","lift"]` {
    t.Fatalf("got %q keep=%v", got, keep)
  }

  got, keep = sync.CoerceAttribute("custom_object", map[string]any{"a": 1.0})
  if !keep || got != `{"a":1}` {
    t.Fatalf("unknown object key: got %q keep=%v", got, keep)
  }
}

func TestCoerceAttributeNullDeletes(t *testing.T) {
  if _, keep := sync.CoerceAttribute("price", nil); keep {
    t.Fatalf("null value must delete the attribute")
  }
}

func TestCoerceAttributeUnknownKeyInfersKind(t *testing.T) {
  got, keep := sync.CoerceAttribute("custom_metric", 12.5)
  if !keep || got != "12.5" {
    t.Fatalf("numeric inference failed: got %q keep=%v", got, keep)
  }

  got, keep = sync.CoerceAttribute("custom_note", "frei ab sofort")
  if !keep || got != "frei ab sofort" {
    t.Fatalf("string inference failed: got %q keep=%v", got, keep)
  }
}
