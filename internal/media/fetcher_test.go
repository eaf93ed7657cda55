package media_test

import (
  "context"
  "errors"
  "net/http"
  "net/http/httptest"
  "net/url"
  "os"
  "path/filepath"
  "testing"
  "time"

  "go.uber.org/zap"

  "immoadmin-connect/internal/media"
)

func newTestFetcher(t *testing.T, maxBytes int64) (*media.Fetcher, string) {
  t.Helper()
  dir := t.TempDir()
  return media.NewFetcher(dir, "/api/media-files/", 5*time.Second, maxBytes, nil, zap.NewNop()), dir
}

func serveMedia(t *testing.T, handler http.HandlerFunc) (*httptest.Server, string) {
  t.Helper()
  server := httptest.NewServer(handler)
  t.Cleanup(server.Close)
  u, err := url.Parse(server.URL)
  if err != nil {
    t.Fatalf("parse server url: %v", err)
  }
  return server, u.Hostname()
}

func TestFetchDownloadsAndCaches(t *testing.T) {
  requests := 0
  server, host := serveMedia(t, func(w http.ResponseWriter, r *http.Request) {
    requests++
    w.Header().Set("Content-Type", "image/jpeg")
    _, _ = w.Write([]byte("jpeg-bytes"))
  })

  fetcher, dir := newTestFetcher(t, 1024)
  ref := media.Ref{URL: server.URL + "/img/haus-a.jpg"}

  local, err := fetcher.Fetch(context.Background(), ref, host)
  if err != nil {
    t.Fatalf("fetch failed: %v", err)
  }
  if local.CacheHit {
    t.Fatalf("first fetch must not be a cache hit")
  }
  if local.URL != "/api/media-files/haus-a.jpg" {
    t.Fatalf("unexpected public url %q", local.URL)
  }
  raw, err := os.ReadFile(filepath.Join(dir, "haus-a.jpg"))
  if err != nil || string(raw) != "jpeg-bytes" {
    t.Fatalf("cached file wrong: %q, %v", raw, err)
  }

  local, err = fetcher.Fetch(context.Background(), ref, host)
  if err != nil {
    t.Fatalf("second fetch failed: %v", err)
  }
  if !local.CacheHit {
    t.Fatalf("second fetch must hit the cache")
  }
  if requests != 1 {
    t.Fatalf("expected one http request, got %d", requests)
  }
}

func TestFetchRejectsUnsafeHost(t *testing.T) {
  fetcher, _ := newTestFetcher(t, 1024)
  ref := media.Ref{URL: "http://127.0.0.1:9/file.jpg"}

  _, err := fetcher.Fetch(context.Background(), ref, "")
  var fetchErr *media.FetchError
  if !errors.As(err, &fetchErr) || fetchErr.Kind != media.KindUnsafeHost {
    t.Fatalf("expected unsafe_host, got %v", err)
  }
}

func TestFetchRejectsInvalidURL(t *testing.T) {
  fetcher, _ := newTestFetcher(t, 1024)
  for _, raw := range []string{"", "not-a-url", "/relative/path.jpg"} {
    _, err := fetcher.Fetch(context.Background(), media.Ref{URL: raw}, "")
    var fetchErr *media.FetchError
    if !errors.As(err, &fetchErr) || fetchErr.Kind != media.KindInvalidURL {
      t.Fatalf("%q: expected invalid_url, got %v", raw, err)
    }
  }
}

func TestFetchRejectsDisallowedContentType(t *testing.T) {
  server, host := serveMedia(t, func(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    _, _ = w.Write([]byte("<html>login page</html>"))
  })

  fetcher, _ := newTestFetcher(t, 1024)
  _, err := fetcher.Fetch(context.Background(), media.Ref{URL: server.URL + "/a.jpg"}, host)
  var fetchErr *media.FetchError
  if !errors.As(err, &fetchErr) || fetchErr.Kind != media.KindDisallowedType {
    t.Fatalf("expected disallowed_content_type, got %v", err)
  }
}

func TestFetchRejectsOversizeBody(t *testing.T) {
  server, host := serveMedia(t, func(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "image/png")
    _, _ = w.Write(make([]byte, 64))
  })

  fetcher, _ := newTestFetcher(t, 32)
  _, err := fetcher.Fetch(context.Background(), media.Ref{URL: server.URL + "/big.png"}, host)
  var fetchErr *media.FetchError
  if !errors.As(err, &fetchErr) || fetchErr.Kind != media.KindOversize {
    t.Fatalf("expected oversize, got %v", err)
  }
}

func TestFetchRejectsErrorStatus(t *testing.T) {
  server, host := serveMedia(t, func(w http.ResponseWriter, r *http.Request) {
    http.NotFound(w, r)
  })

  fetcher, _ := newTestFetcher(t, 1024)
  _, err := fetcher.Fetch(context.Background(), media.Ref{URL: server.URL + "/missing.jpg"}, host)
  var fetchErr *media.FetchError
  if !errors.As(err, &fetchErr) || fetchErr.Kind != media.KindNetwork {
    t.Fatalf("expected network_failure, got %v", err)
  }
}

func TestFetchContentHashNaming(t *testing.T) {
  server, host := serveMedia(t, func(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "application/pdf")
    _, _ = w.Write([]byte("%PDF-1.4"))
  })

  fetcher, dir := newTestFetcher(t, 1024)
  ref := media.Ref{
    URL:              server.URL + "/media/9913",
    OriginalFilename: "Exposé.pdf",
    ContentHash:      "deadbeefcafe0123",
  }

  local, err := fetcher.Fetch(context.Background(), ref, host)
  if err != nil {
    t.Fatalf("fetch failed: %v", err)
  }
  want := filepath.Join(dir, "Expos-deadbeef.pdf")
  if local.Path != want {
    t.Fatalf("path %q, want %q", local.Path, want)
  }
}
