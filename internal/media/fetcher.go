package media

import (
  "context"
  "errors"
  "fmt"
  "io"
  "net/http"
  "net/url"
  "os"
  "path"
  "path/filepath"
  "strings"
  "sync"
  "time"

  "go.uber.org/zap"
)

// Ref describes a remote media file referenced by a snapshot.
type Ref struct {
  URL              string `json:"url"`
  OriginalFilename string `json:"originalFilename,omitempty"`
  Title            string `json:"title,omitempty"`
  ContentHash      string `json:"contentHash,omitempty"`
}

// LocalRef points at a mirrored file in the local media cache.
type LocalRef struct {
  Path     string
  URL      string
  CacheHit bool
}

// Failure kinds, reported per media item.
const (
  KindInvalidURL     = "invalid_url"
  KindUnsafeHost     = "unsafe_host"
  KindNetwork        = "network_failure"
  KindOversize       = "oversize"
  KindTimeout        = "timeout"
  KindDisallowedType = "disallowed_content_type"
)

// FetchError wraps a per-item fetch failure with its kind.
type FetchError struct {
  Kind string
  URL  string
  Err  error
}

func (e *FetchError) Error() string {
  if e.Err != nil {
    return fmt.Sprintf("media fetch %s (%s): %v", e.Kind, e.URL, e.Err)
  }
  return fmt.Sprintf("media fetch %s (%s)", e.Kind, e.URL)
}

func (e *FetchError) Unwrap() error {
  return e.Err
}

var allowedContentTypes = map[string]struct{}{
  "image/jpeg":      {},
  "image/png":       {},
  "image/gif":       {},
  "image/webp":      {},
  "application/pdf": {},
  "application/msword": {},
  "application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
  "application/vnd.ms-excel": {},
  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
}

// Mirror replicates cached files to a secondary store (OSS).
type Mirror interface {
  UploadFileFromPath(objectPath, localPath string) error
}

// Fetcher downloads snapshot media into the local cache directory.
type Fetcher struct {
  dir      string
  baseURL  string
  timeout  time.Duration
  maxBytes int64
  client   *http.Client
  mirror   Mirror
  logger   *zap.Logger

  mu    sync.Mutex
  locks map[string]*sync.Mutex
}

// NewFetcher creates a media fetcher.
// Args:
//   dir: Local cache directory.
//   baseURL: Public URL prefix for cached files.
//   timeout: Per-fetch timeout.
//   maxBytes: Response size cap.
//   mirror: Optional secondary store, may be nil.
//   logger: Logger instance.
// Returns:
//   *Fetcher: Initialized fetcher.
func NewFetcher(dir, baseURL string, timeout time.Duration, maxBytes int64, mirror Mirror, logger *zap.Logger) *Fetcher {
  if timeout <= 0 {
    timeout = 60 * time.Second
  }
  if maxBytes <= 0 {
    maxBytes = 50 * 1024 * 1024
  }
  return &Fetcher{
    dir:      dir,
    baseURL:  baseURL,
    timeout:  timeout,
    maxBytes: maxBytes,
    client:   &http.Client{Timeout: timeout},
    mirror:   mirror,
    logger:   logger,
    locks:    make(map[string]*sync.Mutex),
  }
}

// Fetch validates, downloads and caches one media reference.
// Already cached non-empty files are returned without a network round
// trip, so repeated syncs of identical content are idempotent.
// Args:
//   ctx: Request context.
//   ref: Media reference from the snapshot.
//   trustedHost: Hostname of the source system, may be empty.
// Returns:
//   LocalRef: Local cache reference.
//   error: *FetchError when the item cannot be mirrored.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref, trustedHost string) (LocalRef, error) {
  parsed, err := url.Parse(strings.TrimSpace(ref.URL))
  if err != nil || !parsed.IsAbs() || parsed.Host == "" {
    return LocalRef{}, &FetchError{Kind: KindInvalidURL, URL: ref.URL, Err: err}
  }

  if !IsSafeURL(parsed, trustedHost) {
    return LocalRef{}, &FetchError{Kind: KindUnsafeHost, URL: ref.URL}
  }

  filename := CacheFilename(ref)
  if filename == "" {
    return LocalRef{}, &FetchError{Kind: KindInvalidURL, URL: ref.URL, Err: errors.New("no usable filename")}
  }

  localPath := filepath.Join(f.dir, filename)
  publicURL := f.publicURL(filename)

  lock := f.pathLock(filename)
  lock.Lock()
  defer lock.Unlock()

  if info, err := os.Stat(localPath); err == nil && info.Size() > 0 {
    return LocalRef{Path: localPath, URL: publicURL, CacheHit: true}, nil
  }

  body, err := f.download(ctx, parsed.String())
  if err != nil {
    return LocalRef{}, err
  }

  if err := f.writeExclusive(localPath, body); err != nil {
    return LocalRef{}, &FetchError{Kind: KindNetwork, URL: ref.URL, Err: err}
  }

  if f.mirror != nil {
    objectPath := path.Join("media", filename)
    if err := f.mirror.UploadFileFromPath(objectPath, localPath); err != nil && f.logger != nil {
      f.logger.Warn("media mirror upload failed",
        zap.String("object", objectPath), zap.Error(err))
    }
  }

  return LocalRef{Path: localPath, URL: publicURL}, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
  reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
  defer cancel()

  req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
  if err != nil {
    return nil, &FetchError{Kind: KindInvalidURL, URL: rawURL, Err: err}
  }

  resp, err := f.client.Do(req)
  if err != nil {
    kind := KindNetwork
    if errors.Is(err, context.DeadlineExceeded) {
      kind = KindTimeout
    }
    return nil, &FetchError{Kind: kind, URL: rawURL, Err: err}
  }
  defer func() {
    _ = resp.Body.Close()
  }()

  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    return nil, &FetchError{Kind: KindNetwork, URL: rawURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
  }

  if resp.ContentLength > f.maxBytes {
    return nil, &FetchError{Kind: KindOversize, URL: rawURL, Err: fmt.Errorf("declared %d bytes", resp.ContentLength)}
  }

  mime := normalizeContentType(resp.Header.Get("Content-Type"))
  if _, ok := allowedContentTypes[mime]; !ok {
    return nil, &FetchError{Kind: KindDisallowedType, URL: rawURL, Err: fmt.Errorf("content type %q", mime)}
  }

  body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
  if err != nil {
    kind := KindNetwork
    if errors.Is(err, context.DeadlineExceeded) {
      kind = KindTimeout
    }
    return nil, &FetchError{Kind: kind, URL: rawURL, Err: err}
  }
  if int64(len(body)) > f.maxBytes {
    return nil, &FetchError{Kind: KindOversize, URL: rawURL, Err: fmt.Errorf("exceeds %d bytes", f.maxBytes)}
  }
  if len(body) == 0 {
    return nil, &FetchError{Kind: KindNetwork, URL: rawURL, Err: errors.New("empty response body")}
  }

  return body, nil
}

// writeExclusive writes through a temp file plus rename so a concurrent
// reader never observes a partial file.
func (f *Fetcher) writeExclusive(localPath string, body []byte) error {
  if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
    return err
  }
  tmp, err := os.CreateTemp(filepath.Dir(localPath), ".download-*")
  if err != nil {
    return err
  }
  tmpPath := tmp.Name()
  if _, err := tmp.Write(body); err != nil {
    _ = tmp.Close()
    _ = os.Remove(tmpPath)
    return err
  }
  if err := tmp.Close(); err != nil {
    _ = os.Remove(tmpPath)
    return err
  }
  if err := os.Rename(tmpPath, localPath); err != nil {
    _ = os.Remove(tmpPath)
    return err
  }
  return nil
}

func (f *Fetcher) pathLock(filename string) *sync.Mutex {
  f.mu.Lock()
  defer f.mu.Unlock()
  lock, ok := f.locks[filename]
  if !ok {
    lock = &sync.Mutex{}
    f.locks[filename] = lock
  }
  return lock
}

func (f *Fetcher) publicURL(filename string) string {
  base := strings.TrimSpace(f.baseURL)
  if base == "" {
    base = "/api/media-files/"
  }
  if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
    return strings.TrimSuffix(base, "/") + "/" + filename
  }
  return path.Join(base, filename)
}

func normalizeContentType(header string) string {
  mime := strings.ToLower(strings.TrimSpace(strings.SplitN(header, ";", 2)[0]))
  return mime
}
