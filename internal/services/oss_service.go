package services

import (
  "fmt"
  "strings"

  "github.com/aliyun/aliyun-oss-go-sdk/oss"

  "immoadmin-connect/internal/config"
)

// OSSService mirrors the local media cache to an Aliyun OSS bucket so a
// CDN can serve the files. Mirroring is best-effort; the local cache
// stays authoritative.
type OSSService struct {
  bucket *oss.Bucket
  prefix string
}

// NewOSSService creates an OSS mirror service.
// Args:
//   cfg: App config instance with OSS settings.
// Returns:
//   *OSSService: Initialized service.
//   error: Error when config or OSS client initialization fails.
func NewOSSService(cfg *config.Config) (*OSSService, error) {
  if cfg.OssEndpoint == "" || cfg.OssAccessKey == "" || cfg.OssSecret == "" || cfg.OssBucket == "" {
    return nil, fmt.Errorf("oss config is incomplete")
  }

  client, err := oss.New(cfg.OssEndpoint, cfg.OssAccessKey, cfg.OssSecret)
  if err != nil {
    return nil, err
  }

  bucket, err := client.Bucket(cfg.OssBucket)
  if err != nil {
    return nil, err
  }

  return &OSSService{
    bucket: bucket,
    prefix: strings.Trim(strings.TrimSpace(cfg.OssPrefix), "/"),
  }, nil
}

// UploadFileFromPath uploads a local file to OSS.
// Args:
//   objectPath: Object path below the configured prefix.
//   localPath: Local file path.
// Returns:
//   error: Error when upload fails.
func (s *OSSService) UploadFileFromPath(objectPath, localPath string) error {
  if strings.TrimSpace(objectPath) == "" || strings.TrimSpace(localPath) == "" {
    return fmt.Errorf("object path and local path are required")
  }
  return s.bucket.PutObjectFromFile(s.buildObjectKey(objectPath), localPath)
}

func (s *OSSService) buildObjectKey(path string) string {
  trimmed := strings.TrimPrefix(path, "/")
  if s.prefix == "" {
    return trimmed
  }
  return s.prefix + "/" + trimmed
}
