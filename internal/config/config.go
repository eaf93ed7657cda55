package config

import (
  "os"
  "path/filepath"
  "strconv"
  "strings"

  "github.com/joho/godotenv"
)

type Config struct {
  Env           string
  Port          string
  AppTimezone   string
  MysqlDSN      string
  RedisAddr     string
  RedisPassword string
  RedisDB       int

  DataDir      string
  MediaBaseURL string

  SiteURL  string
  SiteName string

  SyncCron string

  MediaFetchTimeoutSeconds int
  MediaMaxBytes            int64

  OssEndpoint  string
  OssAccessKey string
  OssSecret    string
  OssBucket    string
  OssPrefix    string

  JwtSecret      string
  JwtIssuer      string
  JwtExpireHours int
}

// Load reads configuration from environment variables.
// Returns:
//   *Config: Loaded config.
//   error: Error when a value cannot be parsed.
func Load() (*Config, error) {
  _ = godotenv.Load("../.env", ".env")

  redisDB := 0
  if raw := os.Getenv("REDIS_DB"); raw != "" {
    parsed, err := strconv.Atoi(raw)
    if err != nil {
      return nil, err
    }
    redisDB = parsed
  }

  cfg := &Config{
    Env:           envOrDefault("APP_ENV", "dev"),
    Port:          envOrDefault("APP_PORT", "8080"),
    AppTimezone:   envOrDefault("APP_TIMEZONE", "Europe/Vienna"),
    MysqlDSN:      normalizeMySQLDSN(os.Getenv("MYSQL_DSN")),
    RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
    RedisPassword: os.Getenv("REDIS_PASSWORD"),
    RedisDB:       redisDB,

    DataDir:      envOrDefault("DATA_DIR", "/data/immoadmin"),
    MediaBaseURL: envOrDefault("MEDIA_BASE_URL", "/api/media-files/"),

    SiteURL:  envOrDefault("SITE_URL", "http://localhost:8080"),
    SiteName: envOrDefault("SITE_NAME", "immoadmin-connect"),

    SyncCron: strings.TrimSpace(os.Getenv("SYNC_CRON")),

    MediaFetchTimeoutSeconds: envInt("MEDIA_FETCH_TIMEOUT_SECONDS", 60),
    MediaMaxBytes:            envInt64("MEDIA_MAX_BYTES", 50*1024*1024),

    OssEndpoint:  envOrDefault("ALI_URL", envOrDefault("ALI_ENDPOINT", "")),
    OssAccessKey: os.Getenv("ALI_ACCESS_KEY_ID"),
    OssSecret:    os.Getenv("ALI_SECRET_ACCESS_KEY"),
    OssBucket:    os.Getenv("ALI_BUCKET"),
    OssPrefix:    envOrDefault("ALI_PREFIX", "immoadmin/media"),

    JwtSecret:      envOrDefault("JWT_SECRET", "dev-secret"),
    JwtIssuer:      envOrDefault("JWT_ISSUER", "immoadmin-connect"),
    JwtExpireHours: envInt("JWT_EXPIRE_HOURS", 24),
  }

  return cfg, nil
}

// MediaDir returns the local media cache directory under the data dir.
func (c *Config) MediaDir() string {
  return filepath.Join(c.DataDir, "media")
}

func envOrDefault(key, value string) string {
  if v := os.Getenv(key); v != "" {
    return v
  }
  return value
}

func envInt64(key string, value int64) int64 {
  if v := os.Getenv(key); v != "" {
    if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
      return parsed
    }
  }
  return value
}

func envInt(key string, value int) int {
  if v := os.Getenv(key); v != "" {
    if parsed, err := strconv.Atoi(v); err == nil {
      return parsed
    }
  }
  return value
}

func normalizeMySQLDSN(dsn string) string {
  if strings.TrimSpace(dsn) == "" {
    return dsn
  }
  dsn = ensureDSNParam(dsn, "parseTime", "true")
  dsn = ensureDSNParam(dsn, "loc", "UTC")
  return dsn
}

func ensureDSNParam(dsn, key, value string) string {
  if strings.Contains(dsn, key+"=") {
    return dsn
  }
  sep := "?"
  if strings.Contains(dsn, "?") {
    sep = "&"
  }
  return dsn + sep + key + "=" + value
}
