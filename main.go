package main

import (
  "context"
  "errors"
  "log"
  "net/http"
  "os"
  "time"

  "go.uber.org/zap"

  "immoadmin-connect/internal/config"
  apphttp "immoadmin-connect/internal/http"
  "immoadmin-connect/internal/logging"
  "immoadmin-connect/internal/media"
  "immoadmin-connect/internal/scheduler"
  "immoadmin-connect/internal/services"
  "immoadmin-connect/internal/store"
  "immoadmin-connect/internal/sync"
)

func main() {
  cfg, err := config.Load()
  if err != nil {
    log.Fatalf("load config failed: %v", err)
  }

  logger, err := logging.New(cfg.Env)
  if err != nil {
    log.Fatalf("init logger failed: %v", err)
  }
  defer func() {
    _ = logger.Sync()
  }()

  if cfg.AppTimezone != "" {
    if loc, err := time.LoadLocation(cfg.AppTimezone); err != nil {
      logger.Warn("load timezone failed", zap.Error(err))
    } else {
      time.Local = loc
    }
  }

  if cfg.MysqlDSN == "" {
    logger.Fatal("MYSQL_DSN is required")
  }
  db, err := store.NewMySQL(cfg.MysqlDSN)
  if err != nil {
    logger.Fatal("mysql connect failed", zap.Error(err))
  }
  if err := store.ApplyMigrations(db); err != nil {
    logger.Fatal("apply migrations failed", zap.Error(err))
  }

  var deps apphttp.Deps
  deps.DB = db
  deps.Logger = logger
  deps.Settings = store.NewSettingsStore(db)
  deps.Records = store.NewRecordStore(db)
  deps.SyncLog = store.NewSyncLogStore(db)

  var locker sync.RunLocker
  if cfg.RedisAddr != "" {
    redisClient, err := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
    if err != nil {
      logger.Warn("redis connect failed, run lock is process-local only", zap.Error(err))
    } else {
      deps.Redis = redisClient
      locker = store.NewRedisRunLock(redisClient)
    }
  }

  var mirror media.Mirror
  if cfg.OssEndpoint != "" {
    ossService, err := services.NewOSSService(cfg)
    if err != nil {
      logger.Warn("oss mirror disabled", zap.Error(err))
    } else {
      mirror = ossService
    }
  }

  if err := os.MkdirAll(cfg.MediaDir(), 0755); err != nil {
    logger.Fatal("create media dir failed", zap.Error(err))
  }

  fetcher := media.NewFetcher(
    cfg.MediaDir(),
    cfg.MediaBaseURL,
    time.Duration(cfg.MediaFetchTimeoutSeconds)*time.Second,
    cfg.MediaMaxBytes,
    mirror,
    logger,
  )

  deps.Engine = sync.NewReconciler(deps.Records, deps.Settings, deps.SyncLog, fetcher, locker, cfg.DataDir, logger)

  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()

  job := scheduler.New(cfg.SyncCron, func(runCtx context.Context) error {
    _, err := deps.Engine.RunFromFile(runCtx)
    if errors.Is(err, sync.ErrNoSnapshot) {
      return nil
    }
    return err
  }, logger)
  stopScheduler := job.Start(ctx)
  defer stopScheduler()

  router := apphttp.NewRouter(cfg, &deps)
  server := &http.Server{
    Addr:              ":" + cfg.Port,
    Handler:           router,
    ReadHeaderTimeout: 5 * time.Second,
  }

  logger.Info("server listening", zap.String("port", cfg.Port))
  if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
    logger.Fatal("server exited", zap.Error(err))
  }
}
