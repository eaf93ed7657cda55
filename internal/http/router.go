package http

import (
  "database/sql"

  "github.com/gin-gonic/gin"
  "github.com/redis/go-redis/v9"
  "go.uber.org/zap"

  "immoadmin-connect/internal/config"
  "immoadmin-connect/internal/http/handlers"
  "immoadmin-connect/internal/http/middleware"
  "immoadmin-connect/internal/store"
  "immoadmin-connect/internal/sync"
)

type Deps struct {
  DB       *sql.DB
  Redis    *redis.Client
  Settings *store.SettingsStore
  Records  *store.RecordStore
  SyncLog  *store.SyncLogStore
  Engine   *sync.Reconciler
  Logger   *zap.Logger
}

func NewRouter(cfg *config.Config, deps *Deps) *gin.Engine {
  router := gin.New()
  router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

  router.GET("/healthz", handlers.Health)

  api := router.Group("/api")
  api.GET("/ping", handlers.Ping)

  mediaFileHandler := handlers.NewMediaFileHandler(cfg)
  api.GET("/media-files/*path", mediaFileHandler.Serve)

  webhookHandler := handlers.NewWebhookHandler(cfg, deps.Settings, deps.Engine, deps.Logger)
  webhook := api.Group("/webhook")
  webhook.Use(middleware.WebhookAuth(deps.Settings))
  webhook.POST("/sync", webhookHandler.Sync)
  webhook.POST("/verify", webhookHandler.Verify)
  webhook.GET("/status", webhookHandler.Status)

  authHandler := handlers.NewAuthHandler(cfg, deps.DB)
  api.POST("/auth/login", authHandler.Login)
  api.POST("/auth/bootstrap", authHandler.Bootstrap)

  secured := api.Group("")
  secured.Use(middleware.AuthRequired(cfg))
  secured.GET("/auth/me", authHandler.Me)

  adminHandler := handlers.NewAdminHandler(cfg, deps.Settings, deps.Records, deps.SyncLog, deps.Engine, deps.Logger)
  admin := secured.Group("/admin")
  admin.Use(middleware.RequireAdmin())
  admin.POST("/webhook-token", adminHandler.SetWebhookToken)
  admin.DELETE("/webhook-token", adminHandler.ClearWebhookToken)
  admin.POST("/sync", adminHandler.ManualSync)
  admin.GET("/sync/log", adminHandler.SyncLog)
  admin.GET("/status", adminHandler.Status)
  admin.POST("/resync", adminHandler.ForceResync)

  return router
}
