package scheduler

import (
  "context"
  "strings"
  "sync"

  "github.com/robfig/cron/v3"
  "go.uber.org/zap"
)

// Scheduler re-runs the cached snapshot on a cron expression, keeping
// the record store converged even when the backend skips a delivery.
type Scheduler struct {
  cronExpr string
  syncFunc func(context.Context) error
  logger   *zap.Logger
  cron     *cron.Cron
}

// New creates a scheduler. An empty cron expression disables it.
// Args:
//   cronExpr: Cron expression.
//   syncFunc: Function executed on schedule.
//   logger: Logger instance.
// Returns:
//   *Scheduler: Initialized scheduler, nil when disabled.
func New(cronExpr string, syncFunc func(context.Context) error, logger *zap.Logger) *Scheduler {
  expr := strings.TrimSpace(cronExpr)
  if expr == "" {
    return nil
  }
  return &Scheduler{cronExpr: expr, syncFunc: syncFunc, logger: logger}
}

// Start registers the cron job and returns a stop function.
// Args:
//   parent: Context whose cancellation stops the scheduler.
// Returns:
//   context.CancelFunc: Stop function.
func (s *Scheduler) Start(parent context.Context) context.CancelFunc {
  if s == nil {
    return func() {}
  }

  c := cron.New()
  id, err := c.AddFunc(s.cronExpr, func() { s.runOnce(parent) })
  if err != nil {
    if s.logger != nil {
      s.logger.Error("failed to register cron job", zap.String("cron", s.cronExpr), zap.Error(err))
    }
    return func() {}
  }
  s.cron = c
  c.Start()
  if s.logger != nil {
    s.logger.Info("sync scheduler started",
      zap.String("cron", s.cronExpr), zap.Time("next", c.Entry(id).Next))
  }

  var once sync.Once
  stop := func() {
    once.Do(func() {
      ctx := s.cron.Stop()
      <-ctx.Done()
      if s.logger != nil {
        s.logger.Info("sync scheduler stopped")
      }
    })
  }

  go func() {
    <-parent.Done()
    stop()
  }()

  return stop
}

func (s *Scheduler) runOnce(ctx context.Context) {
  select {
  case <-ctx.Done():
    return
  default:
  }

  if err := s.syncFunc(ctx); err != nil && s.logger != nil {
    s.logger.Warn("scheduled sync failed", zap.Error(err))
  }
}
