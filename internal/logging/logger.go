package logging

import "go.uber.org/zap"

// New builds the application logger. Production gets JSON output,
// everything else a console encoder.
// Args:
//   env: App environment name.
// Returns:
//   *zap.Logger: Logger instance.
//   error: Error when the logger cannot be built.
func New(env string) (*zap.Logger, error) {
  if env == "prod" || env == "production" {
    return zap.NewProduction()
  }
  cfg := zap.NewDevelopmentConfig()
  cfg.Encoding = "console"
  cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
  return cfg.Build()
}
