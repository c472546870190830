package logging

import (
	"context"
	"os"

	"store_dashboard/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module is a plain option set rather than an fx.Module so the decorated
// logger reaches every other module.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(func(cfg config.Config) (*os.File, error) {
			return OpenLogFile(cfg.LogFile)
		}),
		fx.Decorate(func(base *zap.Logger, cfg config.Config, file *os.File) *zap.Logger {
			return AttachFileLogger(base, file, Level(cfg.Debug)).
				With(zap.String("app", "store-dashboard"))
		}),
		fx.Invoke(func(lc fx.Lifecycle, file *os.File) {
			if file == nil {
				return
			}
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					_ = file.Sync()
					return file.Close()
				},
			})
		}),
	)
}
