package metrics

import (
	"store_dashboard/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"metrics",
		fx.Provide(func() *prometheus.Registry {
			return prometheus.NewRegistry()
		}),
		fx.Provide(func(reg *prometheus.Registry) *Metrics {
			return New(reg)
		}),
		fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, reg *prometheus.Registry, logger *zap.Logger) {
			if cfg.MetricsAddr == "" {
				return
			}
			srv := NewServer(cfg.MetricsAddr, reg, logger)
			lc.Append(fx.Hook{
				OnStart: srv.Start,
				OnStop:  srv.Stop,
			})
		}),
	)
}
