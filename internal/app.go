package internal

import (
	"context"

	"store_dashboard/internal/cli"
	"store_dashboard/internal/config"
	"store_dashboard/internal/logging"
	"store_dashboard/internal/metrics"

	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Run() error {
	var runner *cli.Runner

	app := fx.New(
		logger.Module(),
		logger.WithFxDefaultLogger(),
		config.Module(),
		logging.Module(),
		metrics.Module(),
		cli.Module(),
		fx.Populate(&runner),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	return runner.Execute()
}
