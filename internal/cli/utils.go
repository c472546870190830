package cli

import (
	"context"
	"errors"
	"time"

	"store_dashboard/internal/config"
	"store_dashboard/internal/dashboard"
	"store_dashboard/internal/views"

	"go.uber.org/zap"
)

func trackCommand(logger *zap.Logger, name string, args []string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	errText := ""
	if err != nil {
		errText = err.Error()
	}
	logger.Info("command",
		zap.String("name", name),
		zap.Strings("args", args),
		zap.Int64("ms", elapsed.Milliseconds()),
		zap.Bool("ok", err == nil),
		zap.String("err", errText),
	)
	return err
}

func friendlyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, config.ErrMissingBackendURL), errors.Is(err, dashboard.ErrMissingBaseURL):
		return "Backend URL is not set: pass --backend-url or set BACKEND_API_URL."
	case errors.Is(err, dashboard.ErrMissingStoreID):
		return "A store is required: pass a store id, number or name."
	case errors.Is(err, views.ErrStoreNotFound):
		return "Store not found. Run 'stores' to list them."
	case errors.Is(err, views.ErrAmbiguousStore):
		return "More than one store matches (" + err.Error() + "). Use the id or number."
	case errors.Is(err, dashboard.ErrUnauthorized):
		return "Access denied by the backend."
	case errors.Is(err, dashboard.ErrNotFound):
		return "The backend has no such resource."
	case errors.Is(err, dashboard.ErrRateLimited):
		return "Too many requests. Try again later."
	case errors.Is(err, dashboard.ErrUnavailable):
		return "The backend is unavailable. Try again later."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The backend did not answer in time."
	default:
		return err.Error()
	}
}
