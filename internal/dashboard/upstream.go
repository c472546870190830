package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"store_dashboard/internal/config"
	"store_dashboard/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// upstream is one HTTP service the client reads from, guarded by its own
// circuit breaker.
type upstream struct {
	name    string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

func newUpstream(name, baseURL string, cfg config.Config, m *metrics.Metrics, logger *zap.Logger) *upstream {
	u := &upstream{
		name: name,
		http: newRestyClient(baseURL, cfg),
	}
	if cfg.BreakerFailures == 0 {
		return u
	}

	failures := cfg.BreakerFailures
	m.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return !tripsBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.BreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("circuit breaker state changed",
				zap.String("upstream", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return u
}

func newRestyClient(baseURL string, cfg config.Config) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", apiMediaType).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode() == http.StatusTooManyRequests
		})
}

// execute runs fn through the breaker. An open breaker answers with
// ErrUnavailable without touching the network.
func (u *upstream) execute(fn func() ([]byte, error)) ([]byte, error) {
	if u.breaker == nil {
		return fn()
	}

	out, err := u.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, u.name, err)
		}
		return nil, err
	}
	return out.([]byte), nil
}

// tripsBreaker reports whether err says the upstream is unhealthy. Client
// errors and caller cancellation do not count.
func tripsBreaker(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}
