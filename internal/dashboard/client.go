package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"store_dashboard/internal/config"
	"store_dashboard/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultOrdersLimit = 20
	apiMediaType       = "application/json"
)

const (
	endpointStores         = "stores"
	endpointSummary        = "summary"
	endpointStoreDashboard = "store_dashboard"
	endpointMetrics        = "metrics"
	endpointHealthScore    = "health_score"
	endpointAnomalies      = "anomalies"
	endpointOrders         = "orders"
)

var (
	ErrMissingBaseURL = errors.New("backend base url is required")
	ErrMissingStoreID = errors.New("store id is required")
	ErrNotFound       = errors.New("backend resource not found")
	ErrUnauthorized   = errors.New("backend unauthorized")
	ErrRateLimited    = errors.New("backend rate limited")
	ErrUnavailable    = errors.New("backend unavailable")
)

type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("dashboard api error: %s", e.Status)
	}
	return fmt.Sprintf("dashboard api error: %s: %s", e.Status, e.Body)
}

// Client is the only gateway between the views and the backend API.
//
// Stores, summary and per-store dashboard reads are critical and return
// their errors. Metrics, health score, anomalies and mock orders are
// enrichment reads: backend failures are logged and answered with fallback
// values so a render never fails because the backend is down.
type Client struct {
	backend *upstream
	mock    *upstream
	limiter *rate.Limiter
	wsURL   string
	stream  StreamConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewClient(cfg config.Config, m *metrics.Metrics, logger *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BackendAPIURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if m == nil {
		m = metrics.Nop()
	}
	logger = logger.Named("dashboard")

	var mock *upstream
	if mockURL := strings.TrimRight(strings.TrimSpace(cfg.MockAPIURL), "/"); mockURL != "" {
		mock = newUpstream("mock", mockURL, cfg, m, logger)
	}

	limit := rate.Inf
	if cfg.RequestRate > 0 {
		limit = rate.Limit(cfg.RequestRate)
	}

	return &Client{
		backend: newUpstream("backend", baseURL, cfg, m, logger),
		mock:    mock,
		limiter: rate.NewLimiter(limit, max(cfg.RequestBurst, 1)),
		wsURL:   websocketURL(baseURL) + "/ws/orders",
		stream: StreamConfig{
			MinBackoff:  cfg.StreamMinBackoff,
			MaxBackoff:  cfg.StreamMaxBackoff,
			MaxAttempts: cfg.StreamMaxAttempts,
		},
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// OrderStreamURL is the WebSocket endpoint derived from the backend URL.
func (c *Client) OrderStreamURL() string {
	return c.wsURL
}

func (c *Client) GetStores(ctx context.Context) ([]Store, error) {
	body, err := c.doGet(ctx, c.backend, getRequest{endpoint: endpointStores, path: "/api/dashboard/stores"})
	if err != nil {
		c.logger.Error("error fetching stores", zap.Error(err))
		return nil, err
	}
	c.countRequest(endpointStores, metrics.OutcomeOK)
	return normalizeStores(body), nil
}

func (c *Client) GetDashboardSummary(ctx context.Context) (Summary, error) {
	var summary Summary
	if err := c.getJSON(ctx, c.backend, getRequest{endpoint: endpointSummary, path: "/api/dashboard/summary"}, &summary); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func (c *Client) GetDashboardStore(ctx context.Context, storeID string) (StoreDashboard, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return StoreDashboard{}, ErrMissingStoreID
	}

	var bundle StoreDashboard
	req := getRequest{
		endpoint:   endpointStoreDashboard,
		path:       "/api/dashboard/store/{storeId}",
		pathParams: map[string]string{"storeId": storeID},
	}
	if err := c.getJSON(ctx, c.backend, req, &bundle); err != nil {
		return StoreDashboard{}, err
	}
	if bundle.Orders == nil {
		bundle.Orders = []Order{}
	}
	return bundle, nil
}

func (c *Client) GetStoreMetrics(ctx context.Context, storeID string) (StoreMetrics, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return StoreMetrics{}, ErrMissingStoreID
	}

	var m StoreMetrics
	req := getRequest{
		endpoint:   endpointMetrics,
		path:       "/api/metrics/store/{storeId}",
		pathParams: map[string]string{"storeId": storeID},
	}
	if err := c.getJSON(ctx, c.backend, req, &m); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StoreMetrics{}, ctxErr
		}
		c.fellBack(endpointMetrics, storeID, err)
		return FallbackMetrics(storeID, c.now()), nil
	}
	if m.ErrorBreakdown == nil {
		m.ErrorBreakdown = map[string]int{}
	}
	return m, nil
}

func (c *Client) GetHealthScore(ctx context.Context, storeID string) (HealthScore, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return HealthScore{}, ErrMissingStoreID
	}

	var score HealthScore
	req := getRequest{
		endpoint:   endpointHealthScore,
		path:       "/api/health-score/{storeId}",
		pathParams: map[string]string{"storeId": storeID},
	}
	if err := c.getJSON(ctx, c.backend, req, &score); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return HealthScore{}, ctxErr
		}
		c.fellBack(endpointHealthScore, storeID, err)
		return FallbackHealthScore(storeID, c.now()), nil
	}
	return score, nil
}

// DetectAnomalies asks the backend for anomalies of one store, or of all
// stores when storeID is empty.
func (c *Client) DetectAnomalies(ctx context.Context, storeID string) ([]Anomaly, error) {
	storeID = strings.TrimSpace(storeID)
	req := getRequest{endpoint: endpointAnomalies, path: "/api/anomalies/detect"}
	if storeID != "" {
		req.query = map[string]string{"store_id": storeID}
	}

	var anomalies []Anomaly
	if err := c.getJSON(ctx, c.backend, req, &anomalies); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.fellBack(endpointAnomalies, storeID, err)
		return []Anomaly{}, nil
	}
	if anomalies == nil {
		anomalies = []Anomaly{}
	}
	return anomalies, nil
}

// GetOrders reads recent orders straight from the mock orders service.
func (c *Client) GetOrders(ctx context.Context, storeID string, limit int) ([]Order, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, ErrMissingStoreID
	}
	if limit <= 0 {
		limit = defaultOrdersLimit
	}
	if c.mock == nil {
		c.fellBack(endpointOrders, storeID, errors.New("mock api url is not configured"))
		return []Order{}, nil
	}

	var resp struct {
		Orders []Order `json:"orders"`
	}
	req := getRequest{
		endpoint:   endpointOrders,
		path:       "/api/stores/{storeId}/orders",
		pathParams: map[string]string{"storeId": storeID},
		query:      map[string]string{"limit": strconv.Itoa(limit)},
	}
	if err := c.getJSON(ctx, c.mock, req, &resp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.fellBack(endpointOrders, storeID, err)
		return []Order{}, nil
	}
	if resp.Orders == nil {
		return []Order{}, nil
	}
	return resp.Orders, nil
}

// FallbackMetrics is the zeroed metrics record shown when the backend
// cannot be reached.
func FallbackMetrics(storeID string, now time.Time) StoreMetrics {
	return StoreMetrics{
		StoreID:        storeID,
		ErrorBreakdown: map[string]int{},
		Timestamp:      Timestamp{Time: now},
	}
}

// FallbackHealthScore is the placeholder score shown when the backend
// cannot be reached.
func FallbackHealthScore(storeID string, now time.Time) HealthScore {
	return HealthScore{
		StoreID: storeID,
		Score:   75,
		Status:  HealthHealthy,
		Factors: HealthFactors{
			SuccessRate:    85,
			ProcessingTime: 70,
			RevenueTrend:   75,
		},
		Timestamp: Timestamp{Time: now},
	}
}

type getRequest struct {
	endpoint   string
	path       string
	pathParams map[string]string
	query      map[string]string
}

func (c *Client) getJSON(ctx context.Context, u *upstream, r getRequest, result any) error {
	body, err := c.doGet(ctx, u, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		c.countRequest(r.endpoint, metrics.OutcomeError)
		return fmt.Errorf("decode %s response: %w", r.endpoint, err)
	}
	c.countRequest(r.endpoint, metrics.OutcomeOK)
	return nil
}

func (c *Client) countRequest(endpoint, outcome string) {
	c.metrics.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

func (c *Client) doGet(ctx context.Context, u *upstream, r getRequest) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	requestID := uuid.NewString()
	return u.execute(func() ([]byte, error) {
		req := u.http.R().
			SetContext(ctx).
			SetHeader(requestIDHeader, requestID)
		if len(r.pathParams) > 0 {
			req.SetPathParams(r.pathParams)
		}
		if len(r.query) > 0 {
			req.SetQueryParams(r.query)
		}

		start := time.Now()
		resp, err := req.Get(r.path)
		c.metrics.RequestDuration.WithLabelValues(r.endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			c.countRequest(r.endpoint, metrics.OutcomeError)
			return nil, fmt.Errorf("dashboard request: %w", err)
		}
		if resp.IsError() {
			c.countRequest(r.endpoint, metrics.OutcomeError)
			return nil, apiErrorFromResponse(resp)
		}

		// The ok outcome is counted by the caller once the body is decoded.
		c.logger.Debug("backend request",
			zap.String("upstream", u.name),
			zap.String("endpoint", r.endpoint),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return resp.Body(), nil
	})
}

func (c *Client) fellBack(endpoint, storeID string, err error) {
	c.metrics.FallbacksTotal.WithLabelValues(endpoint).Inc()
	c.logger.Warn("backend read failed; using fallback",
		zap.String("endpoint", endpoint),
		zap.String("store_id", storeID),
		zap.Error(err),
	)
}

// normalizeStores accepts a bare array, {"stores": [...]} or {"data": [...]}
// and returns an empty slice for any other shape.
func normalizeStores(body []byte) []Store {
	body = bytes.TrimSpace(body)
	if isJSONArray(body) {
		var stores []Store
		if err := json.Unmarshal(body, &stores); err == nil {
			return stores
		}
		return []Store{}
	}

	var wrapped struct {
		Stores json.RawMessage `json:"stores"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return []Store{}
	}
	for _, raw := range []json.RawMessage{wrapped.Stores, wrapped.Data} {
		if !isJSONArray(raw) {
			continue
		}
		var stores []Store
		if err := json.Unmarshal(raw, &stores); err == nil {
			return stores
		}
	}
	return []Store{}
}

func isJSONArray(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func websocketURL(baseURL string) string {
	if strings.HasPrefix(baseURL, "http") {
		return "ws" + strings.TrimPrefix(baseURL, "http")
	}
	return baseURL
}

func apiErrorFromResponse(resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       body,
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", ErrUnavailable, apiErr)
	default:
		return apiErr
	}
}
