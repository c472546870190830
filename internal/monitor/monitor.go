package monitor

import (
	"context"
	"sync"
	"time"

	"store_dashboard/internal/dashboard"
	"store_dashboard/internal/metrics"

	"go.uber.org/zap"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	fetchErrorMessage      = "Failed to fetch store data"
)

// Source is what the monitor polls for the selected store.
type Source interface {
	GetStoreMetrics(ctx context.Context, storeID string) (dashboard.StoreMetrics, error)
	GetHealthScore(ctx context.Context, storeID string) (dashboard.HealthScore, error)
}

type Snapshot struct {
	Store     *dashboard.Store        `json:"store,omitempty"`
	Metrics   *dashboard.StoreMetrics `json:"metrics,omitempty"`
	Health    *dashboard.HealthScore  `json:"health_score,omitempty"`
	Loading   bool                    `json:"loading"`
	Error     string                  `json:"error,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(m *Monitor) {
		m.newTicker = newTicker
	}
}

// WithOnUpdate registers fn to receive every new snapshot. fn runs on the
// polling goroutine and must not call Select, Deselect or Close.
func WithOnUpdate(fn func(Snapshot)) Option {
	return func(m *Monitor) {
		m.onUpdate = fn
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

// Monitor holds the selected store and keeps its metrics and health score
// fresh. Each selection owns one polling goroutine that fetches once right
// away and then once per interval; changing or clearing the selection stops
// it before anything else happens.
type Monitor struct {
	source    Source
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	onUpdate  func(Snapshot)
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	// selectMu serializes selection changes.
	selectMu sync.Mutex

	mu     sync.Mutex
	snap   Snapshot
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func New(source Source, logger *zap.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		source:    source,
		interval:  DefaultRefreshInterval,
		newTicker: newTimeTicker,
		logger:    logger.Named("monitor"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.Nop()
	}
	return m
}

func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Select makes store the selected one and starts polling it. Selecting
// the store that is already selected changes nothing.
func (m *Monitor) Select(store dashboard.Store) {
	m.selectMu.Lock()
	defer m.selectMu.Unlock()

	m.mu.Lock()
	same := m.snap.Store != nil && m.snap.Store.ID == store.ID && m.cancel != nil
	m.mu.Unlock()
	if same {
		return
	}

	m.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.gen++
	gen := m.gen
	selected := store
	m.snap = Snapshot{Store: &selected}
	m.cancel = cancel
	m.done = done
	snap := m.snap
	m.mu.Unlock()

	m.logger.Info("store selected", zap.String("store_id", store.ID), zap.Duration("interval", m.interval))
	m.publish(snap)
	go m.poll(ctx, gen, store.ID, done)
}

// Deselect stops polling and clears the selection. When it returns no
// further fetch will be issued.
func (m *Monitor) Deselect() {
	m.selectMu.Lock()
	defer m.selectMu.Unlock()

	if !m.stop() {
		return
	}

	m.mu.Lock()
	m.gen++
	m.snap = Snapshot{}
	snap := m.snap
	m.mu.Unlock()

	m.logger.Info("store deselected")
	m.publish(snap)
}

func (m *Monitor) Close() error {
	m.Deselect()
	return nil
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// stop cancels the running poller and waits for it to exit. It reports
// whether one was running.
func (m *Monitor) stop() bool {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (m *Monitor) poll(ctx context.Context, gen uint64, storeID string, done chan struct{}) {
	defer close(done)

	ticker := m.newTicker(m.interval)
	defer ticker.Stop()

	m.refresh(ctx, gen, storeID)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			m.refresh(ctx, gen, storeID)
		}
	}
}

func (m *Monitor) refresh(ctx context.Context, gen uint64, storeID string) {
	if !m.update(ctx, gen, func(s *Snapshot) {
		s.Loading = true
		s.Error = ""
	}) {
		return
	}

	storeMetrics, err := m.source.GetStoreMetrics(ctx, storeID)
	var health dashboard.HealthScore
	if err == nil {
		health, err = m.source.GetHealthScore(ctx, storeID)
	}
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		m.metrics.RefreshesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		m.logger.Error("failed to fetch store data", zap.String("store_id", storeID), zap.Error(err))
	} else {
		m.metrics.RefreshesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	}

	now := m.now()
	m.update(ctx, gen, func(s *Snapshot) {
		s.Loading = false
		if err != nil {
			s.Error = fetchErrorMessage
			return
		}
		s.Metrics = &storeMetrics
		s.Health = &health
		s.UpdatedAt = now
	})
}

// update applies fn if gen is still the live selection and publishes the
// result.
func (m *Monitor) update(ctx context.Context, gen uint64, fn func(*Snapshot)) bool {
	m.mu.Lock()
	if gen != m.gen || ctx.Err() != nil {
		m.mu.Unlock()
		return false
	}
	fn(&m.snap)
	snap := m.snap
	m.mu.Unlock()

	m.publish(snap)
	return true
}

func (m *Monitor) publish(snap Snapshot) {
	if m.onUpdate != nil {
		m.onUpdate(snap)
	}
}
