package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"store_dashboard/internal/config"
	"store_dashboard/internal/dashboard"
	"store_dashboard/internal/metrics"
	"store_dashboard/internal/views"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	storesBody  = `[{"id":"s1","name":"Downtown","platform":"ubereats","status":"active","location":{"city":"Austin"}},{"id":"s2","name":"Uptown","platform":"doordash","status":"active"}]`
	summaryBody = `{"total_stores":2,"total_orders":1234,"total_revenue":5678.9,"avg_order_value":4.6,"status_counts":{"completed":1000,"failed":200,"cancelled":34},"time_range_hours":24}`
	metricsBody = `{"store_id":"s1","total_orders_24h":120,"total_orders_1h":6,"success_rate":95.5,"failure_rate":4.5,"avg_processing_time_minutes":12.5,"total_revenue_24h":2400,"avg_order_value":20,"orders_per_hour":5,"peak_hour":18,"error_breakdown":{"timeout":3},"timestamp":"2024-01-01T10:00:00"}`
	healthBody  = `{"store_id":"s1","score":90,"status":"healthy","factors":{"success_rate":95,"processing_time":80,"revenue_trend":85},"timestamp":"2024-01-01T10:00:00"}`
	bundleBody  = `{"store":{"id":"s1","name":"Downtown"},"orders":[{"id":"o-100","store_id":"s1","status":"completed","total_amount":"25.50","items_count":2,"created_at":"2024-01-01T09:00:00"}],"metrics":{}}`
	ordersBody  = `{"orders":[{"id":"o-200","store_id":"s1","status":"failed","total_amount":12,"items_count":1}]}`
)

type backend struct {
	mu          sync.Mutex
	ordersLimit string
	summaryCode int
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
	mux.HandleFunc("/api/dashboard/stores", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, storesBody)
	})
	mux.HandleFunc("/api/dashboard/summary", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		code := b.summaryCode
		b.mu.Unlock()
		if code != 0 {
			write(w, code, `{"detail":"boom"}`)
			return
		}
		write(w, http.StatusOK, summaryBody)
	})
	mux.HandleFunc("/api/metrics/store/s1", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, metricsBody)
	})
	mux.HandleFunc("/api/health-score/s1", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, healthBody)
	})
	mux.HandleFunc("/api/anomalies/detect", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, `[]`)
	})
	mux.HandleFunc("/api/dashboard/store/s1", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, bundleBody)
	})
	mux.HandleFunc("/api/stores/s1/orders", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.ordersLimit = r.URL.Query().Get("limit")
		b.mu.Unlock()
		write(w, http.StatusOK, ordersBody)
	})
	return mux
}

// syncBuffer lets the watch test read output while the monitor writes it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestRunner(t *testing.T, b *backend, stdin string) (*Runner, *syncBuffer) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.BackendAPIURL = srv.URL
	cfg.MockAPIURL = srv.URL
	cfg.Timeout = 2 * time.Second
	cfg.RetryCount = 0
	cfg.LogFile = ""
	cfg.StreamMinBackoff = 10 * time.Millisecond
	cfg.StreamMaxBackoff = 20 * time.Millisecond

	out := &syncBuffer{}
	r := NewRunner(cfg, zap.NewNop(), metrics.Nop(), nil)
	r.stdin = strings.NewReader(stdin)
	r.stdout = out
	r.stderr = io.Discard
	return r, out
}

func TestStoresCommand(t *testing.T) {
	r, out := newTestRunner(t, &backend{}, "")

	require.NoError(t, r.run(context.Background(), []string{"stores"}))
	text := out.String()
	assert.Contains(t, text, "Downtown")
	assert.Contains(t, text, "Austin")
	assert.Contains(t, text, "Uptown")
}

func TestStoresCommandJSON(t *testing.T) {
	r, out := newTestRunner(t, &backend{}, "")

	require.NoError(t, r.run(context.Background(), []string{"--json", "stores"}))

	var st views.State[[]dashboard.Store]
	require.NoError(t, json.Unmarshal([]byte(out.String()), &st))
	assert.False(t, st.Loading)
	assert.Empty(t, st.Err)
	require.Len(t, st.Data, 2)
	assert.Equal(t, "s1", st.Data[0].ID)
}

func TestSummaryCommand(t *testing.T) {
	r, out := newTestRunner(t, &backend{}, "")

	require.NoError(t, r.run(context.Background(), []string{"summary"}))
	text := out.String()
	assert.Contains(t, text, "Total Stores")
	assert.Contains(t, text, "1,234")
	assert.Contains(t, text, "$5,678.90")
}

func TestSummaryCommandBackendDown(t *testing.T) {
	r, out := newTestRunner(t, &backend{summaryCode: http.StatusInternalServerError}, "")

	err := r.run(context.Background(), []string{"summary"})
	require.ErrorIs(t, err, dashboard.ErrUnavailable)
	assert.Contains(t, out.String(), "Error: Failed to load summary")
	assert.Equal(t, "The backend is unavailable. Try again later.", friendlyError(err))
}

func TestStoreCommand(t *testing.T) {
	r, out := newTestRunner(t, &backend{}, "")

	require.NoError(t, r.run(context.Background(), []string{"store", "1"}))
	text := out.String()
	assert.Contains(t, text, "== Downtown (s1) ==")
	assert.Contains(t, text, "Health s1: 90/100 (HEALTHY)")
	assert.Contains(t, text, "== Anomalies ==")
	assert.Contains(t, text, "No anomalies detected")
	assert.Contains(t, text, "o-100")
	assert.Contains(t, text, "$25.50")
}

func TestStoreCommandJSON(t *testing.T) {
	r, out := newTestRunner(t, &backend{}, "")

	require.NoError(t, r.run(context.Background(), []string{"--json", "store", "Downtown"}))

	var doc storeDocument
	require.NoError(t, json.Unmarshal([]byte(out.String()), &doc))
	assert.Equal(t, "s1", doc.Store.ID)
	assert.Equal(t, 90.0, doc.Health.Score)
	assert.Equal(t, 120, doc.Metrics.TotalOrders24h)
	assert.Empty(t, doc.Anomalies.Data)
	require.Len(t, doc.Orders.Data, 1)
	assert.Equal(t, "o-100", doc.Orders.Data[0].ID)
}

func TestStoreCommandUnknownStore(t *testing.T) {
	r, _ := newTestRunner(t, &backend{}, "")

	err := r.run(context.Background(), []string{"store", "nowhere"})
	require.ErrorIs(t, err, views.ErrStoreNotFound)
	assert.Equal(t, "Store not found. Run 'stores' to list them.", friendlyError(err))
}

func TestOrdersCommandPassesLimit(t *testing.T) {
	b := &backend{}
	r, out := newTestRunner(t, b, "")

	require.NoError(t, r.run(context.Background(), []string{"orders", "s1", "5"}))
	assert.Contains(t, out.String(), "o-200")
	b.mu.Lock()
	assert.Equal(t, "5", b.ordersLimit)
	b.mu.Unlock()
}

func TestOrdersCommandDefaultLimit(t *testing.T) {
	b := &backend{}
	r, _ := newTestRunner(t, b, "")

	require.NoError(t, r.run(context.Background(), []string{"orders", "s1"}))
	b.mu.Lock()
	assert.Equal(t, "20", b.ordersLimit)
	b.mu.Unlock()
}

func TestOrdersCommandRejectsBadLimit(t *testing.T) {
	r, _ := newTestRunner(t, &backend{}, "")

	err := r.run(context.Background(), []string{"orders", "s1", "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid limit")
}

func TestUsageErrors(t *testing.T) {
	r, _ := newTestRunner(t, &backend{}, "")

	err := r.run(context.Background(), []string{"store"})
	require.Error(t, err)
	assert.Equal(t, "usage: store <id|#|name>", err.Error())

	err = r.run(context.Background(), []string{"bogus"})
	assert.ErrorIs(t, err, errUnknownCommand)
}

func TestCommandTable(t *testing.T) {
	var help bytes.Buffer
	writeCommandHelp(&help)

	for _, name := range []string{"stores", "summary", "store", "orders", "watch"} {
		c, ok := lookupCommand(name)
		require.True(t, ok, name)
		assert.NotNil(t, c.run, name)
		assert.Equal(t, "usage: "+c.usage, usageError(name).Error())
		assert.Contains(t, help.String(), c.usage)
	}
	_, ok := lookupCommand("bogus")
	assert.False(t, ok)
}

func TestMissingBackendURL(t *testing.T) {
	r, _ := newTestRunner(t, &backend{}, "")
	r.cfg.BackendAPIURL = ""

	err := r.run(context.Background(), []string{"stores"})
	require.ErrorIs(t, err, config.ErrMissingBackendURL)
	assert.Equal(t, "Backend URL is not set: pass --backend-url or set BACKEND_API_URL.", friendlyError(err))
}

func TestBackendURLFlagOverridesConfig(t *testing.T) {
	r, out := newTestRunner(t, &backend{}, "")
	url := r.cfg.BackendAPIURL
	r.cfg.BackendAPIURL = ""

	require.NoError(t, r.run(context.Background(), []string{"--backend-url", url, "stores"}))
	assert.Contains(t, out.String(), "Downtown")
}

func TestHelpFlag(t *testing.T) {
	r, _ := newTestRunner(t, &backend{}, "")
	assert.NoError(t, r.run(context.Background(), []string{"--help"}))
}

func TestParseFlags(t *testing.T) {
	r, _ := newTestRunner(t, &backend{}, "")

	opts, err := r.parseFlags([]string{"--timeout", "3", "--refresh", "5s", "--json", "Orders", "s1", "10"})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, 5*time.Second, opts.Refresh)
	assert.True(t, opts.JSON)
	assert.Equal(t, "orders", opts.Command)
	assert.Equal(t, []string{"s1", "10"}, opts.Args)

	cfg := opts.apply(r.cfg)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Second, cfg.RefreshInterval)
}

func TestREPLSession(t *testing.T) {
	input := strings.Join([]string{
		"help",
		"orders",
		"select Downtown",
		"stores",
		"status",
		"orders",
		"anomalies",
		"deselect",
		"bogus",
		"exit",
		"stores",
	}, "\n") + "\n"
	r, out := newTestRunner(t, &backend{}, input)

	require.NoError(t, r.run(context.Background(), nil))
	text := out.String()

	assert.Contains(t, text, "select <id|#|name>")
	assert.Contains(t, text, "Error: A store is required: pass a store id, number or name.")
	assert.Contains(t, text, "*  1")
	assert.Contains(t, text, "Selected Downtown (s1), refreshing every 30s")
	assert.Contains(t, text, "== Downtown (s1) ==")
	assert.Contains(t, text, "o-100")
	assert.Contains(t, text, "No anomalies detected")
	assert.Contains(t, text, "No store selected")
	assert.Contains(t, text, `Error: unknown command "bogus"`)
	assert.Equal(t, 1, strings.Count(text, "Uptown"), "input after exit must be ignored")
}

func TestREPLStopsOnCancelWhileWaitingForInput(t *testing.T) {
	r, out := newTestRunner(t, &backend{}, "")
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	r.stdin = pr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.run(ctx, nil)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "> ")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("session kept waiting for input after cancel")
	}
}

func TestWatchCommand(t *testing.T) {
	r, out := newTestRunner(t, &backend{}, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.run(ctx, []string{"watch", "s1"})
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Health s1: 90/100 (HEALTHY)")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "Live orders unavailable")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
