package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"store_dashboard/internal/dashboard"
	"store_dashboard/internal/monitor"
	"store_dashboard/internal/views"

	"go.uber.org/zap"
)

var errUnknownCommand = errors.New("unknown command")

type command struct {
	name  string
	usage string
	help  string
	run   func(ctx context.Context, e *env, args []string) error
}

// commands is populated in init since the handlers read their usage back
// out of it.
var commands []command

func init() {
	commands = []command{
		{name: "stores", usage: "stores", help: "List all stores", run: storesCommand},
		{name: "summary", usage: "summary", help: "Show totals across all stores", run: summaryCommand},
		{name: "store", usage: "store <id|#|name>", help: "Show health, metrics, anomalies and recent orders of one store", run: storeCommand},
		{name: "orders", usage: "orders <store-id> [limit]", help: "Fetch recent orders from the mock orders service", run: ordersCommand},
		{name: "watch", usage: "watch <id|#|name>", help: "Poll one store and print live orders until interrupted", run: watchCommand},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func writeCommandHelp(w io.Writer) {
	for _, c := range commands {
		fmt.Fprintf(w, "  %-28s %s\n", c.usage, c.help)
	}
}

func runCommand(ctx context.Context, e *env, name string, args []string) error {
	c, ok := lookupCommand(name)
	if !ok {
		return fmt.Errorf("%w %q", errUnknownCommand, name)
	}
	return trackCommand(e.logger, c.name, args, func() error {
		return c.run(ctx, e, args)
	})
}

func storesCommand(ctx context.Context, e *env, _ []string) error {
	list := views.NewStoreList(e.client)
	loadErr := list.Load(ctx)
	if err := writeView(e, list.State(), list); err != nil {
		return err
	}
	return loadErr
}

func summaryCommand(ctx context.Context, e *env, _ []string) error {
	cards := views.NewSummaryCards(e.client)
	loadErr := cards.Load(ctx)
	if err := writeView(e, cards.State(), cards); err != nil {
		return err
	}
	return loadErr
}

type storeDocument struct {
	Store     dashboard.Store                  `json:"store"`
	Health    dashboard.HealthScore            `json:"health_score"`
	Metrics   dashboard.StoreMetrics           `json:"metrics"`
	Anomalies views.State[[]dashboard.Anomaly] `json:"anomalies"`
	Orders    views.State[[]dashboard.Order]   `json:"orders"`
}

func storeCommand(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usageError("store")
	}
	store, err := resolveStore(ctx, e, args[0])
	if err != nil {
		return err
	}

	storeMetrics, err := e.client.GetStoreMetrics(ctx, store.ID)
	if err != nil {
		return err
	}
	health, err := e.client.GetHealthScore(ctx, store.ID)
	if err != nil {
		return err
	}

	alerts := views.NewAnomalyAlerts(e.client, store.ID)
	orders := views.NewOrdersTable(e.client, store.ID)
	// Both views keep their own error state; a failed panel does not fail
	// the command.
	_ = alerts.Load(ctx)
	_ = orders.Load(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if e.opts.JSON {
		return writeJSON(e.out, storeDocument{
			Store:     store,
			Health:    health,
			Metrics:   storeMetrics,
			Anomalies: alerts.State(),
			Orders:    orders.State(),
		})
	}

	w := e.out
	writeHeading(w, fmt.Sprintf("%s (%s)", store.Name, store.ID))
	if err := (views.HealthIndicator{StoreID: store.ID, Health: &health}).Render(w); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := (views.MetricsCards{Metrics: &storeMetrics}).Render(w); err != nil {
		return err
	}
	writeHeading(w, "Anomalies")
	if err := alerts.Render(w); err != nil {
		return err
	}
	writeHeading(w, "Recent Orders")
	return orders.Render(w)
}

func ordersCommand(ctx context.Context, e *env, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("orders")
	}
	limit := 0
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid limit %q: must be a positive number", args[1])
		}
		limit = n
	}

	orders, err := e.client.GetOrders(ctx, args[0], limit)
	if err != nil {
		return err
	}
	if e.opts.JSON {
		return writeJSON(e.out, orders)
	}
	return views.WriteOrders(e.out, orders)
}

func watchCommand(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usageError("watch")
	}
	store, err := resolveStore(ctx, e, args[0])
	if err != nil {
		return err
	}

	var mu sync.Mutex
	out := e.out
	mon := monitor.New(e.client, e.logger,
		monitor.WithInterval(e.cfg.RefreshInterval),
		monitor.WithMetrics(e.metrics),
		monitor.WithOnUpdate(func(snap monitor.Snapshot) {
			if snap.Loading {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if err := writeSnapshot(e, snap); err != nil {
				e.logger.Warn("render snapshot", zap.Error(err))
			}
		}),
	)
	defer mon.Close()

	stream, err := e.client.ConnectToOrderStream(ctx, func(o dashboard.Order) {
		mu.Lock()
		defer mu.Unlock()
		if e.opts.JSON {
			_ = writeJSON(out, liveOrder{Type: "new_order", Order: o})
			return
		}
		_ = views.WriteOrderLine(out, o)
	})
	if err != nil {
		// The store can still be watched without live orders.
		e.logger.Warn("live orders unavailable", zap.Error(err))
		if !e.opts.JSON {
			mu.Lock()
			fmt.Fprintln(out, "Live orders unavailable:", friendlyError(err))
			mu.Unlock()
		}
	} else {
		defer stream.Close()
	}

	mon.Select(store)
	<-ctx.Done()
	return nil
}

type liveOrder struct {
	Type  string          `json:"type"`
	Order dashboard.Order `json:"order"`
}

// resolveStore picks a store by id, position or name out of the backend
// store list.
func resolveStore(ctx context.Context, e *env, token string) (dashboard.Store, error) {
	stores, err := e.client.GetStores(ctx)
	if err != nil {
		return dashboard.Store{}, err
	}
	return views.NewStoreSelector(stores).Resolve(token)
}

func usageError(name string) error {
	c, _ := lookupCommand(name)
	return fmt.Errorf("usage: %s", c.usage)
}

func writeHeading(w io.Writer, title string) {
	fmt.Fprintf(w, "\n== %s ==\n", strings.TrimSpace(title))
}
