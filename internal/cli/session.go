package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"store_dashboard/internal/dashboard"
	"store_dashboard/internal/monitor"
	"store_dashboard/internal/views"

	"go.uber.org/zap"
)

// session is the interactive dashboard: one store list, at most one
// selected store kept fresh by the monitor, and the views for it.
type session struct {
	env      *env
	stores   *views.StoreList
	selector views.StoreSelector
	monitor  *monitor.Monitor
	orders   *views.OrdersTable
}

func newSession(e *env) *session {
	return &session{
		env:    e,
		stores: views.NewStoreList(e.client),
		monitor: monitor.New(e.client, e.logger,
			monitor.WithInterval(e.cfg.RefreshInterval),
			monitor.WithMetrics(e.metrics),
		),
	}
}

func (s *session) close() {
	_ = s.monitor.Close()
}

func runREPL(ctx context.Context, e *env, in io.Reader) error {
	s := newSession(e)
	defer s.close()

	out := e.out
	fmt.Fprintln(out, "Store dashboard (type 'help' for commands, 'exit' to quit)")

	scanCtx, stopScan := context.WithCancel(ctx)
	defer stopScan()
	lines, scanErr := scanLines(scanCtx, in)
	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name, args := strings.ToLower(fields[0]), fields[1:]
		if name == "exit" || name == "quit" {
			return nil
		}

		err := trackCommand(e.logger, name, args, func() error {
			return s.handle(ctx, name, args)
		})
		if err != nil {
			fmt.Fprintln(out, "Error:", friendlyError(err))
		}
	}
}

// scanLines reads in on its own goroutine so that a cancelled ctx is not
// stuck behind a blocking read.
func scanLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(lines)
		reader := bufio.NewScanner(in)
		for reader.Scan() {
			select {
			case lines <- reader.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- reader.Err()
	}()
	return lines, errCh
}

func (s *session) handle(ctx context.Context, name string, args []string) error {
	switch name {
	case "help":
		s.help()
		return nil
	case "stores":
		return s.listStores(ctx)
	case "summary":
		return summaryCommand(ctx, s.env, args)
	case "select":
		if len(args) == 0 {
			return fmt.Errorf("usage: select <id|#|name>")
		}
		return s.selectStore(ctx, strings.Join(args, " "))
	case "deselect":
		s.deselect()
		return nil
	case "status":
		return writeSnapshot(s.env, s.monitor.Snapshot())
	case "orders":
		return s.showOrders(ctx)
	case "anomalies":
		return s.showAnomalies(ctx)
	default:
		return fmt.Errorf("%w %q, type 'help'", errUnknownCommand, name)
	}
}

func (s *session) help() {
	w := s.env.out
	fmt.Fprintln(w, "Commands:")
	for _, line := range [][2]string{
		{"stores", "List all stores"},
		{"summary", "Show totals across all stores"},
		{"select <id|#|name>", "Select a store and keep its health and metrics fresh"},
		{"deselect", "Stop watching the selected store"},
		{"status", "Show the selected store's health and metrics"},
		{"orders", "Show recent orders of the selected store"},
		{"anomalies", "Show anomalies of the selected store"},
		{"exit", "Quit"},
	} {
		fmt.Fprintf(w, "  %-20s %s\n", line[0], line[1])
	}
}

func (s *session) listStores(ctx context.Context) error {
	loadErr := s.stores.Load(ctx)
	if loadErr == nil {
		s.selector = views.NewStoreSelector(s.stores.State().Data)
	}
	if err := writeView(s.env, s.stores.State(), s.stores); err != nil {
		return err
	}
	return loadErr
}

func (s *session) selectStore(ctx context.Context, token string) error {
	store, err := s.selector.Resolve(token)
	if err != nil {
		// The list may be stale or not loaded yet.
		if loadErr := s.stores.Load(ctx); loadErr != nil {
			return loadErr
		}
		s.selector = views.NewStoreSelector(s.stores.State().Data)
		if store, err = s.selector.Resolve(token); err != nil {
			return err
		}
	}

	s.monitor.Select(store)
	s.stores.SetSelected(store.ID)
	if s.orders == nil {
		s.orders = views.NewOrdersTable(s.env.client, store.ID)
	} else {
		s.orders.SetStoreID(store.ID)
	}

	s.env.logger.Info("store selected", zap.String("store_id", store.ID))
	fmt.Fprintf(s.env.out, "Selected %s (%s), refreshing every %s\n", store.Name, store.ID, s.monitor.Interval())
	return nil
}

func (s *session) deselect() {
	s.monitor.Deselect()
	s.stores.SetSelected("")
	fmt.Fprintln(s.env.out, "No store selected")
}

func (s *session) selected() (dashboard.Store, error) {
	snap := s.monitor.Snapshot()
	if snap.Store == nil {
		return dashboard.Store{}, dashboard.ErrMissingStoreID
	}
	return *snap.Store, nil
}

func (s *session) showOrders(ctx context.Context) error {
	if _, err := s.selected(); err != nil {
		return err
	}
	loadErr := s.orders.Load(ctx)
	if err := writeView(s.env, s.orders.State(), s.orders); err != nil {
		return err
	}
	return loadErr
}

func (s *session) showAnomalies(ctx context.Context) error {
	store, err := s.selected()
	if err != nil {
		return err
	}
	alerts := views.NewAnomalyAlerts(s.env.client, store.ID)
	loadErr := alerts.Load(ctx)
	if err := writeView(s.env, alerts.State(), alerts); err != nil {
		return err
	}
	return loadErr
}
