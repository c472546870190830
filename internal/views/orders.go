package views

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"store_dashboard/internal/dashboard"
)

type StoreDashboardFetcher interface {
	GetDashboardStore(ctx context.Context, storeID string) (dashboard.StoreDashboard, error)
}

// OrdersTable lists the recent orders of one store.
type OrdersTable struct {
	*Component[[]dashboard.Order]

	mu      sync.Mutex
	storeID string
}

func NewOrdersTable(api StoreDashboardFetcher, storeID string) *OrdersTable {
	t := &OrdersTable{storeID: storeID}
	t.Component = newComponent("Failed to load orders", func(ctx context.Context) ([]dashboard.Order, error) {
		bundle, err := api.GetDashboardStore(ctx, t.StoreID())
		if err != nil {
			return nil, err
		}
		if bundle.Orders == nil {
			return []dashboard.Order{}, nil
		}
		return bundle.Orders, nil
	})
	return t
}

func (t *OrdersTable) StoreID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.storeID
}

// SetStoreID switches the table to another store and reports whether it
// changed; callers reload on true.
func (t *OrdersTable) SetStoreID(storeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.storeID == storeID {
		return false
	}
	t.storeID = storeID
	return true
}

func (t *OrdersTable) Render(w io.Writer) error {
	return renderState(w, t.State(), func(w io.Writer, orders []dashboard.Order) error {
		return WriteOrders(w, orders)
	})
}

// WriteOrders prints an orders table, or the empty state when there are none.
func WriteOrders(w io.Writer, orders []dashboard.Order) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(w, "No orders available")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Order ID\tStatus\tAmount\tItems\tProcessing (s)\tCreated")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			o.ID,
			statusChip(o.Status),
			formatCurrency(o.TotalAmount.Float64()),
			o.ItemsCount,
			formatProcessing(o.ProcessingTimeSeconds),
			formatTime(o.CreatedAt.Time),
		)
	}
	return tw.Flush()
}

// WriteOrderLine prints one order as it arrives on the live stream.
func WriteOrderLine(w io.Writer, o dashboard.Order) error {
	_, err := fmt.Fprintf(w, "new order %s store=%s %s %s items=%d\n",
		o.ID, orDash(o.StoreID), statusChip(o.Status), formatCurrency(o.TotalAmount.Float64()), o.ItemsCount)
	return err
}
