package views

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"store_dashboard/internal/dashboard"
)

type SummaryFetcher interface {
	GetDashboardSummary(ctx context.Context) (dashboard.Summary, error)
}

// SummaryCards shows totals across all stores.
type SummaryCards struct {
	*Component[dashboard.Summary]
}

func NewSummaryCards(api SummaryFetcher) *SummaryCards {
	return &SummaryCards{
		Component: newComponent("Failed to load summary", api.GetDashboardSummary),
	}
}

func (c *SummaryCards) Render(w io.Writer) error {
	return renderState(w, c.State(), func(w io.Writer, s dashboard.Summary) error {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Total Stores\t%s\n", formatCount(s.TotalStores))
		fmt.Fprintf(tw, "Total Orders\t%s\n", formatCount(s.TotalOrders))
		fmt.Fprintf(tw, "Total Revenue\t%s\n", formatCurrency(s.TotalRevenue))
		return tw.Flush()
	})
}
