package views

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"store_dashboard/internal/dashboard"
)

// MetricsCards renders metrics the monitor fetched; it does no fetching of
// its own.
type MetricsCards struct {
	Metrics *dashboard.StoreMetrics
	Loading bool
}

func (c MetricsCards) Render(w io.Writer) error {
	if c.Loading && c.Metrics == nil {
		_, err := fmt.Fprintln(w, "Loading...")
		return err
	}
	if c.Metrics == nil {
		_, err := fmt.Fprintln(w, "No metrics available")
		return err
	}

	m := c.Metrics
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Orders (24h)\t%s\n", formatCount(m.TotalOrders24h))
	fmt.Fprintf(tw, "Orders (1h)\t%s\n", formatCount(m.TotalOrders1h))
	fmt.Fprintf(tw, "Success rate\t%s\n", formatPercent(m.SuccessRate))
	fmt.Fprintf(tw, "Failure rate\t%s\n", formatPercent(m.FailureRate))
	fmt.Fprintf(tw, "Avg processing\t%.1f min\n", m.AvgProcessingTimeMinutes)
	fmt.Fprintf(tw, "Revenue (24h)\t%s\n", formatCurrency(m.TotalRevenue24h))
	fmt.Fprintf(tw, "Avg order value\t%s\n", formatCurrency(m.AvgOrderValue))
	fmt.Fprintf(tw, "Orders per hour\t%.1f\n", m.OrdersPerHour)
	if m.PeakHour != nil {
		fmt.Fprintf(tw, "Peak hour\t%02d:00\n", *m.PeakHour)
	}
	fmt.Fprintf(tw, "Errors\t%s\n", formatBreakdown(m.ErrorBreakdown))
	fmt.Fprintf(tw, "Updated\t%s\n", formatTime(m.Timestamp.Time))
	return tw.Flush()
}

func formatBreakdown(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}
	return strings.Join(parts, ", ")
}
