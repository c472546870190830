package views

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"store_dashboard/internal/dashboard"
)

const barWidth = 20

// HealthIndicator renders a health score the monitor fetched.
type HealthIndicator struct {
	StoreID string
	Health  *dashboard.HealthScore
	Loading bool
}

func (h HealthIndicator) Render(w io.Writer) error {
	if h.Loading && h.Health == nil {
		_, err := fmt.Fprintln(w, "Loading...")
		return err
	}
	if h.Health == nil {
		_, err := fmt.Fprintln(w, "No health score available")
		return err
	}

	score := h.Health
	fmt.Fprintf(w, "Health %s: %.0f/100 (%s)\n", h.StoreID, score.Score, strings.ToUpper(orDash(score.Status)))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeFactor(tw, "Success rate", score.Factors.SuccessRate)
	writeFactor(tw, "Processing time", score.Factors.ProcessingTime)
	writeFactor(tw, "Revenue trend", score.Factors.RevenueTrend)
	return tw.Flush()
}

func writeFactor(w io.Writer, name string, value float64) {
	fmt.Fprintf(w, "  %s\t%s\t%.0f\n", name, bar(value, 100, barWidth), value)
}
