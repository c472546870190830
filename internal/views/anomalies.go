package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"store_dashboard/internal/dashboard"
)

type AnomalyDetector interface {
	DetectAnomalies(ctx context.Context, storeID string) ([]dashboard.Anomaly, error)
}

// AnomalyAlerts lists the anomalies the backend flags for one store.
type AnomalyAlerts struct {
	*Component[[]dashboard.Anomaly]
	storeID string
}

func NewAnomalyAlerts(api AnomalyDetector, storeID string) *AnomalyAlerts {
	return &AnomalyAlerts{
		Component: newComponent("Failed to load anomalies", func(ctx context.Context) ([]dashboard.Anomaly, error) {
			return api.DetectAnomalies(ctx, storeID)
		}),
		storeID: storeID,
	}
}

func (a *AnomalyAlerts) Render(w io.Writer) error {
	return renderState(w, a.State(), func(w io.Writer, anomalies []dashboard.Anomaly) error {
		if len(anomalies) == 0 {
			_, err := fmt.Fprintln(w, "No anomalies detected")
			return err
		}
		for _, an := range anomalies {
			severity := strings.ToUpper(orDash(an.Severity))
			line := fmt.Sprintf("[%s] %s", severity, orDash(an.Type))
			if an.Message != "" {
				line += ": " + an.Message
			}
			if an.DetectedAt != "" {
				line += " (" + an.DetectedAt + ")"
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	})
}
