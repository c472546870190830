package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"store_dashboard/internal/monitor"
	"store_dashboard/internal/views"
)

type renderer interface {
	Render(w io.Writer) error
}

// writeView emits state as JSON or the view's text rendering.
func writeView(e *env, state any, view renderer) error {
	if e.opts.JSON {
		return writeJSON(e.out, state)
	}
	return view.Render(e.out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}

func writeSnapshot(e *env, snap monitor.Snapshot) error {
	if e.opts.JSON {
		return writeJSON(e.out, snap)
	}

	w := e.out
	if snap.Store == nil {
		_, err := fmt.Fprintln(w, "No store selected")
		return err
	}

	writeHeading(w, fmt.Sprintf("%s (%s)", snap.Store.Name, snap.Store.ID))
	if snap.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", snap.Error)
	}
	health := views.HealthIndicator{StoreID: snap.Store.ID, Health: snap.Health, Loading: snap.Loading}
	if err := health.Render(w); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := (views.MetricsCards{Metrics: snap.Metrics, Loading: snap.Loading}).Render(w); err != nil {
		return err
	}
	if !snap.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated %s\n", snap.UpdatedAt.Local().Format("15:04:05"))
	}
	return nil
}
