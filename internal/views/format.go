package views

import (
	"fmt"
	"math"
	"strings"
	"time"

	"store_dashboard/internal/dashboard"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const timeLayout = "2006-01-02 15:04:05"

var printer = message.NewPrinter(language.AmericanEnglish)

func formatCurrency(v float64) string {
	if v < 0 {
		return "-" + printer.Sprintf("$%.2f", math.Abs(v))
	}
	return printer.Sprintf("$%.2f", v)
}

func formatCount(v int) string {
	return printer.Sprintf("%d", v)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func formatProcessing(v *dashboard.Number) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", v.Float64())
}

// statusChip mirrors the colored status chips of the web dashboard.
func statusChip(status dashboard.OrderStatus) string {
	switch status {
	case dashboard.OrderCompleted:
		return "ok " + string(status)
	case dashboard.OrderFailed:
		return "FAIL " + string(status)
	case dashboard.OrderCancelled:
		return "warn " + string(status)
	default:
		if status == "" {
			return "-"
		}
		return "- " + string(status)
	}
}

func bar(value, limit float64, width int) string {
	if limit <= 0 || width <= 0 {
		return ""
	}
	filled := int(math.Round(value / limit * float64(width)))
	filled = min(max0(filled), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
