package dashboard

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Number decodes from a JSON number or a numeric string. Anything else
// decodes to zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*n = 0
		return nil
	}
	*n = Number(v)
	return nil
}

func (n Number) Float64() float64 {
	return float64(n)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp decodes RFC 3339 as well as the zone-less ISO forms some
// backends emit. Zone-less values are read as UTC; unparseable ones are
// left zero.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

type Store struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Platform string    `json:"platform,omitempty"`
	Status   string    `json:"status,omitempty"`
	Location *Location `json:"location,omitempty"`
}

func (s Store) City() string {
	if s.Location == nil {
		return ""
	}
	return s.Location.City
}

type Order struct {
	ID                    string      `json:"id"`
	StoreID               string      `json:"store_id,omitempty"`
	Status                OrderStatus `json:"status"`
	TotalAmount           Number      `json:"total_amount"`
	ItemsCount            int         `json:"items_count"`
	ProcessingTimeSeconds *Number     `json:"processing_time_seconds,omitempty"`
	CreatedAt             Timestamp   `json:"created_at"`
	Platform              string      `json:"platform,omitempty"`
	CustomerName          string      `json:"customer_name,omitempty"`
}

type StoreMetrics struct {
	StoreID                  string         `json:"store_id"`
	TotalOrders24h           int            `json:"total_orders_24h"`
	TotalOrders1h            int            `json:"total_orders_1h"`
	SuccessRate              float64        `json:"success_rate"`
	FailureRate              float64        `json:"failure_rate"`
	AvgProcessingTimeMinutes float64        `json:"avg_processing_time_minutes"`
	TotalRevenue24h          float64        `json:"total_revenue_24h"`
	AvgOrderValue            float64        `json:"avg_order_value"`
	OrdersPerHour            float64        `json:"orders_per_hour"`
	PeakHour                 *int           `json:"peak_hour,omitempty"`
	ErrorBreakdown           map[string]int `json:"error_breakdown"`
	Timestamp                Timestamp      `json:"timestamp"`
}

type HealthFactors struct {
	SuccessRate    float64 `json:"success_rate"`
	ProcessingTime float64 `json:"processing_time"`
	RevenueTrend   float64 `json:"revenue_trend"`
}

type HealthScore struct {
	StoreID   string        `json:"store_id"`
	Score     float64       `json:"score"`
	Status    string        `json:"status"`
	Factors   HealthFactors `json:"factors"`
	Timestamp Timestamp     `json:"timestamp"`
}

// Anomaly keeps the commonly seen fields and every raw field in Details,
// since the backend does not pin a schema.
type Anomaly struct {
	StoreID    string         `json:"store_id,omitempty"`
	Type       string         `json:"type,omitempty"`
	Severity   string         `json:"severity,omitempty"`
	Message    string         `json:"message,omitempty"`
	Value      Number         `json:"value,omitempty"`
	Threshold  Number         `json:"threshold,omitempty"`
	DetectedAt string         `json:"detected_at,omitempty"`
	Details    map[string]any `json:"-"`
}

func (a *Anomaly) UnmarshalJSON(data []byte) error {
	type plain Anomaly
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var details map[string]any
	if err := json.Unmarshal(data, &details); err != nil {
		return err
	}
	*a = Anomaly(p)
	a.Details = details
	if a.Message == "" {
		if desc, ok := details["description"].(string); ok {
			a.Message = desc
		}
	}
	if a.Type == "" {
		if kind, ok := details["anomaly_type"].(string); ok {
			a.Type = kind
		}
	}
	return nil
}

type StatusCounts struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

type Summary struct {
	TotalStores    int          `json:"total_stores"`
	TotalOrders    int          `json:"total_orders"`
	TotalRevenue   float64      `json:"total_revenue"`
	AvgOrderValue  float64      `json:"avg_order_value"`
	StatusCounts   StatusCounts `json:"status_counts"`
	TimeRangeHours int          `json:"time_range_hours"`
}

// StoreDashboard is the combined per-store bundle. Metrics stays loosely
// typed because the bundle carries a subset of StoreMetrics.
type StoreDashboard struct {
	Store   *Store         `json:"store,omitempty"`
	Orders  []Order        `json:"orders"`
	Metrics map[string]any `json:"metrics,omitempty"`
}

type streamMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const messageNewOrder = "new_order"
