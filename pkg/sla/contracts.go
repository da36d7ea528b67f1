package sla

import (
	"context"
	"time"

	"github.com/fulfillhq/slaengine/pkg/order"
)

// OrderStore is the order persistence surface the engine needs.
type OrderStore interface {
	// ActiveWithDealers returns all orders that are not in a terminal state
	// and carry at least one dealer mapping entry.
	ActiveWithDealers(ctx context.Context) ([]*order.Order, error)
	// UpdateSLAInfo persists the order's SLA bookkeeping block.
	UpdateSLAInfo(ctx context.Context, orderID string, info order.SLAInfo) error
}

// ConfigStore resolves dealers to their active SLA configuration.
type ConfigStore interface {
	// ActiveByDealer returns the dealer's active SLA binding joined with its
	// tier. Returns database.ErrNotFound if the dealer has none; the absence
	// of configuration means no SLA applies, it is never a violation.
	ActiveByDealer(ctx context.Context, dealerID string) (*DealerSLAView, error)
}

// ViolationStore is the violation persistence surface the engine needs.
type ViolationStore interface {
	// InsertIfAbsent records the violation unless an unresolved one already
	// exists for the same (order, dealer) pair. The insert and the existence
	// check are a single atomic statement. Reports whether a row was created.
	InsertIfAbsent(ctx context.Context, v *SLAViolation) (bool, error)
	// SummarizeByDealer aggregates violations created in [from, to) per dealer.
	SummarizeByDealer(ctx context.Context, from, to time.Time) ([]DealerSummary, error)
}

// Notifier delivers engine events to the outbound notification workflow.
// Implementations are fire-and-forget: failures are logged, never returned.
type Notifier interface {
	ViolationDetected(ctx context.Context, v *SLAViolation)
	EarlyWarning(ctx context.Context, warnings []Warning)
	DailySummary(ctx context.Context, report *DailyReport)
}

// DealerDirectory looks up dealer metadata for human-readable reporting.
// It plays no part in violation detection itself.
type DealerDirectory interface {
	DealerName(ctx context.Context, dealerID string) (string, error)
}

// SweepStats are the counters of one full violation sweep.
type SweepStats struct {
	Processed  int `json:"processedCount"`
	Violations int `json:"violationCount"`
}

// Warning describes an order whose fulfillment deadline is close but has not
// passed yet.
type Warning struct {
	OrderId                 string       `json:"orderId"`
	DealerId                string       `json:"dealerId"`
	ExpectedFulfillmentTime time.Time    `json:"expectedFulfillmentTime"`
	MinutesUntilViolation   int64        `json:"minutesUntilViolation"`
	OrderStatus             order.Status `json:"orderStatus"`
}

// DealerSummary aggregates one dealer's violations of a reporting period.
type DealerSummary struct {
	DealerId       string  `db:"dealer_id" json:"dealer_id"`
	DealerName     string  `db:"-" json:"dealer_name,omitempty"`
	Count          int     `db:"violation_count" json:"count"`
	TotalMinutes   int64   `db:"total_minutes" json:"total_minutes"`
	AverageMinutes float64 `db:"average_minutes" json:"average_minutes"`
}

// DailyReport is the per-dealer violation summary of one calendar day.
type DailyReport struct {
	Date    time.Time       `json:"date"`
	Dealers []DealerSummary `json:"dealers"`
}
