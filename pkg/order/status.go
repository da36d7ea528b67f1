package order

import (
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/pkg/errors"
)

// Status is the closed fulfillment status vocabulary shared by SKUs and orders.
type Status string

const (
	StatusConfirmed Status = "Confirmed"
	StatusAssigned  Status = "Assigned"
	StatusPacked    Status = "Packed"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
	StatusReturned  Status = "Returned"
)

// TerminalStatuses are the absorbing states an order never leaves.
var TerminalStatuses = []Status{StatusDelivered, StatusCancelled, StatusReturned}

// Valid reports whether s is part of the status vocabulary.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusAssigned, StatusPacked, StatusShipped, StatusDelivered, StatusCancelled, StatusReturned:
		return true
	}

	return false
}

// Terminal reports whether s is an absorbing terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusReturned:
		return true
	}

	return false
}

// Scan implements the sql.Scanner interface.
func (s *Status) Scan(src interface{}) error {
	var v string
	switch src := src.(type) {
	case []byte:
		v = string(src)
	case string:
		v = src
	default:
		return errors.Errorf("bad []byte/string type assertion from %#v", src)
	}

	status := Status(v)
	if !status.Valid() {
		return errors.Errorf("bad order status %q", v)
	}

	*s = status

	return nil
}

// Value implements the driver.Valuer interface.
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, errors.Errorf("bad order status %q", string(s))
	}

	return string(s), nil
}

// Aggregate is the order-level status reduced from the per-SKU statuses,
// with a human-readable reason and the per-status counts it was derived from.
type Aggregate struct {
	Status Status         `json:"status"`
	Reason string         `json:"reason"`
	Counts map[Status]int `json:"skuStatuses"`
}

// AggregateStatus reduces the given SKU statuses into a single order status.
// The rules are evaluated top to bottom, first match wins:
//
//  1. all cancelled             -> Cancelled
//  2. all returned              -> Returned
//  3. all delivered             -> Delivered
//  4. some delivered            -> Shipped (partial delivery)
//  5. all packed                -> Shipped (ready to ship)
//  6. some packed               -> Packed (partial packing)
//  7. all or some assigned      -> Assigned
//  8. otherwise                 -> Confirmed
func AggregateStatus(statuses []Status) Aggregate {
	total := len(statuses)
	counts := make(map[Status]int, total)
	for _, s := range statuses {
		counts[s]++
	}

	agg := Aggregate{Counts: counts}

	switch {
	case total == 0:
		agg.Status, agg.Reason = StatusConfirmed, "No SKUs found"
	case counts[StatusCancelled] == total:
		agg.Status, agg.Reason = StatusCancelled, "All SKUs cancelled"
	case counts[StatusReturned] == total:
		agg.Status, agg.Reason = StatusReturned, "All SKUs returned"
	case counts[StatusDelivered] == total:
		agg.Status, agg.Reason = StatusDelivered, "All SKUs delivered"
	case counts[StatusDelivered] > 0:
		agg.Status = StatusShipped
		agg.Reason = fmt.Sprintf("%d of %d SKUs delivered", counts[StatusDelivered], total)
	case counts[StatusPacked] == total:
		agg.Status, agg.Reason = StatusShipped, "All SKUs packed, ready to ship"
	case counts[StatusPacked] > 0:
		agg.Status = StatusPacked
		agg.Reason = fmt.Sprintf("%d of %d SKUs packed", counts[StatusPacked], total)
	case counts[StatusAssigned] == total:
		agg.Status, agg.Reason = StatusAssigned, "All SKUs assigned"
	case counts[StatusAssigned] > 0:
		agg.Status = StatusAssigned
		agg.Reason = fmt.Sprintf("%d of %d SKUs assigned", counts[StatusAssigned], total)
	default:
		agg.Status, agg.Reason = StatusConfirmed, "Order confirmed"
	}

	return agg
}

// Assert interface compliance.
var (
	_ sql.Scanner   = (*Status)(nil)
	_ driver.Valuer = Status("")
)
