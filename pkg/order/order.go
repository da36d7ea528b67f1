package order

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/fulfillhq/slaengine/pkg/types"
	"github.com/pkg/errors"
)

// Order is the persistence aggregate: it owns its SKU line items, the
// dealer mapping and the SLA bookkeeping block. SKUs have no lifecycle of
// their own outside the order.
type Order struct {
	Id            string          `db:"id" json:"id"`
	OrderDate     types.UnixMilli `db:"order_date" json:"order_date"`
	Status        Status          `db:"status" json:"status"`
	SKUs          SKUList         `db:"skus" json:"skus"`
	DealerMapping DealerMappings  `db:"dealer_mapping" json:"dealer_mapping"`
	SLAInfo       SLAInfo         `db:"sla_info" json:"slaInfo"`
	ShippedAt     types.UnixMilli `db:"shipped_at" json:"shipped_at"`
	DeliveredAt   types.UnixMilli `db:"delivered_at" json:"delivered_at"`
	CreatedAt     types.UnixMilli `db:"created_at" json:"created_at"`
}

// PlacedAt returns the time the order was placed,
// falling back to the creation timestamp if no order date is recorded.
// The second return value is false if neither is available.
func (o *Order) PlacedAt() (time.Time, bool) {
	if t := o.OrderDate.Time(); !t.IsZero() {
		return t, true
	}
	if t := o.CreatedAt.Time(); !t.IsZero() {
		return t, true
	}

	return time.Time{}, false
}

// SKU returns the line item with the given code, or nil if there is none.
func (o *Order) SKU(code string) *SKU {
	for i := range o.SKUs {
		if o.SKUs[i].Code == code {
			return &o.SKUs[i]
		}
	}

	return nil
}

// SKUStatuses returns the per-SKU statuses in line-item order.
func (o *Order) SKUStatuses() []Status {
	statuses := make([]Status, 0, len(o.SKUs))
	for i := range o.SKUs {
		statuses = append(statuses, o.SKUs[i].Tracking.Status)
	}

	return statuses
}

// SKU is one line item of an order,
// tracked independently through the fulfillment states.
type SKU struct {
	Code     string   `json:"sku"`
	Name     string   `json:"name,omitempty"`
	Quantity int      `json:"quantity,omitempty"`
	Tracking Tracking `json:"tracking_info"`
}

// Tracking carries the fulfillment state of a single SKU and
// records when each status was entered.
type Tracking struct {
	Status        Status                     `json:"status"`
	CarrierStatus string                     `json:"carrier_status,omitempty"`
	Timestamps    map[Status]types.UnixMilli `json:"timestamps,omitempty"`
}

// DealerMapping associates a SKU of the order with the dealer fulfilling it.
type DealerMapping struct {
	SKU      string `json:"sku,omitempty"`
	DealerId string `json:"dealer_id"`
}

// SLAInfo is the order's SLA bookkeeping block.
type SLAInfo struct {
	ExpectedFulfillmentTime types.UnixMilli `json:"expectedFulfillmentTime"`
	ActualFulfillmentTime   types.UnixMilli `json:"actualFulfillmentTime"`
	IsSLAMet                types.Bool      `json:"isSLAMet"`
	ViolationMinutes        int64           `json:"violationMinutes"`
}

// SKUList is a JSON database column holding the order's line items.
type SKUList []SKU

// DealerMappings is a JSON database column holding the order's dealer mapping.
type DealerMappings []DealerMapping

// Scan implements the sql.Scanner interface.
func (l *SKUList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// Value implements the driver.Valuer interface.
func (l SKUList) Value() (driver.Value, error) {
	if l == nil {
		l = SKUList{}
	}

	return valueJSON(l)
}

// Scan implements the sql.Scanner interface.
func (m *DealerMappings) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// Value implements the driver.Valuer interface.
func (m DealerMappings) Value() (driver.Value, error) {
	if m == nil {
		m = DealerMappings{}
	}

	return valueJSON(m)
}

// Scan implements the sql.Scanner interface.
func (i *SLAInfo) Scan(src interface{}) error {
	return scanJSON(src, i)
}

// Value implements the driver.Valuer interface.
func (i SLAInfo) Value() (driver.Value, error) {
	return valueJSON(i)
}

// scanJSON unmarshals a JSON database column into dest. Supports SQL NULL.
func scanJSON(src interface{}, dest interface{}) error {
	if src == nil {
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("bad []byte/string type assertion from %#v", src)
	}

	if len(data) == 0 {
		return nil
	}

	return errors.Wrap(json.Unmarshal(data, dest), "can't unmarshal JSON column")
}

// valueJSON marshals v into a JSON database column.
func valueJSON(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "can't marshal JSON column")
	}

	return string(data), nil
}

// Assert interface compliance.
var (
	_ sql.Scanner   = (*SKUList)(nil)
	_ driver.Valuer = (SKUList)(nil)
	_ sql.Scanner   = (*DealerMappings)(nil)
	_ driver.Valuer = (DealerMappings)(nil)
	_ sql.Scanner   = (*SLAInfo)(nil)
	_ driver.Valuer = SLAInfo{}
)
