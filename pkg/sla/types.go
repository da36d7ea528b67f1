package sla

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"

	"github.com/fulfillhq/slaengine/pkg/types"
	"github.com/pkg/errors"
)

// ErrAlreadyResolved is returned when resolving a violation a second time.
// Resolving is a one-way transition.
var ErrAlreadyResolved = errors.New("violation already resolved")

// SLAType is a named fulfillment tier.
type SLAType struct {
	Id            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   types.String    `db:"description" json:"description"`
	ExpectedHours int             `db:"expected_hours" json:"expected_hours"`
	CreatedAt     types.UnixMilli `db:"created_at" json:"created_at"`
}

// Validate checks constraints of the tier and returns an error if they are violated.
func (t *SLAType) Validate() error {
	if t.Name == "" {
		return errors.New("sla type name missing")
	}
	if t.ExpectedHours < 1 {
		return errors.New("expected_hours must be positive")
	}

	return nil
}

// DispatchWindow is the daily clock-hour window during which a dealer is
// expected to act on orders. Windows spanning midnight are not supported,
// start must be before end.
type DispatchWindow struct {
	Start int `db:"dispatch_start" json:"start"`
	End   int `db:"dispatch_end" json:"end"`
}

// Validate checks constraints of the window and returns an error if they are violated.
func (w DispatchWindow) Validate() error {
	if w.Start < 0 || w.Start > 23 || w.End < 0 || w.End > 23 {
		return errors.New("dispatch hours must be within 0-23")
	}
	if w.Start >= w.End {
		return errors.New("dispatch window start must be before end")
	}

	return nil
}

// DealerSLA binds a dealer to an SLAType and a daily dispatch window.
type DealerSLA struct {
	Id             string `db:"id" json:"id"`
	DealerId       string `db:"dealer_id" json:"dealer_id"`
	SLATypeId      string `db:"sla_type_id" json:"sla_type"`
	DispatchWindow `json:"dispatch_hours"`
	IsActive       types.Bool      `db:"is_active" json:"is_active"`
	CreatedAt      types.UnixMilli `db:"created_at" json:"created_at"`
}

// DealerSLAView is a dealer's active binding joined with its tier,
// everything the deadline computation needs.
type DealerSLAView struct {
	DealerId       string `db:"dealer_id" json:"dealer_id"`
	SLAName        string `db:"sla_name" json:"sla_name"`
	ExpectedHours  int    `db:"expected_hours" json:"expected_hours"`
	DispatchWindow `json:"dispatch_hours"`
}

// ContactEntry is one entry of a violation's append-only contact history,
// written by the notification workflow.
type ContactEntry struct {
	ContactedAt types.UnixMilli `json:"contacted_at"`
	Method      string          `json:"method"`
	Message     string          `json:"message,omitempty"`
	Success     bool            `json:"success"`
}

// ContactHistory is a JSON database column holding a violation's contact history.
type ContactHistory []ContactEntry

// Scan implements the sql.Scanner interface. Supports SQL NULL.
func (h *ContactHistory) Scan(src interface{}) error {
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

	return errors.Wrap(json.Unmarshal(data, h), "can't unmarshal contact history")
}

// Value implements the driver.Valuer interface.
func (h ContactHistory) Value() (driver.Value, error) {
	if h == nil {
		h = ContactHistory{}
	}

	data, err := json.Marshal(h)
	if err != nil {
		return nil, errors.Wrap(err, "can't marshal contact history")
	}

	return string(data), nil
}

// SLAViolation is one recorded breach of a dealer's fulfillment deadline.
// For a given (order, dealer) pair there is at most one unresolved violation
// at any time.
type SLAViolation struct {
	Id                      string          `db:"id" json:"id"`
	DealerId                string          `db:"dealer_id" json:"dealer_id"`
	OrderId                 string          `db:"order_id" json:"order_id"`
	ExpectedFulfillmentTime types.UnixMilli `db:"expected_fulfillment_time" json:"expected_fulfillment_time"`
	ActualFulfillmentTime   types.UnixMilli `db:"actual_fulfillment_time" json:"actual_fulfillment_time"`
	ViolationMinutes        int64           `db:"violation_minutes" json:"violation_minutes"`
	Resolved                types.Bool      `db:"resolved" json:"resolved"`
	ResolvedAt              types.UnixMilli `db:"resolved_at" json:"resolved_at"`
	ResolutionNotes         types.String    `db:"resolution_notes" json:"resolution_notes"`
	Notes                   types.String    `db:"notes" json:"notes"`
	ContactHistory          ContactHistory  `db:"contact_history" json:"contact_history"`
	CreatedAt               types.UnixMilli `db:"created_at" json:"created_at"`
}

// Assert interface compliance.
var (
	_ sql.Scanner   = (*ContactHistory)(nil)
	_ driver.Valuer = (ContactHistory)(nil)
)
