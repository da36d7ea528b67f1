package sla

import (
	"context"
	"math"
	"time"

	"github.com/fulfillhq/slaengine/pkg/database"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/order"
	"github.com/fulfillhq/slaengine/pkg/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DetectorOption configures NewDetector.
type DetectorOption func(*Detector)

// WithNotifier installs the outbound notifier for newly detected violations.
func WithNotifier(n Notifier) DetectorOption {
	return func(d *Detector) {
		d.notifier = n
	}
}

// WithDetectorClock overrides the time source, for tests.
func WithDetectorClock(now func() time.Time) DetectorOption {
	return func(d *Detector) {
		d.now = now
	}
}

// Detector checks single orders against their dealers' SLA configuration and
// records deadline breaches, at most once per unresolved (order, dealer) pair.
type Detector struct {
	orders     OrderStore
	configs    ConfigStore
	violations ViolationStore
	notifier   Notifier
	logger     *logging.Logger
	location   *time.Location
	now        func() time.Time
}

// NewDetector returns a new Detector. All deadline math happens in the given
// location, which must be the engine's configured timezone.
func NewDetector(
	orders OrderStore, configs ConfigStore, violations ViolationStore,
	location *time.Location, logger *logging.Logger, options ...DetectorOption,
) *Detector {
	d := &Detector{
		orders:     orders,
		configs:    configs,
		violations: violations,
		logger:     logger,
		location:   location,
		now:        time.Now,
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// CheckOrder checks the order against the SLA of every mapped dealer and
// records a violation for each breached deadline that has no unresolved
// violation yet. Reports whether at least one new violation was recorded.
//
// Failures while evaluating a single dealer mapping are logged and skipped,
// they never abort the remaining entries.
func (d *Detector) CheckOrder(ctx context.Context, o *order.Order) (bool, error) {
	if len(o.DealerMapping) == 0 {
		return false, nil
	}

	placedAt, ok := o.PlacedAt()
	if !ok {
		d.logger.Warnw("Skipping order without order date", "order", o.Id)
		return false, nil
	}

	var created bool

	for _, mapping := range o.DealerMapping {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		cfg, err := d.configs.ActiveByDealer(ctx, mapping.DealerId)
		if errors.Is(err, database.ErrNotFound) {
			// No SLA configured means no SLA applies.
			continue
		} else if err != nil {
			d.logger.Warnw("Can't load dealer SLA",
				"order", o.Id, "dealer", mapping.DealerId, "error", err)
			continue
		}

		expected := ExpectedFulfillmentTime(placedAt, cfg, d.location)
		now := d.now()
		if !now.After(expected) {
			continue
		}

		v := d.newViolation(o.Id, mapping.DealerId, expected, now)

		inserted, err := d.violations.InsertIfAbsent(ctx, v)
		if err != nil {
			d.logger.Warnw("Can't record SLA violation",
				"order", o.Id, "dealer", mapping.DealerId, "error", err)
			continue
		}
		if !inserted {
			// An unresolved violation for this pair is already on record.
			continue
		}

		info := order.SLAInfo{
			ExpectedFulfillmentTime: v.ExpectedFulfillmentTime,
			ActualFulfillmentTime:   v.ActualFulfillmentTime,
			IsSLAMet:                types.No,
			ViolationMinutes:        v.ViolationMinutes,
		}
		if err := d.orders.UpdateSLAInfo(ctx, o.Id, info); err != nil {
			d.logger.Warnw("Can't update order SLA info",
				"order", o.Id, "dealer", mapping.DealerId, "error", err)
		} else {
			o.SLAInfo = info
		}

		if d.notifier != nil {
			d.notifier.ViolationDetected(ctx, v)
		}

		d.logger.Infow("Recorded SLA violation",
			"order", o.Id, "dealer", mapping.DealerId,
			"expected", expected, "minutes", v.ViolationMinutes)

		created = true
	}

	return created, nil
}

// PackingCheck is the outcome of the synchronous SLA check performed when an
// order is marked packed.
type PackingCheck struct {
	HasViolation bool          `json:"hasViolation"`
	Violation    *SLAViolation `json:"violation"`
}

// CheckOnPacking evaluates the order's deadline against the given packing
// time instead of the current time. Unlike CheckOrder it only consults the
// first dealer mapping entry and performs no dedup against violations already
// on record: the returned candidate is the caller's to persist.
// Store failures are returned to the caller.
func (d *Detector) CheckOnPacking(ctx context.Context, o *order.Order, packedAt time.Time) (*PackingCheck, error) {
	if len(o.DealerMapping) == 0 {
		return &PackingCheck{}, nil
	}

	placedAt, ok := o.PlacedAt()
	if !ok {
		return &PackingCheck{}, nil
	}

	dealerID := o.DealerMapping[0].DealerId

	cfg, err := d.configs.ActiveByDealer(ctx, dealerID)
	if errors.Is(err, database.ErrNotFound) {
		return &PackingCheck{}, nil
	} else if err != nil {
		return nil, err
	}

	expected := ExpectedFulfillmentTime(placedAt, cfg, d.location)
	if !packedAt.After(expected) {
		return &PackingCheck{}, nil
	}

	return &PackingCheck{
		HasViolation: true,
		Violation:    d.newViolation(o.Id, dealerID, expected, packedAt),
	}, nil
}

// HandleOrderPacked runs the packing-time check and persists its outcome:
// the violation (atomically deduped against unresolved ones) and the order's
// SLA bookkeeping block. Intended as the order service's packed hook.
func (d *Detector) HandleOrderPacked(ctx context.Context, o *order.Order, packedAt time.Time) error {
	check, err := d.CheckOnPacking(ctx, o, packedAt)
	if err != nil {
		return errors.Wrap(err, "can't check SLA on packing")
	}
	if !check.HasViolation {
		return nil
	}

	v := check.Violation

	inserted, err := d.violations.InsertIfAbsent(ctx, v)
	if err != nil {
		return errors.Wrap(err, "can't record SLA violation")
	}
	if !inserted {
		return nil
	}

	info := order.SLAInfo{
		ExpectedFulfillmentTime: v.ExpectedFulfillmentTime,
		ActualFulfillmentTime:   v.ActualFulfillmentTime,
		IsSLAMet:                types.No,
		ViolationMinutes:        v.ViolationMinutes,
	}
	if err := d.orders.UpdateSLAInfo(ctx, o.Id, info); err != nil {
		return errors.Wrap(err, "can't update order SLA info")
	}
	o.SLAInfo = info

	if d.notifier != nil {
		d.notifier.ViolationDetected(ctx, v)
	}

	d.logger.Infow("Recorded SLA violation on packing",
		"order", o.Id, "dealer", v.DealerId, "minutes", v.ViolationMinutes)

	return nil
}

// newViolation assembles a violation record for the given breach.
func (d *Detector) newViolation(orderID, dealerID string, expected, actual time.Time) *SLAViolation {
	return &SLAViolation{
		Id:                      uuid.NewString(),
		DealerId:                dealerID,
		OrderId:                 orderID,
		ExpectedFulfillmentTime: types.UnixMilli(expected),
		ActualFulfillmentTime:   types.UnixMilli(actual),
		ViolationMinutes:        int64(math.Round(actual.Sub(expected).Minutes())),
		Resolved:                types.No,
		ContactHistory:          ContactHistory{},
		CreatedAt:               types.UnixMilli(d.now()),
	}
}
