package order

import (
	"context"
	"time"

	"github.com/fulfillhq/slaengine/pkg/database"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/types"
	"github.com/pkg/errors"
)

// Store is the persistence surface the Service needs for orders.
type Store interface {
	// ByID fetches the order aggregate. Returns database.ErrNotFound if it does not exist.
	ByID(ctx context.Context, id string) (*Order, error)
	// Update persists the full order aggregate. Returns database.ErrNotFound if it does not exist.
	Update(ctx context.Context, o *Order) error
}

// PackedFunc is invoked synchronously when a SKU transitions to Packed.
// Errors are logged by the Service, they never fail the status update itself.
type PackedFunc func(ctx context.Context, o *Order, packedAt time.Time) error

// ServiceOption configures NewService.
type ServiceOption func(*Service)

// OnPacked installs the hook run when a SKU is marked packed.
func OnPacked(f PackedFunc) ServiceOption {
	return func(s *Service) {
		s.onPacked = f
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// Service applies SKU status transitions to order aggregates and
// keeps the order-level status in sync.
type Service struct {
	store    Store
	logger   *logging.Logger
	onPacked PackedFunc
	now      func() time.Time
}

// NewService returns a new Service on the given store.
func NewService(store Store, logger *logging.Logger, options ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// StatusUpdate carries the optional extra fields of a SKU status transition.
type StatusUpdate struct {
	// Timestamp records when the status was entered. Zero means now.
	Timestamp time.Time
	// CarrierStatus is the raw status reported by the delivery carrier, if any.
	CarrierStatus string
}

// UpdateSKUStatus applies newStatus to the given SKU of the order, persists the
// aggregate and recomputes the order-level status, persisting that too if it
// changed. The first transition to Shipped stamps ShippedAt, the first
// transition to Delivered stamps DeliveredAt and the SLA actual fulfillment
// time. Safe to call repeatedly with the same status.
// Returns database.ErrNotFound if the order or the SKU does not exist.
func (s *Service) UpdateSKUStatus(
	ctx context.Context, orderID, skuCode string, newStatus Status, extra StatusUpdate,
) (*Order, error) {
	if !newStatus.Valid() {
		return nil, errors.Errorf("bad order status %q", string(newStatus))
	}

	o, err := s.store.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	sku := o.SKU(skuCode)
	if sku == nil {
		return nil, errors.Wrapf(database.ErrNotFound, "order %q has no SKU %q", orderID, skuCode)
	}

	at := extra.Timestamp
	if at.IsZero() {
		at = s.now()
	}

	sku.Tracking.Status = newStatus
	if sku.Tracking.Timestamps == nil {
		sku.Tracking.Timestamps = map[Status]types.UnixMilli{}
	}
	sku.Tracking.Timestamps[newStatus] = types.UnixMilli(at)
	if extra.CarrierStatus != "" {
		sku.Tracking.CarrierStatus = extra.CarrierStatus
	}

	if err := s.store.Update(ctx, o); err != nil {
		return nil, err
	}

	if agg := AggregateStatus(o.SKUStatuses()); agg.Status != o.Status {
		o.Status = agg.Status

		switch agg.Status {
		case StatusShipped:
			if o.ShippedAt.Time().IsZero() {
				o.ShippedAt = types.UnixMilli(s.now())
			}
		case StatusDelivered:
			if o.DeliveredAt.Time().IsZero() {
				now := s.now()
				o.DeliveredAt = types.UnixMilli(now)
				o.SLAInfo.ActualFulfillmentTime = types.UnixMilli(now)

				if expected := o.SLAInfo.ExpectedFulfillmentTime.Time(); !expected.IsZero() && !o.SLAInfo.IsSLAMet.Valid {
					if now.After(expected) {
						o.SLAInfo.IsSLAMet = types.No
					} else {
						o.SLAInfo.IsSLAMet = types.Yes
					}
				}
			}
		}

		if err := s.store.Update(ctx, o); err != nil {
			return nil, err
		}

		s.logger.Debugw("Updated order status",
			"order", o.Id, "status", agg.Status, "reason", agg.Reason)
	}

	if newStatus == StatusPacked && s.onPacked != nil {
		// Best effort: a failed SLA check must never fail the packing action.
		if err := s.onPacked(ctx, o, at); err != nil {
			s.logger.Warnw("SLA check on packing failed", "order", o.Id, "error", err)
		}
	}

	return o, nil
}
