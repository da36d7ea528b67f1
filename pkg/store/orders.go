package store

import (
	"context"
	"database/sql"

	"github.com/fulfillhq/slaengine/pkg/database"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/order"
	"github.com/fulfillhq/slaengine/pkg/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const orderColumns = `id, order_date, status, skus, dealer_mapping, sla_info, shipped_at, delivered_at, created_at`

// Orders persists order aggregates. SKUs, dealer mapping and the SLA block
// are embedded JSON columns, the order row is the unit of persistence.
type Orders struct {
	db     *database.DB
	logger *logging.Logger
}

// NewOrders returns a new Orders store.
func NewOrders(db *database.DB, logger *logging.Logger) *Orders {
	return &Orders{db: db, logger: logger}
}

// Create inserts the order. An empty id and creation time are filled in.
func (s *Orders) Create(ctx context.Context, o *order.Order) error {
	if o.Id == "" {
		o.Id = uuid.NewString()
	}
	if o.CreatedAt.Time().IsZero() {
		o.CreatedAt = types.UnixMilli(nowUTC())
	}
	if o.Status == "" {
		o.Status = order.StatusConfirmed
	}

	q := `INSERT INTO customer_order (` + orderColumns + `)
VALUES (:id, :order_date, :status, :skus, :dealer_mapping, :sla_info, :shipped_at, :delivered_at, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, o); err != nil {
		return database.CantPerformQuery(err, q)
	}

	return nil
}

// ByID fetches the order aggregate.
func (s *Orders) ByID(ctx context.Context, id string) (*order.Order, error) {
	q := s.db.Rebind(`SELECT ` + orderColumns + ` FROM customer_order WHERE id = ?`)

	var o order.Order
	if err := s.db.GetContext(ctx, &o, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(database.ErrNotFound, "order %q", id)
		}

		return nil, database.CantPerformQuery(err, q)
	}

	return &o, nil
}

// Update persists the full order aggregate.
func (s *Orders) Update(ctx context.Context, o *order.Order) error {
	q := `UPDATE customer_order SET
  order_date = :order_date,
  status = :status,
  skus = :skus,
  dealer_mapping = :dealer_mapping,
  sla_info = :sla_info,
  shipped_at = :shipped_at,
  delivered_at = :delivered_at
WHERE id = :id`

	res, err := s.db.NamedExecContext(ctx, q, o)
	if err != nil {
		return database.CantPerformQuery(err, q)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(database.ErrNotFound, "order %q", o.Id)
	}

	return nil
}

// UpdateSLAInfo persists only the order's SLA bookkeeping block.
func (s *Orders) UpdateSLAInfo(ctx context.Context, orderID string, info order.SLAInfo) error {
	q := s.db.Rebind(`UPDATE customer_order SET sla_info = ? WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, q, info, orderID)
	if err != nil {
		return database.CantPerformQuery(err, q)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(database.ErrNotFound, "order %q", orderID)
	}

	return nil
}

// ActiveWithDealers returns all orders that are not in a terminal state and
// carry at least one dealer mapping entry.
func (s *Orders) ActiveWithDealers(ctx context.Context) ([]*order.Order, error) {
	q := s.db.Rebind(`SELECT ` + orderColumns + ` FROM customer_order
WHERE status NOT IN (?, ?, ?)
  AND dealer_mapping IS NOT NULL
  AND dealer_mapping NOT IN ('', '[]', 'null')
ORDER BY created_at`)

	var orders []*order.Order
	err := s.db.SelectContext(ctx, &orders, q,
		order.StatusDelivered, order.StatusCancelled, order.StatusReturned)
	if err != nil {
		return nil, database.CantPerformQuery(err, q)
	}

	return orders, nil
}
