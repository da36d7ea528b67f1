package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/fulfillhq/slaengine/pkg/database"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/sla"
	"github.com/fulfillhq/slaengine/pkg/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Configs persists SLA tiers and per-dealer SLA bindings. The engine itself
// only reads them, the write operations serve configuration administration.
type Configs struct {
	db     *database.DB
	logger *logging.Logger
}

// NewConfigs returns a new Configs store.
func NewConfigs(db *database.DB, logger *logging.Logger) *Configs {
	return &Configs{db: db, logger: logger}
}

// CreateType inserts the SLA tier. An empty id and creation time are filled in.
func (s *Configs) CreateType(ctx context.Context, t *sla.SLAType) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if t.Id == "" {
		t.Id = uuid.NewString()
	}
	if t.CreatedAt.Time().IsZero() {
		t.CreatedAt = types.UnixMilli(nowUTC())
	}

	q := `INSERT INTO sla_type (id, name, description, expected_hours, created_at)
VALUES (:id, :name, :description, :expected_hours, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, t); err != nil {
		return database.CantPerformQuery(err, q)
	}

	return nil
}

// Types returns all SLA tiers.
func (s *Configs) Types(ctx context.Context) ([]sla.SLAType, error) {
	q := `SELECT id, name, description, expected_hours, created_at FROM sla_type ORDER BY name`

	var slaTypes []sla.SLAType
	if err := s.db.SelectContext(ctx, &slaTypes, q); err != nil {
		return nil, database.CantPerformQuery(err, q)
	}

	return slaTypes, nil
}

// Bind inserts the dealer's SLA binding. An empty id and creation time are
// filled in; the dispatch window is validated.
func (s *Configs) Bind(ctx context.Context, b *sla.DealerSLA) error {
	if b.DealerId == "" {
		return errors.New("dealer id missing")
	}
	if err := b.DispatchWindow.Validate(); err != nil {
		return err
	}

	if b.Id == "" {
		b.Id = uuid.NewString()
	}
	if !b.IsActive.Valid {
		b.IsActive = types.Yes
	}
	if b.CreatedAt.Time().IsZero() {
		b.CreatedAt = types.UnixMilli(nowUTC())
	}

	q := `INSERT INTO dealer_sla (id, dealer_id, sla_type_id, dispatch_start, dispatch_end, is_active, created_at)
VALUES (:id, :dealer_id, :sla_type_id, :dispatch_start, :dispatch_end, :is_active, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, b); err != nil {
		return database.CantPerformQuery(err, q)
	}

	return nil
}

// Deactivate retires the dealer's active bindings.
func (s *Configs) Deactivate(ctx context.Context, dealerID string) error {
	q := s.db.Rebind(`UPDATE dealer_sla SET is_active = 'n' WHERE dealer_id = ? AND is_active = 'y'`)

	if _, err := s.db.ExecContext(ctx, q, dealerID); err != nil {
		return database.CantPerformQuery(err, q)
	}

	return nil
}

// ActiveByDealer returns the dealer's active SLA binding joined with its
// tier. At most one active binding per dealer is assumed, the newest wins.
func (s *Configs) ActiveByDealer(ctx context.Context, dealerID string) (*sla.DealerSLAView, error) {
	q := s.db.Rebind(`SELECT ds.dealer_id, st.name AS sla_name, st.expected_hours, ds.dispatch_start, ds.dispatch_end
FROM dealer_sla ds
INNER JOIN sla_type st ON st.id = ds.sla_type_id
WHERE ds.dealer_id = ? AND ds.is_active = 'y'
ORDER BY ds.created_at DESC
LIMIT 1`)

	var view sla.DealerSLAView
	if err := s.db.GetContext(ctx, &view, q, dealerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(database.ErrNotFound, "no active SLA for dealer %q", dealerID)
		}

		return nil, database.CantPerformQuery(err, q)
	}

	return &view, nil
}

// nowUTC returns the current time in UTC, truncated to milliseconds.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
