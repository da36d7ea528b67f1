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

const violationColumns = `id, dealer_id, order_id, expected_fulfillment_time, actual_fulfillment_time,
violation_minutes, resolved, resolved_at, resolution_notes, notes, contact_history, created_at`

// Violations persists SLA violation records and their resolution lifecycle.
type Violations struct {
	db     *database.DB
	logger *logging.Logger
}

// NewViolations returns a new Violations store.
func NewViolations(db *database.DB, logger *logging.Logger) *Violations {
	return &Violations{db: db, logger: logger}
}

// InsertIfAbsent records the violation unless an unresolved one already
// exists for the same (order, dealer) pair. Check and insert are one
// statement, so concurrent detections cannot both create a row.
// Reports whether a row was created.
func (s *Violations) InsertIfAbsent(ctx context.Context, v *sla.SLAViolation) (bool, error) {
	if v.Id == "" {
		v.Id = uuid.NewString()
	}
	if !v.Resolved.Valid {
		v.Resolved = types.No
	}
	if v.CreatedAt.Time().IsZero() {
		v.CreatedAt = types.UnixMilli(nowUTC())
	}

	q := `INSERT INTO sla_violation (` + violationColumns + `)
SELECT :id, :dealer_id, :order_id, :expected_fulfillment_time, :actual_fulfillment_time,
       :violation_minutes, :resolved, :resolved_at, :resolution_notes, :notes, :contact_history, :created_at
FROM (SELECT 1) AS one
WHERE NOT EXISTS (
  SELECT 1 FROM sla_violation
  WHERE order_id = :order_id AND dealer_id = :dealer_id AND resolved = 'n'
)`

	res, err := s.db.NamedExecContext(ctx, q, v)
	if err != nil {
		return false, database.CantPerformQuery(err, q)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "can't get rows affected")
	}

	return n > 0, nil
}

// ByID fetches the violation.
func (s *Violations) ByID(ctx context.Context, id string) (*sla.SLAViolation, error) {
	q := s.db.Rebind(`SELECT ` + violationColumns + ` FROM sla_violation WHERE id = ?`)

	var v sla.SLAViolation
	if err := s.db.GetContext(ctx, &v, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(database.ErrNotFound, "violation %q", id)
		}

		return nil, database.CantPerformQuery(err, q)
	}

	return &v, nil
}

// Unresolved returns all outstanding violations, newest first.
func (s *Violations) Unresolved(ctx context.Context) ([]sla.SLAViolation, error) {
	q := `SELECT ` + violationColumns + ` FROM sla_violation WHERE resolved = 'n' ORDER BY created_at DESC`

	var violations []sla.SLAViolation
	if err := s.db.SelectContext(ctx, &violations, q); err != nil {
		return nil, database.CantPerformQuery(err, q)
	}

	return violations, nil
}

// Resolve marks the violation resolved. Resolving is a one-way transition:
// an already resolved violation yields sla.ErrAlreadyResolved and its
// original resolution stays untouched.
func (s *Violations) Resolve(ctx context.Context, id, notes string, at time.Time) error {
	q := s.db.Rebind(`UPDATE sla_violation SET resolved = 'y', resolved_at = ?, resolution_notes = ?
WHERE id = ? AND resolved = 'n'`)

	res, err := s.db.ExecContext(ctx, q, types.UnixMilli(at), notes, id)
	if err != nil {
		return database.CantPerformQuery(err, q)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.ByID(ctx, id); err != nil {
			return err
		}

		return errors.Wrapf(sla.ErrAlreadyResolved, "violation %q", id)
	}

	return nil
}

// AddContact appends one entry to the violation's contact history.
func (s *Violations) AddContact(ctx context.Context, id string, entry sla.ContactEntry) error {
	v, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}

	if entry.ContactedAt.Time().IsZero() {
		entry.ContactedAt = types.UnixMilli(nowUTC())
	}

	history := append(v.ContactHistory, entry)

	q := s.db.Rebind(`UPDATE sla_violation SET contact_history = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, q, history, id); err != nil {
		return database.CantPerformQuery(err, q)
	}

	return nil
}

// SummarizeByDealer aggregates violations created in [from, to) per dealer:
// count, total lateness and average lateness in minutes.
func (s *Violations) SummarizeByDealer(ctx context.Context, from, to time.Time) ([]sla.DealerSummary, error) {
	q := s.db.Rebind(`SELECT dealer_id,
       COUNT(*) AS violation_count,
       SUM(violation_minutes) AS total_minutes,
       AVG(violation_minutes) AS average_minutes
FROM sla_violation
WHERE created_at >= ? AND created_at < ?
GROUP BY dealer_id
ORDER BY violation_count DESC, dealer_id`)

	var summaries []sla.DealerSummary
	err := s.db.SelectContext(ctx, &summaries, q, types.UnixMilli(from), types.UnixMilli(to))
	if err != nil {
		return nil, database.CantPerformQuery(err, q)
	}

	return summaries, nil
}
