package store

import (
	"context"
	"database/sql"

	"github.com/fulfillhq/slaengine/pkg/database"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/pkg/errors"
)

// Dealers is a read-only lookup into the dealer directory,
// used to decorate reports with dealer names.
type Dealers struct {
	db     *database.DB
	logger *logging.Logger
}

// NewDealers returns a new Dealers lookup.
func NewDealers(db *database.DB, logger *logging.Logger) *Dealers {
	return &Dealers{db: db, logger: logger}
}

// DealerName returns the display name of the dealer.
func (s *Dealers) DealerName(ctx context.Context, dealerID string) (string, error) {
	q := s.db.Rebind(`SELECT name FROM dealer WHERE id = ?`)

	var name string
	if err := s.db.GetContext(ctx, &name, q, dealerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errors.Wrapf(database.ErrNotFound, "dealer %q", dealerID)
		}

		return "", database.CantPerformQuery(err, q)
	}

	return name, nil
}
