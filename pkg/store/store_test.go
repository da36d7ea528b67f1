package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fulfillhq/slaengine/pkg/database"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// testSchema is the SQLite rendition of the engine schema, close enough for
// exercising the stores against a real SQL engine.
const testSchema = `
CREATE TABLE dealer (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  contact_email TEXT,
  created_at INTEGER NOT NULL
);

CREATE TABLE sla_type (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  description TEXT,
  expected_hours INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE dealer_sla (
  id TEXT PRIMARY KEY,
  dealer_id TEXT NOT NULL,
  sla_type_id TEXT NOT NULL REFERENCES sla_type (id),
  dispatch_start INTEGER NOT NULL,
  dispatch_end INTEGER NOT NULL,
  is_active TEXT NOT NULL DEFAULT 'y',
  created_at INTEGER NOT NULL
);

CREATE TABLE customer_order (
  id TEXT PRIMARY KEY,
  order_date INTEGER,
  status TEXT NOT NULL,
  skus TEXT,
  dealer_mapping TEXT,
  sla_info TEXT,
  shipped_at INTEGER,
  delivered_at INTEGER,
  created_at INTEGER NOT NULL
);

CREATE TABLE sla_violation (
  id TEXT PRIMARY KEY,
  dealer_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  expected_fulfillment_time INTEGER NOT NULL,
  actual_fulfillment_time INTEGER,
  violation_minutes INTEGER NOT NULL DEFAULT 0,
  resolved TEXT NOT NULL DEFAULT 'n',
  resolved_at INTEGER,
  resolution_notes TEXT,
  notes TEXT,
  contact_history TEXT,
  created_at INTEGER NOT NULL
);
`

var testDbCount atomic.Int64

func testLogger(t *testing.T) *logging.Logger {
	logs, err := logging.NewLogging("test", zapcore.DebugLevel, logging.CONSOLE, nil, time.Second)
	require.NoError(t, err)

	return logs.GetLogger()
}

// openTestDb opens a fresh named in-memory SQLite database with the engine
// schema. The shared cache DSN keeps the database alive across the pool's
// connections; a pinned connection keeps it alive for the whole test.
func openTestDb(t *testing.T) *database.DB {
	c := &database.Config{
		Type:     "sqlite",
		Database: fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", testDbCount.Add(1)),
		Options:  database.Options{MaxConnections: 4, ConnectTimeout: 10},
	}

	db, err := database.NewDbFromConfig(c, testLogger(t))
	require.NoError(t, err)

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		_ = db.Close()
	})

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}
