package database

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/fulfillhq/slaengine/pkg/backoff"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/retry"
	"github.com/fulfillhq/slaengine/pkg/strcase"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DB is a wrapper around sqlx.DB with logging and connect-retry capabilities.
type DB struct {
	*sqlx.DB

	Options *Options

	logger *logging.Logger
}

// NewDb returns a new DB wrapper for a pre-existing sqlx.DB.
func NewDb(db *sqlx.DB, logger *logging.Logger, options *Options) *DB {
	return &DB{
		DB:      db,
		logger:  logger,
		Options: options,
	}
}

// NewDbFromConfig assembles the DSN, opens the connection pool and returns a new DB.
// The connection is not verified yet, use Connect for that.
func NewDbFromConfig(c *Config, logger *logging.Logger) (*DB, error) {
	var driverName, dsn string

	switch c.Type {
	case "mysql":
		driverName = "mysql"
		dsn = mysqlConfig(c).FormatDSN()
	case "pgsql":
		uri := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Path:   "/" + url.PathEscape(c.Database),
		}

		query := url.Values{
			"connect_timeout": {"60"},
			"sslmode":         {"disable"},

			// Host and port are passed via the query string so that
			// Unix domain socket paths in the host part parse as well.
			"host": {c.Host},
		}
		if c.Port != 0 {
			query["port"] = []string{strconv.Itoa(c.Port)}
		}

		uri.RawQuery = query.Encode()

		driverName = "postgres"
		dsn = uri.String()
	case "sqlite":
		driverName = "sqlite3"
		dsn = c.Database
	default:
		return nil, unknownDbType(c.Type)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "can't open database")
	}

	db.SetMaxIdleConns(c.Options.MaxConnections / 3)
	db.SetMaxOpenConns(c.Options.MaxConnections)

	db.Mapper = reflectx.NewMapperFunc("db", strcase.Snake)

	return NewDb(db, logger, &c.Options), nil
}

// mysqlConfig maps Config to the MySQL driver configuration.
func mysqlConfig(c *Config) *mysql.Config {
	config := mysql.NewConfig()

	config.User = c.User
	config.Passwd = c.Password
	config.Net = "tcp"

	port := c.Port
	if port == 0 {
		port = 3306
	}
	config.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))

	config.DBName = c.Database
	config.Timeout = time.Minute
	config.Params = map[string]string{"sql_mode": "ANSI_QUOTES"}

	// UPDATE must report matched rows, not changed rows. Not-found detection
	// via RowsAffected breaks on no-op updates otherwise.
	config.ClientFoundRows = true

	return config
}

// Connect verifies the connection to the database,
// retrying with exponential backoff until the configured connect timeout elapses.
func (db *DB) Connect(ctx context.Context) error {
	db.logger.Info("Connecting to database")

	err := retry.WithBackoff(
		ctx,
		func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
		retry.Retryable,
		backoff.NewExponentialWithJitter(time.Millisecond*128, time.Minute),
		time.Duration(db.Options.ConnectTimeout)*time.Second,
	)
	if err != nil {
		return errors.Wrap(err, "can't connect to database")
	}

	return nil
}

// CantPerformQuery wraps the given error with the specified query that cannot be executed.
func CantPerformQuery(err error, q string) error {
	return errors.Wrapf(err, "can't perform %q", q)
}
