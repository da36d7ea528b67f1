package command

import (
	"fmt"
	"os"
	"time"

	"github.com/fulfillhq/slaengine/internal"
	"github.com/fulfillhq/slaengine/internal/config"
	"github.com/fulfillhq/slaengine/pkg/database"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/redis"
	"github.com/pkg/errors"
)

// Command provides the parsed configuration and factories for the engine's connections.
type Command struct {
	Flags    *config.Flags
	Config   *config.Config
	Logs     *logging.Logging
	Logger   *logging.Logger
	Location *time.Location
}

// New parses CLI flags and the YAML config, initializes logging and returns a new Command.
func New() *Command {
	flags, err := config.ParseFlags()
	if err != nil {
		fatal(err)
	}

	if flags.Version {
		fmt.Println("slaengine version:", internal.Version)
		os.Exit(0)
	}

	cfg, err := config.FromYAMLFile(flags.Config)
	if err != nil {
		fatal(err)
	}

	logs, err := logging.NewLoggingFromConfig("slaengine", cfg.Logging)
	if err != nil {
		fatal(errors.Wrap(err, "can't configure logging"))
	}

	loc, err := cfg.SLA.Location()
	if err != nil {
		fatal(err)
	}

	return &Command{
		Flags:    flags,
		Config:   cfg,
		Logs:     logs,
		Logger:   logs.GetLogger(),
		Location: loc,
	}
}

// Database creates and returns a new database connection pool from the config.
func (c *Command) Database(l *logging.Logger) *database.DB {
	db, err := database.NewDbFromConfig(&c.Config.Database, l)
	if err != nil {
		c.Logger.Fatalf("%+v", errors.Wrap(err, "can't create database connection pool from config"))
	}

	return db
}

// Redis creates and returns a new Redis client from the config.
func (c *Command) Redis(l *logging.Logger) *redis.Client {
	rc, err := redis.NewClientFromConfig(&c.Config.Redis, l)
	if err != nil {
		c.Logger.Fatalf("%+v", errors.Wrap(err, "can't create Redis client from config"))
	}

	return rc
}

// fatal reports an error before logging is up and exits non-zero.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%+v\n", err)
	os.Exit(1)
}
