package database

import (
	"github.com/pkg/errors"
)

// Config defines database client configuration.
type Config struct {
	Type     string  `yaml:"type" env:"TYPE" default:"mysql"`
	Host     string  `yaml:"host" env:"HOST"`
	Port     int     `yaml:"port" env:"PORT"`
	Database string  `yaml:"database" env:"DATABASE"`
	User     string  `yaml:"user" env:"USER"`
	Password string  `yaml:"password" env:"PASSWORD,unset"`
	Options  Options `yaml:"options"`
}

// Validate checks constraints in the supplied database configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	switch c.Type {
	case "mysql", "pgsql":
		if c.Host == "" {
			return errors.New("database host missing")
		}
		if c.User == "" || c.Database == "" {
			return errors.New("database user and database name missing")
		}
	case "sqlite":
		if c.Database == "" {
			return errors.New("database file name missing")
		}
	default:
		return unknownDbType(c.Type)
	}

	return c.Options.Validate()
}

// Options define user configurable database options.
type Options struct {
	// Maximum number of open connections to the database.
	MaxConnections int `yaml:"max_connections" default:"16"`

	// Maximum time to wait for the initial connection to succeed,
	// retried with exponential backoff.
	ConnectTimeout int `yaml:"connect_timeout" default:"300"`
}

// Validate checks constraints in the supplied database options and returns an error if they are violated.
func (o *Options) Validate() error {
	if o.MaxConnections == 0 {
		return errors.New("max_connections cannot be 0. Configure a value greater than zero, or use -1 for no connection limit")
	}
	if o.ConnectTimeout < 1 {
		return errors.New("connect_timeout must be at least 1")
	}

	return nil
}

func unknownDbType(t string) error {
	return errors.Errorf(`unknown database type %q, must be one of: "mysql", "pgsql", "sqlite"`, t)
}
