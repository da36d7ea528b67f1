package redis

import (
	"time"

	"github.com/pkg/errors"
)

// Config defines Redis client configuration.
// An empty host disables the Redis-backed notification stream.
type Config struct {
	Host     string  `yaml:"host" env:"HOST"`
	Port     int     `yaml:"port" env:"PORT"`
	Database int     `yaml:"database" default:"0"`
	Password string  `yaml:"password" env:"PASSWORD,unset"`
	Options  Options `yaml:"options"`
}

// Enabled reports whether a Redis host is configured.
func (c *Config) Enabled() bool {
	return c.Host != ""
}

// Validate checks constraints in the supplied Redis configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}

	return c.Options.Validate()
}

// Options define user configurable Redis options.
type Options struct {
	// Timeout for established connections.
	Timeout time.Duration `yaml:"timeout" default:"30s"`
}

// Validate checks constraints in the supplied Redis options and returns an error if they are violated.
func (o *Options) Validate() error {
	if o.Timeout == 0 {
		return errors.New("timeout cannot be 0. Configure a value greater than zero, or use -1 for no timeout")
	}

	return nil
}
