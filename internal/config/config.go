package config

import (
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/fulfillhq/slaengine/pkg/database"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/notifications"
	"github.com/fulfillhq/slaengine/pkg/redis"
	"github.com/fulfillhq/slaengine/pkg/sla"
	"github.com/goccy/go-yaml"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// DefaultConfigPath specifies the default location of the engine's config.yml
// for package installations.
const DefaultConfigPath = "/etc/slaengine/config.yml"

// EnvPrefix is the prefix of environment variables overriding the YAML configuration.
const EnvPrefix = "SLAENGINE_"

// Config defines the SLA engine configuration.
type Config struct {
	Database      database.Config      `yaml:"database" envPrefix:"DATABASE_"`
	Redis         redis.Config         `yaml:"redis" envPrefix:"REDIS_"`
	Logging       logging.Config       `yaml:"logging" envPrefix:"LOGGING_"`
	Notifications notifications.Config `yaml:"notifications" envPrefix:"NOTIFICATIONS_"`
	SLA           SLAConfig            `yaml:"sla"`
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}

	return c.SLA.Validate()
}

// SLAConfig defines the sweep intervals, reporting times and the engine timezone.
type SLAConfig struct {
	// CheckInterval is the full violation sweep interval.
	CheckInterval time.Duration `yaml:"check_interval" default:"15m"`
	// WarningInterval is the early-warning sweep interval.
	WarningInterval time.Duration `yaml:"warning_interval" default:"5m"`
	// WarningHorizon is how far ahead of a deadline the early-warning sweep looks.
	WarningHorizon time.Duration `yaml:"warning_horizon" default:"30m"`
	// DailySummaryAt is the time of day the daily summary runs.
	DailySummaryAt sla.DayTime `yaml:"daily_summary_at" default:"08:00"`
	// Timezone is the IANA name of the timezone all deadline math happens in.
	// It is pinned explicitly so that deadlines never depend on the ambient
	// process timezone.
	Timezone string `yaml:"timezone" default:"UTC"`
	// SweepConcurrency bounds how many orders a sweep checks in parallel.
	SweepConcurrency int `yaml:"sweep_concurrency" default:"1"`
}

// Validate checks constraints in the supplied SLA configuration and returns an error if they are violated.
func (c *SLAConfig) Validate() error {
	if c.CheckInterval <= 0 {
		return errors.New("check_interval must be positive")
	}
	if c.WarningInterval <= 0 {
		return errors.New("warning_interval must be positive")
	}
	if c.WarningHorizon <= 0 {
		return errors.New("warning_horizon must be positive")
	}
	if c.SweepConcurrency < 1 {
		return errors.New("sweep_concurrency must be at least 1")
	}

	_, err := c.Location()

	return err
}

// Location returns the configured timezone.
func (c *SLAConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)

	return loc, errors.Wrapf(err, "can't load timezone %q", c.Timezone)
}

// SchedulerOptions maps the configuration to scheduler options.
func (c *SLAConfig) SchedulerOptions(loc *time.Location) sla.SchedulerOptions {
	return sla.SchedulerOptions{
		CheckInterval:    c.CheckInterval,
		WarningInterval:  c.WarningInterval,
		WarningHorizon:   c.WarningHorizon,
		DailySummaryAt:   c.DailySummaryAt,
		Location:         loc,
		SweepConcurrency: c.SweepConcurrency,
	}
}

// FromYAMLFile returns a new Config from the YAML file at the given path,
// with defaults applied and environment variable overrides on top.
func FromYAMLFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't open YAML file "+path)
	}
	defer func() { _ = f.Close() }()

	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "can't set config defaults")
	}

	if err := yaml.NewDecoder(f, yaml.DisallowUnknownField()).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "can't parse YAML file "+path)
	}

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "can't parse environment variables")
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return c, nil
}

// Flags defines CLI flags.
type Flags struct {
	// Version decides whether to just print the version and exit.
	Version bool `long:"version" description:"print version and exit"`
	// Config is the path to the config file.
	Config string `short:"c" long:"config" description:"path to config file" default:"/etc/slaengine/config.yml"`
}

// ParseFlags parses CLI flags and returns a Flags value.
func ParseFlags() (*Flags, error) {
	f := &Flags{}
	parser := flags.NewParser(f, flags.Default)

	if _, err := parser.Parse(); err != nil {
		return nil, errors.Wrap(err, "can't parse CLI flags")
	}

	return f, nil
}
