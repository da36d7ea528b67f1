package redis

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/fulfillhq/slaengine/pkg/backoff"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/retry"
	"github.com/redis/go-redis/v9"
)

// Client is a wrapper around redis.Client with logging capabilities.
type Client struct {
	*redis.Client

	Options *Options

	logger *logging.Logger
}

// NewClient returns a new Client wrapper for a pre-existing redis.Client.
func NewClient(client *redis.Client, logger *logging.Logger, options *Options) *Client {
	return &Client{Client: client, logger: logger, Options: options}
}

// NewClientFromConfig returns a new Client from Config.
func NewClientFromConfig(c *Config, logger *logging.Logger) (*Client, error) {
	dl := &net.Dialer{Timeout: 15 * time.Second}

	port := c.Port
	if port == 0 {
		port = 6379
	}

	options := &redis.Options{
		Addr:        net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Dialer:      dialWithLogging(dl.DialContext, logger),
		DB:          c.Database,
		Password:    c.Password,
		ReadTimeout: c.Options.Timeout,
	}

	return NewClient(redis.NewClient(options), logger, &c.Options), nil
}

// GetAddr returns the Redis host:port address.
func (c *Client) GetAddr() string {
	return c.Client.Options().Addr
}

type ctxDialerFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// dialWithLogging returns a Redis Dialer with logging and retry capabilities.
func dialWithLogging(dialer ctxDialerFunc, logger *logging.Logger) ctxDialerFunc {
	// dial behaves like net.Dialer#DialContext,
	// but re-tries on common errors that are considered retryable.
	return func(ctx context.Context, network, addr string) (conn net.Conn, err error) {
		err = retry.WithBackoff(
			ctx,
			func(ctx context.Context) (err error) {
				conn, err = dialer(ctx, network, addr)
				return
			},
			retry.Retryable,
			backoff.NewExponentialWithJitter(time.Millisecond*128, time.Minute),
			5*time.Minute,
		)
		if err != nil {
			logger.Warnw("Can't connect to Redis", "address", addr, "error", err)
		}

		return
	}
}
