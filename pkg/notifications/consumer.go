package notifications

import (
	"context"
	"strconv"
	"time"

	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/order"
	"github.com/fulfillhq/slaengine/pkg/redis"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// StatusUpdater applies SKU status transitions to orders.
type StatusUpdater interface {
	UpdateSKUStatus(
		ctx context.Context, orderID, skuCode string, newStatus order.Status, extra order.StatusUpdate,
	) (*order.Order, error)
}

// StatusConsumer reads SKU status updates from a Redis stream and applies them
// through the order service. Malformed or failing entries are logged and
// skipped, the stream position always advances.
type StatusConsumer struct {
	client  *redis.Client
	stream  string
	updater StatusUpdater
	logger  *logging.Logger
}

// NewStatusConsumer returns a new StatusConsumer on the given stream.
func NewStatusConsumer(
	client *redis.Client, stream string, updater StatusUpdater, logger *logging.Logger,
) *StatusConsumer {
	return &StatusConsumer{
		client:  client,
		stream:  stream,
		updater: updater,
		logger:  logger,
	}
}

// Run consumes the stream until ctx is canceled,
// starting with entries added after the call.
func (c *StatusConsumer) Run(ctx context.Context) {
	lastID := "$"

	for {
		streams, err := c.client.XRead(ctx, &goredis.XReadArgs{
			Streams: []string{c.stream, lastID},
			Count:   64,
			Block:   30 * time.Second,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, goredis.Nil) {
				continue
			}

			c.logger.Warnw("Can't read status updates", "stream", c.stream, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}

			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				c.apply(ctx, message)
			}
		}
	}
}

func (c *StatusConsumer) apply(ctx context.Context, message goredis.XMessage) {
	update, err := parseStatusUpdate(message.Values)
	if err != nil {
		c.logger.Warnw("Discarding malformed status update",
			"stream", c.stream, "id", message.ID, "error", err)
		return
	}

	if _, err := c.updater.UpdateSKUStatus(ctx, update.OrderId, update.SKU, update.Status, update.Extra); err != nil {
		c.logger.Warnw("Can't apply status update",
			"order", update.OrderId, "sku", update.SKU, "status", update.Status, "error", err)
		return
	}

	c.logger.Debugw("Applied status update",
		"order", update.OrderId, "sku", update.SKU, "status", update.Status)
}

type statusUpdate struct {
	OrderId string
	SKU     string
	Status  order.Status
	Extra   order.StatusUpdate
}

// parseStatusUpdate maps one stream entry to a SKU status transition.
// Required fields: order_id, sku, status. Optional: timestamp (ms since
// epoch) and carrier_status.
func parseStatusUpdate(values map[string]interface{}) (*statusUpdate, error) {
	field := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	update := &statusUpdate{
		OrderId: field("order_id"),
		SKU:     field("sku"),
		Status:  order.Status(field("status")),
	}

	if update.OrderId == "" {
		return nil, errors.New("order_id missing")
	}
	if update.SKU == "" {
		return nil, errors.New("sku missing")
	}
	if !update.Status.Valid() {
		return nil, errors.Errorf("bad order status %q", field("status"))
	}

	if ms := field("timestamp"); ms != "" {
		n, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad timestamp %q", ms)
		}

		update.Extra.Timestamp = time.UnixMilli(n)
	}

	update.Extra.CarrierStatus = field("carrier_status")

	return update, nil
}
