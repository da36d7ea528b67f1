package notifications

import (
	"context"
	"encoding/json"

	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/redis"
	"github.com/fulfillhq/slaengine/pkg/sla"
	goredis "github.com/redis/go-redis/v9"
)

// Config defines notification stream configuration.
type Config struct {
	// Stream is the Redis stream engine events are published to.
	Stream string `yaml:"stream" env:"STREAM" default:"slaengine:events"`
	// UpdatesStream is the Redis stream SKU status updates are consumed from.
	UpdatesStream string `yaml:"updates_stream" env:"UPDATES_STREAM" default:"slaengine:updates"`
}

// StreamNotifier publishes engine events to a Redis stream for the outbound
// notification workflow (push/email/SMS) to consume. Publishing is
// fire-and-forget: failures are logged and never surface to the caller.
type StreamNotifier struct {
	client *redis.Client
	stream string
	logger *logging.Logger
}

// NewStreamNotifier returns a new StreamNotifier on the given stream.
func NewStreamNotifier(client *redis.Client, stream string, logger *logging.Logger) *StreamNotifier {
	return &StreamNotifier{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// ViolationDetected publishes a newly recorded violation.
func (n *StreamNotifier) ViolationDetected(ctx context.Context, v *sla.SLAViolation) {
	n.publish(ctx, "violation", v)
}

// EarlyWarning publishes the orders approaching their deadline.
func (n *StreamNotifier) EarlyWarning(ctx context.Context, warnings []sla.Warning) {
	n.publish(ctx, "early-warning", warnings)
}

// DailySummary publishes the per-dealer summary of one calendar day.
func (n *StreamNotifier) DailySummary(ctx context.Context, report *sla.DailyReport) {
	n.publish(ctx, "daily-summary", report)
}

func (n *StreamNotifier) publish(ctx context.Context, kind string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Errorw("Can't marshal notification", "type", kind, "error", err)
		return
	}

	err = n.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: n.stream,
		Values: map[string]interface{}{
			"type":    kind,
			"payload": string(data),
		},
	}).Err()
	if err != nil {
		n.logger.Warnw("Can't publish notification", "type", kind, "stream", n.stream, "error", err)
		return
	}

	n.logger.Debugw("Published notification", "type", kind, "stream", n.stream)
}

// Assert interface compliance.
var _ sla.Notifier = (*StreamNotifier)(nil)
