package eventbus

import (
	"context"
	"log/slog"
)

// LogConsumer logs every event for observability.
type LogConsumer struct {
	logger *slog.Logger
}

func NewLogConsumer(logger *slog.Logger) *LogConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogConsumer{logger: logger}
}

func (c *LogConsumer) HandleEvent(ctx context.Context, evt Event) error {
	attrs := []any{
		"topic", evt.Topic,
		"type", evt.Type,
		"event_id", evt.ID,
	}
	if u, err := DecodeConformanceUpdated(evt); err == nil {
		attrs = append(attrs,
			"dataset", u.Dataset,
			"dataset_version", u.DatasetVersion,
			"rule_type", u.RuleType,
			"order", u.Order,
			"rules", len(u.Conformance),
		)
	}
	c.logger.InfoContext(ctx, "event", attrs...)
	return nil
}
