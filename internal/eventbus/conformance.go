package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/menas/internal/core"
)

const (
	TopicConformance = "conformance"
	EventUpdated     = "updated"
)

// ConformanceNotifier publishes committed conformance lists on the bus.
// It implements core.Notifier.
type ConformanceNotifier struct {
	bus *Bus
}

var _ core.Notifier = (*ConformanceNotifier)(nil)

func NewConformanceNotifier(b *Bus) *ConformanceNotifier {
	return &ConformanceNotifier{bus: b}
}

func (n *ConformanceNotifier) ConformanceUpdated(ctx context.Context, evt core.ConformanceUpdated) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode conformance update: %w", err)
	}
	return n.bus.Publish(ctx, Event{
		ID:         evt.ID,
		Topic:      TopicConformance,
		Type:       EventUpdated,
		OccurredAt: evt.OccurredAt,
		Payload:    payload,
	})
}

// DecodeConformanceUpdated extracts the update carried by a conformance event.
func DecodeConformanceUpdated(evt Event) (core.ConformanceUpdated, error) {
	var u core.ConformanceUpdated
	if evt.Topic != TopicConformance || evt.Type != EventUpdated {
		return u, fmt.Errorf("unexpected event %s/%s", evt.Topic, evt.Type)
	}
	if err := json.Unmarshal(evt.Payload, &u); err != nil {
		return u, fmt.Errorf("decode conformance update: %w", err)
	}
	return u, nil
}
