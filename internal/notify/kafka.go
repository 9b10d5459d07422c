package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/JonMunkholm/menas/internal/eventbus"
)

// producer is the part of the franz-go client the forwarder uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaForwarder produces every event to one kafka topic, keyed by the
// event topic so updates of one kind stay ordered within a partition.
type KafkaForwarder struct {
	client producer
	topic  string
}

var _ Forwarder = (*KafkaForwarder)(nil)

func NewKafkaForwarder(client producer, topic string) *KafkaForwarder {
	if topic == "" {
		topic = "menas"
	}
	return &KafkaForwarder{client: client, topic: topic}
}

// NewKafkaClient creates a producer for brokers. It does not connect until
// the first record is produced.
func NewKafkaClient(brokers []string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

func (f *KafkaForwarder) Name() string { return "kafka" }

func (f *KafkaForwarder) HandleEvent(ctx context.Context, evt eventbus.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	record := &kgo.Record{
		Topic: f.topic,
		Key:   []byte(evt.Topic),
		Value: data,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(evt.Type)},
			{Key: "event_id", Value: []byte(evt.ID)},
		},
	}
	if err := f.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish failed: kafka %s: %w", f.topic, err)
	}
	return nil
}

func (f *KafkaForwarder) Close() error {
	f.client.Close()
	return nil
}
