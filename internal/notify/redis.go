package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/menas/internal/eventbus"
)

// redisPublisher is the part of the go-redis client the forwarder uses.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisForwarder publishes every event on a redis pub/sub channel named
// "<prefix>:<event topic>".
type RedisForwarder struct {
	client redisPublisher
	prefix string
}

var _ Forwarder = (*RedisForwarder)(nil)

func NewRedisForwarder(client redisPublisher, prefix string) *RedisForwarder {
	if prefix == "" {
		prefix = "menas"
	}
	return &RedisForwarder{client: client, prefix: prefix}
}

// DialRedis connects to the redis server at url and checks it answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis URL is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (f *RedisForwarder) Name() string { return "redis" }

// Channel returns the channel events of topic are published on.
func (f *RedisForwarder) Channel(topic string) string {
	return f.prefix + ":" + topic
}

func (f *RedisForwarder) HandleEvent(ctx context.Context, evt eventbus.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := f.client.Publish(ctx, f.Channel(evt.Topic), data).Err(); err != nil {
		return fmt.Errorf("publish failed: redis %s: %w", f.Channel(evt.Topic), err)
	}
	return nil
}

func (f *RedisForwarder) Close() error {
	return f.client.Close()
}
