// Package notify forwards bus events to other console instances.
//
// A forwarder is an eventbus.Handler. main subscribes the one selected by
// NOTIFY_DRIVER; the local driver forwards nothing and leaves delivery to
// the in-process subscribers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/menas/internal/eventbus"
)

const (
	DriverLocal = "local"
	DriverRedis = "redis"
	DriverKafka = "kafka"
)

var ErrUnknownDriver = errors.New("unknown notify driver")

// Forwarder is a bus subscriber backed by an external broker.
type Forwarder interface {
	eventbus.Handler
	Name() string
	Close() error
}

// Config selects and addresses the broker.
type Config struct {
	Driver       string
	RedisURL     string
	KafkaBrokers []string
	Topic        string
}

// Open builds the forwarder for cfg.Driver. The local driver returns a nil
// forwarder and no error.
func Open(ctx context.Context, cfg Config) (Forwarder, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverLocal:
		return nil, nil
	case DriverRedis:
		client, err := DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisForwarder(client, cfg.Topic), nil
	case DriverKafka:
		client, err := NewKafkaClient(cfg.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		return NewKafkaForwarder(client, cfg.Topic), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
