// Package eventbus provides an in-process pub/sub bus for console events.
// Sessions publish after a commit; subscribers (websocket hub, cross-instance
// forwarders, the log consumer) process events asynchronously.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrBufferFull = errors.New("notification buffer full")
	ErrStopped    = errors.New("publish failed: event bus stopped")
)

// Event is what travels over the bus. Payload is kept encoded so
// forwarders and the websocket hub pass it through untouched.
type Event struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Handler processes an event. Implementations must be safe for concurrent
// calls from different goroutines.
type Handler interface {
	HandleEvent(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Bus is an in-process event bus. Events are published to a buffered
// channel and dispatched to all subscribers by a single consumer goroutine,
// so each subscriber sees events in publish order.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	events      chan Event
	done        chan struct{}
	started     bool
	stopped     bool

	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxAttempts sets how often a failing handler is tried per event.
func WithMaxAttempts(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the base delay between handler attempts. The delay
// grows linearly with the attempt number.
func WithRetryDelay(d time.Duration) Option {
	return func(b *Bus) { b.retryDelay = d }
}

// WithLogger sets the logger used for dropped events and handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a Bus with the given channel buffer size.
func New(bufSize int, opts ...Option) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	b := &Bus{
		events:      make(chan Event, bufSize),
		done:        make(chan struct{}),
		maxAttempts: 3,
		retryDelay:  100 * time.Millisecond,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "eventbus")
	return b
}

// Subscribe registers a named handler. Must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish queues an event. It never blocks: when the buffer is full the
// event is dropped and ErrBufferFull is returned.
func (b *Bus) Publish(_ context.Context, evt Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		return ErrStopped
	}
	select {
	case b.events <- evt:
		return nil
	default:
		b.logger.Warn("buffer full, dropping event",
			"topic", evt.Topic,
			"type", evt.Type,
			"event_id", evt.ID,
		)
		return fmt.Errorf("%w: dropped %s/%s", ErrBufferFull, evt.Topic, evt.Type)
	}
}

// Start begins the consumer goroutine. It processes events until the
// context is cancelled or Stop is called, draining what is queued.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				b.drain(context.WithoutCancel(ctx))
				return
			}
		}
	}()
}

// Stop refuses further events and waits for the consumer to finish the
// queued ones.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.events)
	started := b.started
	b.mu.Unlock()

	if started {
		<-b.done
	}
}

func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case evt, ok := <-b.events:
			if !ok {
				return
			}
			b.dispatch(ctx, evt)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, evt Event) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, evt)
	}
}

func (b *Bus) deliver(ctx context.Context, s namedHandler, evt Event) {
	for attempt := 1; ; attempt++ {
		err := s.handler.HandleEvent(ctx, evt)
		if err == nil {
			return
		}
		if attempt >= b.maxAttempts || !b.wait(ctx, attempt) {
			b.logger.Error("handler failed",
				"handler", s.name,
				"topic", evt.Topic,
				"type", evt.Type,
				"event_id", evt.ID,
				"attempts", attempt,
				"error", err,
			)
			return
		}
	}
}

// wait sleeps before the next attempt. It reports false when ctx ended.
func (b *Bus) wait(ctx context.Context, attempt int) bool {
	t := time.NewTimer(b.retryDelay * time.Duration(attempt))
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
