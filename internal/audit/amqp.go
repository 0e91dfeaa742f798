// AngelaMos | 2026
// amqp.go

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streadway/amqp"

	"github.com/carterperez-dev/coursegate/internal/config"
)

// Publisher is satisfied by *amqp.Channel.
type Publisher interface {
	Publish(
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) error
}

func Connect(url string, retries int, delay time.Duration) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for range retries {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("connect amqp: %w", err)
}

// SetupChannel opens a channel and declares the durable topic exchange
// audit events are published to. Consumers bind their own queues.
func SetupChannel(conn *amqp.Connection, exchange string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close() //nolint:errcheck // cleanup on setup failure
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return ch, nil
}

// AMQPSink publishes events from a bounded buffer on its own goroutine.
// When the buffer is full the event is dropped and counted.
type AMQPSink struct {
	pub        Publisher
	exchange   string
	routingKey string
	logger     *slog.Logger

	events  chan Event
	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Int64
	failed  atomic.Int64
	mu      sync.RWMutex
}

func NewAMQPSink(
	pub Publisher,
	cfg config.AuditConfig,
	logger *slog.Logger,
) *AMQPSink {
	size := cfg.BufferSize
	if size <= 0 {
		size = 256
	}

	s := &AMQPSink{
		pub:        pub,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.With("component", "audit_amqp"),
		events:     make(chan Event, size),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *AMQPSink) Record(_ context.Context, e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		s.dropped.Add(1)
		return
	}

	select {
	case s.events <- e:
	default:
		s.dropped.Add(1)
	}
}

func (s *AMQPSink) run() {
	defer s.wg.Done()

	for e := range s.events {
		if err := s.publish(e); err != nil {
			s.failed.Add(1)
			s.logger.Error("publish audit event",
				"event_id", e.ID,
				"kind", string(e.Kind),
				"error", err,
			)
		}
	}
}

func (s *AMQPSink) publish(e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	return s.pub.Publish(
		s.exchange,
		s.routingKey+"."+string(e.Kind),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    e.ID,
			Timestamp:    e.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

// Close stops accepting events and flushes the buffer, giving up when ctx
// is done.
func (s *AMQPSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed.CompareAndSwap(false, true) {
		close(s.events)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush audit events: %w", ctx.Err())
	}
}

func (s *AMQPSink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *AMQPSink) Failed() int64 {
	return s.failed.Load()
}
