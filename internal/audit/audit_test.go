// AngelaMos | 2026
// audit_test.go

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/coursegate/internal/config"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []amqp.Publishing
	keys     []string
	err      error
	block    chan struct{}
}

func (p *recordingPublisher) Publish(
	_, key string,
	_, _ bool,
	msg amqp.Publishing,
) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	p.keys = append(p.keys, key)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditConfig(buffer int) config.AuditConfig {
	return config.AuditConfig{
		Exchange:   "coursegate.audit",
		RoutingKey: "audit.event",
		BufferSize: buffer,
	}
}

func TestAMQPSinkPublishesJSON(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewAMQPSink(pub, testAuditConfig(8), newNoopLogger())

	e := NewEvent(KindRedeemFailed, "user-1").With("reason", "exhausted")
	sink.Record(context.Background(), e)

	require.NoError(t, sink.Close(context.Background()))
	require.Equal(t, 1, pub.count())

	assert.Equal(t, "audit.event.redeem_failed", pub.keys[0])
	assert.Equal(t, uint8(amqp.Persistent), pub.messages[0].DeliveryMode)

	var got Event
	require.NoError(t, json.Unmarshal(pub.messages[0].Body, &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "exhausted", got.Detail["reason"])
}

func TestAMQPSinkDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	sink := NewAMQPSink(pub, testAuditConfig(1), newNoopLogger())

	for range 10 {
		sink.Record(context.Background(), NewEvent(KindRateLimited, ""))
	}

	assert.Positive(t, sink.Dropped())

	close(pub.block)
	require.NoError(t, sink.Close(context.Background()))
	assert.LessOrEqual(t, pub.count(), 2)
}

func TestAMQPSinkCountsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("channel closed")}
	sink := NewAMQPSink(pub, testAuditConfig(4), newNoopLogger())

	sink.Record(context.Background(), NewEvent(KindAdminDenied, "u"))
	require.NoError(t, sink.Close(context.Background()))

	assert.Equal(t, int64(1), sink.Failed())
}

func TestAMQPSinkRecordAfterClose(t *testing.T) {
	sink := NewAMQPSink(&recordingPublisher{}, testAuditConfig(4), newNoopLogger())
	require.NoError(t, sink.Close(context.Background()))
	require.NoError(t, sink.Close(context.Background()))

	assert.NotPanics(t, func() {
		sink.Record(context.Background(), NewEvent(KindAdminDenied, "u"))
	})
	assert.Equal(t, int64(1), sink.Dropped())
}

func TestAMQPSinkCloseHonoursContext(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	defer close(pub.block)

	sink := NewAMQPSink(pub, testAuditConfig(4), newNoopLogger())
	sink.Record(context.Background(), NewEvent(KindAdminDenied, "u"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, sink.Close(ctx), context.DeadlineExceeded)
}

func TestLogSinkAndMulti(t *testing.T) {
	var buf bytes.Buffer
	logSink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	pub := &recordingPublisher{}
	amqpSink := NewAMQPSink(pub, testAuditConfig(4), newNoopLogger())

	Multi{logSink, amqpSink, Nop{}}.Record(
		context.Background(),
		NewEvent(KindAdminDenied, "user-9").With("route", "/v1/admin/stats"),
	)
	require.NoError(t, amqpSink.Close(context.Background()))

	assert.Contains(t, buf.String(), `"kind":"admin_denied"`)
	assert.Contains(t, buf.String(), `"user_id":"user-9"`)
	assert.Equal(t, 1, pub.count())
}

func TestEventWithDoesNotAlias(t *testing.T) {
	base := NewEvent(KindRateLimited, "").With("scope", "global")
	a := base.With("key", "a")
	b := base.With("key", "b")

	assert.Equal(t, "a", a.Detail["key"])
	assert.Equal(t, "b", b.Detail["key"])
	assert.NotContains(t, base.Detail, "key")
}
