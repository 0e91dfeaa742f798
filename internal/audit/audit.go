// AngelaMos | 2026
// audit.go

// Package audit records security-relevant events on a side channel.
// Sinks never block the request path and never change its result.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindRateLimited        Kind = "rate_limited"
	KindAdminDenied        Kind = "admin_denied"
	KindRedeemFailed       Kind = "redeem_failed"
	KindEntitlementChanged Kind = "entitlement_changed"
	KindRoleChanged        Kind = "role_changed"
)

type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	UserID     string         `json:"user_id,omitempty"`
	RemoteAddr string         `json:"remote_addr,omitempty"`
	Path       string         `json:"path,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func NewEvent(kind Kind, userID string) Event {
	return Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

func (e Event) With(key string, value any) Event {
	detail := make(map[string]any, len(e.Detail)+1)
	for k, v := range e.Detail {
		detail[k] = v
	}
	detail[key] = value
	e.Detail = detail
	return e
}

type Sink interface {
	Record(ctx context.Context, e Event)
}

type Nop struct{}

func (Nop) Record(context.Context, Event) {}

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "audit")}
}

func (s *LogSink) Record(ctx context.Context, e Event) {
	attrs := []any{
		"event_id", e.ID,
		"kind", string(e.Kind),
	}
	if e.UserID != "" {
		attrs = append(attrs, "user_id", e.UserID)
	}
	if e.Path != "" {
		attrs = append(attrs, "path", e.Path)
	}
	if e.RemoteAddr != "" {
		attrs = append(attrs, "remote_addr", e.RemoteAddr)
	}
	for k, v := range e.Detail {
		attrs = append(attrs, k, v)
	}

	s.logger.WarnContext(ctx, "audit event", attrs...)
}

type Multi []Sink

func (m Multi) Record(ctx context.Context, e Event) {
	for _, s := range m {
		s.Record(ctx, e)
	}
}
