// Package events defines the events emitted when the rate limiter rejects a request.
package events

import (
	"context"
	"time"

	"github.com/conblem/acmon/internal/messaging"
	"github.com/conblem/acmon/internal/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicRejected is the topic rejection events are published to.
const TopicRejected = "ratelimit.rejected"

// Rejected is emitted when a request is denied by a rate limit.
type Rejected struct {
	ID         string    `json:"id"`
	ClientKey  string    `json:"clientKey"`
	Operation  string    `json:"operation"`
	Scope      string    `json:"scope"`
	Count      uint32    `json:"count"`
	Max        uint32    `json:"max"`
	WindowMS   int64     `json:"windowMs"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewRejected builds a rejection event for the decision that denied operation.
func NewRejected(clientKey, operation string, decision ratelimit.Decision, at time.Time) *Rejected {
	return &Rejected{
		ID:         uuid.NewString(),
		ClientKey:  clientKey,
		Operation:  operation,
		Scope:      string(decision.Scope),
		Count:      decision.Count,
		Max:        decision.Max,
		WindowMS:   decision.Window.Milliseconds(),
		OccurredAt: at.UTC(),
	}
}

func (e *Rejected) EventID() string   { return e.ID }
func (e *Rejected) EventType() string { return TopicRejected }

// Window returns the limit window as a duration.
func (e *Rejected) Window() time.Duration {
	return time.Duration(e.WindowMS) * time.Millisecond
}

// LogRejected returns a handler that logs every rejection.
func LogRejected(logger *zap.Logger) messaging.Handler[Rejected] {
	return func(_ context.Context, event *Rejected) error {
		logger.Info("request rate limited",
			zap.String("id", event.ID),
			zap.String("client", event.ClientKey),
			zap.String("operation", event.Operation),
			zap.String("scope", event.Scope),
			zap.Uint32("count", event.Count),
			zap.Uint32("max", event.Max),
			zap.Duration("window", event.Window()),
			zap.Time("occurredAt", event.OccurredAt),
		)

		return nil
	}
}

// Compile-time check.
var _ messaging.Event = (*Rejected)(nil)
