package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/conblem/acmon/internal/events"
	"github.com/conblem/acmon/internal/messaging"
	"github.com/conblem/acmon/internal/ratelimit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type capturePublisher struct {
	topic    string
	messages []*message.Message
}

func (c *capturePublisher) Publish(topic string, msgs ...*message.Message) error {
	c.topic = topic
	c.messages = append(c.messages, msgs...)

	return nil
}

func (c *capturePublisher) Close() error { return nil }

var decision = ratelimit.Decision{
	Scope:  ratelimit.ScopeNonce,
	Count:  120,
	Max:    120,
	Window: time.Minute,
}

func TestNewRejected(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

	event := events.NewRejected("client", "new_nonce", decision, at)

	_, err := uuid.Parse(event.ID)
	require.NoError(t, err)
	assert.Equal(t, "client", event.ClientKey)
	assert.Equal(t, "new_nonce", event.Operation)
	assert.Equal(t, "nonce", event.Scope)
	assert.Equal(t, uint32(120), event.Count)
	assert.Equal(t, uint32(120), event.Max)
	assert.Equal(t, int64(60_000), event.WindowMS)
	assert.Equal(t, time.Minute, event.Window())
	assert.Equal(t, time.UTC, event.OccurredAt.Location())
	assert.True(t, at.Equal(event.OccurredAt))

	other := events.NewRejected("client", "new_nonce", decision, at)
	assert.NotEqual(t, event.ID, other.ID)
}

func TestRejected_Publish(t *testing.T) {
	pub := &capturePublisher{}
	publish := messaging.NewPublishFunc[events.Rejected](pub, events.TopicRejected)
	event := events.NewRejected("client", "new_nonce", decision, time.Unix(1_700_000_000, 0))

	require.NoError(t, publish(context.Background(), event))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, events.TopicRejected, pub.topic)
	assert.Equal(t, event.ID, pub.messages[0].UUID)
	assert.Equal(t, events.TopicRejected, pub.messages[0].Metadata.Get(messaging.MetadataEventType))

	var decoded events.Rejected
	require.NoError(t, json.Unmarshal(pub.messages[0].Payload, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.WindowMS, decoded.WindowMS)
	assert.True(t, event.OccurredAt.Equal(decoded.OccurredAt))
}

func TestLogRejected(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := events.LogRejected(zap.New(core))
	event := events.NewRejected("client", "new_nonce", decision, time.Unix(1_700_000_000, 0))

	require.NoError(t, handler(context.Background(), event))

	entries := logs.FilterMessage("request rate limited").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "client", fields["client"])
	assert.Equal(t, "nonce", fields["scope"])
	assert.Equal(t, time.Minute, fields["window"])
}
