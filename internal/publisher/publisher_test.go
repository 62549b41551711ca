package publisher

import (
	"context"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/saasinvoice/billing/internal/config"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/pubsub/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToTopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.GetDefaultConfig()
	ps := memory.NewPubSub(logger.NewNoopLogger())
	defer ps.Close()

	messages, err := ps.Subscribe(ctx, cfg.Events.Topic)
	require.NoError(t, err)

	pub := NewEventPublisher(cfg, ps, logger.NewNoopLogger())
	require.NoError(t, pub.Publish(ctx, NewEvent(EventInvoicePaid, map[string]interface{}{"invoice_id": "inv_1"})))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, string(EventInvoicePaid), msg.Metadata.Get("event_name"))
		var got Event
		require.NoError(t, jsoniter.Unmarshal(msg.Payload, &got))
		assert.Equal(t, "inv_1", got.Payload["invoice_id"])
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}
