package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleetd/core"
)

func TestPublishProgress(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { pubsub.Close() })

	ctx := context.Background()
	messages, err := pubsub.Subscribe(ctx, ProgressTopic)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubsub)
	event := core.ProgressEvent{
		JobID:     "job-1",
		Operation: "transfer",
		Phase:     "transfer",
		Attempt:   3,
		VIN:       "1HGCM82633A004352",
		Message:   "Transfer attempt 3 of 30: Pending",
		At:        time.Now().UTC(),
	}
	require.NoError(t, publisher.PublishProgress(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, "job-1", msg.Metadata.Get("job_id"))
		assert.Equal(t, "transfer", msg.Metadata.Get("operation"))

		var decoded core.ProgressEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, event.Message, decoded.Message)
		assert.Equal(t, event.VIN, decoded.VIN)
	case <-time.After(time.Second):
		t.Fatal("no progress event received")
	}
}
