package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/openfleet/fleetd/core"
)

// ProgressTopic is the topic for workflow progress events
const ProgressTopic = "onboarding.progress"

// WatermillPublisher implements the Publisher port using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill-based publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishProgress publishes a workflow progress event
func (p *WatermillPublisher) PublishProgress(ctx context.Context, event core.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("job_id", event.JobID)
	msg.Metadata.Set("operation", event.Operation)

	return p.publisher.Publish(ProgressTopic, msg)
}
