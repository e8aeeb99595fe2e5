package service

import (
	"context"

	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// EventSink receives the mirrored event stream. pkg/nats.Publisher is the
// production implementation.
type EventSink interface {
	PublishEvent(ctx context.Context, projectId uuid.UUID, evt events.Event) error
}

type IRelayService interface {
	Relay(ctx context.Context) error
}

// relayService pumps every topic of the in-process bus into an external sink.
// It is a plain bus consumer: the canvas never waits for it, and a dead sink
// only costs redeliveries.
type relayService struct {
	bus       *gochannel.GoChannel
	projectId uuid.UUID
	sink      EventSink
	logger    logger.ILogger
}

func NewRelayService(
	bus *gochannel.GoChannel,
	projectId uuid.UUID,
	sink EventSink,
	logger logger.ILogger,
) IRelayService {
	return &relayService{
		bus:       bus,
		projectId: projectId,
		sink:      sink,
		logger:    logger,
	}
}

// Relay subscribes to every event topic and forwards envelopes until the
// context ends.
func (rs *relayService) Relay(ctx context.Context) error {
	for _, topic := range events.Topics() {
		messages, err := rs.bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}

		go func() {
			for msg := range messages {
				rs.processMessage(ctx, msg)
			}
		}()
	}

	return nil
}

func (rs *relayService) processMessage(ctx context.Context, msg *message.Message) {
	env, err := events.DecodeEnvelope(msg)
	if err != nil {
		rs.logger.Error("EVENTS", "Failed to unmarshal bus message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	evt := events.BaseEvent{
		Type:       env.Type,
		Data:       env.Data,
		OccurredAt: env.OccurredAt,
	}

	if err := rs.sink.PublishEvent(ctx, rs.projectId, evt); err != nil {
		rs.logger.Error("EVENTS", "Failed to mirror event", map[string]interface{}{
			"event": env.Type,
			"error": err.Error(),
		})
		msg.Nack() // Nack for retriable errors
		return
	}

	msg.Ack()
}
