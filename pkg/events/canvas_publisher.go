package events

import (
	"context"
	"encoding/json"
	"time"

	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/pkg/geometry"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// CanvasPublisher abstracts event publishing for the interaction core. Every
// method is fire-and-forget: a failed publish is logged and never propagated
// into the interaction path.
type CanvasPublisher interface {
	PublishHierarchyChanged(ctx context.Context, projectId, boardId uuid.UUID, reason string)
	PublishDragStart(ctx context.Context, elementId uuid.UUID, elementType string, ghost geometry.Point)
	PublishDragMove(ctx context.Context, elementId uuid.UUID, ghost geometry.Point)
	PublishDragEnd(ctx context.Context, elementId uuid.UUID, dropped bool, dropZoneId string)
	PublishDragCancel(ctx context.Context, elementId uuid.UUID)
	PublishDropZoneEnter(ctx context.Context, dropZoneId string, elementId uuid.UUID, canDrop bool)
	PublishDropZoneLeave(ctx context.Context, dropZoneId string, elementId uuid.UUID)
	PublishDropZoneDrop(ctx context.Context, dropZoneId string, elementId uuid.UUID, relative geometry.Point)
	PublishElementMoved(ctx context.Context, elementId uuid.UUID, from, to geometry.Point)
	PublishElementMovedToBoard(ctx context.Context, elementId, fromBoardId, toBoardId uuid.UUID, relative geometry.Point)
}

// Envelope is the JSON shape every published message carries.
type Envelope struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

// DecodeEnvelope unmarshals a raw bus message back into an Envelope.
func DecodeEnvelope(msg *message.Message) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// WatermillPublisher implements CanvasPublisher on an in-process watermill
// publisher. Each event goes out on the topic named after its type, so
// consumers subscribe only to what they render.
type WatermillPublisher struct {
	publisher message.Publisher
	logger    logger.ILogger
}

// NewWatermillPublisher creates a bus-backed event publisher.
func NewWatermillPublisher(publisher message.Publisher, logger logger.ILogger) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

func (p *WatermillPublisher) publish(evt Event) {
	if p.publisher == nil {
		return
	}

	payload, err := json.Marshal(Envelope{
		Type:       evt.EventType(),
		OccurredAt: evt.Timestamp(),
		Data:       evt.Payload(),
	})
	if err != nil {
		p.logger.Error("EVENTS", "Failed to marshal event payload", map[string]interface{}{
			"event": evt.EventType(),
			"error": err.Error(),
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(evt.EventType(), msg); err != nil {
		p.logger.Error("EVENTS", "Failed to publish event", map[string]interface{}{
			"event": evt.EventType(),
			"error": err.Error(),
		})
	}
}

// PublishHierarchyChanged emits hierarchy-changed after any structural tree mutation.
func (p *WatermillPublisher) PublishHierarchyChanged(ctx context.Context, projectId, boardId uuid.UUID, reason string) {
	p.publish(BaseEvent{
		Type: EventHierarchyChanged,
		Data: map[string]interface{}{
			"project_id": projectId.String(),
			"board_id":   boardId.String(),
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	})
}

// PublishDragStart emits drag-start when a pointer-down begins a session.
func (p *WatermillPublisher) PublishDragStart(ctx context.Context, elementId uuid.UUID, elementType string, ghost geometry.Point) {
	p.publish(BaseEvent{
		Type: EventDragStart,
		Data: map[string]interface{}{
			"element_id":   elementId.String(),
			"element_type": elementType,
			"ghost_x":      ghost.X,
			"ghost_y":      ghost.Y,
		},
		OccurredAt: time.Now(),
	})
}

// PublishDragMove emits the coalesced per-frame ghost position.
func (p *WatermillPublisher) PublishDragMove(ctx context.Context, elementId uuid.UUID, ghost geometry.Point) {
	p.publish(BaseEvent{
		Type: EventDragMove,
		Data: map[string]interface{}{
			"element_id": elementId.String(),
			"ghost_x":    ghost.X,
			"ghost_y":    ghost.Y,
		},
		OccurredAt: time.Now(),
	})
}

// PublishDragEnd emits drag-end for both outcomes of a pointer-up; dropped
// tells consumers whether a target accepted the element.
func (p *WatermillPublisher) PublishDragEnd(ctx context.Context, elementId uuid.UUID, dropped bool, dropZoneId string) {
	p.publish(BaseEvent{
		Type: EventDragEnd,
		Data: map[string]interface{}{
			"element_id":   elementId.String(),
			"dropped":      dropped,
			"drop_zone_id": dropZoneId,
		},
		OccurredAt: time.Now(),
	})
}

// PublishDragCancel emits drag-cancel when a session is torn down without a drop.
func (p *WatermillPublisher) PublishDragCancel(ctx context.Context, elementId uuid.UUID) {
	p.publish(BaseEvent{
		Type: EventDragCancel,
		Data: map[string]interface{}{
			"element_id": elementId.String(),
		},
		OccurredAt: time.Now(),
	})
}

// PublishDropZoneEnter emits dropzone-enter with the acceptance verdict for hover feedback.
func (p *WatermillPublisher) PublishDropZoneEnter(ctx context.Context, dropZoneId string, elementId uuid.UUID, canDrop bool) {
	p.publish(BaseEvent{
		Type: EventDropZoneEnter,
		Data: map[string]interface{}{
			"drop_zone_id": dropZoneId,
			"element_id":   elementId.String(),
			"can_drop":     canDrop,
		},
		OccurredAt: time.Now(),
	})
}

// PublishDropZoneLeave emits dropzone-leave when the pointer exits a hovered target.
func (p *WatermillPublisher) PublishDropZoneLeave(ctx context.Context, dropZoneId string, elementId uuid.UUID) {
	p.publish(BaseEvent{
		Type: EventDropZoneLeave,
		Data: map[string]interface{}{
			"drop_zone_id": dropZoneId,
			"element_id":   elementId.String(),
		},
		OccurredAt: time.Now(),
	})
}

// PublishDropZoneDrop emits dropzone-drop with the drop position relative to
// the target bounds.
func (p *WatermillPublisher) PublishDropZoneDrop(ctx context.Context, dropZoneId string, elementId uuid.UUID, relative geometry.Point) {
	p.publish(BaseEvent{
		Type: EventDropZoneDrop,
		Data: map[string]interface{}{
			"drop_zone_id": dropZoneId,
			"element_id":   elementId.String(),
			"relative_x":   relative.X,
			"relative_y":   relative.Y,
		},
		OccurredAt: time.Now(),
	})
}

// PublishElementMoved emits element-moved after a committed position change.
func (p *WatermillPublisher) PublishElementMoved(ctx context.Context, elementId uuid.UUID, from, to geometry.Point) {
	p.publish(BaseEvent{
		Type: EventElementMoved,
		Data: map[string]interface{}{
			"element_id": elementId.String(),
			"from_x":     from.X,
			"from_y":     from.Y,
			"to_x":       to.X,
			"to_y":       to.Y,
		},
		OccurredAt: time.Now(),
	})
}

// PublishElementMovedToBoard emits element-moved-to-board after a reparent.
func (p *WatermillPublisher) PublishElementMovedToBoard(ctx context.Context, elementId, fromBoardId, toBoardId uuid.UUID, relative geometry.Point) {
	p.publish(BaseEvent{
		Type: EventElementMovedToBoard,
		Data: map[string]interface{}{
			"element_id":    elementId.String(),
			"from_board_id": fromBoardId.String(),
			"to_board_id":   toBoardId.String(),
			"relative_x":    relative.X,
			"relative_y":    relative.Y,
		},
		OccurredAt: time.Now(),
	})
}

// NopPublisher drops every event. Used by tests and by tools that run the
// engines without consumers.
type NopPublisher struct{}

func (NopPublisher) PublishHierarchyChanged(ctx context.Context, projectId, boardId uuid.UUID, reason string) {
}
func (NopPublisher) PublishDragStart(ctx context.Context, elementId uuid.UUID, elementType string, ghost geometry.Point) {
}
func (NopPublisher) PublishDragMove(ctx context.Context, elementId uuid.UUID, ghost geometry.Point) {}
func (NopPublisher) PublishDragEnd(ctx context.Context, elementId uuid.UUID, dropped bool, dropZoneId string) {
}
func (NopPublisher) PublishDragCancel(ctx context.Context, elementId uuid.UUID) {}
func (NopPublisher) PublishDropZoneEnter(ctx context.Context, dropZoneId string, elementId uuid.UUID, canDrop bool) {
}
func (NopPublisher) PublishDropZoneLeave(ctx context.Context, dropZoneId string, elementId uuid.UUID) {
}
func (NopPublisher) PublishDropZoneDrop(ctx context.Context, dropZoneId string, elementId uuid.UUID, relative geometry.Point) {
}
func (NopPublisher) PublishElementMoved(ctx context.Context, elementId uuid.UUID, from, to geometry.Point) {
}
func (NopPublisher) PublishElementMovedToBoard(ctx context.Context, elementId, fromBoardId, toBoardId uuid.UUID, relative geometry.Point) {
}
