package events

import (
	"context"
	"testing"
	"time"

	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/pkg/geometry"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

func newTestBus(t *testing.T) (*gochannel.GoChannel, *WatermillPublisher) {
	t.Helper()
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	t.Cleanup(func() {
		_ = pubSub.Close()
	})
	return pubSub, NewWatermillPublisher(pubSub, logger.NopLogger{})
}

func receiveOne(t *testing.T, messages <-chan *message.Message) *Envelope {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		env, err := DecodeEnvelope(msg)
		if err != nil {
			t.Fatalf("DecodeEnvelope: %v", err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishDragStartEnvelope(t *testing.T) {
	pubSub, pub := newTestBus(t)

	messages, err := pubSub.Subscribe(context.Background(), EventDragStart)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	elementId := uuid.New()
	pub.PublishDragStart(context.Background(), elementId, "note", geometry.Point{X: 120, Y: 44})

	env := receiveOne(t, messages)
	if env.Type != EventDragStart {
		t.Errorf("Type = %q, want %q", env.Type, EventDragStart)
	}
	if env.OccurredAt.IsZero() {
		t.Error("OccurredAt should be set")
	}
	if got := env.Data["element_id"]; got != elementId.String() {
		t.Errorf("element_id = %v, want %s", got, elementId)
	}
	if got := env.Data["element_type"]; got != "note" {
		t.Errorf("element_type = %v, want note", got)
	}
	if got := env.Data["ghost_x"]; got != 120.0 {
		t.Errorf("ghost_x = %v, want 120", got)
	}
}

func TestEachEventTypeHasOwnTopic(t *testing.T) {
	pubSub, pub := newTestBus(t)
	ctx := context.Background()

	moved, err := pubSub.Subscribe(ctx, EventElementMoved)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	hierarchy, err := pubSub.Subscribe(ctx, EventHierarchyChanged)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	elementId := uuid.New()
	pub.PublishElementMoved(ctx, elementId, geometry.Point{X: 0, Y: 0}, geometry.Point{X: 40, Y: 80})

	env := receiveOne(t, moved)
	if env.Type != EventElementMoved {
		t.Errorf("Type = %q, want %q", env.Type, EventElementMoved)
	}
	if got := env.Data["to_x"]; got != 40.0 {
		t.Errorf("to_x = %v, want 40", got)
	}

	select {
	case msg := <-hierarchy:
		t.Errorf("hierarchy-changed topic received unrelated event: %s", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDropZoneDropCarriesRelativePosition(t *testing.T) {
	pubSub, pub := newTestBus(t)

	messages, err := pubSub.Subscribe(context.Background(), EventDropZoneDrop)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	elementId := uuid.New()
	pub.PublishDropZoneDrop(context.Background(), "sidebar", elementId, geometry.Point{X: 12, Y: 30})

	env := receiveOne(t, messages)
	if got := env.Data["drop_zone_id"]; got != "sidebar" {
		t.Errorf("drop_zone_id = %v, want sidebar", got)
	}
	if got := env.Data["relative_x"]; got != 12.0 {
		t.Errorf("relative_x = %v, want 12", got)
	}
	if got := env.Data["relative_y"]; got != 30.0 {
		t.Errorf("relative_y = %v, want 30", got)
	}
}

func TestPublishMovedToBoardCarriesBothBoards(t *testing.T) {
	pubSub, pub := newTestBus(t)

	messages, err := pubSub.Subscribe(context.Background(), EventElementMovedToBoard)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	elementId := uuid.New()
	fromBoard := uuid.New()
	toBoard := uuid.New()
	pub.PublishElementMovedToBoard(context.Background(), elementId, fromBoard, toBoard, geometry.Point{X: 5, Y: 5})

	env := receiveOne(t, messages)
	if got := env.Data["from_board_id"]; got != fromBoard.String() {
		t.Errorf("from_board_id = %v, want %s", got, fromBoard)
	}
	if got := env.Data["to_board_id"]; got != toBoard.String() {
		t.Errorf("to_board_id = %v, want %s", got, toBoard)
	}
}

func TestNopPublisherAcceptsEverything(t *testing.T) {
	var pub CanvasPublisher = NopPublisher{}
	ctx := context.Background()
	id := uuid.New()

	pub.PublishHierarchyChanged(ctx, id, uuid.Nil, "create")
	pub.PublishDragStart(ctx, id, "note", geometry.Point{})
	pub.PublishDragMove(ctx, id, geometry.Point{})
	pub.PublishDragEnd(ctx, id, false, "")
	pub.PublishDragCancel(ctx, id)
	pub.PublishDropZoneEnter(ctx, "zone", id, true)
	pub.PublishDropZoneLeave(ctx, "zone", id)
	pub.PublishDropZoneDrop(ctx, "zone", id, geometry.Point{})
	pub.PublishElementMoved(ctx, id, geometry.Point{}, geometry.Point{})
	pub.PublishElementMovedToBoard(ctx, id, uuid.Nil, uuid.Nil, geometry.Point{})
}

func TestPublisherSurvivesNilBus(t *testing.T) {
	pub := NewWatermillPublisher(nil, logger.NopLogger{})
	pub.PublishDragCancel(context.Background(), uuid.New())
}
