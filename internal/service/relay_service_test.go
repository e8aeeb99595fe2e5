package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/pkg/events"
	"spatial-canvas-core/pkg/geometry"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type captureSink struct {
	got       chan events.Event
	failFirst bool
}

func (c *captureSink) PublishEvent(ctx context.Context, projectId uuid.UUID, evt events.Event) error {
	if c.failFirst {
		c.failFirst = false
		return errors.New("sink offline")
	}
	c.got <- evt
	return nil
}

func relayFixture(t *testing.T, sink *captureSink) (*gochannel.GoChannel, events.CanvasPublisher) {
	t.Helper()

	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	t.Cleanup(func() { _ = bus.Close() })

	relay := NewRelayService(bus, uuid.New(), sink, logger.NopLogger{})
	if err := relay.Relay(context.Background()); err != nil {
		t.Fatalf("Relay: %v", err)
	}

	return bus, events.NewWatermillPublisher(bus, logger.NopLogger{})
}

func waitForEvent(t *testing.T, sink *captureSink) events.Event {
	t.Helper()
	select {
	case evt := <-sink.got:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no event reached the sink")
		return nil
	}
}

func TestRelayMirrorsBusEvents(t *testing.T) {
	sink := &captureSink{got: make(chan events.Event, 8)}
	_, pub := relayFixture(t, sink)

	elementId := uuid.New()
	pub.PublishDragStart(context.Background(), elementId, "note", geometry.Point{X: 10, Y: 20})

	evt := waitForEvent(t, sink)
	if evt.EventType() != events.EventDragStart {
		t.Fatalf("mirrored type = %s, want %s", evt.EventType(), events.EventDragStart)
	}
	if got := evt.Payload()["element_id"]; got != elementId.String() {
		t.Fatalf("element_id = %v, want %s", got, elementId)
	}
}

func TestRelayRetriesAfterSinkFailure(t *testing.T) {
	sink := &captureSink{got: make(chan events.Event, 8), failFirst: true}
	_, pub := relayFixture(t, sink)

	pub.PublishDragCancel(context.Background(), uuid.New())

	// First delivery fails and is nacked; the bus redelivers until the sink
	// takes it.
	evt := waitForEvent(t, sink)
	if evt.EventType() != events.EventDragCancel {
		t.Fatalf("mirrored type = %s, want %s", evt.EventType(), events.EventDragCancel)
	}
}
