package events

import "time"

// Integration event types. These are the only boundary the excluded
// presentation layers (tree-view panel, AI layer) may depend on.
const (
	EventHierarchyChanged    = "hierarchy-changed"
	EventDragStart           = "drag-start"
	EventDragMove            = "drag-move"
	EventDragEnd             = "drag-end"
	EventDragCancel          = "drag-cancel"
	EventDropZoneEnter       = "dropzone-enter"
	EventDropZoneLeave       = "dropzone-leave"
	EventDropZoneDrop        = "dropzone-drop"
	EventElementMoved        = "element-moved"
	EventElementMovedToBoard = "element-moved-to-board"
)

// Topics lists every event type, for consumers that mirror or log the whole
// stream rather than rendering a single concern.
func Topics() []string {
	return []string{
		EventHierarchyChanged,
		EventDragStart,
		EventDragMove,
		EventDragEnd,
		EventDragCancel,
		EventDropZoneEnter,
		EventDropZoneLeave,
		EventDropZoneDrop,
		EventElementMoved,
		EventElementMovedToBoard,
	}
}

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "drag-start").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
