// Package dragdrop implements the pointer-driven drag state machine and the
// drop-zone registry. The engine owns at most one live session at a time;
// drop targets receive the session by reference, never through shared
// globals. The engine only reads element snapshots: applying a drop
// (reparenting, position writes) is the caller's job.
package dragdrop

import (
	"time"

	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/pkg/geometry"

	"github.com/google/uuid"
)

// Phase is the lifecycle state of a drag session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseDragging  Phase = "dragging"
	PhaseDropped   Phase = "dropped"
	PhaseCancelled Phase = "cancelled"
)

// Draggable is the element snapshot the engine needs at pointer-down.
type Draggable struct {
	Id       uuid.UUID
	Type     entity.ElementType
	Position geometry.Point
	Locked   bool
}

// Session is the transient state of one pointer-driven move. It exists only
// between pointer-down and pointer-up/cancel; every exit path clears the
// engine's reference to it.
type Session struct {
	// Token identifies this session. Teardown paths release by token so a
	// stale holder can never cancel a newer session.
	Token       uuid.UUID
	ElementId   uuid.UUID
	ElementType entity.ElementType
	Phase       Phase

	// Origin is the element position at pointer-down, Offset the vector from
	// origin to the pointer. Ghost tracks pointer minus Offset once the
	// session is engaged.
	Origin geometry.Point
	Offset geometry.Point
	Ghost  geometry.Point

	// Engaged flips once the pointer has travelled past the dead zone.
	// Un-engaged sessions resolve as clicks: no drop, no movement.
	Engaged bool

	DownPoint geometry.Point
	StartedAt time.Time
}

// Delta is the ghost displacement from the session origin.
func (s *Session) Delta() geometry.Point {
	return s.Ghost.Sub(s.Origin)
}

// Resolution reports how a pointer-up resolved.
type Resolution struct {
	Session  Session
	Dropped  bool
	TargetId string
	// Relative is the drop position inside the accepting target's bounds.
	Relative geometry.Point
}
