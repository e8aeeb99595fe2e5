package dragdrop

import (
	"context"
	"math"
	"sync"
	"time"

	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/pkg/events"
	"spatial-canvas-core/pkg/geometry"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Engine is the drag state machine: idle -> dragging -> dropped/cancelled ->
// idle. Ghost updates are coalesced to at most one drag-move publication per
// frame interval; raw pointer events always refresh the live ghost, excess
// publications are dropped rather than queued.
type Engine struct {
	mu       sync.Mutex
	session  *Session
	registry *Registry

	// limiter gates drag-move publications. nil disables coalescing.
	limiter  *rate.Limiter
	deadZone float64

	publisher events.CanvasPublisher
	logger    logger.ILogger
}

// NewEngine creates a drag engine. frameInterval bounds drag-move
// publications to one per interval; deadZone is the pointer travel in world
// units below which a session resolves as a click.
func NewEngine(registry *Registry, publisher events.CanvasPublisher, frameInterval time.Duration, deadZone float64, log logger.ILogger) *Engine {
	if registry == nil {
		registry = NewRegistry(publisher, log)
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	var limiter *rate.Limiter
	if frameInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(frameInterval), 1)
	}

	return &Engine{
		registry:  registry,
		limiter:   limiter,
		deadZone:  deadZone,
		publisher: publisher,
		logger:    log,
	}
}

// Registry returns the drop-zone registry this engine drives.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Phase reports the engine state.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return PhaseIdle
	}
	return e.session.Phase
}

// Session returns a snapshot of the live session.
func (e *Engine) Session() (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

// PointerDown begins a drag session for the element under the pointer. A
// locked element or an already-live session refuses.
func (e *Engine) PointerDown(ctx context.Context, el Draggable, pointer geometry.Point, now time.Time) (Session, error) {
	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		return Session{}, ErrDragInProgress
	}
	if el.Locked {
		e.mu.Unlock()
		return Session{}, entity.ErrElementLocked
	}

	s := &Session{
		Token:       uuid.New(),
		ElementId:   el.Id,
		ElementType: el.Type,
		Phase:       PhaseDragging,
		Origin:      el.Position,
		Offset:      pointer.Sub(el.Position),
		Ghost:       el.Position,
		DownPoint:   pointer,
		StartedAt:   now,
	}
	e.session = s
	if e.limiter != nil {
		// Fresh token bucket per session so the first move of a new drag is
		// never throttled by the tail of the previous one.
		e.limiter = rate.NewLimiter(e.limiter.Limit(), 1)
	}
	snapshot := *s
	e.mu.Unlock()

	e.publisher.PublishDragStart(ctx, snapshot.ElementId, string(snapshot.ElementType), snapshot.Ghost)
	e.logger.Debug("DRAG", "Session started", map[string]interface{}{
		"element_id": snapshot.ElementId.String(),
		"type":       string(snapshot.ElementType),
	})
	return snapshot, nil
}

// PointerMove advances the ghost. Inside the dead zone the ghost stays
// pinned at the origin; past it the session engages and the ghost tracks
// pointer minus offset. At most one drag-move is published per frame
// interval, plus hover transitions through the registry.
func (e *Engine) PointerMove(ctx context.Context, pointer geometry.Point, now time.Time) (geometry.Point, error) {
	e.mu.Lock()
	s := e.session
	if s == nil {
		e.mu.Unlock()
		return geometry.Point{}, ErrNoActiveDrag
	}

	if !s.Engaged {
		travel := math.Hypot(pointer.X-s.DownPoint.X, pointer.Y-s.DownPoint.Y)
		if travel < e.deadZone {
			ghost := s.Ghost
			e.mu.Unlock()
			return ghost, nil
		}
		s.Engaged = true
	}

	s.Ghost = pointer.Sub(s.Offset)
	snap := *s
	emit := e.limiter == nil || e.limiter.AllowN(now, 1)
	e.mu.Unlock()

	e.registry.Track(ctx, &snap, pointer)
	if emit {
		e.publisher.PublishDragMove(ctx, snap.ElementId, snap.Ghost)
	}
	return snap.Ghost, nil
}

// PointerUp ends the session. An engaged session is hit-tested against the
// registry; the topmost accepting target receives the drop. A rejected or
// un-engaged session reverts silently: the element position is untouched and
// only a log line records it. Either way the session slot is cleared.
func (e *Engine) PointerUp(ctx context.Context, pointer geometry.Point, now time.Time) (Resolution, error) {
	e.mu.Lock()
	s := e.session
	if s == nil {
		e.mu.Unlock()
		return Resolution{}, ErrNoActiveDrag
	}
	e.session = nil

	if s.Engaged {
		s.Ghost = pointer.Sub(s.Offset)
	}
	s.Phase = PhaseDropped
	e.mu.Unlock()

	if s.Engaged {
		// Final position always goes out, bypassing the frame gate.
		e.publisher.PublishDragMove(ctx, s.ElementId, s.Ghost)
	}

	res := Resolution{Session: *s}
	if s.Engaged {
		if targetId, relative, ok := e.registry.ResolveDrop(ctx, s, pointer); ok {
			res.Dropped = true
			res.TargetId = targetId
			res.Relative = relative
		} else {
			e.logger.Debug("DRAG", "Drop rejected, reverting", map[string]interface{}{
				"element_id": s.ElementId.String(),
			})
		}
	}

	e.registry.Reset(ctx, s)
	e.publisher.PublishDragEnd(ctx, s.ElementId, res.Dropped, res.TargetId)
	return res, nil
}

// Cancel tears the session down without a drop.
func (e *Engine) Cancel(ctx context.Context) (Session, error) {
	e.mu.Lock()
	s := e.session
	if s == nil {
		e.mu.Unlock()
		return Session{}, ErrNoActiveDrag
	}
	e.session = nil
	s.Phase = PhaseCancelled
	e.mu.Unlock()

	e.registry.Reset(ctx, s)
	e.publisher.PublishDragCancel(ctx, s.ElementId)
	e.logger.Debug("DRAG", "Session cancelled", map[string]interface{}{
		"element_id": s.ElementId.String(),
	})
	return *s, nil
}

// Release cancels the session only when it still bears the given token.
// Teardown paths that captured a session earlier use this so they can never
// kill a newer session that reused the slot.
func (e *Engine) Release(ctx context.Context, token uuid.UUID) bool {
	e.mu.Lock()
	s := e.session
	if s == nil || s.Token != token {
		e.mu.Unlock()
		return false
	}
	e.session = nil
	s.Phase = PhaseCancelled
	e.mu.Unlock()

	e.registry.Reset(ctx, s)
	e.publisher.PublishDragCancel(ctx, s.ElementId)
	return true
}
