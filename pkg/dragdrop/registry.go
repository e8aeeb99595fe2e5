package dragdrop

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/pkg/events"
	"spatial-canvas-core/pkg/geometry"
)

// DropTarget is one registered drop zone. Accepts is consulted once per
// hover entry and once at drop time; OnDrop receives the session and the
// drop position relative to the target bounds.
type DropTarget struct {
	Id         string
	Bounds     geometry.Rect
	StackOrder int
	Accepts    func(*Session) bool
	OnDrop     func(*Session, geometry.Point)
}

// Registry tracks drop targets and the hover state of the active session.
type Registry struct {
	mu      sync.Mutex
	targets map[string]*DropTarget

	// Hover state of the current session; cleared on session end.
	hoveredId string
	canDrop   bool

	publisher events.CanvasPublisher
	logger    logger.ILogger
}

func NewRegistry(publisher events.CanvasPublisher, log logger.ILogger) *Registry {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Registry{
		targets:   make(map[string]*DropTarget),
		publisher: publisher,
		logger:    log,
	}
}

// Register adds or replaces a drop target.
func (r *Registry) Register(target DropTarget) error {
	if target.Id == "" {
		return fmt.Errorf("drop target id is required")
	}
	if target.Accepts == nil {
		return fmt.Errorf("drop target %s has no accepts predicate", target.Id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t := target
	r.targets[target.Id] = &t
	return nil
}

// Unregister removes a target. Removing the currently hovered target clears
// the hover state without emitting a leave event; the zone is gone, there is
// nothing to un-highlight.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targets, id)
	if r.hoveredId == id {
		r.hoveredId = ""
		r.canDrop = false
	}
}

// UpdateBounds moves a registered target. Unknown ids are ignored.
func (r *Registry) UpdateBounds(id string, bounds geometry.Rect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.targets[id]; ok {
		t.Bounds = bounds
	}
}

// Hovered reports the target currently under the active session's pointer.
func (r *Registry) Hovered() (id string, canDrop bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hoveredId, r.canDrop, r.hoveredId != ""
}

// HitTest returns the targets containing point, topmost first.
func (r *Registry) HitTest(point geometry.Point) []DropTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hitsLocked(point)
}

func (r *Registry) hitsLocked(point geometry.Point) []DropTarget {
	var hits []DropTarget
	for _, t := range r.targets {
		if t.Bounds.Contains(point) {
			hits = append(hits, *t)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].StackOrder > hits[j].StackOrder
	})
	return hits
}

// Track re-evaluates hover state for the session at the given pointer
// position, emitting dropzone-enter/dropzone-leave on transitions. The
// topmost target under the pointer wins regardless of acceptance; canDrop
// carries the predicate verdict for visual feedback.
func (r *Registry) Track(ctx context.Context, s *Session, pointer geometry.Point) {
	if s == nil {
		return
	}

	r.mu.Lock()
	var top *DropTarget
	for _, t := range r.targets {
		if !t.Bounds.Contains(pointer) {
			continue
		}
		if top == nil || t.StackOrder > top.StackOrder {
			top = t
		}
	}

	prevId := r.hoveredId
	var enteredId string
	var enteredCanDrop bool

	switch {
	case top == nil && prevId == "":
		r.mu.Unlock()
		return
	case top != nil && top.Id == prevId:
		r.mu.Unlock()
		return
	case top == nil:
		r.hoveredId = ""
		r.canDrop = false
	default:
		r.hoveredId = top.Id
		r.canDrop = top.Accepts(s)
		enteredId = top.Id
		enteredCanDrop = r.canDrop
	}
	r.mu.Unlock()

	if prevId != "" {
		r.publisher.PublishDropZoneLeave(ctx, prevId, s.ElementId)
	}
	if enteredId != "" {
		r.publisher.PublishDropZoneEnter(ctx, enteredId, s.ElementId, enteredCanDrop)
	}
}

// ResolveDrop hit-tests the pointer against all targets and hands the session
// to the topmost one that accepts it. It returns the accepting target id and
// the drop position relative to its bounds, or ok=false when every candidate
// rejects.
func (r *Registry) ResolveDrop(ctx context.Context, s *Session, pointer geometry.Point) (targetId string, relative geometry.Point, ok bool) {
	if s == nil {
		return "", geometry.Point{}, false
	}

	r.mu.Lock()
	hits := r.hitsLocked(pointer)
	r.mu.Unlock()

	for i := range hits {
		t := hits[i]
		if !t.Accepts(s) {
			continue
		}
		relative = geometry.Point{X: pointer.X - t.Bounds.X, Y: pointer.Y - t.Bounds.Y}
		if t.OnDrop != nil {
			t.OnDrop(s, relative)
		}
		r.publisher.PublishDropZoneDrop(ctx, t.Id, s.ElementId, relative)
		return t.Id, relative, true
	}

	return "", geometry.Point{}, false
}

// Reset clears hover state at session end, emitting the pending leave event.
func (r *Registry) Reset(ctx context.Context, s *Session) {
	r.mu.Lock()
	prevId := r.hoveredId
	r.hoveredId = ""
	r.canDrop = false
	r.mu.Unlock()

	if prevId != "" && s != nil {
		r.publisher.PublishDropZoneLeave(ctx, prevId, s.ElementId)
	}
}
