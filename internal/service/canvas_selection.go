package service

import (
	"context"

	"spatial-canvas-core/pkg/geometry"
	"spatial-canvas-core/pkg/selection"

	"github.com/google/uuid"
)

func (s *canvasService) SelectedIds() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID{}, s.selection...)
}

// SetSelection replaces the selection. Ids that do not resolve to a live
// element are dropped; duplicates collapse to the first occurrence.
func (s *canvasService) SetSelection(ids []uuid.UUID) {
	s.mu.Lock()
	seen := make(map[uuid.UUID]struct{}, len(ids))
	next := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		if _, ok := s.arena.Element(id); !ok {
			continue
		}
		seen[id] = struct{}{}
		next = append(next, id)
	}
	s.selection = next
	s.mu.Unlock()
	s.committer.Schedule()
}

func (s *canvasService) ClearSelection() {
	s.mu.Lock()
	s.selection = []uuid.UUID{}
	s.mu.Unlock()
	s.committer.Schedule()
}

// MoveSelection shifts every unlocked selected element by delta. Locked or
// vanished members are skipped, not treated as errors: a keyboard nudge on a
// mixed selection should move what it can.
func (s *canvasService) MoveSelection(ctx context.Context, delta geometry.Point, opts MoveOptions) error {
	type moved struct {
		id       uuid.UUID
		from, to geometry.Point
	}

	s.mu.Lock()
	var applied []moved
	for _, id := range s.selection {
		el, ok := s.arena.Element(id)
		if !ok {
			continue
		}
		if el.Locked {
			s.logger.Debug("STORE", "Selection move skipped a locked element", map[string]interface{}{
				"element_id": id.String(),
			})
			continue
		}
		from := el.Position
		to := from.Add(delta)
		if opts.Snap {
			to = geometry.Snap(to, s.cfg.Canvas.GridSize)
		}
		el.Position = to
		s.touchLocked(el)
		s.groupReactLocked(s.arena.parents[id])
		applied = append(applied, moved{id: id, from: from, to: to})
	}
	s.mu.Unlock()

	if len(applied) == 0 {
		return nil
	}
	s.committer.Schedule()
	for _, m := range applied {
		s.publisher.PublishElementMoved(ctx, m.id, m.from, m.to)
	}
	return nil
}

// BeginMarquee starts a rectangle selection at a screen point. The store
// routes only empty-canvas pointer-downs here; pointer-downs on an element
// go to the drag engine instead.
func (s *canvasService) BeginMarquee(screen geometry.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marquee.Begin(screen, s.viewport)
}

func (s *canvasService) UpdateMarquee(screen geometry.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marquee.Update(screen)
}

// SetMarqueeMode switches the qualification mode mid-drag, for modifier keys.
func (s *canvasService) SetMarqueeMode(mode selection.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marquee.SetMode(mode)
}

// MarqueeRect returns the live marquee rectangle in world space while a
// rectangle selection is underway.
func (s *canvasService) MarqueeRect() (geometry.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.marquee.Active() {
		return geometry.Rect{}, false
	}
	return s.marquee.Rect(), true
}

// FinishMarquee resolves the rectangle against the working set and applies
// the result: additive unions with the current selection, otherwise it
// replaces it.
func (s *canvasService) FinishMarquee(additive bool) []uuid.UUID {
	s.mu.Lock()
	ws := s.workingSetLocked()
	s.selection = s.marquee.Finish(ws, additive, s.selection)
	out := append([]uuid.UUID{}, s.selection...)
	s.mu.Unlock()

	s.committer.Schedule()
	s.logger.Debug("SELECTION", "Marquee finished", map[string]interface{}{
		"selected": len(out),
		"additive": additive,
	})
	return out
}

func (s *canvasService) AbortMarquee() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marquee.Abort()
}

// CreateGroup wraps the given elements into a new group and selects it.
func (s *canvasService) CreateGroup(ctx context.Context, ids []uuid.UUID, title string) (uuid.UUID, error) {
	s.mu.Lock()
	groupId, err := s.groups.CreateGroup(s.arena, ids, title)
	if err != nil {
		s.mu.Unlock()
		return uuid.Nil, err
	}
	s.selection = []uuid.UUID{groupId}
	parent := s.arena.parents[groupId]
	s.mu.Unlock()

	s.committer.Schedule()
	s.publisher.PublishHierarchyChanged(ctx, s.projectId, parent, "group-created")
	return groupId, nil
}

// Ungroup dissolves a group, restores its members to absolute coordinates
// and selects them.
func (s *canvasService) Ungroup(ctx context.Context, groupId uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	level, _ := s.arena.Parent(groupId)
	members, err := s.groups.Ungroup(s.arena, groupId)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.cleanupRemovedLocked([]uuid.UUID{groupId})
	s.selection = append([]uuid.UUID{}, members...)
	s.mu.Unlock()

	s.committer.Schedule()
	s.publisher.PublishHierarchyChanged(ctx, s.projectId, level, "ungrouped")
	return members, nil
}
