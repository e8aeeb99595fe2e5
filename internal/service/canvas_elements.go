package service

import (
	"context"
	"fmt"
	"sort"

	"spatial-canvas-core/internal/dto"
	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/pkg/dragdrop"
	"spatial-canvas-core/pkg/geometry"

	"github.com/google/uuid"
)

// AddElement creates an element of the given type on the current level,
// stacked above everything already there.
func (s *canvasService) AddElement(ctx context.Context, elementType entity.ElementType, position geometry.Point, data map[string]interface{}) (uuid.UUID, error) {
	if !elementType.Valid() {
		return uuid.Nil, fmt.Errorf("unknown element type %q", elementType)
	}

	s.mu.Lock()
	level := s.currentLevelLocked()
	el := entity.NewElement(elementType, position, data)
	el.ZIndex = s.arena.maxZIndex(level) + 1
	if err := s.arena.Attach(el, level); err != nil {
		s.mu.Unlock()
		return uuid.Nil, err
	}
	if el.Type == entity.ElementTypeBoard {
		s.resolver.Remember(el.Id, el.DisplayTitle())
	}
	s.groupReactLocked(level)
	s.mu.Unlock()

	s.committer.Schedule()
	s.logger.Info("STORE", "Element added", map[string]interface{}{
		"element_id": el.Id.String(),
		"type":       string(el.Type),
		"level":      level.String(),
	})
	s.publisher.PublishHierarchyChanged(ctx, s.projectId, level, "add-element")
	return el.Id, nil
}

// UpdateElement applies a partial edit. A locked element only accepts the
// request if it unlocks it; everything else bounces with ErrElementLocked.
func (s *canvasService) UpdateElement(ctx context.Context, id uuid.UUID, req *dto.UpdateElementRequest) error {
	if req.Empty() {
		return nil
	}

	s.mu.Lock()
	el, ok := s.arena.Element(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	staysLocked := el.Locked && (req.Locked == nil || *req.Locked)
	if staysLocked {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementLocked, id)
	}

	geometryChanged := false
	if req.Locked != nil {
		el.Locked = *req.Locked
	}
	if req.Title != nil {
		el.Title = *req.Title
		if el.Type == entity.ElementTypeBoard {
			s.resolver.Remember(el.Id, el.DisplayTitle())
		}
	}
	if req.Position != nil {
		el.Position = *req.Position
		geometryChanged = true
	}
	if req.Size != nil {
		el.Size = clampSize(*req.Size)
		geometryChanged = true
	}
	if req.Rotation != nil {
		el.Rotation = *req.Rotation
	}
	if req.ZIndex != nil {
		el.ZIndex = *req.ZIndex
	}
	if req.Visible != nil {
		el.Visible = *req.Visible
	}
	if req.Data != nil {
		el.Data = req.Data
	}
	s.touchLocked(el)
	if geometryChanged {
		s.groupReactLocked(s.arena.parents[id])
	}
	s.mu.Unlock()

	s.committer.Schedule()
	return nil
}

// RemoveElement deletes an element and, for containers, everything nested
// under it. A group that still has members refuses: callers must state a
// removal policy through RemoveGroup instead.
func (s *canvasService) RemoveElement(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	el, ok := s.arena.Element(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	if el.Type == entity.ElementTypeGroup && len(s.arena.children[id]) > 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrGroupNotEmpty, id)
	}
	parent := s.arena.parents[id]
	removed := s.arena.removeSubtree(id)
	s.cleanupRemovedLocked(removed)
	s.groupReactLocked(parent)
	s.mu.Unlock()

	s.committer.Schedule()
	s.logger.Info("STORE", "Element removed", map[string]interface{}{
		"element_id": id.String(),
		"subtree":    len(removed),
	})
	s.publisher.PublishHierarchyChanged(ctx, s.projectId, parent, "remove-element")
	return nil
}

// RemoveGroup deletes a group under an explicit member policy.
func (s *canvasService) RemoveGroup(ctx context.Context, id uuid.UUID, policy GroupRemovalPolicy) error {
	s.mu.Lock()
	el, ok := s.arena.Element(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	if el.Type != entity.ElementTypeGroup {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is a %s", entity.ErrNotAGroup, id, el.Type)
	}
	parent := s.arena.parents[id]

	switch policy {
	case GroupRemovalReleaseChildren:
		if _, err := s.groups.Ungroup(s.arena, id); err != nil {
			s.mu.Unlock()
			return err
		}
		s.cleanupRemovedLocked([]uuid.UUID{id})
	case GroupRemovalDeleteChildren:
		removed := s.arena.removeSubtree(id)
		s.cleanupRemovedLocked(removed)
	default:
		s.mu.Unlock()
		return fmt.Errorf("unknown group removal policy %q", policy)
	}
	s.groupReactLocked(parent)
	s.mu.Unlock()

	s.committer.Schedule()
	s.logger.Info("GROUP", "Group removed", map[string]interface{}{
		"group_id": id.String(),
		"policy":   string(policy),
	})
	s.publisher.PublishHierarchyChanged(ctx, s.projectId, parent, "remove-group")
	return nil
}

// cleanupRemovedLocked scrubs selection, cached viewports and the navigation
// path after elements vanish from the arena.
func (s *canvasService) cleanupRemovedLocked(removed []uuid.UUID) {
	if len(removed) == 0 {
		return
	}
	gone := make(map[uuid.UUID]struct{}, len(removed))
	for _, id := range removed {
		gone[id] = struct{}{}
		s.viewports.Delete(id.String())
	}

	kept := s.selection[:0]
	for _, id := range s.selection {
		if _, dead := gone[id]; !dead {
			kept = append(kept, id)
		}
	}
	s.selection = kept

	for i, levelId := range s.path {
		if _, dead := gone[levelId]; dead {
			s.path = s.path[:i]
			s.viewport = s.cachedViewportLocked(s.currentLevelLocked())
			s.logger.Warn("NAV", "Current board level was removed, exited to the nearest surviving board", map[string]interface{}{
				"removed_board": levelId.String(),
				"new_depth":     len(s.path),
			})
			break
		}
	}
}

// MoveElement shifts an element by delta, optionally snapping the result to
// the grid. Locked elements refuse.
func (s *canvasService) MoveElement(ctx context.Context, id uuid.UUID, delta geometry.Point, opts MoveOptions) error {
	s.mu.Lock()
	el, ok := s.arena.Element(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	if el.Locked {
		s.mu.Unlock()
		s.logger.Debug("STORE", "Move refused, element is locked", map[string]interface{}{
			"element_id": id.String(),
		})
		return fmt.Errorf("%w: %s", entity.ErrElementLocked, id)
	}
	from := el.Position
	to := from.Add(delta)
	if opts.Snap {
		to = geometry.Snap(to, s.cfg.Canvas.GridSize)
	}
	el.Position = to
	s.touchLocked(el)
	s.groupReactLocked(s.arena.parents[id])
	s.mu.Unlock()

	s.committer.Schedule()
	s.publisher.PublishElementMoved(ctx, id, from, to)
	return nil
}

// MoveElementToBoard reparents an element into the target container at the
// given position relative to the target's origin. uuid.Nil targets the root
// level. Moving a container into its own subtree is refused.
func (s *canvasService) MoveElementToBoard(ctx context.Context, id uuid.UUID, targetBoardId uuid.UUID, relative geometry.Point) error {
	s.mu.Lock()
	el, ok := s.arena.Element(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	if el.Locked {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementLocked, id)
	}
	from := s.arena.parents[id]
	z := s.arena.maxZIndex(targetBoardId) + 1
	if err := s.arena.Reparent(id, targetBoardId); err != nil {
		s.mu.Unlock()
		s.logger.Warn("STORE", "Board move refused", map[string]interface{}{
			"element_id": id.String(),
			"target":     targetBoardId.String(),
			"error":      err.Error(),
		})
		return err
	}
	el.Position = relative
	el.ZIndex = z
	s.touchLocked(el)
	s.groupReactLocked(from)
	s.groupReactLocked(targetBoardId)

	// An element that just left the visible level has no business staying
	// selected.
	current := s.currentLevelLocked()
	if from == current && targetBoardId != current {
		s.dropFromSelectionLocked(id)
	}
	s.mu.Unlock()

	s.committer.Schedule()
	s.logger.Info("STORE", "Element moved to board", map[string]interface{}{
		"element_id": id.String(),
		"from":       from.String(),
		"to":         targetBoardId.String(),
	})
	s.publisher.PublishElementMovedToBoard(ctx, id, from, targetBoardId, relative)
	s.publisher.PublishHierarchyChanged(ctx, s.projectId, targetBoardId, "move-to-board")
	return nil
}

// ResizeElement sets the element size, clamped to at least 1x1.
func (s *canvasService) ResizeElement(ctx context.Context, id uuid.UUID, size geometry.Size) error {
	s.mu.Lock()
	el, ok := s.arena.Element(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	if el.Locked {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementLocked, id)
	}
	el.Size = clampSize(size)
	s.touchLocked(el)
	s.groupReactLocked(s.arena.parents[id])
	s.mu.Unlock()

	s.committer.Schedule()
	return nil
}

// DuplicateElement deep-copies an element (and its subtree) with fresh ids,
// offset by one grid cell, and selects the copy.
func (s *canvasService) DuplicateElement(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	src, ok := s.arena.Element(id)
	if !ok {
		s.mu.Unlock()
		return uuid.Nil, fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	parent := s.arena.parents[id]
	copyId, err := s.duplicateSubtreeLocked(id, parent)
	if err != nil {
		s.mu.Unlock()
		return uuid.Nil, err
	}
	cp, _ := s.arena.Element(copyId)
	grid := s.cfg.Canvas.GridSize
	cp.Position = src.Position.Add(geometry.Point{X: grid, Y: grid})
	cp.ZIndex = s.arena.maxZIndex(parent) + 1
	s.selection = []uuid.UUID{copyId}
	s.groupReactLocked(parent)
	s.mu.Unlock()

	s.committer.Schedule()
	s.logger.Info("STORE", "Element duplicated", map[string]interface{}{
		"source_id": id.String(),
		"copy_id":   copyId.String(),
	})
	s.publisher.PublishHierarchyChanged(ctx, s.projectId, parent, "duplicate")
	return copyId, nil
}

func (s *canvasService) duplicateSubtreeLocked(srcId, containerId uuid.UUID) (uuid.UUID, error) {
	src, ok := s.arena.Element(srcId)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", entity.ErrElementNotFound, srcId)
	}
	cp := src.Clone()
	cp.Id = uuid.New()
	cp.UpdatedAt = nil
	if err := s.arena.Attach(cp, containerId); err != nil {
		return uuid.Nil, err
	}
	if cp.Type == entity.ElementTypeBoard {
		s.resolver.Remember(cp.Id, cp.DisplayTitle())
	}
	for _, childId := range s.arena.ChildIds(srcId) {
		if _, err := s.duplicateSubtreeLocked(childId, cp.Id); err != nil {
			return uuid.Nil, err
		}
	}
	return cp.Id, nil
}

// BringToFront stacks the element above everything on its level.
func (s *canvasService) BringToFront(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	el, ok := s.arena.Element(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	el.ZIndex = s.arena.maxZIndex(s.arena.parents[id]) + 1
	s.touchLocked(el)
	s.mu.Unlock()

	s.committer.Schedule()
	return nil
}

// SendToBack stacks the element below everything on its level.
func (s *canvasService) SendToBack(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	el, ok := s.arena.Element(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	el.ZIndex = s.arena.minZIndex(s.arena.parents[id]) - 1
	s.touchLocked(el)
	s.mu.Unlock()

	s.committer.Schedule()
	return nil
}

// Element returns a detached copy of the element.
func (s *canvasService) Element(id uuid.UUID) (*entity.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.arena.Element(id)
	if !ok {
		return nil, false
	}
	return el.Clone(), true
}

// ElementAt returns the topmost visible element of the working set under the
// given world point.
func (s *canvasService) ElementAt(world geometry.Point) (*entity.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workingSetLocked()
	for i := len(ws) - 1; i >= 0; i-- {
		el := ws[i]
		if !el.Visible {
			continue
		}
		if el.Bounds().Contains(world) {
			return el.Clone(), true
		}
	}
	return nil, false
}

// WorkingSet returns detached copies of the current level's elements in
// paint order, bottom first.
func (s *canvasService) WorkingSet() []*entity.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workingSetLocked()
	out := make([]*entity.Element, len(ws))
	for i, el := range ws {
		out[i] = el.Clone()
	}
	return out
}

// workingSetLocked returns the live nodes of the current level sorted by
// stacking order; ties keep insertion order.
func (s *canvasService) workingSetLocked() []*entity.Element {
	ids := s.arena.children[s.currentLevelLocked()]
	out := make([]*entity.Element, 0, len(ids))
	for _, id := range ids {
		if el, ok := s.arena.Element(id); ok {
			out = append(out, el)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// BoardDropTarget builds the registry entry for an on-canvas board so the
// presentation can register it with the drag registry. The accept predicate
// carries the ancestry rules: a board never adopts itself or one of its own
// ancestors.
func (s *canvasService) BoardDropTarget(boardId uuid.UUID) (dragdrop.DropTarget, error) {
	s.mu.Lock()
	el, ok := s.arena.Element(boardId)
	if !ok {
		s.mu.Unlock()
		return dragdrop.DropTarget{}, fmt.Errorf("%w: %s", entity.ErrBoardNotFound, boardId)
	}
	if el.Type != entity.ElementTypeBoard {
		s.mu.Unlock()
		return dragdrop.DropTarget{}, fmt.Errorf("%w: %s is a %s", entity.ErrNotABoard, boardId, el.Type)
	}
	bounds := el.Bounds()
	stack := el.ZIndex
	s.mu.Unlock()

	return dragdrop.DropTarget{
		Id:         boardId.String(),
		Bounds:     bounds,
		StackOrder: stack,
		Accepts: func(sess *dragdrop.Session) bool {
			return s.canAdopt(sess.ElementId, boardId)
		},
		OnDrop: func(sess *dragdrop.Session, relative geometry.Point) {
			if err := s.MoveElementToBoard(context.Background(), sess.ElementId, boardId, relative); err != nil {
				s.logger.Warn("DROPZONE", "Board drop could not be applied", map[string]interface{}{
					"element_id": sess.ElementId.String(),
					"board_id":   boardId.String(),
					"error":      err.Error(),
				})
			}
		},
	}, nil
}

// canAdopt reports whether boardId may receive elementId without breaking
// the hierarchy.
func (s *canvasService) canAdopt(elementId, boardId uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elementId == boardId {
		return false
	}
	el, ok := s.arena.Element(elementId)
	if !ok || el.Locked {
		return false
	}
	if s.arena.isAncestor(elementId, boardId) {
		return false
	}
	return true
}

func (s *canvasService) dropFromSelectionLocked(id uuid.UUID) {
	for i, sid := range s.selection {
		if sid == id {
			s.selection = append(s.selection[:i], s.selection[i+1:]...)
			return
		}
	}
}

func clampSize(size geometry.Size) geometry.Size {
	if size.Width < 1 {
		size.Width = 1
	}
	if size.Height < 1 {
		size.Height = 1
	}
	return size
}
