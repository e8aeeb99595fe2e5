package service

import (
	"context"
	"fmt"

	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/pkg/navigation"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// NavigateToBoard makes the given board the current level. Pending changes
// are flushed before the swap so entering a board can never lose edits made
// on the level being left. The viewport of the old level is cached and the
// target's cached viewport (or the default) restored.
//
// An unknown or non-board id fails closed: the error is returned, and the
// store lands at the root rather than in a half-swapped state.
func (s *canvasService) NavigateToBoard(ctx context.Context, boardId uuid.UUID) error {
	if boardId == uuid.Nil {
		return s.NavigateToRoot(ctx)
	}
	s.flushBeforeSwap(ctx)

	s.mu.Lock()
	el, ok := s.arena.Element(boardId)
	if !ok {
		s.resetToRootLocked()
		s.mu.Unlock()
		s.logger.Warn("NAV", "Board does not exist, fell back to root", map[string]interface{}{
			"board_id": boardId.String(),
		})
		return fmt.Errorf("%w: %s", entity.ErrBoardNotFound, boardId)
	}
	if el.Type != entity.ElementTypeBoard {
		s.resetToRootLocked()
		s.mu.Unlock()
		s.logger.Warn("NAV", "Navigation target is not a board, fell back to root", map[string]interface{}{
			"board_id": boardId.String(),
			"type":     string(el.Type),
		})
		return fmt.Errorf("%w: %s is a %s", entity.ErrNotABoard, boardId, el.Type)
	}

	s.cacheViewportLocked()
	s.path = append(s.arena.ancestors(boardId), boardId)
	s.viewport = s.cachedViewportLocked(boardId)
	s.resolver.Remember(boardId, el.DisplayTitle())
	s.checkBreadcrumbsLocked()
	depth := len(s.path)
	s.mu.Unlock()

	s.committer.Schedule()
	s.logger.Info("NAV", "Entered board", map[string]interface{}{
		"board_id": boardId.String(),
		"depth":    depth,
	})
	return nil
}

// ExitToParent pops one level off the navigation path. At the root it is a
// no-op.
func (s *canvasService) ExitToParent(ctx context.Context) error {
	s.mu.Lock()
	atRoot := len(s.path) == 0
	s.mu.Unlock()
	if atRoot {
		return nil
	}

	s.flushBeforeSwap(ctx)

	s.mu.Lock()
	if len(s.path) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.cacheViewportLocked()
	s.path = s.path[:len(s.path)-1]
	s.viewport = s.cachedViewportLocked(s.currentLevelLocked())
	s.checkBreadcrumbsLocked()
	level := s.currentLevelLocked()
	s.mu.Unlock()

	s.committer.Schedule()
	s.logger.Info("NAV", "Exited to parent level", map[string]interface{}{
		"level": level.String(),
	})
	return nil
}

// NavigateToRoot jumps straight back to the top level.
func (s *canvasService) NavigateToRoot(ctx context.Context) error {
	s.flushBeforeSwap(ctx)

	s.mu.Lock()
	s.resetToRootLocked()
	s.mu.Unlock()

	s.committer.Schedule()
	s.logger.Info("NAV", "Returned to root", nil)
	return nil
}

// Breadcrumbs resolves the current path into display crumbs, root first.
func (s *canvasService) Breadcrumbs() []navigation.Crumb {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breadcrumbsLocked()
}

func (s *canvasService) breadcrumbsLocked() []navigation.Crumb {
	return s.resolver.Resolve(s.path, func(id uuid.UUID) (string, bool) {
		el, ok := s.arena.Element(id)
		if !ok {
			return "", false
		}
		return el.DisplayTitle(), true
	})
}

// checkBreadcrumbsLocked verifies the structural invariant that every path
// segment resolves to a crumb, plus the synthetic root crumb in front.
func (s *canvasService) checkBreadcrumbsLocked() {
	crumbs := s.breadcrumbsLocked()
	if len(crumbs) != len(s.path)+1 {
		s.logger.Warn("NAV", "Breadcrumb trail out of step with the navigation path", map[string]interface{}{
			"crumbs": len(crumbs),
			"depth":  len(s.path),
		})
	}
}

func (s *canvasService) CurrentBoardId() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLevelLocked()
}

func (s *canvasService) Viewport() entity.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

func (s *canvasService) SetViewport(vp entity.Viewport) {
	s.mu.Lock()
	s.viewport = vp.Clamp(s.cfg.Canvas.MinZoom, s.cfg.Canvas.MaxZoom)
	s.mu.Unlock()
	s.committer.Schedule()
}

func (s *canvasService) PanBy(dx, dy float64) {
	s.mu.Lock()
	s.viewport.X += dx
	s.viewport.Y += dy
	s.mu.Unlock()
	s.committer.Schedule()
}

func (s *canvasService) ZoomTo(zoom float64) {
	s.mu.Lock()
	s.viewport = entity.Viewport{X: s.viewport.X, Y: s.viewport.Y, Zoom: zoom}.Clamp(s.cfg.Canvas.MinZoom, s.cfg.Canvas.MaxZoom)
	s.mu.Unlock()
	s.committer.Schedule()
}

// flushBeforeSwap is the terminal boundary in front of every level swap. A
// failed write keeps the dirty flag, so the change still lands later; the
// navigation itself goes ahead.
func (s *canvasService) flushBeforeSwap(ctx context.Context) {
	if err := s.committer.Flush(ctx); err != nil {
		s.logger.Warn("PERSIST", "Flush before navigation failed, changes stay pending", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *canvasService) resetToRootLocked() {
	s.cacheViewportLocked()
	s.path = nil
	s.viewport = s.cachedViewportLocked(uuid.Nil)
}

// cacheViewportLocked remembers the current level's viewport before leaving.
func (s *canvasService) cacheViewportLocked() {
	s.viewports.Set(s.currentLevelLocked().String(), s.viewport, cache.DefaultExpiration)
}

// cachedViewportLocked restores a level's remembered viewport, or the
// default for a level never visited.
func (s *canvasService) cachedViewportLocked(levelId uuid.UUID) entity.Viewport {
	if x, found := s.viewports.Get(levelId.String()); found {
		if vp, ok := x.(entity.Viewport); ok {
			return vp.Clamp(s.cfg.Canvas.MinZoom, s.cfg.Canvas.MaxZoom)
		}
	}
	return entity.DefaultViewport()
}
