package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"spatial-canvas-core/internal/config"
	"spatial-canvas-core/internal/dto"
	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/internal/repository/contract"
	"spatial-canvas-core/pkg/dragdrop"
	"spatial-canvas-core/pkg/events"
	"spatial-canvas-core/pkg/geometry"
	"spatial-canvas-core/pkg/grouping"
	"spatial-canvas-core/pkg/navigation"
	"spatial-canvas-core/pkg/selection"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// GroupRemovalPolicy says what happens to a group's members when the group
// itself is removed. There is no default: callers must choose.
type GroupRemovalPolicy string

const (
	// GroupRemovalReleaseChildren ungroups first, then removes the empty shell.
	GroupRemovalReleaseChildren GroupRemovalPolicy = "release-children"
	// GroupRemovalDeleteChildren removes the group together with its subtree.
	GroupRemovalDeleteChildren GroupRemovalPolicy = "delete-children"
)

// MoveOptions tunes a positional move.
type MoveOptions struct {
	Snap bool // round the resulting position to the configured grid
}

type ICanvasService interface {
	// Lifecycle
	Load(ctx context.Context) error
	Commit(ctx context.Context) error
	Close(ctx context.Context) error
	Dirty() bool
	ProjectId() uuid.UUID

	// Elements
	AddElement(ctx context.Context, elementType entity.ElementType, position geometry.Point, data map[string]interface{}) (uuid.UUID, error)
	UpdateElement(ctx context.Context, id uuid.UUID, req *dto.UpdateElementRequest) error
	RemoveElement(ctx context.Context, id uuid.UUID) error
	RemoveGroup(ctx context.Context, id uuid.UUID, policy GroupRemovalPolicy) error
	MoveElement(ctx context.Context, id uuid.UUID, delta geometry.Point, opts MoveOptions) error
	MoveElementToBoard(ctx context.Context, id uuid.UUID, targetBoardId uuid.UUID, relative geometry.Point) error
	ResizeElement(ctx context.Context, id uuid.UUID, size geometry.Size) error
	DuplicateElement(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	BringToFront(ctx context.Context, id uuid.UUID) error
	SendToBack(ctx context.Context, id uuid.UUID) error
	Element(id uuid.UUID) (*entity.Element, bool)
	ElementAt(world geometry.Point) (*entity.Element, bool)
	WorkingSet() []*entity.Element
	BoardDropTarget(boardId uuid.UUID) (dragdrop.DropTarget, error)

	// Navigation
	NavigateToBoard(ctx context.Context, boardId uuid.UUID) error
	ExitToParent(ctx context.Context) error
	NavigateToRoot(ctx context.Context) error
	Breadcrumbs() []navigation.Crumb
	CurrentBoardId() uuid.UUID
	Viewport() entity.Viewport
	SetViewport(vp entity.Viewport)
	PanBy(dx, dy float64)
	ZoomTo(zoom float64)

	// Selection
	SelectedIds() []uuid.UUID
	SetSelection(ids []uuid.UUID)
	ClearSelection()
	MoveSelection(ctx context.Context, delta geometry.Point, opts MoveOptions) error
	BeginMarquee(screen geometry.Point)
	UpdateMarquee(screen geometry.Point)
	SetMarqueeMode(mode selection.Mode)
	MarqueeRect() (geometry.Rect, bool)
	FinishMarquee(additive bool) []uuid.UUID
	AbortMarquee()

	// Grouping
	CreateGroup(ctx context.Context, ids []uuid.UUID, title string) (uuid.UUID, error)
	Ungroup(ctx context.Context, groupId uuid.UUID) ([]uuid.UUID, error)
}

// canvasService is the hierarchical element store for one project: the live
// arena, the board navigation path, viewport and selection state, and the
// debounced persistence pipeline behind all of it.
//
// A single mutex serializes every mutation. The interactive side is a
// single-threaded event loop, but the commit timer and close path run on
// their own goroutines, so the lock is not optional.
type canvasService struct {
	mu        sync.Mutex
	projectId uuid.UUID
	repo      contract.DocumentRepository

	arena     *arena
	path      []uuid.UUID // board ancestry of the current level, root-first; empty = root
	viewport  entity.Viewport
	viewports *cache.Cache // level id -> entity.Viewport for levels left behind
	selection []uuid.UUID

	resolver *navigation.Resolver
	marquee  *selection.Marquee
	groups   *grouping.Manager

	committer *committer
	publisher events.CanvasPublisher
	logger    logger.ILogger
	cfg       *config.Config
}

func NewCanvasService(
	projectId uuid.UUID,
	repo contract.DocumentRepository,
	publisher events.CanvasPublisher,
	cfg *config.Config,
	log logger.ILogger,
) ICanvasService {
	if log == nil {
		log = logger.NopLogger{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &canvasService{
		projectId: projectId,
		repo:      repo,
		arena:     newArena(),
		viewport:  entity.DefaultViewport(),
		viewports: cache.New(1*time.Hour, 10*time.Minute),
		selection: []uuid.UUID{},
		resolver:  navigation.NewResolver(navigation.DefaultRootTitle, log),
		marquee:   selection.NewMarquee(log),
		groups:    grouping.NewManager(cfg.Canvas.GroupPadding, cfg.Canvas.GroupTitleBand, log),
		publisher: publisher,
		logger:    log,
		cfg:       cfg,
	}
	s.committer = newCommitter(cfg.Canvas.CommitDebounce, s.persist, log)
	return s
}

func (s *canvasService) ProjectId() uuid.UUID {
	return s.projectId
}

// Load pulls the persisted document and rebuilds the live state from it. A
// missing document starts empty; a malformed one is logged and reset rather
// than crashing the session. The reset is memory-only: the stored blob stays
// untouched until the next real edit overwrites it.
func (s *canvasService) Load(ctx context.Context) error {
	doc, err := s.repo.Load(ctx, s.projectId)
	if err != nil {
		if !errors.Is(err, entity.ErrMalformedDocument) {
			return err
		}
		s.logger.Error("STORE", "Persisted document is malformed, resetting to an empty canvas", map[string]interface{}{
			"project_id": s.projectId.String(),
			"error":      err.Error(),
		})
		doc = nil
	}
	if doc == nil {
		doc = entity.EmptyDocument(s.projectId)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(doc)
	s.logger.Info("STORE", "Canvas loaded", map[string]interface{}{
		"project_id": s.projectId.String(),
		"elements":   s.arena.Len(),
		"level":      s.currentLevelLocked().String(),
	})
	return nil
}

// Commit forces a write now instead of waiting for the debounce window.
func (s *canvasService) Commit(ctx context.Context) error {
	return s.committer.Flush(ctx)
}

// Close flushes one final time and stops the commit timer.
func (s *canvasService) Close(ctx context.Context) error {
	err := s.committer.Close(ctx)
	s.logger.Info("STORE", "Canvas closed", map[string]interface{}{
		"project_id": s.projectId.String(),
	})
	return err
}

func (s *canvasService) Dirty() bool {
	return s.committer.Dirty()
}

// persist is the committer's write function: snapshot the live state under
// the lock, then hand it to the repository with the lock released.
func (s *canvasService) persist(ctx context.Context) error {
	s.mu.Lock()
	doc := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.repo.Save(ctx, doc); err != nil {
		s.logger.Error("PERSIST", "Document write failed", map[string]interface{}{
			"project_id": s.projectId.String(),
			"error":      err.Error(),
		})
		return err
	}
	s.logger.Debug("PERSIST", "Document committed", map[string]interface{}{
		"project_id": s.projectId.String(),
		"elements":   doc.ElementCount(),
	})
	return nil
}

// snapshotLocked encodes the arena back into the recursive document shape.
// It always walks the live indexes, so a snapshot can never carry a stale
// navigation path or element tree.
func (s *canvasService) snapshotLocked() *entity.ProjectDocument {
	return &entity.ProjectDocument{
		ProjectId:      s.projectId,
		Elements:       s.encodeLevelLocked(uuid.Nil),
		Viewport:       s.viewport,
		SelectedIds:    append([]uuid.UUID{}, s.selection...),
		CurrentBoardId: s.currentLevelLocked(),
		BoardHistory:   append([]uuid.UUID{}, s.path...),
		BoardViewports: s.dumpViewportsLocked(),
		UpdatedAt:      time.Now(),
	}
}

func (s *canvasService) encodeLevelLocked(containerId uuid.UUID) []*entity.DocumentElement {
	ids := s.arena.children[containerId]
	out := make([]*entity.DocumentElement, 0, len(ids))
	for _, id := range ids {
		el, ok := s.arena.Element(id)
		if !ok {
			continue
		}
		// Clone so the snapshot's payload maps stay detached from live nodes.
		node := entity.FromElement(el.Clone())
		node.Children = s.encodeLevelLocked(id)
		out = append(out, node)
	}
	return out
}

func (s *canvasService) dumpViewportsLocked() map[string]entity.Viewport {
	out := make(map[string]entity.Viewport)
	for key, item := range s.viewports.Items() {
		if vp, ok := item.Object.(entity.Viewport); ok {
			out[key] = vp
		}
	}
	// The current level's viewport lives on the service, not in the cache.
	out[s.currentLevelLocked().String()] = s.viewport
	return out
}

// restoreLocked replaces the live state with the decoded document. The
// repository already validated the tree; a structural rejection here still
// falls back to an empty canvas instead of leaving the store half-built.
func (s *canvasService) restoreLocked(doc *entity.ProjectDocument) {
	next := newArena()
	if err := attachLevel(next, uuid.Nil, doc.Elements); err != nil {
		s.logger.Error("STORE", "Document hierarchy rejected, resetting to an empty canvas", map[string]interface{}{
			"project_id": s.projectId.String(),
			"error":      err.Error(),
		})
		next = newArena()
		doc = entity.EmptyDocument(s.projectId)
	}
	s.arena = next

	s.path = nil
	if doc.CurrentBoardId != uuid.Nil {
		if el, ok := next.Element(doc.CurrentBoardId); ok && el.Type == entity.ElementTypeBoard {
			s.path = append(next.ancestors(doc.CurrentBoardId), doc.CurrentBoardId)
		} else {
			s.logger.Warn("NAV", "Persisted board level is gone, falling back to root", map[string]interface{}{
				"board_id": doc.CurrentBoardId.String(),
			})
		}
	}
	if len(doc.BoardHistory) != len(s.path) {
		s.logger.Warn("NAV", "Persisted board history disagrees with the hierarchy", map[string]interface{}{
			"stored_depth": len(doc.BoardHistory),
			"actual_depth": len(s.path),
		})
	}

	s.viewport = doc.Viewport.Clamp(s.cfg.Canvas.MinZoom, s.cfg.Canvas.MaxZoom)
	s.viewports.Flush()
	for key, vp := range doc.BoardViewports {
		s.viewports.Set(key, vp.Clamp(s.cfg.Canvas.MinZoom, s.cfg.Canvas.MaxZoom), cache.DefaultExpiration)
	}

	s.selection = s.selection[:0]
	dropped := 0
	for _, id := range doc.SelectedIds {
		if _, ok := next.Element(id); ok {
			s.selection = append(s.selection, id)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Warn("SELECTION", "Dropped unknown ids from the persisted selection", map[string]interface{}{
			"dropped": dropped,
		})
	}

	for id, el := range next.elements {
		if el.Type == entity.ElementTypeBoard {
			s.resolver.Remember(id, el.DisplayTitle())
		}
	}
}

func attachLevel(a *arena, containerId uuid.UUID, nodes []*entity.DocumentElement) error {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if err := a.Attach(node.ToElement(), containerId); err != nil {
			return err
		}
		if err := attachLevel(a, node.Id, node.Children); err != nil {
			return err
		}
	}
	return nil
}

// currentLevelLocked returns the container id of the working set, uuid.Nil
// at the root.
func (s *canvasService) currentLevelLocked() uuid.UUID {
	if len(s.path) == 0 {
		return uuid.Nil
	}
	return s.path[len(s.path)-1]
}

func (s *canvasService) touchLocked(el *entity.Element) {
	now := time.Now()
	el.UpdatedAt = &now
}

// groupReactLocked lets an auto-resizing group follow its members after a
// geometry change on one of them.
func (s *canvasService) groupReactLocked(containerId uuid.UUID) {
	if containerId == uuid.Nil {
		return
	}
	el, ok := s.arena.Element(containerId)
	if !ok || el.Type != entity.ElementTypeGroup {
		return
	}
	if err := s.groups.AutoResize(s.arena, containerId); err != nil {
		s.logger.Warn("GROUP", "Auto-resize failed", map[string]interface{}{
			"group_id": containerId.String(),
			"error":    err.Error(),
		})
	}
}
