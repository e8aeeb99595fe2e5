package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"spatial-canvas-core/internal/config"
	"spatial-canvas-core/internal/dto"
	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/internal/repository/memory"
	"spatial-canvas-core/internal/repository/specification"
	"spatial-canvas-core/pkg/dragdrop"
	"spatial-canvas-core/pkg/events"
	"spatial-canvas-core/pkg/geometry"
	"spatial-canvas-core/pkg/selection"

	"github.com/google/uuid"
)

func testConfig() *config.Config {
	return &config.Config{
		Canvas: config.CanvasConfig{
			GridSize:       20,
			MinZoom:        0.1,
			MaxZoom:        4.0,
			FrameInterval:  16 * time.Millisecond,
			CommitDebounce: 40 * time.Millisecond,
			GroupPadding:   16,
			GroupTitleBand: 28,
			DragDeadZone:   4,
		},
	}
}

// eventRecorder counts the store-side events; the unimplemented methods fall
// through to the nop publisher.
type eventRecorder struct {
	events.NopPublisher
	mu           sync.Mutex
	moved        int
	movedToBoard int
	reasons      []string
}

func (r *eventRecorder) PublishElementMoved(ctx context.Context, elementId uuid.UUID, from, to geometry.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moved++
}

func (r *eventRecorder) PublishElementMovedToBoard(ctx context.Context, elementId, fromBoardId, toBoardId uuid.UUID, relative geometry.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movedToBoard++
}

func (r *eventRecorder) PublishHierarchyChanged(ctx context.Context, projectId, boardId uuid.UUID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *eventRecorder) hierarchyReasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.reasons...)
}

func newTestCanvas(t *testing.T) (ICanvasService, *memory.DocumentRepository) {
	t.Helper()
	repo := memory.NewDocumentRepository()
	svc := NewCanvasService(uuid.New(), repo, events.NopPublisher{}, testConfig(), logger.NopLogger{})
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(context.Background()); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return svc, repo
}

func addNote(t *testing.T, svc ICanvasService, x, y float64) uuid.UUID {
	t.Helper()
	id, err := svc.AddElement(context.Background(), entity.ElementTypeNote, geometry.Point{X: x, Y: y}, nil)
	if err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	return id
}

func addBoard(t *testing.T, svc ICanvasService, x, y float64) uuid.UUID {
	t.Helper()
	id, err := svc.AddElement(context.Background(), entity.ElementTypeBoard, geometry.Point{X: x, Y: y}, nil)
	if err != nil {
		t.Fatalf("AddElement board: %v", err)
	}
	return id
}

func TestAddElementAppearsInWorkingSet(t *testing.T) {
	svc, _ := newTestCanvas(t)

	id := addNote(t, svc, 100, 100)
	ws := svc.WorkingSet()
	if len(ws) != 1 {
		t.Fatalf("working set size = %d, want 1", len(ws))
	}
	if ws[0].Id != id {
		t.Errorf("working set element = %s, want %s", ws[0].Id, id)
	}
	if ws[0].Type != entity.ElementTypeNote {
		t.Errorf("type = %s, want note", ws[0].Type)
	}
	if ws[0].ZIndex != 1 {
		t.Errorf("zindex = %d, want 1", ws[0].ZIndex)
	}
	if !svc.Dirty() {
		t.Error("store should be dirty after an add")
	}
}

func TestAddElementRejectsUnknownType(t *testing.T) {
	svc, _ := newTestCanvas(t)

	if _, err := svc.AddElement(context.Background(), "window", geometry.Point{}, nil); err == nil {
		t.Fatal("expected an error for an unknown element type")
	}
}

func TestAddThenRemoveLeavesCleanSnapshot(t *testing.T) {
	svc, repo := newTestCanvas(t)

	id := addNote(t, svc, 10, 10)
	if err := svc.RemoveElement(context.Background(), id); err != nil {
		t.Fatalf("RemoveElement: %v", err)
	}
	if len(svc.WorkingSet()) != 0 {
		t.Fatal("working set should be empty after remove")
	}
	if err := svc.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	doc, err := repo.Load(context.Background(), svc.ProjectId())
	if err != nil {
		t.Fatalf("repo load: %v", err)
	}
	if doc == nil {
		t.Fatal("expected a persisted document")
	}
	if doc.ElementCount() != 0 {
		t.Errorf("persisted element count = %d, want 0", doc.ElementCount())
	}
	if len(doc.SelectedIds) != 0 {
		t.Errorf("persisted selection = %v, want empty", doc.SelectedIds)
	}
}

func TestRemoveElementDeletesSubtree(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	boardId := addBoard(t, svc, 0, 0)
	if err := svc.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("NavigateToBoard: %v", err)
	}
	inner := addNote(t, svc, 5, 5)
	if err := svc.NavigateToRoot(ctx); err != nil {
		t.Fatalf("NavigateToRoot: %v", err)
	}

	if err := svc.RemoveElement(ctx, boardId); err != nil {
		t.Fatalf("RemoveElement: %v", err)
	}
	if _, ok := svc.Element(boardId); ok {
		t.Error("board should be gone")
	}
	if _, ok := svc.Element(inner); ok {
		t.Error("nested element should be gone with its board")
	}
}

func TestRemoveCurrentBoardFallsBackToSurvivingLevel(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	boardId := addBoard(t, svc, 0, 0)
	if err := svc.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("NavigateToBoard: %v", err)
	}
	addNote(t, svc, 1, 1)

	if err := svc.RemoveElement(ctx, boardId); err != nil {
		t.Fatalf("RemoveElement: %v", err)
	}
	if got := svc.CurrentBoardId(); got != uuid.Nil {
		t.Errorf("current level = %s, want root", got)
	}
	if len(svc.WorkingSet()) != 0 {
		t.Error("root working set should be empty after the board vanished")
	}
}

func TestDebounceCollapsesBurstIntoOneWrite(t *testing.T) {
	svc, repo := newTestCanvas(t)
	ctx := context.Background()

	id := addNote(t, svc, 0, 0)
	for i := 0; i < 4; i++ {
		if err := svc.MoveElement(ctx, id, geometry.Point{X: 10, Y: 0}, MoveOptions{}); err != nil {
			t.Fatalf("MoveElement: %v", err)
		}
	}
	if got := repo.SaveCount(); got != 0 {
		t.Fatalf("write landed before the debounce window elapsed: %d", got)
	}

	time.Sleep(120 * time.Millisecond)

	if got := repo.SaveCount(); got != 1 {
		t.Fatalf("save count = %d, want exactly 1", got)
	}
	doc, err := repo.Load(ctx, svc.ProjectId())
	if err != nil {
		t.Fatalf("repo load: %v", err)
	}
	if doc.Elements[0].Position.X != 40 {
		t.Errorf("persisted x = %v, want 40 (final state, not an intermediate)", doc.Elements[0].Position.X)
	}
	if svc.Dirty() {
		t.Error("store should be clean after the scheduled commit")
	}
}

func TestCleanFlushWritesNothing(t *testing.T) {
	svc, repo := newTestCanvas(t)

	if err := svc.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := repo.SaveCount(); got != 0 {
		t.Errorf("save count = %d, want 0 for a clean store", got)
	}
}

func TestFailedCommitKeepsChangesPending(t *testing.T) {
	svc, repo := newTestCanvas(t)
	ctx := context.Background()

	addNote(t, svc, 0, 0)
	repo.FailNextSave(errors.New("connection reset"))

	if err := svc.Commit(ctx); err == nil {
		t.Fatal("expected the forced commit to surface the write error")
	}
	if !svc.Dirty() {
		t.Fatal("failed write must leave the store dirty")
	}
	if err := svc.Commit(ctx); err != nil {
		t.Fatalf("retry commit: %v", err)
	}
	if svc.Dirty() {
		t.Error("store should be clean after the retry landed")
	}
	if got := repo.SaveCount(); got != 1 {
		t.Errorf("save count = %d, want 1", got)
	}
}

func TestDragScenarioPersistsFinalPosition(t *testing.T) {
	svc, repo := newTestCanvas(t)
	ctx := context.Background()

	id, err := svc.AddElement(ctx, entity.ElementTypeNote, geometry.Point{X: 100, Y: 100}, nil)
	if err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	if err := svc.MoveElement(ctx, id, geometry.Point{X: 50, Y: 20}, MoveOptions{}); err != nil {
		t.Fatalf("MoveElement: %v", err)
	}

	el, ok := svc.Element(id)
	if !ok {
		t.Fatal("element vanished")
	}
	if el.Position.X != 150 || el.Position.Y != 120 {
		t.Fatalf("position = %+v, want {150 120}", el.Position)
	}

	time.Sleep(120 * time.Millisecond)
	if got := repo.SaveCount(); got != 1 {
		t.Fatalf("save count = %d, want 1 after the debounce window", got)
	}
	doc, err := repo.Load(ctx, svc.ProjectId())
	if err != nil {
		t.Fatalf("repo load: %v", err)
	}
	if doc.Elements[0].Position != (geometry.Point{X: 150, Y: 120}) {
		t.Errorf("persisted position = %+v, want {150 120}", doc.Elements[0].Position)
	}
}

func TestMoveElementSnapsToGrid(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	id := addNote(t, svc, 0, 0)
	if err := svc.MoveElement(ctx, id, geometry.Point{X: 33, Y: 48}, MoveOptions{Snap: true}); err != nil {
		t.Fatalf("MoveElement: %v", err)
	}
	el, _ := svc.Element(id)
	if el.Position.X != 40 || el.Position.Y != 40 {
		t.Errorf("snapped position = %+v, want {40 40}", el.Position)
	}
}

func TestMoveElementRefusesLocked(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	id := addNote(t, svc, 0, 0)
	locked := true
	if err := svc.UpdateElement(ctx, id, &dto.UpdateElementRequest{Locked: &locked}); err != nil {
		t.Fatalf("UpdateElement: %v", err)
	}
	err := svc.MoveElement(ctx, id, geometry.Point{X: 10, Y: 0}, MoveOptions{})
	if !errors.Is(err, entity.ErrElementLocked) {
		t.Fatalf("err = %v, want ErrElementLocked", err)
	}
	el, _ := svc.Element(id)
	if el.Position.X != 0 {
		t.Error("locked element must not move")
	}
}

func TestUpdateElementPartialEdit(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	id := addNote(t, svc, 30, 40)
	title := "Retro ideas"
	if err := svc.UpdateElement(ctx, id, &dto.UpdateElementRequest{Title: &title}); err != nil {
		t.Fatalf("UpdateElement: %v", err)
	}
	el, _ := svc.Element(id)
	if el.Title != "Retro ideas" {
		t.Errorf("title = %q", el.Title)
	}
	if el.Position != (geometry.Point{X: 30, Y: 40}) {
		t.Errorf("untouched fields changed: %+v", el.Position)
	}
}

func TestUpdateElementLockedRefusesUntilUnlocked(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	id := addNote(t, svc, 0, 0)
	locked := true
	if err := svc.UpdateElement(ctx, id, &dto.UpdateElementRequest{Locked: &locked}); err != nil {
		t.Fatalf("lock: %v", err)
	}

	title := "nope"
	err := svc.UpdateElement(ctx, id, &dto.UpdateElementRequest{Title: &title})
	if !errors.Is(err, entity.ErrElementLocked) {
		t.Fatalf("err = %v, want ErrElementLocked", err)
	}

	// Unlocking and editing in the same request is allowed.
	unlocked := false
	fresh := "better"
	if err := svc.UpdateElement(ctx, id, &dto.UpdateElementRequest{Locked: &unlocked, Title: &fresh}); err != nil {
		t.Fatalf("unlock+edit: %v", err)
	}
	el, _ := svc.Element(id)
	if el.Title != "better" || el.Locked {
		t.Errorf("element = %+v, want unlocked with new title", el)
	}
}

func TestNavigateRoundTripRestoresWorkingSetAndViewport(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	boardId := addBoard(t, svc, 200, 200)
	if err := svc.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("NavigateToBoard: %v", err)
	}
	for i := 0; i < 3; i++ {
		addNote(t, svc, float64(i*50), 0)
	}
	svc.ZoomTo(2)
	svc.PanBy(30, 40)

	if err := svc.ExitToParent(ctx); err != nil {
		t.Fatalf("ExitToParent: %v", err)
	}
	if got := svc.CurrentBoardId(); got != uuid.Nil {
		t.Fatalf("level after exit = %s, want root", got)
	}
	if got := svc.Viewport(); got != entity.DefaultViewport() {
		t.Errorf("root viewport = %+v, want default", got)
	}

	// One more element added on a later visit must show up too.
	if err := svc.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("re-enter: %v", err)
	}
	addNote(t, svc, 999, 0)
	if err := svc.ExitToParent(ctx); err != nil {
		t.Fatalf("exit again: %v", err)
	}
	if err := svc.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("final enter: %v", err)
	}

	if got := len(svc.WorkingSet()); got != 4 {
		t.Errorf("working set = %d, want 4", got)
	}
	vp := svc.Viewport()
	if vp.X != 30 || vp.Y != 40 || vp.Zoom != 2 {
		t.Errorf("restored viewport = %+v, want {30 40 2}", vp)
	}
}

func TestNavigationForcesFlush(t *testing.T) {
	svc, repo := newTestCanvas(t)
	ctx := context.Background()

	boardId := addBoard(t, svc, 0, 0)
	if got := repo.SaveCount(); got != 0 {
		t.Fatalf("premature write: %d", got)
	}
	if err := svc.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("NavigateToBoard: %v", err)
	}
	if got := repo.SaveCount(); got != 1 {
		t.Errorf("save count after navigation = %d, want 1 (flush boundary)", got)
	}
}

func TestNavigateToUnknownBoardFailsClosedToRoot(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	boardId := addBoard(t, svc, 0, 0)
	if err := svc.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("NavigateToBoard: %v", err)
	}

	err := svc.NavigateToBoard(ctx, uuid.New())
	if !errors.Is(err, entity.ErrBoardNotFound) {
		t.Fatalf("err = %v, want ErrBoardNotFound", err)
	}
	if got := svc.CurrentBoardId(); got != uuid.Nil {
		t.Errorf("level = %s, want root after a failed navigation", got)
	}
}

func TestNavigateToNonBoardFailsClosedToRoot(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	noteId := addNote(t, svc, 0, 0)
	err := svc.NavigateToBoard(ctx, noteId)
	if !errors.Is(err, entity.ErrNotABoard) {
		t.Fatalf("err = %v, want ErrNotABoard", err)
	}
	if got := svc.CurrentBoardId(); got != uuid.Nil {
		t.Errorf("level = %s, want root", got)
	}
}

func TestBreadcrumbsFollowNestedBoards(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	outer := addBoard(t, svc, 0, 0)
	title := "Quarterly plan"
	if err := svc.UpdateElement(ctx, outer, &dto.UpdateElementRequest{Title: &title}); err != nil {
		t.Fatalf("UpdateElement: %v", err)
	}
	if err := svc.NavigateToBoard(ctx, outer); err != nil {
		t.Fatalf("enter outer: %v", err)
	}
	inner := addBoard(t, svc, 0, 0)
	if err := svc.NavigateToBoard(ctx, inner); err != nil {
		t.Fatalf("enter inner: %v", err)
	}

	crumbs := svc.Breadcrumbs()
	if len(crumbs) != 3 {
		t.Fatalf("crumbs = %d, want 3 (root + 2 boards)", len(crumbs))
	}
	if crumbs[0].Id != uuid.Nil {
		t.Error("first crumb should be the synthetic root")
	}
	if crumbs[1].Title != "Quarterly plan" {
		t.Errorf("crumb title = %q", crumbs[1].Title)
	}
	if crumbs[2].Id != inner {
		t.Errorf("deepest crumb = %s, want %s", crumbs[2].Id, inner)
	}
}

func TestPersistenceRoundTripThroughRepository(t *testing.T) {
	repo := memory.NewDocumentRepository()
	projectId := uuid.New()
	cfg := testConfig()
	ctx := context.Background()

	first := NewCanvasService(projectId, repo, events.NopPublisher{}, cfg, logger.NopLogger{})
	if err := first.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	boardId, err := first.AddElement(ctx, entity.ElementTypeBoard, geometry.Point{X: 10, Y: 20}, nil)
	if err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	if err := first.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("NavigateToBoard: %v", err)
	}
	noteId, err := first.AddElement(ctx, entity.ElementTypeNote, geometry.Point{X: 5, Y: 6}, nil)
	if err != nil {
		t.Fatalf("AddElement note: %v", err)
	}
	first.SetSelection([]uuid.UUID{noteId})
	first.ZoomTo(1.5)
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := NewCanvasService(projectId, repo, events.NopPublisher{}, cfg, logger.NopLogger{})
	if err := second.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := second.CurrentBoardId(); got != boardId {
		t.Errorf("restored level = %s, want %s", got, boardId)
	}
	ws := second.WorkingSet()
	if len(ws) != 1 || ws[0].Id != noteId {
		t.Fatalf("restored working set = %+v, want the one note", ws)
	}
	if got := second.SelectedIds(); len(got) != 1 || got[0] != noteId {
		t.Errorf("restored selection = %v", got)
	}
	if got := second.Viewport().Zoom; got != 1.5 {
		t.Errorf("restored zoom = %v, want 1.5", got)
	}
}

func TestLoadScrubsUnknownSelection(t *testing.T) {
	repo := memory.NewDocumentRepository()
	projectId := uuid.New()
	ctx := context.Background()

	doc := entity.EmptyDocument(projectId)
	doc.SelectedIds = []uuid.UUID{uuid.New(), uuid.New()}
	if err := repo.Save(ctx, doc); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewCanvasService(projectId, repo, events.NopPublisher{}, testConfig(), logger.NopLogger{})
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := svc.SelectedIds(); len(got) != 0 {
		t.Errorf("selection = %v, want empty after scrubbing", got)
	}
}

// brokenRepo fails every read with a fixed error.
type brokenRepo struct {
	loadErr error
}

func (r *brokenRepo) Load(ctx context.Context, projectId uuid.UUID) (*entity.ProjectDocument, error) {
	return nil, r.loadErr
}

func (r *brokenRepo) Save(ctx context.Context, doc *entity.ProjectDocument) error { return nil }

func (r *brokenRepo) Delete(ctx context.Context, projectId uuid.UUID) error { return nil }

func (r *brokenRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ProjectDocument, error) {
	return nil, r.loadErr
}

func (r *brokenRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, r.loadErr
}

func TestLoadResetsOnMalformedDocument(t *testing.T) {
	repo := &brokenRepo{loadErr: fmt.Errorf("%w: duplicate element id", entity.ErrMalformedDocument)}
	svc := NewCanvasService(uuid.New(), repo, events.NopPublisher{}, testConfig(), logger.NopLogger{})

	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load should recover from a malformed document, got %v", err)
	}
	if got := len(svc.WorkingSet()); got != 0 {
		t.Errorf("working set = %d, want an empty canvas", got)
	}
	if got := svc.CurrentBoardId(); got != uuid.Nil {
		t.Errorf("level = %s, want root", got)
	}
}

func TestLoadSurfacesInfrastructureErrors(t *testing.T) {
	repo := &brokenRepo{loadErr: errors.New("connection refused")}
	svc := NewCanvasService(uuid.New(), repo, events.NopPublisher{}, testConfig(), logger.NopLogger{})

	if err := svc.Load(context.Background()); err == nil {
		t.Fatal("a plain repository failure must not be swallowed")
	}
}

func TestMoveElementToBoardReparents(t *testing.T) {
	ctx := context.Background()
	rec := &eventRecorder{}
	svc := NewCanvasService(uuid.New(), memory.NewDocumentRepository(), rec, testConfig(), logger.NopLogger{})
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	boardId := addBoard(t, svc, 200, 0)
	noteId := addNote(t, svc, 10, 10)

	if err := svc.MoveElementToBoard(ctx, noteId, boardId, geometry.Point{X: 30, Y: 40}); err != nil {
		t.Fatalf("MoveElementToBoard: %v", err)
	}

	// Out of the source working set...
	for _, el := range svc.WorkingSet() {
		if el.Id == noteId {
			t.Fatal("note still on the root level")
		}
	}
	// ...and inside the target at the relative position.
	if err := svc.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("NavigateToBoard: %v", err)
	}
	ws := svc.WorkingSet()
	if len(ws) != 1 || ws[0].Id != noteId {
		t.Fatalf("target working set = %+v, want the note", ws)
	}
	if ws[0].Position != (geometry.Point{X: 30, Y: 40}) {
		t.Errorf("position inside board = %+v, want {30 40}", ws[0].Position)
	}

	rec.mu.Lock()
	movedToBoard := rec.movedToBoard
	rec.mu.Unlock()
	if movedToBoard != 1 {
		t.Errorf("element-moved-to-board events = %d, want 1", movedToBoard)
	}
}

func TestMoveBoardIntoOwnSubtreeRefused(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	outer := addBoard(t, svc, 0, 0)
	if err := svc.NavigateToBoard(ctx, outer); err != nil {
		t.Fatalf("enter outer: %v", err)
	}
	inner := addBoard(t, svc, 0, 0)
	if err := svc.NavigateToRoot(ctx); err != nil {
		t.Fatalf("NavigateToRoot: %v", err)
	}

	err := svc.MoveElementToBoard(ctx, outer, inner, geometry.Point{})
	if !errors.Is(err, entity.ErrHierarchyCycle) {
		t.Fatalf("err = %v, want ErrHierarchyCycle", err)
	}
	// The hierarchy must be untouched.
	if _, ok := svc.Element(outer); !ok {
		t.Fatal("outer board vanished")
	}
	ws := svc.WorkingSet()
	if len(ws) != 1 || ws[0].Id != outer {
		t.Errorf("root working set disturbed: %+v", ws)
	}
}

func TestBoardDropTargetAcceptsAndReparents(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	boardId := addBoard(t, svc, 200, 0)
	noteId := addNote(t, svc, 0, 0)

	target, err := svc.BoardDropTarget(boardId)
	if err != nil {
		t.Fatalf("BoardDropTarget: %v", err)
	}
	if target.Id != boardId.String() {
		t.Errorf("target id = %s", target.Id)
	}

	sess := &dragdrop.Session{ElementId: noteId, ElementType: entity.ElementTypeNote}
	if !target.Accepts(sess) {
		t.Fatal("board should accept a plain note")
	}
	if target.Accepts(&dragdrop.Session{ElementId: boardId}) {
		t.Error("board must not accept itself")
	}

	target.OnDrop(sess, geometry.Point{X: 12, Y: 34})

	if err := svc.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("NavigateToBoard: %v", err)
	}
	ws := svc.WorkingSet()
	if len(ws) != 1 || ws[0].Id != noteId {
		t.Fatalf("drop did not land in the board: %+v", ws)
	}
	if ws[0].Position != (geometry.Point{X: 12, Y: 34}) {
		t.Errorf("dropped position = %+v, want {12 34}", ws[0].Position)
	}
}

func TestBoardDropTargetRefusesAncestor(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	outer := addBoard(t, svc, 0, 0)
	if err := svc.NavigateToBoard(ctx, outer); err != nil {
		t.Fatalf("enter outer: %v", err)
	}
	inner := addBoard(t, svc, 0, 0)

	target, err := svc.BoardDropTarget(inner)
	if err != nil {
		t.Fatalf("BoardDropTarget: %v", err)
	}
	if target.Accepts(&dragdrop.Session{ElementId: outer, ElementType: entity.ElementTypeBoard}) {
		t.Error("a board must not accept one of its own ancestors")
	}
}

func TestGroupRemovalNeedsExplicitPolicy(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	a := addNote(t, svc, 0, 0)
	b := addNote(t, svc, 100, 0)
	groupId, err := svc.CreateGroup(ctx, []uuid.UUID{a, b}, "Pair")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	err = svc.RemoveElement(ctx, groupId)
	if !errors.Is(err, entity.ErrGroupNotEmpty) {
		t.Fatalf("err = %v, want ErrGroupNotEmpty", err)
	}
	if _, ok := svc.Element(groupId); !ok {
		t.Fatal("refused removal must not delete the group")
	}
}

func TestRemoveGroupReleaseChildren(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	a := addNote(t, svc, 40, 40)
	b := addNote(t, svc, 200, 80)
	aAbs, _ := svc.Element(a)
	bAbs, _ := svc.Element(b)

	groupId, err := svc.CreateGroup(ctx, []uuid.UUID{a, b}, "")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := svc.RemoveGroup(ctx, groupId, GroupRemovalReleaseChildren); err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}

	if _, ok := svc.Element(groupId); ok {
		t.Fatal("group shell should be gone")
	}
	aNow, ok := svc.Element(a)
	if !ok {
		t.Fatal("member a deleted by release policy")
	}
	bNow, _ := svc.Element(b)
	if aNow.Position != aAbs.Position || bNow.Position != bAbs.Position {
		t.Errorf("released members moved: a=%+v b=%+v", aNow.Position, bNow.Position)
	}
	if got := len(svc.WorkingSet()); got != 2 {
		t.Errorf("working set = %d, want the 2 released members", got)
	}
}

func TestRemoveGroupDeleteChildren(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	a := addNote(t, svc, 0, 0)
	b := addNote(t, svc, 100, 0)
	groupId, err := svc.CreateGroup(ctx, []uuid.UUID{a, b}, "")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := svc.RemoveGroup(ctx, groupId, GroupRemovalDeleteChildren); err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}

	for _, id := range []uuid.UUID{groupId, a, b} {
		if _, ok := svc.Element(id); ok {
			t.Errorf("%s survived delete-children removal", id)
		}
	}
	if got := len(svc.WorkingSet()); got != 0 {
		t.Errorf("working set = %d, want 0", got)
	}
}

func TestRemoveGroupUnknownPolicy(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	a := addNote(t, svc, 0, 0)
	b := addNote(t, svc, 100, 0)
	groupId, err := svc.CreateGroup(ctx, []uuid.UUID{a, b}, "")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := svc.RemoveGroup(ctx, groupId, "shrug"); err == nil {
		t.Fatal("unknown policy must error")
	}
	if _, ok := svc.Element(groupId); !ok {
		t.Error("group must survive an invalid policy")
	}
}

func TestGroupSelectionFollowsLifecycle(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	a := addNote(t, svc, 0, 0)
	b := addNote(t, svc, 100, 0)
	groupId, err := svc.CreateGroup(ctx, []uuid.UUID{a, b}, "")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if got := svc.SelectedIds(); len(got) != 1 || got[0] != groupId {
		t.Fatalf("selection after grouping = %v, want the group", got)
	}

	members, err := svc.Ungroup(ctx, groupId)
	if err != nil {
		t.Fatalf("Ungroup: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("released members = %d, want 2", len(members))
	}
	sel := svc.SelectedIds()
	if len(sel) != 2 {
		t.Errorf("selection after ungrouping = %v, want both members", sel)
	}
}

func TestDuplicateElementCopiesSubtree(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	boardId := addBoard(t, svc, 100, 100)
	if err := svc.NavigateToBoard(ctx, boardId); err != nil {
		t.Fatalf("NavigateToBoard: %v", err)
	}
	addNote(t, svc, 5, 5)
	if err := svc.ExitToParent(ctx); err != nil {
		t.Fatalf("ExitToParent: %v", err)
	}

	copyId, err := svc.DuplicateElement(ctx, boardId)
	if err != nil {
		t.Fatalf("DuplicateElement: %v", err)
	}
	if copyId == boardId {
		t.Fatal("copy must get a fresh id")
	}
	cp, ok := svc.Element(copyId)
	if !ok {
		t.Fatal("copy missing")
	}
	if cp.Position != (geometry.Point{X: 120, Y: 120}) {
		t.Errorf("copy position = %+v, want the source offset by one grid cell", cp.Position)
	}
	if got := svc.SelectedIds(); len(got) != 1 || got[0] != copyId {
		t.Errorf("selection = %v, want the copy", got)
	}

	if err := svc.NavigateToBoard(ctx, copyId); err != nil {
		t.Fatalf("enter copy: %v", err)
	}
	if got := len(svc.WorkingSet()); got != 1 {
		t.Errorf("copied board children = %d, want 1", got)
	}
}

func TestStackingOrderOperations(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	a := addNote(t, svc, 0, 0)
	b := addNote(t, svc, 0, 0)
	c := addNote(t, svc, 0, 0)

	if err := svc.BringToFront(ctx, a); err != nil {
		t.Fatalf("BringToFront: %v", err)
	}
	ws := svc.WorkingSet()
	if ws[len(ws)-1].Id != a {
		t.Errorf("topmost = %s, want %s", ws[len(ws)-1].Id, a)
	}

	if err := svc.SendToBack(ctx, c); err != nil {
		t.Fatalf("SendToBack: %v", err)
	}
	ws = svc.WorkingSet()
	if ws[0].Id != c {
		t.Errorf("bottom = %s, want %s", ws[0].Id, c)
	}
	_ = b
}

func TestElementAtPicksTopmostVisible(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	under := addNote(t, svc, 0, 0)
	over := addNote(t, svc, 0, 0)

	el, ok := svc.ElementAt(geometry.Point{X: 10, Y: 10})
	if !ok || el.Id != over {
		t.Fatalf("hit = %v, want the upper note", el)
	}

	hidden := false
	if err := svc.UpdateElement(ctx, over, &dto.UpdateElementRequest{Visible: &hidden}); err != nil {
		t.Fatalf("hide: %v", err)
	}
	el, ok = svc.ElementAt(geometry.Point{X: 10, Y: 10})
	if !ok || el.Id != under {
		t.Fatalf("hit after hiding = %v, want the lower note", el)
	}
}

func TestMoveSelectionSkipsLockedMembers(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	free := addNote(t, svc, 0, 0)
	pinned := addNote(t, svc, 100, 0)
	locked := true
	if err := svc.UpdateElement(ctx, pinned, &dto.UpdateElementRequest{Locked: &locked}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	svc.SetSelection([]uuid.UUID{free, pinned})

	if err := svc.MoveSelection(ctx, geometry.Point{X: 30, Y: 0}, MoveOptions{}); err != nil {
		t.Fatalf("MoveSelection: %v", err)
	}
	freeEl, _ := svc.Element(free)
	pinnedEl, _ := svc.Element(pinned)
	if freeEl.Position.X != 30 {
		t.Errorf("free element x = %v, want 30", freeEl.Position.X)
	}
	if pinnedEl.Position.X != 100 {
		t.Errorf("locked element moved to %v", pinnedEl.Position.X)
	}
}

func TestMarqueeSelectionThroughStore(t *testing.T) {
	svc, _ := newTestCanvas(t)

	a := addNote(t, svc, 10, 10)
	b := addNote(t, svc, 60, 10)
	c := addNote(t, svc, 500, 500)

	// Default viewport: screen space equals world space.
	svc.BeginMarquee(geometry.Point{X: 0, Y: 0})
	svc.UpdateMarquee(geometry.Point{X: 300, Y: 200})
	if _, active := svc.MarqueeRect(); !active {
		t.Fatal("marquee should be live between begin and finish")
	}
	got := svc.FinishMarquee(false)

	if len(got) != 2 {
		t.Fatalf("selection = %v, want a and b", got)
	}
	sel := map[uuid.UUID]bool{got[0]: true, got[1]: true}
	if !sel[a] || !sel[b] || sel[c] {
		t.Errorf("selection = %v, want exactly {a b}", got)
	}
	if _, active := svc.MarqueeRect(); active {
		t.Error("marquee should deactivate after finish")
	}
}

func TestMarqueeAdditiveKeepsCurrentSelection(t *testing.T) {
	svc, _ := newTestCanvas(t)

	a := addNote(t, svc, 10, 10)
	b := addNote(t, svc, 600, 600)
	svc.SetSelection([]uuid.UUID{b})

	svc.BeginMarquee(geometry.Point{X: 0, Y: 0})
	svc.UpdateMarquee(geometry.Point{X: 200, Y: 200})
	got := svc.FinishMarquee(true)

	if len(got) != 2 {
		t.Fatalf("selection = %v, want b plus a", got)
	}
	_ = a
}

func TestMarqueeCenterModeThroughStore(t *testing.T) {
	svc, _ := newTestCanvas(t)
	ctx := context.Background()

	// Note default size is 180x180: centers land at position + (90, 90).
	inside, err := svc.AddElement(ctx, entity.ElementTypeNote, geometry.Point{X: 0, Y: 0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	straddle, err := svc.AddElement(ctx, entity.ElementTypeNote, geometry.Point{X: 250, Y: 0}, nil)
	if err != nil {
		t.Fatal(err)
	}

	svc.BeginMarquee(geometry.Point{X: 0, Y: 0})
	svc.SetMarqueeMode(selection.ModeCenter)
	svc.UpdateMarquee(geometry.Point{X: 300, Y: 200})
	got := svc.FinishMarquee(false)

	if len(got) != 1 || got[0] != inside {
		t.Errorf("center mode selection = %v, want only the fully covered note", got)
	}
	_ = straddle
}

func TestHierarchyChangedReasons(t *testing.T) {
	rec := &eventRecorder{}
	svc := NewCanvasService(uuid.New(), memory.NewDocumentRepository(), rec, testConfig(), logger.NopLogger{})
	ctx := context.Background()
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	id, err := svc.AddElement(ctx, entity.ElementTypeNote, geometry.Point{}, nil)
	if err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	if err := svc.RemoveElement(ctx, id); err != nil {
		t.Fatalf("RemoveElement: %v", err)
	}

	reasons := rec.hierarchyReasons()
	if len(reasons) != 2 || reasons[0] != "add-element" || reasons[1] != "remove-element" {
		t.Errorf("hierarchy-changed reasons = %v", reasons)
	}
}
