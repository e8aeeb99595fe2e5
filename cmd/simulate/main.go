package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"spatial-canvas-core/internal/bootstrap"
	"spatial-canvas-core/internal/config"
	"spatial-canvas-core/internal/dto"
	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/repository/memory"
	"spatial-canvas-core/pkg/dragdrop"
	"spatial-canvas-core/pkg/events"
	"spatial-canvas-core/pkg/geometry"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Scripted canvas session against the in-memory repository. Runs the full
// stack (store, drag engine, marquee, grouping, navigation, debounced
// persistence) without a database and prints every integration event the
// session emits.

func fail(err error) {
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
}

func watchEvents(ctx context.Context, c *bootstrap.Container) {
	for _, topic := range events.Topics() {
		ch, err := c.Subscribe(ctx, topic)
		if err != nil {
			color.Red("Failed to subscribe to %s: %v", topic, err)
			os.Exit(1)
		}
		go func() {
			for msg := range ch {
				env, err := events.DecodeEnvelope(msg)
				if err == nil {
					data, _ := json.Marshal(env.Data)
					color.Magenta("  ⚡ %-24s %s", env.Type, string(data))
				}
				msg.Ack()
			}
		}()
	}
}

func printTree(elements []*entity.DocumentElement, depth int) {
	for _, el := range elements {
		title := el.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s- [%s] %s  @ (%.0f, %.0f)\n",
			strings.Repeat("  ", depth+1), el.Type, title, el.Position.X, el.Position.Y)
		printTree(el.Children, depth+1)
	}
}

func crumbTrail(c *bootstrap.Container) string {
	parts := []string{}
	for _, crumb := range c.Canvas.Breadcrumbs() {
		parts = append(parts, crumb.Title)
	}
	return strings.Join(parts, " / ")
}

func main() {
	color.Cyan("🎨 Starting Canvas Core Simulation\n")

	cfg := config.Load()
	repo := memory.NewDocumentRepository()
	projectId := uuid.New()
	ctx := context.Background()

	c := bootstrap.NewContainer(projectId, repo, cfg)
	watchEvents(ctx, c)

	color.Yellow("\n[CANVAS] 1. Load the project document")
	fail(c.Canvas.Load(ctx))
	color.Green("Loaded project %s (fresh document, empty root)", projectId)

	color.Yellow("\n[CANVAS] 2. Populate the root level")
	var notes []uuid.UUID
	for _, pos := range []geometry.Point{{X: 40, Y: 40}, {X: 280, Y: 40}, {X: 40, Y: 280}} {
		id, err := c.Canvas.AddElement(ctx, entity.ElementTypeNote, pos, nil)
		fail(err)
		notes = append(notes, id)
	}
	boardId, err := c.Canvas.AddElement(ctx, entity.ElementTypeBoard, geometry.Point{X: 560, Y: 120}, nil)
	fail(err)
	boardTitle := "Sprint 12"
	fail(c.Canvas.UpdateElement(ctx, boardId, &dto.UpdateElementRequest{Title: &boardTitle}))
	color.Green("Root now holds %d elements (3 notes + board %q)", len(c.Canvas.WorkingSet()), boardTitle)

	color.Yellow("\n[DRAG] 3. Drag the first note onto the board")
	target, err := c.Canvas.BoardDropTarget(boardId)
	fail(err)
	fail(c.Registry.Register(target))

	note, ok := c.Canvas.Element(notes[0])
	if !ok {
		color.Red("Failed: note %s missing from the store", notes[0])
		os.Exit(1)
	}
	grab := note.Position.Add(geometry.Point{X: 20, Y: 20})
	now := time.Now()
	sess, err := c.Engine.PointerDown(ctx, dragdrop.Draggable{
		Id:       note.Id,
		Type:     note.Type,
		Position: note.Position,
		Locked:   note.Locked,
	}, grab, now)
	fail(err)
	color.Green("Session %s opened at (%.0f, %.0f)", sess.Token, grab.X, grab.Y)

	// Sweep the pointer toward the board center in even steps. The first
	// moves engage the session, the later ones cross into the drop zone.
	dest := geometry.Bounds(geometry.Point{X: 560, Y: 120}, geometry.Size{Width: 320, Height: 240}).Center()
	const steps = 8
	for i := 1; i <= steps; i++ {
		now = now.Add(20 * time.Millisecond)
		p := geometry.Point{
			X: grab.X + (dest.X-grab.X)*float64(i)/steps,
			Y: grab.Y + (dest.Y-grab.Y)*float64(i)/steps,
		}
		if _, err := c.Engine.PointerMove(ctx, p, now); err != nil {
			fail(err)
		}
	}
	res, err := c.Engine.PointerUp(ctx, dest, now.Add(20*time.Millisecond))
	fail(err)
	if !res.Dropped {
		color.Red("Failed: pointer-up did not land on a drop zone")
		os.Exit(1)
	}
	color.Green("Dropped onto zone %s at relative (%.0f, %.0f)", res.TargetId, res.Relative.X, res.Relative.Y)
	c.Registry.Unregister(target.Id)

	color.Yellow("\n[SELECT] 4. Marquee the remaining notes and group them")
	c.Canvas.BeginMarquee(geometry.Point{X: 10, Y: 10})
	c.Canvas.UpdateMarquee(geometry.Point{X: 500, Y: 500})
	picked := c.Canvas.FinishMarquee(false)
	color.Green("Marquee picked %d elements", len(picked))

	groupId, err := c.Canvas.CreateGroup(ctx, picked, "Loose ideas")
	fail(err)
	group, ok := c.Canvas.Element(groupId)
	if !ok {
		color.Red("Failed: group %s missing from the store", groupId)
		os.Exit(1)
	}
	color.Green("Group %q spans (%.0f, %.0f) %.0fx%.0f",
		group.Title, group.Position.X, group.Position.Y, group.Size.Width, group.Size.Height)

	color.Yellow("\n[NAV] 5. Enter the board and come back")
	fail(c.Canvas.NavigateToBoard(ctx, boardId))
	color.Green("Breadcrumbs: %s", crumbTrail(c))
	color.Green("Board level holds %d element(s)", len(c.Canvas.WorkingSet()))
	fail(c.Canvas.ExitToParent(ctx))
	color.Green("Back at: %s", crumbTrail(c))

	color.Yellow("\n[GROUP] 6. Ungroup and flush")
	released, err := c.Canvas.Ungroup(ctx, groupId)
	fail(err)
	color.Green("Released %d members back to the root level", len(released))
	fail(c.Canvas.Commit(ctx))
	color.Green("Committed. Repository writes so far: %d, dirty: %v", repo.SaveCount(), c.Canvas.Dirty())

	color.Yellow("\n[STORE] 7. Persisted document")
	doc, err := repo.Load(ctx, projectId)
	fail(err)
	fmt.Printf("  project %s, %d top-level element(s):\n", doc.ProjectId, len(doc.Elements))
	printTree(doc.Elements, 0)

	// Give the async subscribers a moment to drain before teardown.
	time.Sleep(150 * time.Millisecond)
	fail(c.Close(ctx))
	color.Cyan("\n✅ Simulation finished")
}
