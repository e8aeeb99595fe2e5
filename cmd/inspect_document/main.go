package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/repository/implementation"
	"spatial-canvas-core/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func printTree(elements []*entity.DocumentElement, depth int) {
	for _, el := range elements {
		title := el.Title
		if title == "" {
			title = "(untitled)"
		}
		flags := ""
		if el.Locked {
			flags += " 🔒"
		}
		if !el.Visible {
			flags += " (hidden)"
		}
		fmt.Printf("%s- [%s] %s%s  pos (%.0f, %.0f)  size %.0fx%.0f  z=%d\n",
			strings.Repeat("  ", depth), el.Type, title, flags,
			el.Position.X, el.Position.Y, el.Size.Width, el.Size.Height, el.ZIndex)
		printTree(el.Children, depth+1)
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	if len(os.Args) < 2 {
		log.Fatal("Usage: inspect_document <project-id>")
	}
	projectId, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatal("Error: Invalid project id:", err)
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	repo := implementation.NewDocumentRepository(db)
	doc, err := repo.Load(context.Background(), projectId)
	if err != nil {
		log.Fatal("Error: Failed to load document:", err)
	}
	if doc == nil {
		log.Fatalf("No document stored for project %s", projectId)
	}

	fmt.Printf("🔍 INSPECTING CANVAS: %s\n", doc.ProjectId)
	fmt.Printf("Elements: %d total, %d at the top level\n", doc.ElementCount(), len(doc.Elements))

	level := "root"
	if doc.CurrentBoardId != uuid.Nil {
		level = doc.CurrentBoardId.String()
	}
	fmt.Printf("Current level: %s (depth %d)\n", level, len(doc.BoardHistory))
	fmt.Printf("Viewport: pan (%.1f, %.1f), zoom %.2f\n", doc.Viewport.X, doc.Viewport.Y, doc.Viewport.Zoom)
	fmt.Printf("Selection: %d element(s)\n", len(doc.SelectedIds))
	fmt.Printf("Updated: %s\n", doc.UpdatedAt.Format(time.RFC3339))

	fmt.Println("\n─ ELEMENT TREE ─")
	printTree(doc.Elements, 0)
	fmt.Println("─ END TREE ─")

	if len(doc.BoardViewports) > 0 {
		fmt.Println("\n─ CACHED BOARD VIEWPORTS ─")
		for id, vp := range doc.BoardViewports {
			fmt.Printf("%s: pan (%.1f, %.1f), zoom %.2f\n", id, vp.X, vp.Y, vp.Zoom)
		}
	}
}
