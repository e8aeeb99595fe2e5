package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/model"
	"spatial-canvas-core/internal/repository/implementation"
	"spatial-canvas-core/internal/repository/specification"
	"spatial-canvas-core/pkg/database"
	"spatial-canvas-core/pkg/geometry"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

func TestCanvasDocumentRepository(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)

	// Ensure schema
	err = gormDB.AutoMigrate(&model.CanvasDocument{})
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and migrated canvas_documents")

	repo := implementation.NewDocumentRepository(gormDB)
	ctx := context.Background()
	projectId := uuid.New()

	t.Run("Load Missing Document", func(t *testing.T) {
		doc, err := repo.Load(ctx, uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("Save And Reload Round Trip", func(t *testing.T) {
		doc := entity.EmptyDocument(projectId)
		note := &entity.DocumentElement{
			Id:        uuid.New(),
			Type:      entity.ElementTypeNote,
			Position:  geometry.Point{X: 24, Y: 16},
			Size:      geometry.Size{Width: 180, Height: 180},
			ZIndex:    1,
			Visible:   true,
			CreatedAt: time.Now().UTC(),
		}
		board := &entity.DocumentElement{
			Id:        uuid.New(),
			Type:      entity.ElementTypeBoard,
			Position:  geometry.Point{X: 400, Y: 120},
			Size:      geometry.Size{Width: 320, Height: 240},
			ZIndex:    2,
			Title:     "Integration board",
			Visible:   true,
			CreatedAt: time.Now().UTC(),
			Children:  []*entity.DocumentElement{note},
		}
		doc.Elements = append(doc.Elements, board)
		doc.Viewport = entity.Viewport{X: 12, Y: -8, Zoom: 1.5}
		doc.UpdatedAt = time.Now().UTC()

		err := repo.Save(ctx, doc)
		assert.NoError(t, err)

		got, err := repo.Load(ctx, projectId)
		assert.NoError(t, err)
		if assert.NotNil(t, got) {
			assert.Len(t, got.Elements, 1)
			assert.Equal(t, "Integration board", got.Elements[0].Title)
			assert.Len(t, got.Elements[0].Children, 1)
			assert.Equal(t, note.Id, got.Elements[0].Children[0].Id)
			assert.InDelta(t, 1.5, got.Viewport.Zoom, 1e-9)
		}
		t.Log("Document round trip OK")
	})

	t.Run("Save Again Upserts Same Row", func(t *testing.T) {
		got, err := repo.Load(ctx, projectId)
		assert.NoError(t, err)
		if got == nil {
			t.Fatal("document missing after previous subtest")
		}

		got.Elements[0].Title = "Renamed board"
		got.Viewport.Zoom = 2.0
		got.UpdatedAt = time.Now().UTC()
		err = repo.Save(ctx, got)
		assert.NoError(t, err)

		docs, err := repo.FindAll(ctx, specification.ByProjectID{ProjectID: projectId})
		assert.NoError(t, err)
		if assert.Len(t, docs, 1) {
			assert.Equal(t, "Renamed board", docs[0].Elements[0].Title)
			assert.InDelta(t, 2.0, docs[0].Viewport.Zoom, 1e-9)
		}
	})

	t.Run("Count With Specification", func(t *testing.T) {
		count, err := repo.Count(ctx, specification.ByProjectID{ProjectID: projectId})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Delete", func(t *testing.T) {
		err := repo.Delete(ctx, projectId)
		assert.NoError(t, err)

		gone, err := repo.Load(ctx, projectId)
		assert.NoError(t, err)
		assert.Nil(t, gone)
	})
}
