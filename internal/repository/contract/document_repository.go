package contract

import (
	"context"

	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/repository/specification"

	"github.com/google/uuid"
)

// DocumentRepository persists whole project documents; the canvas always
// writes the full tree, never element deltas.
type DocumentRepository interface {
	// Load returns (nil, nil) when the project has no document yet.
	Load(ctx context.Context, projectId uuid.UUID) (*entity.ProjectDocument, error)
	// Save upserts the document under its project id.
	Save(ctx context.Context, doc *entity.ProjectDocument) error
	Delete(ctx context.Context, projectId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ProjectDocument, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
