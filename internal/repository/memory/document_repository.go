package memory

import (
	"context"
	"sync"

	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/mapper"
	"spatial-canvas-core/internal/model"
	"spatial-canvas-core/internal/repository/specification"

	"github.com/google/uuid"
)

// DocumentRepository keeps canvas documents in process memory. It backs the
// simulator and the service tests, so it mirrors the database repository's
// semantics: what you save is what you load back, fully detached from the
// caller's objects.
type DocumentRepository struct {
	mu        sync.RWMutex
	rows      map[uuid.UUID]*model.CanvasDocument
	mapper    *mapper.DocumentMapper
	saveCount int
	saveErr   error
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		rows:   make(map[uuid.UUID]*model.CanvasDocument),
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *DocumentRepository) Load(ctx context.Context, projectId uuid.UUID) (*entity.ProjectDocument, error) {
	r.mu.RLock()
	row, ok := r.rows[projectId]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.mapper.ToEntity(row)
}

func (r *DocumentRepository) Save(ctx context.Context, doc *entity.ProjectDocument) error {
	// Encoding through the mapper detaches the stored snapshot from the
	// caller's live objects, same as writing through the database would.
	row, err := r.mapper.ToModel(doc)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		err := r.saveErr
		r.saveErr = nil
		return err
	}
	r.rows[doc.ProjectId] = row
	r.saveCount++
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, projectId uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, projectId)
	return nil
}

// FindAll returns every stored document. Query specifications need a SQL
// backend, so the memory store does not apply them.
func (r *DocumentRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ProjectDocument, error) {
	r.mu.RLock()
	rows := make([]*model.CanvasDocument, 0, len(r.rows))
	for _, row := range r.rows {
		rows = append(rows, row)
	}
	r.mu.RUnlock()

	docs := make([]*entity.ProjectDocument, 0, len(rows))
	for _, row := range rows {
		doc, err := r.mapper.ToEntity(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *DocumentRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.rows)), nil
}

// SaveCount reports how many saves have landed. Tests use it to check that
// the commit debounce collapses a burst of edits into a single write.
func (r *DocumentRepository) SaveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saveCount
}

// FailNextSave makes the next Save return err instead of storing anything.
func (r *DocumentRepository) FailNextSave(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}
