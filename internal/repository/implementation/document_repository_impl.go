package implementation

import (
	"context"
	"errors"

	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/mapper"
	"spatial-canvas-core/internal/model"
	"spatial-canvas-core/internal/repository/contract"
	"spatial-canvas-core/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *DocumentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DocumentRepositoryImpl) Load(ctx context.Context, projectId uuid.UUID) (*entity.ProjectDocument, error) {
	var m model.CanvasDocument
	query := r.db.WithContext(ctx).Where("project_id = ?", projectId)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}

func (r *DocumentRepositoryImpl) Save(ctx context.Context, doc *entity.ProjectDocument) error {
	m, err := r.mapper.ToModel(doc)
	if err != nil {
		return err
	}
	// Upsert: the project id is chosen by the caller, so a plain Save cannot
	// tell a fresh document from an existing one.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		UpdateAll: true,
	}).Create(m).Error
}

func (r *DocumentRepositoryImpl) Delete(ctx context.Context, projectId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("project_id = ?", projectId).Delete(&model.CanvasDocument{}).Error
}

func (r *DocumentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ProjectDocument, error) {
	var models []*model.CanvasDocument
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	docs := make([]*entity.ProjectDocument, 0, len(models))
	for _, m := range models {
		doc, err := r.mapper.ToEntity(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *DocumentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.CanvasDocument{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
