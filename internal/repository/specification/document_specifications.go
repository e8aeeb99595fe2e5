package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByProjectID filters canvas documents by project
type ByProjectID struct {
	ProjectID uuid.UUID
}

func (s ByProjectID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("project_id = ?", s.ProjectID)
}

// ByProjectIDs filters by a list of projects
type ByProjectIDs struct {
	ProjectIDs []uuid.UUID
}

func (s ByProjectIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("project_id IN ?", s.ProjectIDs)
}

// UpdatedSince filters documents touched after a cutoff, for sweep tools
type UpdatedSince struct {
	Cutoff time.Time
}

func (s UpdatedSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("updated_at > ?", s.Cutoff)
}
