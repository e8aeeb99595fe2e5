package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CanvasDocument is the persisted form of one project's canvas: the whole
// element tree plus navigation state, one row per project.
type CanvasDocument struct {
	ProjectId      uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Elements       datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`
	Viewport       datatypes.JSON `gorm:"type:jsonb"`
	SelectedIds    datatypes.JSON `gorm:"type:jsonb"`
	CurrentBoardId *uuid.UUID     `gorm:"type:uuid"`
	BoardHistory   datatypes.JSON `gorm:"type:jsonb"`
	BoardViewports datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
}

func (CanvasDocument) TableName() string {
	return "canvas_documents"
}
