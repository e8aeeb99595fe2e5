package mapper

import (
	"encoding/json"
	"fmt"

	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/model"
	"spatial-canvas-core/internal/pkg/validate"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToModel(doc *entity.ProjectDocument) (*model.CanvasDocument, error) {
	if doc == nil {
		return nil, nil
	}

	elements, err := json.Marshal(doc.Elements)
	if err != nil {
		return nil, err
	}
	viewport, err := json.Marshal(doc.Viewport)
	if err != nil {
		return nil, err
	}
	selected, err := json.Marshal(doc.SelectedIds)
	if err != nil {
		return nil, err
	}
	history, err := json.Marshal(doc.BoardHistory)
	if err != nil {
		return nil, err
	}
	viewports, err := json.Marshal(doc.BoardViewports)
	if err != nil {
		return nil, err
	}

	// uuid.Nil is the in-memory root sentinel; the column stores NULL instead.
	var currentBoard *uuid.UUID
	if doc.CurrentBoardId != uuid.Nil {
		id := doc.CurrentBoardId
		currentBoard = &id
	}

	return &model.CanvasDocument{
		ProjectId:      doc.ProjectId,
		Elements:       datatypes.JSON(elements),
		Viewport:       datatypes.JSON(viewport),
		SelectedIds:    datatypes.JSON(selected),
		CurrentBoardId: currentBoard,
		BoardHistory:   datatypes.JSON(history),
		BoardViewports: datatypes.JSON(viewports),
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

// ToEntity decodes a persisted row and validates the document. Any shape or
// integrity violation comes back as ErrMalformedDocument so the caller can
// reset to an empty tree.
func (m *DocumentMapper) ToEntity(row *model.CanvasDocument) (*entity.ProjectDocument, error) {
	if row == nil {
		return nil, nil
	}

	doc := entity.EmptyDocument(row.ProjectId)
	doc.UpdatedAt = row.UpdatedAt

	if len(row.Elements) > 0 {
		if err := json.Unmarshal(row.Elements, &doc.Elements); err != nil {
			return nil, fmt.Errorf("%w: elements: %v", entity.ErrMalformedDocument, err)
		}
	}
	if len(row.Viewport) > 0 {
		if err := json.Unmarshal(row.Viewport, &doc.Viewport); err != nil {
			return nil, fmt.Errorf("%w: viewport: %v", entity.ErrMalformedDocument, err)
		}
	}
	if len(row.SelectedIds) > 0 {
		if err := json.Unmarshal(row.SelectedIds, &doc.SelectedIds); err != nil {
			return nil, fmt.Errorf("%w: selected ids: %v", entity.ErrMalformedDocument, err)
		}
	}
	if len(row.BoardHistory) > 0 {
		if err := json.Unmarshal(row.BoardHistory, &doc.BoardHistory); err != nil {
			return nil, fmt.Errorf("%w: board history: %v", entity.ErrMalformedDocument, err)
		}
	}
	if len(row.BoardViewports) > 0 {
		if err := json.Unmarshal(row.BoardViewports, &doc.BoardViewports); err != nil {
			return nil, fmt.Errorf("%w: board viewports: %v", entity.ErrMalformedDocument, err)
		}
	}
	if row.CurrentBoardId != nil {
		doc.CurrentBoardId = *row.CurrentBoardId
	}

	if err := m.Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate enforces the document invariants: tag-level field checks, one
// occurrence per id across the whole tree, children only under containers,
// and navigation state that points at boards which actually exist.
func (m *DocumentMapper) Validate(doc *entity.ProjectDocument) error {
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrMalformedDocument, err)
	}

	seen := make(map[uuid.UUID]struct{})
	boards := make(map[uuid.UUID]struct{})

	var walk func(el *entity.DocumentElement) error
	walk = func(el *entity.DocumentElement) error {
		if el == nil {
			return fmt.Errorf("%w: null element", entity.ErrMalformedDocument)
		}
		if _, dup := seen[el.Id]; dup {
			return fmt.Errorf("%w: id %s occurs more than once", entity.ErrMalformedDocument, el.Id)
		}
		seen[el.Id] = struct{}{}
		if el.Type == entity.ElementTypeBoard {
			boards[el.Id] = struct{}{}
		}
		if len(el.Children) > 0 && !el.Type.IsContainer() {
			return fmt.Errorf("%w: %s element %s has children", entity.ErrMalformedDocument, el.Type, el.Id)
		}
		for _, child := range el.Children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, el := range doc.Elements {
		if err := walk(el); err != nil {
			return err
		}
	}

	for _, boardId := range doc.BoardHistory {
		if _, ok := boards[boardId]; !ok {
			return fmt.Errorf("%w: board history names unknown board %s", entity.ErrMalformedDocument, boardId)
		}
	}
	if doc.CurrentBoardId != uuid.Nil {
		if _, ok := boards[doc.CurrentBoardId]; !ok {
			return fmt.Errorf("%w: current board %s does not exist", entity.ErrMalformedDocument, doc.CurrentBoardId)
		}
	}

	return nil
}
