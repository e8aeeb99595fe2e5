package entity

import (
	"time"

	"spatial-canvas-core/pkg/geometry"

	"github.com/google/uuid"
)

// Viewport is the pan/zoom state of one board level. Zoom is clamped to the
// configured bounds everywhere it is written.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom" validate:"gte=0"`
}

// DefaultViewport is the state a never-visited board starts with.
func DefaultViewport() Viewport {
	return Viewport{X: 0, Y: 0, Zoom: 1}
}

// Clamp returns the viewport with zoom forced into [min, max].
func (v Viewport) Clamp(minZoom, maxZoom float64) Viewport {
	if v.Zoom < minZoom {
		v.Zoom = minZoom
	}
	if v.Zoom > maxZoom {
		v.Zoom = maxZoom
	}
	return v
}

// DocumentElement is the persisted form of an element: the recursive document
// shape of the durable contract, with container children embedded inline.
type DocumentElement struct {
	Id        uuid.UUID              `json:"id" validate:"required"`
	Type      ElementType            `json:"type" validate:"required,oneof=note image link ai board group file_opener url_launcher"`
	Position  geometry.Point         `json:"position"`
	Size      geometry.Size          `json:"size"`
	Rotation  float64                `json:"rotation,omitempty"`
	ZIndex    int                    `json:"zIndex"`
	Title     string                 `json:"title,omitempty"`
	Locked    bool                   `json:"locked,omitempty"`
	Visible   bool                   `json:"visible"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Children  []*DocumentElement     `json:"children,omitempty" validate:"dive"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt *time.Time             `json:"updated_at,omitempty"`
}

// ProjectDocument is the entire durable contract for one project: the element
// tree plus the navigation and selection state needed to reopen the canvas
// exactly where the user left it.
type ProjectDocument struct {
	ProjectId      uuid.UUID           `json:"project_id" validate:"required"`
	Elements       []*DocumentElement  `json:"elements" validate:"dive"`
	Viewport       Viewport            `json:"viewport"`
	SelectedIds    []uuid.UUID         `json:"selectedIds"`
	CurrentBoardId uuid.UUID           `json:"currentBoardId"` // uuid.Nil means the root level
	BoardHistory   []uuid.UUID         `json:"boardHistory"`   // ancestor board ids, root-first
	BoardViewports map[string]Viewport `json:"boardViewports,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// EmptyDocument is the reset state used when a persisted document is missing
// or fails validation.
func EmptyDocument(projectId uuid.UUID) *ProjectDocument {
	return &ProjectDocument{
		ProjectId:      projectId,
		Elements:       []*DocumentElement{},
		Viewport:       DefaultViewport(),
		SelectedIds:    []uuid.UUID{},
		CurrentBoardId: uuid.Nil,
		BoardHistory:   []uuid.UUID{},
		BoardViewports: map[string]Viewport{},
	}
}

// ElementCount is the total number of elements across every level.
func (d *ProjectDocument) ElementCount() int {
	var walk func(nodes []*DocumentElement) int
	walk = func(nodes []*DocumentElement) int {
		n := len(nodes)
		for _, node := range nodes {
			if node != nil {
				n += walk(node.Children)
			}
		}
		return n
	}
	return walk(d.Elements)
}

// ToElement strips the persisted wrapper down to the arena node.
func (d *DocumentElement) ToElement() *Element {
	return &Element{
		Id:        d.Id,
		Type:      d.Type,
		Position:  d.Position,
		Size:      d.Size,
		Rotation:  d.Rotation,
		ZIndex:    d.ZIndex,
		Title:     d.Title,
		Locked:    d.Locked,
		Visible:   d.Visible,
		Data:      d.Data,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// FromElement wraps an arena node for persistence; children are attached by
// the mapper while it walks the adjacency index.
func FromElement(e *Element) *DocumentElement {
	return &DocumentElement{
		Id:        e.Id,
		Type:      e.Type,
		Position:  e.Position,
		Size:      e.Size,
		Rotation:  e.Rotation,
		ZIndex:    e.ZIndex,
		Title:     e.Title,
		Locked:    e.Locked,
		Visible:   e.Visible,
		Data:      e.Data,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
