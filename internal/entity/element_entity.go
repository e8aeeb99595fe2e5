package entity

import (
	"time"

	"spatial-canvas-core/pkg/geometry"

	"github.com/google/uuid"
)

type ElementType string

const (
	ElementTypeNote        ElementType = "note"
	ElementTypeImage       ElementType = "image"
	ElementTypeLink        ElementType = "link"
	ElementTypeAI          ElementType = "ai"
	ElementTypeBoard       ElementType = "board"
	ElementTypeGroup       ElementType = "group"
	ElementTypeFileOpener  ElementType = "file_opener"
	ElementTypeUrlLauncher ElementType = "url_launcher"
)

// ElementTypes lists every valid type, in stacking-agnostic declaration order.
var ElementTypes = []ElementType{
	ElementTypeNote,
	ElementTypeImage,
	ElementTypeLink,
	ElementTypeAI,
	ElementTypeBoard,
	ElementTypeGroup,
	ElementTypeFileOpener,
	ElementTypeUrlLauncher,
}

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	for _, known := range ElementTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsContainer reports whether elements of this type own children. Boards are
// navigable containers, groups are visual clusters on the same canvas level.
func (t ElementType) IsContainer() bool {
	return t == ElementTypeBoard || t == ElementTypeGroup
}

// Element is one node of the canvas arena. Children of boards and groups are
// not embedded here; the store keeps the adjacency index and the persistence
// mapper rebuilds the recursive document form from it.
type Element struct {
	Id        uuid.UUID
	Type      ElementType
	Position  geometry.Point
	Size      geometry.Size
	Rotation  float64
	ZIndex    int
	Title     string // optional override; empty falls back to the payload/type title
	Locked    bool
	Visible   bool
	Data      map[string]interface{}
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Bounds returns the element's axis-aligned box in world coordinates.
func (e *Element) Bounds() geometry.Rect {
	return geometry.Bounds(e.Position, e.Size)
}

// DisplayTitle resolves the title shown in breadcrumbs and group bands: the
// explicit override first, then a payload title, then the type fallback.
func (e *Element) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	if e.Data != nil {
		if v, ok := e.Data["title"].(string); ok && v != "" {
			return v
		}
	}
	return defaultTitles[e.Type]
}

// Clone returns a deep copy. The Data payload is copied one level deep, which
// covers every payload shape the canvas writes.
func (e *Element) Clone() *Element {
	out := *e
	if e.Data != nil {
		out.Data = make(map[string]interface{}, len(e.Data))
		for k, v := range e.Data {
			out.Data[k] = v
		}
	}
	if e.UpdatedAt != nil {
		t := *e.UpdatedAt
		out.UpdatedAt = &t
	}
	return &out
}

var defaultTitles = map[ElementType]string{
	ElementTypeNote:        "Note",
	ElementTypeImage:       "Image",
	ElementTypeLink:        "Link",
	ElementTypeAI:          "AI",
	ElementTypeBoard:       "Board",
	ElementTypeGroup:       "Group",
	ElementTypeFileOpener:  "File",
	ElementTypeUrlLauncher: "Launcher",
}

var defaultSizes = map[ElementType]geometry.Size{
	ElementTypeNote:        {Width: 180, Height: 180},
	ElementTypeImage:       {Width: 240, Height: 180},
	ElementTypeLink:        {Width: 220, Height: 64},
	ElementTypeAI:          {Width: 260, Height: 200},
	ElementTypeBoard:       {Width: 320, Height: 240},
	ElementTypeGroup:       {Width: 200, Height: 160},
	ElementTypeFileOpener:  {Width: 200, Height: 56},
	ElementTypeUrlLauncher: {Width: 200, Height: 56},
}

// DefaultSize returns the creation size for a type.
func DefaultSize(t ElementType) geometry.Size {
	if s, ok := defaultSizes[t]; ok {
		return s
	}
	return geometry.Size{Width: 180, Height: 120}
}

// DefaultData returns the creation payload for a type.
func DefaultData(t ElementType) map[string]interface{} {
	switch t {
	case ElementTypeNote:
		return map[string]interface{}{"text": ""}
	case ElementTypeImage:
		return map[string]interface{}{"src": ""}
	case ElementTypeLink, ElementTypeUrlLauncher:
		return map[string]interface{}{"url": ""}
	case ElementTypeAI:
		return map[string]interface{}{"prompt": ""}
	case ElementTypeGroup:
		return map[string]interface{}{"autoResize": false}
	case ElementTypeFileOpener:
		return map[string]interface{}{"path": ""}
	default:
		return map[string]interface{}{}
	}
}

// NewElement builds an element of the given type at pos with type defaults
// applied. A nil data payload falls back to DefaultData.
func NewElement(t ElementType, pos geometry.Point, data map[string]interface{}) *Element {
	if data == nil {
		data = DefaultData(t)
	}
	return &Element{
		Id:        uuid.New(),
		Type:      t,
		Position:  pos,
		Size:      DefaultSize(t),
		Visible:   true,
		Data:      data,
		CreatedAt: time.Now(),
	}
}
