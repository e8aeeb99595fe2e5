package dto

import (
	"spatial-canvas-core/pkg/geometry"
)

// UpdateElementRequest carries a partial element edit. Nil fields are left
// untouched, so a caller can change one property without racing the rest.
type UpdateElementRequest struct {
	Title    *string                `json:"title,omitempty"`
	Position *geometry.Point        `json:"position,omitempty"`
	Size     *geometry.Size         `json:"size,omitempty"`
	Rotation *float64               `json:"rotation,omitempty"`
	ZIndex   *int                   `json:"zIndex,omitempty"`
	Locked   *bool                  `json:"locked,omitempty"`
	Visible  *bool                  `json:"visible,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"` // replaces the payload wholesale when present
}

// Empty reports whether the request would change nothing.
func (r *UpdateElementRequest) Empty() bool {
	return r == nil ||
		(r.Title == nil && r.Position == nil && r.Size == nil &&
			r.Rotation == nil && r.ZIndex == nil && r.Locked == nil &&
			r.Visible == nil && r.Data == nil)
}
