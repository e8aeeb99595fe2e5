// Package selection implements rectangle (marquee) multi-selection. A
// marquee begins on an empty-canvas pointer-down, stretches in world
// coordinates, and resolves to a set of element ids on release. The mode can
// be switched live while the rectangle is being drawn.
package selection

import (
	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/pkg/geometry"

	"github.com/google/uuid"
)

// Mode decides which elements a marquee rectangle qualifies.
type Mode string

const (
	// ModeIntersect qualifies any bounding-box overlap.
	ModeIntersect Mode = "intersect"
	// ModeContain qualifies elements fully inside the rectangle.
	ModeContain Mode = "contain"
	// ModeCenter qualifies elements whose centroid lies inside the rectangle.
	ModeCenter Mode = "center"
)

func validMode(m Mode) bool {
	return m == ModeIntersect || m == ModeContain || m == ModeCenter
}

// Marquee is one in-progress rectangle selection. The zero value is idle;
// the owning store drives it from its own event path, so the marquee itself
// carries no lock.
type Marquee struct {
	active bool
	mode   Mode

	viewport entity.Viewport
	start    geometry.Point // world coords
	current  geometry.Point // world coords

	logger logger.ILogger
}

func NewMarquee(log logger.ILogger) *Marquee {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Marquee{mode: ModeIntersect, logger: log}
}

// Active reports whether a rectangle is being drawn.
func (m *Marquee) Active() bool {
	return m.active
}

// Mode returns the current qualification mode.
func (m *Marquee) Mode() Mode {
	return m.mode
}

// Begin anchors the rectangle at a screen position. The viewport is captured
// for the whole gesture; pan/zoom does not change mid-drag.
func (m *Marquee) Begin(screen geometry.Point, viewport entity.Viewport) {
	m.active = true
	m.mode = ModeIntersect
	m.viewport = viewport
	m.start = geometry.ScreenToWorld(screen, viewport.X, viewport.Y, viewport.Zoom)
	m.current = m.start
}

// Update stretches the rectangle to a new screen position.
func (m *Marquee) Update(screen geometry.Point) {
	if !m.active {
		return
	}
	m.current = geometry.ScreenToWorld(screen, m.viewport.X, m.viewport.Y, m.viewport.Zoom)
}

// SetMode switches the qualification mode mid-gesture. Unknown modes are
// ignored with a warning.
func (m *Marquee) SetMode(mode Mode) {
	if !validMode(mode) {
		m.logger.Warn("SELECTION", "Ignoring unknown marquee mode", map[string]interface{}{
			"mode": string(mode),
		})
		return
	}
	m.mode = mode
}

// Rect returns the normalized marquee rectangle in world coordinates.
func (m *Marquee) Rect() geometry.Rect {
	return geometry.RectFromPoints(m.start, m.current)
}

// Qualifies reports whether one element falls under the marquee in the
// current mode. Hidden elements never qualify.
func (m *Marquee) Qualifies(el *entity.Element) bool {
	if el == nil || !el.Visible {
		return false
	}
	rect := m.Rect()
	bounds := el.Bounds()
	switch m.mode {
	case ModeContain:
		return rect.ContainsRect(bounds)
	case ModeCenter:
		return rect.Contains(bounds.Center())
	default:
		return rect.Intersects(bounds)
	}
}

// Finish resolves the gesture against the working set and deactivates the
// marquee. With additive set the qualifying ids are unioned into current,
// otherwise they replace it.
func (m *Marquee) Finish(workingSet []*entity.Element, additive bool, current []uuid.UUID) []uuid.UUID {
	if !m.active {
		m.logger.Warn("SELECTION", "Finish without an active marquee", nil)
		return current
	}
	m.active = false

	var qualified []uuid.UUID
	for _, el := range workingSet {
		if m.Qualifies(el) {
			qualified = append(qualified, el.Id)
		}
	}

	if !additive {
		return qualified
	}

	seen := make(map[uuid.UUID]struct{}, len(current))
	merged := make([]uuid.UUID, 0, len(current)+len(qualified))
	for _, id := range current {
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	for _, id := range qualified {
		if _, ok := seen[id]; !ok {
			merged = append(merged, id)
		}
	}
	return merged
}

// Abort deactivates the marquee without resolving a selection.
func (m *Marquee) Abort() {
	m.active = false
}
