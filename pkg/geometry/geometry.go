// Package geometry contains the 2D primitives shared by the canvas store and
// the interaction engines. Everything is axis-aligned; rotation never enters
// hit-testing or overlap math.
package geometry

import "math"

// Point is a 2D coordinate. Depending on context it is either in world space
// (canvas units) or screen space (device pixels); transforms between the two
// live at the bottom of this file.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the width/height extent of an element.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns the delta from q to p.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Rect is an axis-aligned box anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bounds builds the rect covering an element at pos with the given size.
func Bounds(pos Point, size Size) Rect {
	return Rect{X: pos.X, Y: pos.Y, Width: size.Width, Height: size.Height}
}

// RectFromPoints builds the normalized rect spanned by two opposite corners,
// in any drag direction.
func RectFromPoints(a, b Point) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(a.X - b.X),
		Height: math.Abs(a.Y - b.Y),
	}
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the centroid of the rect.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether p lies inside the rect. Edges count as inside so
// a click on a border still hits the element.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() &&
		p.Y >= r.Y && p.Y <= r.Bottom()
}

// Intersects reports whether the two rects share any area or edge.
func (r Rect) Intersects(o Rect) bool {
	return r.X <= o.Right() && o.X <= r.Right() &&
		r.Y <= o.Bottom() && o.Y <= r.Bottom()
}

// ContainsRect reports whether o lies fully inside r.
func (r Rect) ContainsRect(o Rect) bool {
	return o.X >= r.X && o.Right() <= r.Right() &&
		o.Y >= r.Y && o.Bottom() <= r.Bottom()
}

// Union returns the smallest rect covering both r and o.
func (r Rect) Union(o Rect) Rect {
	x := math.Min(r.X, o.X)
	y := math.Min(r.Y, o.Y)
	return Rect{
		X:      x,
		Y:      y,
		Width:  math.Max(r.Right(), o.Right()) - x,
		Height: math.Max(r.Bottom(), o.Bottom()) - y,
	}
}

// UnionAll folds Union over a non-empty slice. The zero Rect is returned for
// an empty input.
func UnionAll(rects []Rect) Rect {
	if len(rects) == 0 {
		return Rect{}
	}
	out := rects[0]
	for _, r := range rects[1:] {
		out = out.Union(r)
	}
	return out
}

// Expand grows the rect by margin on every side.
func (r Rect) Expand(margin float64) Rect {
	return Rect{
		X:      r.X - margin,
		Y:      r.Y - margin,
		Width:  r.Width + 2*margin,
		Height: r.Height + 2*margin,
	}
}

// Snap rounds p to the nearest grid cell corner. A grid of zero or less
// disables snapping and returns p unchanged.
func Snap(p Point, grid float64) Point {
	if grid <= 0 {
		return p
	}
	return Point{
		X: math.Round(p.X/grid) * grid,
		Y: math.Round(p.Y/grid) * grid,
	}
}

// ScreenToWorld maps a screen-space point into world space for a viewport
// panned to (panX, panY) at the given zoom: world = (screen - pan) / zoom.
func ScreenToWorld(p Point, panX, panY, zoom float64) Point {
	if zoom == 0 {
		zoom = 1
	}
	return Point{
		X: (p.X - panX) / zoom,
		Y: (p.Y - panY) / zoom,
	}
}

// WorldToScreen is the exact inverse of ScreenToWorld.
func WorldToScreen(p Point, panX, panY, zoom float64) Point {
	return Point{
		X: p.X*zoom + panX,
		Y: p.Y*zoom + panY,
	}
}
