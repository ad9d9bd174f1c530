// Package geometry implements the unit-coordinate model for page annotations.
//
// All annotation geometry captured from the viewer is stored as fractions of
// the text layer's width/height ("unit coordinates", 0..1), so records stay
// valid across zoom changes, rotation and window resizes. Normalization and
// denormalization are pure functions over the current text-layer box; the
// renderer is never consulted directly.
package geometry

import "math"

// Box is the measured bounding box of a page's text layer, in screen pixels.
type Box struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the box has been measured.
// A zero-size box means the text layer has not rendered yet.
func (b Box) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Point is a single coordinate pair, either screen pixels or unit space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle, either screen pixels or unit space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether the rectangle has no area (selection artifact).
func (r Rect) IsZero() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether p lies inside the rectangle expanded by margin
// pixels on every side.
func (r Rect) Contains(p Point, margin float64) bool {
	return p.X >= r.X-margin && p.X <= r.X+r.Width+margin &&
		p.Y >= r.Y-margin && p.Y <= r.Y+r.Height+margin
}

// InUnitRange reports whether every coordinate of the rectangle lies in [0,1].
// Stored geometry failing this check is treated as corrupt (or legacy pixels).
func (r Rect) InUnitRange() bool {
	return inUnit(r.X) && inUnit(r.Y) &&
		inUnit(r.X+r.Width) && inUnit(r.Y+r.Height) &&
		r.Width >= 0 && r.Height >= 0
}

// InUnitRange reports whether both coordinates of the point lie in [0,1].
func (p Point) InUnitRange() bool {
	return inUnit(p.X) && inUnit(p.Y)
}

func inUnit(v float64) bool {
	// NaN fails both comparisons, so corrupt values are caught here too.
	return v >= 0 && v <= 1
}

// NormalizeRect converts a screen-space rectangle to unit coordinates.
// If the box has not been measured yet the input is returned unchanged and
// ok is false; the caller must keep the record in legacy/absolute mode.
func NormalizeRect(r Rect, box Box) (Rect, bool) {
	if !box.Valid() {
		return r, false
	}
	return Rect{
		X:      r.X / box.Width,
		Y:      r.Y / box.Height,
		Width:  r.Width / box.Width,
		Height: r.Height / box.Height,
	}, true
}

// NormalizePoint converts a screen-space point to unit coordinates.
func NormalizePoint(p Point, box Box) (Point, bool) {
	if !box.Valid() {
		return p, false
	}
	return Point{X: p.X / box.Width, Y: p.Y / box.Height}, true
}

// NormalizePath converts a screen-space polyline to unit coordinates.
// The path is converted as a whole: either every point normalizes or the
// input is returned unchanged.
func NormalizePath(path []Point, box Box) ([]Point, bool) {
	if !box.Valid() {
		return path, false
	}
	out := make([]Point, len(path))
	for i, p := range path {
		out[i] = Point{X: p.X / box.Width, Y: p.Y / box.Height}
	}
	return out, true
}

// NormalizeRects drops zero-area rectangles and normalizes the rest.
// A multi-line text selection reports one client rect per visual segment,
// some of which are empty artifacts.
func NormalizeRects(rects []Rect, box Box) ([]Rect, bool) {
	kept := FilterZeroRects(rects)
	if !box.Valid() {
		return kept, false
	}
	out := make([]Rect, len(kept))
	for i, r := range kept {
		out[i], _ = NormalizeRect(r, box)
	}
	return out, true
}

// FilterZeroRects removes rectangles with no area.
func FilterZeroRects(rects []Rect) []Rect {
	out := make([]Rect, 0, len(rects))
	for _, r := range rects {
		if !r.IsZero() {
			out = append(out, r)
		}
	}
	return out
}

// DenormalizeRect converts stored unit coordinates back to screen space for
// the current text-layer box. Exact inverse of NormalizeRect's scaling, so
// re-rendering after a zoom change is just a recompute with the new box.
func DenormalizeRect(r Rect, box Box) Rect {
	return Rect{
		X:      r.X * box.Width,
		Y:      r.Y * box.Height,
		Width:  r.Width * box.Width,
		Height: r.Height * box.Height,
	}
}

// DenormalizePoint converts a stored unit point back to screen space.
func DenormalizePoint(p Point, box Box) Point {
	return Point{X: p.X * box.Width, Y: p.Y * box.Height}
}

// DenormalizePath converts a stored unit polyline back to screen space.
func DenormalizePath(path []Point, box Box) []Point {
	out := make([]Point, len(path))
	for i, p := range path {
		out[i] = DenormalizePoint(p, box)
	}
	return out
}

// RotatePoint rotates p about center by degrees (counter-clockwise positive).
// Capture paths pass the negative of the active page rotation so stored unit
// geometry is always expressed in the unrotated page frame.
func RotatePoint(p, center Point, degrees float64) Point {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	dx := p.X - center.X
	dy := p.Y - center.Y
	return Point{
		X: center.X + dx*cos - dy*sin,
		Y: center.Y + dx*sin + dy*cos,
	}
}

// UnrotateRect maps a screen rectangle captured under an active page rotation
// back into the unrotated page frame, rotating its corners about the page
// container's center and taking the axis-aligned bounds of the result.
func UnrotateRect(r Rect, center Point, activeDegrees float64) Rect {
	if activeDegrees == 0 {
		return r
	}
	corners := [4]Point{
		{r.X, r.Y},
		{r.X + r.Width, r.Y},
		{r.X, r.Y + r.Height},
		{r.X + r.Width, r.Y + r.Height},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		p := RotatePoint(c, center, -activeDegrees)
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// UnrotatePath maps a captured freehand path back into the unrotated frame.
func UnrotatePath(path []Point, center Point, activeDegrees float64) []Point {
	if activeDegrees == 0 {
		return path
	}
	out := make([]Point, len(path))
	for i, p := range path {
		out[i] = RotatePoint(p, center, -activeDegrees)
	}
	return out
}

// PointToSegmentDistance returns the minimum distance from p to the segment
// a-b, using projection onto the segment clamped to its endpoints.
func PointToSegmentDistance(p, a, b Point) float64 {
	abx := b.X - a.X
	aby := b.Y - a.Y
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		// Degenerate segment, distance to the single point.
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*abx + (p.Y-a.Y)*aby) / lenSq
	t = math.Max(0, math.Min(1, t))
	cx := a.X + t*abx
	cy := a.Y + t*aby
	return math.Hypot(p.X-cx, p.Y-cy)
}

// PathBounds returns the axis-aligned bounding rectangle of a polyline.
func PathBounds(path []Point) Rect {
	if len(path) == 0 {
		return Rect{}
	}
	minX, minY := path[0].X, path[0].Y
	maxX, maxY := minX, minY
	for _, p := range path[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
