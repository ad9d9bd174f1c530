package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestNormalizeRectRoundTrip(t *testing.T) {
	box := Box{Width: 816, Height: 1056}
	rects := []Rect{
		{X: 145, Y: 320, Width: 80, Height: 18},
		{X: 0, Y: 0, Width: 816, Height: 1056},
		{X: 815.5, Y: 1055.25, Width: 0.5, Height: 0.75},
	}

	for _, r := range rects {
		u, ok := NormalizeRect(r, box)
		require.True(t, ok)
		assert.True(t, u.InUnitRange(), "normalized rect %+v out of unit range: %+v", r, u)

		back := DenormalizeRect(u, box)
		assert.InDelta(t, r.X, back.X, eps)
		assert.InDelta(t, r.Y, back.Y, eps)
		assert.InDelta(t, r.Width, back.Width, eps)
		assert.InDelta(t, r.Height, back.Height, eps)
	}
}

func TestNormalizeDegenerateBox(t *testing.T) {
	r := Rect{X: 145, Y: 320, Width: 80, Height: 18}

	for _, box := range []Box{{}, {Width: 0, Height: 900}, {Width: 700, Height: 0}, {Width: -1, Height: 900}} {
		got, ok := NormalizeRect(r, box)
		assert.False(t, ok)
		assert.Equal(t, r, got, "degenerate box must return input unchanged")
		assert.False(t, math.IsNaN(got.X) || math.IsInf(got.X, 0))

		p, ok := NormalizePoint(Point{X: 10, Y: 20}, box)
		assert.False(t, ok)
		assert.Equal(t, Point{X: 10, Y: 20}, p)
	}
}

func TestZoomInvariance(t *testing.T) {
	// A rect anchored at 50% width / 25% height stays there after zoom.
	b1 := Box{Width: 800, Height: 1000}
	b2 := Box{Width: 1600, Height: 2000} // zoom 2.0

	r := Rect{X: 400, Y: 250, Width: 100, Height: 20}
	u, ok := NormalizeRect(r, b1)
	require.True(t, ok)

	s2 := DenormalizeRect(u, b2)
	assert.InDelta(t, r.X*2, s2.X, eps)
	assert.InDelta(t, r.Y*2, s2.Y, eps)
	assert.InDelta(t, r.Width*2, s2.Width, eps)
	assert.InDelta(t, r.Height*2, s2.Height, eps)

	assert.InDelta(t, 0.5, s2.X/b2.Width, eps)
	assert.InDelta(t, 0.25, s2.Y/b2.Height, eps)
}

func TestNormalizeRectsDropsZeroArea(t *testing.T) {
	box := Box{Width: 800, Height: 1000}
	rects := []Rect{
		{X: 100, Y: 100, Width: 200, Height: 18},
		{X: 300, Y: 100, Width: 0, Height: 18},  // selection artifact
		{X: 100, Y: 120, Width: 150, Height: 0}, // selection artifact
		{X: 100, Y: 140, Width: 180, Height: 18},
	}

	u, ok := NormalizeRects(rects, box)
	require.True(t, ok)
	require.Len(t, u, 2)
	assert.True(t, u[0].InUnitRange())
	assert.True(t, u[1].InUnitRange())
}

func TestNormalizePathRoundTrip(t *testing.T) {
	box := Box{Width: 640, Height: 480}
	path := []Point{{X: 10, Y: 10}, {X: 50, Y: 80}, {X: 120, Y: 40}}

	u, ok := NormalizePath(path, box)
	require.True(t, ok)
	for _, p := range u {
		assert.True(t, p.InUnitRange())
	}

	back := DenormalizePath(u, box)
	require.Len(t, back, len(path))
	for i := range path {
		assert.InDelta(t, path[i].X, back[i].X, eps)
		assert.InDelta(t, path[i].Y, back[i].Y, eps)
	}
}

func TestRotatePoint(t *testing.T) {
	center := Point{X: 100, Y: 100}

	// 90° CCW about the center moves a point to its right onto the top.
	got := RotatePoint(Point{X: 200, Y: 100}, center, 90)
	assert.InDelta(t, 100, got.X, eps)
	assert.InDelta(t, 200, got.Y, eps)

	// Rotating by angle then -angle is the identity.
	p := Point{X: 173, Y: 42}
	back := RotatePoint(RotatePoint(p, center, 37), center, -37)
	assert.InDelta(t, p.X, back.X, 1e-6)
	assert.InDelta(t, p.Y, back.Y, 1e-6)
}

func TestUnrotateRect(t *testing.T) {
	center := Point{X: 500, Y: 500}
	r := Rect{X: 100, Y: 200, Width: 80, Height: 20}

	// No active rotation is a no-op.
	assert.Equal(t, r, UnrotateRect(r, center, 0))

	// Under a 90° page rotation the unrotated bounds swap width and height.
	got := UnrotateRect(r, center, 90)
	assert.InDelta(t, r.Height, got.Width, 1e-6)
	assert.InDelta(t, r.Width, got.Height, 1e-6)
}

func TestPointToSegmentDistance(t *testing.T) {
	a := Point{X: 0, Y: 0}
	b := Point{X: 10, Y: 0}

	tests := []struct {
		name string
		p    Point
		want float64
	}{
		{"above middle", Point{X: 5, Y: 3}, 3},
		{"on segment", Point{X: 7, Y: 0}, 0},
		{"beyond end clamps to endpoint", Point{X: 14, Y: 3}, 5},
		{"before start clamps to endpoint", Point{X: -3, Y: 4}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PointToSegmentDistance(tt.p, a, b), eps)
		})
	}

	// Degenerate zero-length segment.
	assert.InDelta(t, 5, PointToSegmentDistance(Point{X: 3, Y: 4}, a, a), eps)
}

func TestRectContainsWithMargin(t *testing.T) {
	r := Rect{X: 100, Y: 100, Width: 50, Height: 20}

	assert.True(t, r.Contains(Point{X: 125, Y: 110}, 0))
	assert.False(t, r.Contains(Point{X: 155, Y: 110}, 0))
	assert.True(t, r.Contains(Point{X: 155, Y: 110}, 5), "margin expands the hit region")
	assert.True(t, r.Contains(Point{X: 97, Y: 98}, 5))
}

func TestInUnitRangeRejectsCorrupt(t *testing.T) {
	assert.False(t, Rect{X: 145, Y: 320, Width: 80, Height: 18}.InUnitRange(), "pixel-scale values are out of range")
	assert.False(t, Rect{X: 0.9, Y: 0.5, Width: 0.2, Height: 0.1}.InUnitRange(), "x+width beyond 1")
	assert.False(t, Rect{X: math.NaN(), Y: 0.5, Width: 0.1, Height: 0.1}.InUnitRange())
	assert.True(t, Rect{X: 0.25, Y: 0.5, Width: 0.5, Height: 0.02}.InUnitRange())
}

func TestPathBounds(t *testing.T) {
	path := []Point{{X: 10, Y: 40}, {X: 50, Y: 10}, {X: 30, Y: 90}}
	got := PathBounds(path)
	assert.Equal(t, Rect{X: 10, Y: 10, Width: 40, Height: 80}, got)

	assert.Equal(t, Rect{}, PathBounds(nil))
}
