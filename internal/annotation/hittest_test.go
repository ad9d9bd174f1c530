package annotation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfreader-backend/internal/geometry"
	"pdfreader-backend/internal/model"
)

func hitTestRecord(t *testing.T, typ model.AnnotationType, mode model.GeometryMode, g model.GeometryPayload, created time.Time) *model.Annotation {
	t.Helper()
	rec := &model.Annotation{
		ID:           uuid.NewString(),
		DocumentID:   1,
		UserID:       7,
		PageNumber:   1,
		Type:         typ.String(),
		GeometryMode: mode.String(),
		Origin:       model.OriginUser.String(),
		CreatedAt:    created,
	}
	require.NoError(t, rec.SetGeometry(g))
	return rec
}

func TestFindAtHighlightRect(t *testing.T) {
	box := geometry.Box{Width: 800, Height: 1000}
	rec := hitTestRecord(t, model.AnnotationHighlight, model.GeometryNormalized, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 0.1, Y: 0.3, Width: 0.2, Height: 0.02}},
	}, time.Now())
	records := []*model.Annotation{rec}

	// Screen rect is 80..240 x 300..320.
	assert.Same(t, rec, FindAt(geometry.Point{X: 150, Y: 310}, records, box, DefaultTolerance))

	// Just outside, within tolerance.
	assert.Same(t, rec, FindAt(geometry.Point{X: 243, Y: 310}, records, box, DefaultTolerance))

	// Beyond tolerance.
	assert.Nil(t, FindAt(geometry.Point{X: 250, Y: 310}, records, box, DefaultTolerance))
}

func TestFindAtPrefersMostRecent(t *testing.T) {
	box := geometry.Box{Width: 800, Height: 1000}
	base := time.Now()

	// Two highlights overlapping in 150..240 x 300..320.
	older := hitTestRecord(t, model.AnnotationHighlight, model.GeometryNormalized, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 0.1, Y: 0.3, Width: 0.2, Height: 0.02}},
	}, base)
	newer := hitTestRecord(t, model.AnnotationHighlight, model.GeometryNormalized, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 0.1875, Y: 0.3, Width: 0.2, Height: 0.02}},
	}, base.Add(time.Second))
	records := []*model.Annotation{older, newer}

	click := geometry.Point{X: 200, Y: 310}
	assert.Same(t, newer, FindAt(click, records, box, DefaultTolerance))

	// With the newer one erased, the same click resolves to the older one.
	assert.Same(t, older, FindAt(click, []*model.Annotation{older}, box, DefaultTolerance))
}

func TestFindAtDrawingPath(t *testing.T) {
	box := geometry.Box{Width: 800, Height: 1000}
	rec := hitTestRecord(t, model.AnnotationDrawing, model.GeometryNormalized, model.GeometryPayload{
		Path: []geometry.Point{
			{X: 0.1, Y: 0.1},
			{X: 0.5, Y: 0.1},
			{X: 0.5, Y: 0.4},
		},
	}, time.Now())
	records := []*model.Annotation{rec}

	// On the horizontal segment (screen y=100, x in 80..400).
	assert.Same(t, rec, FindAt(geometry.Point{X: 200, Y: 100}, records, box, DefaultTolerance))

	// Near the vertical segment, within tolerance.
	assert.Same(t, rec, FindAt(geometry.Point{X: 403, Y: 250}, records, box, DefaultTolerance))

	// Inside the L shape but far from both segments. A bounding-box test
	// would wrongly hit here.
	assert.Nil(t, FindAt(geometry.Point{X: 250, Y: 300}, records, box, DefaultTolerance))
}

func TestFindAtWidgetTypes(t *testing.T) {
	box := geometry.Box{Width: 800, Height: 1000}
	rec := hitTestRecord(t, model.AnnotationStickyNote, model.GeometryNormalized, model.GeometryPayload{
		Point: &geometry.Point{X: 0.5, Y: 0.5},
	}, time.Now())
	records := []*model.Annotation{rec}

	// Anchor is at screen (400, 500); the marker hit box spans 24px around it.
	assert.Same(t, rec, FindAt(geometry.Point{X: 408, Y: 495}, records, box, DefaultTolerance))
	assert.Nil(t, FindAt(geometry.Point{X: 430, Y: 500}, records, box, DefaultTolerance))
}

func TestFindAtLegacyRecordUsesStoredPixels(t *testing.T) {
	box := geometry.Box{Width: 800, Height: 1000}
	rec := hitTestRecord(t, model.AnnotationHighlight, model.GeometryLegacyAbsolute, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 145, Y: 320, Width: 80, Height: 18}},
	}, time.Now())
	records := []*model.Annotation{rec}

	assert.Same(t, rec, FindAt(geometry.Point{X: 180, Y: 330}, records, box, DefaultTolerance))
	assert.Nil(t, FindAt(geometry.Point{X: 600, Y: 330}, records, box, DefaultTolerance))
}

func TestFindAtEmptyAndUndecodable(t *testing.T) {
	box := geometry.Box{Width: 800, Height: 1000}
	assert.Nil(t, FindAt(geometry.Point{X: 10, Y: 10}, nil, box, DefaultTolerance))

	broken := &model.Annotation{
		ID:       uuid.NewString(),
		Type:     model.AnnotationHighlight.String(),
		Geometry: "{not json",
	}
	assert.Nil(t, FindAt(geometry.Point{X: 10, Y: 10}, []*model.Annotation{broken}, box, DefaultTolerance))
}
