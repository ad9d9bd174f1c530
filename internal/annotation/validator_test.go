package annotation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfreader-backend/internal/geometry"
	"pdfreader-backend/internal/model"
	"pdfreader-backend/internal/textlayer"
)

func testLayer() *textlayer.Layer {
	return &textlayer.Layer{
		PageNumber: 1,
		Box:        geometry.Box{Width: 800, Height: 1000},
		Runs: []textlayer.Run{
			{Text: "The quick brown fox jumps", Rect: geometry.Rect{X: 140, Y: 318, Width: 300, Height: 20}},
			{Text: "over the lazy dog near the", Rect: geometry.Rect{X: 140, Y: 342, Width: 310, Height: 20}},
			{Text: "river bank at sunset today.", Rect: geometry.Rect{X: 140, Y: 366, Width: 290, Height: 20}},
		},
	}
}

func recordWithGeometry(t *testing.T, sourceText string, mode model.GeometryMode, g model.GeometryPayload) *model.Annotation {
	t.Helper()
	rec := &model.Annotation{
		ID:           uuid.NewString(),
		DocumentID:   1,
		UserID:       7,
		PageNumber:   1,
		Type:         model.AnnotationHighlight.String(),
		GeometryMode: mode.String(),
		Origin:       model.OriginUser.String(),
	}
	if sourceText != "" {
		rec.SourceText = &sourceText
	}
	require.NoError(t, rec.SetGeometry(g))
	return rec
}

func TestValidateRecoversPixelScaleRecord(t *testing.T) {
	layer := testLayer()

	// A record saved before normalization existed carries raw pixel values.
	rec := recordWithGeometry(t, "The quick brown fox jumps", model.GeometryLegacyAbsolute, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 145, Y: 320, Width: 80, Height: 18}},
	})

	fixed, changed := Validate(rec, layer)
	require.True(t, changed)
	assert.Equal(t, model.GeometryNormalized.String(), fixed.GeometryMode)
	assert.False(t, fixed.Synced)

	g, err := fixed.DecodeGeometry()
	require.NoError(t, err)
	require.Len(t, g.Rects, 1)
	assert.True(t, g.InUnitRange())

	// The repaired rect comes from the matched run, normalized against
	// the layer box, not from the corrupt stored values.
	assert.InDelta(t, 140.0/800.0, g.Rects[0].X, 1e-9)
	assert.InDelta(t, 318.0/1000.0, g.Rects[0].Y, 1e-9)
	assert.InDelta(t, 300.0/800.0, g.Rects[0].Width, 1e-9)
	assert.InDelta(t, 20.0/1000.0, g.Rects[0].Height, 1e-9)

	// Metadata records the coordinate upgrade.
	ctx, ok := model.DecodeCreationContext(fixed.Metadata)
	require.True(t, ok)
	assert.Equal(t, model.CoordVersionNormalized, ctx.CoordVersion)
	assert.Equal(t, model.TextChecksum("The quick brown fox jumps"), ctx.TextChecksum)

	// Original record is left untouched.
	assert.Equal(t, model.GeometryLegacyAbsolute.String(), rec.GeometryMode)
}

func TestValidateIsIdempotent(t *testing.T) {
	layer := testLayer()
	rec := recordWithGeometry(t, "The quick brown fox jumps", model.GeometryLegacyAbsolute, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 145, Y: 320, Width: 80, Height: 18}},
	})

	fixed, changed := Validate(rec, layer)
	require.True(t, changed)

	again, changed := Validate(fixed, layer)
	assert.False(t, changed)
	assert.Equal(t, fixed.Geometry, again.Geometry)
}

func TestValidatePassesValidRecordThrough(t *testing.T) {
	layer := testLayer()
	rec := recordWithGeometry(t, "The quick brown fox jumps", model.GeometryNormalized, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 0.175, Y: 0.318, Width: 0.375, Height: 0.02}},
	})

	fixed, changed := Validate(rec, layer)
	assert.False(t, changed)
	assert.Same(t, rec, fixed)
}

func TestValidateSkipsNonTextTypes(t *testing.T) {
	layer := testLayer()
	rec := recordWithGeometry(t, "", model.GeometryNormalized, model.GeometryPayload{
		Point: &geometry.Point{X: 2.4, Y: 3.8},
	})
	rec.Type = model.AnnotationComment.String()

	fixed, changed := Validate(rec, layer)
	assert.False(t, changed)
	assert.Same(t, rec, fixed)
}

func TestValidateKeepsRecordWhenTextNotFound(t *testing.T) {
	layer := testLayer()
	rec := recordWithGeometry(t, "completely absent phrasing", model.GeometryLegacyAbsolute, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 145, Y: 320, Width: 80, Height: 18}},
	})

	fixed, changed := Validate(rec, layer)
	assert.False(t, changed)
	assert.Same(t, rec, fixed)
	// Geometry stays as stored; the record may render misplaced but is
	// never dropped.
	g, err := fixed.DecodeGeometry()
	require.NoError(t, err)
	assert.InDelta(t, 145.0, g.Rects[0].X, 1e-9)
}

func TestValidateRecoversViaFuzzyMatch(t *testing.T) {
	layer := testLayer()

	// Source text that no longer matches any run exactly but shares most
	// of its words with one, as AI-suggested highlights often do.
	rec := recordWithGeometry(t, "quick brown fox jumps high", model.GeometryLegacyAbsolute, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 145, Y: 320, Width: 80, Height: 18}},
	})

	fixed, changed := Validate(rec, layer)
	require.True(t, changed)
	g, err := fixed.DecodeGeometry()
	require.NoError(t, err)
	assert.True(t, g.InUnitRange())
}

func TestValidatePage(t *testing.T) {
	layer := testLayer()
	good := recordWithGeometry(t, "The quick brown fox jumps", model.GeometryNormalized, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 0.175, Y: 0.318, Width: 0.375, Height: 0.02}},
	})
	broken := recordWithGeometry(t, "over the lazy dog near the", model.GeometryLegacyAbsolute, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 140, Y: 342, Width: 310, Height: 20}},
	})

	out, repaired := ValidatePage([]*model.Annotation{good, broken}, layer)
	require.Len(t, out, 2)
	assert.Equal(t, 1, repaired)
	assert.Same(t, good, out[0])
	assert.Equal(t, model.GeometryNormalized.String(), out[1].GeometryMode)
}

func TestValidatePageNilLayer(t *testing.T) {
	broken := recordWithGeometry(t, "The quick brown fox jumps", model.GeometryLegacyAbsolute, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 145, Y: 320, Width: 80, Height: 18}},
	})

	out, repaired := ValidatePage([]*model.Annotation{broken}, nil)
	assert.Equal(t, 0, repaired)
	assert.Same(t, broken, out[0])
}

func TestValidateThenHitTestFindsRepairedRecord(t *testing.T) {
	layer := testLayer()
	rec := recordWithGeometry(t, "The quick brown fox jumps", model.GeometryLegacyAbsolute, model.GeometryPayload{
		Rects: []geometry.Rect{{X: 145, Y: 320, Width: 80, Height: 18}},
	})

	out, repaired := ValidatePage([]*model.Annotation{rec}, layer)
	require.Equal(t, 1, repaired)

	// The viewer is now at half zoom, so the erase click arrives in a
	// 400x500 box. The repaired unit coordinates land on the text there;
	// the stale stored pixels would not.
	box := geometry.Box{Width: 400, Height: 500}
	click := geometry.Point{X: 100, Y: 165}

	assert.Same(t, out[0], FindAt(click, out, box, DefaultTolerance))
	assert.Nil(t, FindAt(click, []*model.Annotation{rec}, box, DefaultTolerance))
}
