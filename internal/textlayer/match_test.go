package textlayer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfreader-backend/internal/geometry"
)

func testLayer() *Layer {
	return &Layer{
		PageNumber: 1,
		Box:        geometry.Box{Width: 800, Height: 1000},
		Runs: []Run{
			{Text: "The quick brown fox jumps", Rect: geometry.Rect{X: 50, Y: 100, Width: 300, Height: 16}},
			{Text: "over the lazy dog while the", Rect: geometry.Rect{X: 50, Y: 120, Width: 320, Height: 16}},
			{Text: "sun sets behind the hills.", Rect: geometry.Rect{X: 50, Y: 140, Width: 290, Height: 16}},
			{Text: "A completely unrelated paragraph", Rect: geometry.Rect{X: 50, Y: 180, Width: 340, Height: 16}},
			{Text: "about annotation storage design.", Rect: geometry.Rect{X: 50, Y: 200, Width: 330, Height: 16}},
		},
	}
}

func TestFindTextExact(t *testing.T) {
	layer := testLayer()

	m := layer.FindText("quick brown fox")
	require.NotNil(t, m)
	assert.Equal(t, MatchExact, m.Strategy)
	require.Len(t, m.Rects, 1)
	assert.Equal(t, layer.Runs[0].Rect, m.Rects[0])

	// Case-insensitive.
	m = layer.FindText("QUICK BROWN fox")
	require.NotNil(t, m)
	assert.Equal(t, MatchExact, m.Strategy)
}

func TestFindTextSpanningRuns(t *testing.T) {
	layer := testLayer()

	// Crosses the boundary between run 0 and run 1.
	m := layer.FindText("fox jumps over the lazy dog")
	require.NotNil(t, m)
	assert.Equal(t, MatchSpanning, m.Strategy)
	require.Len(t, m.Rects, 2)
	assert.Equal(t, layer.Runs[0].Rect, m.Rects[0])
	assert.Equal(t, layer.Runs[1].Rect, m.Rects[1])
}

func TestFindTextSpanningThreeRuns(t *testing.T) {
	layer := testLayer()

	m := layer.FindText("jumps over the lazy dog while the sun sets")
	require.NotNil(t, m)
	assert.Equal(t, MatchSpanning, m.Strategy)
	assert.Len(t, m.Rects, 3)
}

func TestFindTextFuzzy(t *testing.T) {
	layer := testLayer()

	// Wording differs ("dusk" is not on the page) but 4 of 5 words are
	// present in run 2, clearing the 60% threshold.
	m := layer.FindText("sun sets behind dusk hills")
	require.NotNil(t, m)
	assert.Equal(t, MatchFuzzy, m.Strategy)
	require.Len(t, m.Rects, 1)
	assert.Equal(t, layer.Runs[2].Rect, m.Rects[0])
}

func TestFindTextFuzzyBelowThreshold(t *testing.T) {
	layer := testLayer()

	// Only 1 of 4 words appears anywhere; no strategy should succeed.
	m := layer.FindText("galaxies collide near hills")
	assert.Nil(t, m)
}

func TestFindTextPartialFragment(t *testing.T) {
	layer := testLayer()

	// The first clause is nowhere on the page, the second one (longer than
	// 10 chars) matches a run exactly.
	m := layer.FindText("nonexistent preamble clause zz, annotation storage design")
	require.NotNil(t, m)
	assert.Equal(t, MatchPartial, m.Strategy)
	require.Len(t, m.Rects, 1)
	assert.Equal(t, layer.Runs[4].Rect, m.Rects[0])
}

func TestFindTextWhitespaceDifferences(t *testing.T) {
	layer := testLayer()

	m := layer.FindText("  the   quick\t brown   fox ")
	require.NotNil(t, m)
	assert.Equal(t, MatchExact, m.Strategy)
}

func TestFindTextEmptyInputs(t *testing.T) {
	layer := testLayer()
	assert.Nil(t, layer.FindText(""))
	assert.Nil(t, layer.FindText("   "))

	empty := &Layer{PageNumber: 1}
	assert.Nil(t, empty.FindText("anything"))
}

func TestPlainText(t *testing.T) {
	layer := &Layer{Runs: []Run{{Text: "line one"}, {Text: "line two"}}}
	assert.Equal(t, "line one\nline two", layer.PlainText())
}
