package annotation

import (
	"pdfreader-backend/internal/geometry"
	"pdfreader-backend/internal/model"
)

// DefaultTolerance is the extra hit margin in screen pixels, making small
// targets (thin underlines, 1px drawing strokes) easier to erase.
const DefaultTolerance = 4.0

// widgetSize is the on-screen size of the comment / sticky-note marker,
// whose hit box is centered on the stored anchor point.
const widgetSize = 24.0

// FindAt returns the topmost annotation occupying the given screen point,
// or nil. Records are expected in creation order; iteration runs newest
// first so overlapping annotations resolve to the last-drawn one.
//
// Normalized geometry is denormalized against the page's current text-layer
// box on every call; legacy records are tested against their stored pixel
// values as-is.
func FindAt(p geometry.Point, records []*model.Annotation, box geometry.Box, tolerance float64) *model.Annotation {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		g, err := rec.DecodeGeometry()
		if err != nil {
			continue
		}
		if hit(p, rec, g, box, tolerance) {
			return rec
		}
	}
	return nil
}

func hit(p geometry.Point, rec *model.Annotation, g model.GeometryPayload, box geometry.Box, tolerance float64) bool {
	normalized := rec.GeometryMode == model.GeometryNormalized.String()

	switch model.AnnotationType(rec.Type) {
	case model.AnnotationHighlight, model.AnnotationUnderline:
		for _, r := range g.Rects {
			if normalized {
				r = geometry.DenormalizeRect(r, box)
			}
			if r.Contains(p, tolerance) {
				return true
			}
		}

	case model.AnnotationComment, model.AnnotationStickyNote:
		if g.Point == nil {
			return false
		}
		anchor := *g.Point
		if normalized {
			anchor = geometry.DenormalizePoint(anchor, box)
		}
		widget := geometry.Rect{
			X:      anchor.X - widgetSize/2,
			Y:      anchor.Y - widgetSize/2,
			Width:  widgetSize,
			Height: widgetSize,
		}
		return widget.Contains(p, tolerance)

	case model.AnnotationDrawing:
		path := g.Path
		if normalized {
			path = geometry.DenormalizePath(path, box)
		}
		for i := 0; i+1 < len(path); i++ {
			if geometry.PointToSegmentDistance(p, path[i], path[i+1]) <= tolerance {
				return true
			}
		}
	}
	return false
}
