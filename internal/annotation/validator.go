package annotation

import (
	"log"

	"pdfreader-backend/internal/geometry"
	"pdfreader-backend/internal/model"
	"pdfreader-backend/internal/textlayer"
)

// Validate checks a text-anchored record's stored coordinates and attempts to
// recover suspect ones by re-locating the source text in the current layer.
//
// A record is suspect when any stored rectangle falls outside the unit range,
// which covers both corrupted unit coordinates and legacy pixel records.
// Recovery rewrites the geometry from the matched run boxes, re-normalized
// against the layer's box, and upgrades the record to normalized mode. When
// no match clears its threshold the record is returned unchanged rather than
// discarded. Valid records pass through untouched, so running the validator
// twice is a no-op.
func Validate(rec *model.Annotation, layer *textlayer.Layer) (*model.Annotation, bool) {
	if !model.AnnotationType(rec.Type).TextAnchored() {
		return rec, false
	}
	if rec.SourceText == nil || *rec.SourceText == "" {
		return rec, false
	}

	g, err := rec.DecodeGeometry()
	if err != nil {
		log.Printf("[Validate] annotation %s has undecodable geometry", rec.ID)
		return reanchor(rec, layer)
	}
	if rec.GeometryMode == model.GeometryNormalized.String() && len(g.Rects) > 0 && g.InUnitRange() {
		return rec, false
	}
	return reanchor(rec, layer)
}

// ValidatePage runs the validator over a page's records before their first
// render. Returns the (possibly repaired) list and how many records changed.
func ValidatePage(records []*model.Annotation, layer *textlayer.Layer) ([]*model.Annotation, int) {
	if layer == nil {
		return records, 0
	}
	out := make([]*model.Annotation, len(records))
	repaired := 0
	for i, rec := range records {
		fixed, changed := Validate(rec, layer)
		out[i] = fixed
		if changed {
			repaired++
		}
	}
	return out, repaired
}

func reanchor(rec *model.Annotation, layer *textlayer.Layer) (*model.Annotation, bool) {
	if layer == nil || !layer.Box.Valid() {
		return rec, false
	}

	match := layer.FindText(*rec.SourceText)
	if match == nil {
		// Non-fatal: the record stays as-is and may render misplaced.
		log.Printf("[Validate] no text match for annotation %s on page %d", rec.ID, rec.PageNumber)
		return rec, false
	}

	rects, ok := geometry.NormalizeRects(match.Rects, layer.Box)
	if !ok || len(rects) == 0 {
		return rec, false
	}

	fixed := *rec
	if err := fixed.SetGeometry(model.GeometryPayload{Rects: rects}); err != nil {
		return rec, false
	}
	fixed.GeometryMode = model.GeometryNormalized.String()
	fixed.Synced = false

	ctx, _ := model.DecodeCreationContext(rec.Metadata)
	ctx.CoordVersion = model.CoordVersionNormalized
	ctx.TextChecksum = model.TextChecksum(*rec.SourceText)
	if ctx.Page == 0 {
		ctx.Page = rec.PageNumber
	}
	meta := model.EncodeCreationContext(ctx)
	fixed.Metadata = &meta

	log.Printf("[Validate] recovered annotation %s via %s match", rec.ID, match.Strategy)
	return &fixed, true
}
