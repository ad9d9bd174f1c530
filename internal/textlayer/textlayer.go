// Package textlayer models the selectable text layer of a rendered PDF page:
// a measured bounding box plus text runs with per-run rectangles. Layers come
// from two sources with the same shape: the viewer reports its measured layer
// per page, and the server derives one from the stored PDF for pages the
// viewer has not reported yet (AI anchoring, coordinate recovery).
package textlayer

import (
	"strings"

	"pdfreader-backend/internal/geometry"
)

// Run is a horizontal segment of selectable text with its bounding box,
// in screen pixels relative to the layer box origin.
type Run struct {
	Text string        `json:"text"`
	Rect geometry.Rect `json:"rect"`
}

// Layer is the text layer of a single page.
type Layer struct {
	PageNumber int            `json:"page_number"`
	Box        geometry.Box   `json:"box"`
	Runs       []Run          `json:"runs"`
}

// PlainText joins the layer's runs into one string, one run per line.
func (l *Layer) PlainText() string {
	parts := make([]string, len(l.Runs))
	for i, r := range l.Runs {
		parts[i] = r.Text
	}
	return strings.Join(parts, "\n")
}
