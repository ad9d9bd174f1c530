package textlayer

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	ltpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdfreader-backend/internal/geometry"
)

// Glyphs whose baselines differ by less than this many points belong to the
// same text row.
const rowTolerance = 2.0

// ValidatePDF checks that data is a readable PDF and returns its page count.
func ValidatePDF(data []byte) (int, error) {
	conf := pdfcpumodel.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("invalid pdf: %w", err)
	}
	return ctx.PageCount, nil
}

// ExtractPageText returns the embedded text of a single page. Scanned
// (image-only) pages yield an empty string; OCR is not attempted.
func ExtractPageText(data []byte, pageNumber int) (string, error) {
	r, err := ltpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	if pageNumber < 1 || pageNumber > r.NumPage() {
		return "", fmt.Errorf("page %d out of range (1-%d)", pageNumber, r.NumPage())
	}
	page := r.Page(pageNumber)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("read page %d: %w", pageNumber, err)
	}
	return strings.TrimSpace(text), nil
}

// ExtractText returns the embedded text of the requested pages. An empty page
// list means all pages. Unreadable pages are skipped rather than failing the
// whole extraction.
func ExtractText(data []byte, pages []int) (map[int]string, error) {
	r, err := ltpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	wanted := make(map[int]bool, len(pages))
	for _, p := range pages {
		wanted[p] = true
	}

	out := make(map[int]string)
	for i := 1; i <= r.NumPage(); i++ {
		if len(pages) > 0 && !wanted[i] {
			continue
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // skip unreadable pages
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			out[i] = trimmed
		}
	}
	return out, nil
}

// DeriveLayer builds a text layer for a page from the PDF itself: glyphs are
// grouped into rows and each row becomes one run with a bounding box in the
// page's own coordinate space (points, top-left origin). Used as the recovery
// reference when the viewer has not reported a measured layer for the page.
func DeriveLayer(data []byte, pageNumber int) (*Layer, error) {
	r, err := ltpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	if pageNumber < 1 || pageNumber > r.NumPage() {
		return nil, fmt.Errorf("page %d out of range (1-%d)", pageNumber, r.NumPage())
	}
	page := r.Page(pageNumber)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d has no content", pageNumber)
	}

	box := mediaBox(page)
	layer := &Layer{PageNumber: pageNumber, Box: box}

	content := page.Content()
	if len(content.Text) == 0 {
		return layer, nil
	}

	// Group glyphs into rows by baseline Y.
	rows := make(map[float64][]ltpdf.Text)
	var keys []float64
	for _, t := range content.Text {
		matched := false
		for _, k := range keys {
			if math.Abs(k-t.Y) <= rowTolerance {
				rows[k] = append(rows[k], t)
				matched = true
				break
			}
		}
		if !matched {
			keys = append(keys, t.Y)
			rows[t.Y] = append(rows[t.Y], t)
		}
	}

	// PDF Y grows upward; rows are emitted top of page first.
	sort.Sort(sort.Reverse(sort.Float64Slice(keys)))

	for _, k := range keys {
		glyphs := rows[k]
		sort.Slice(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

		var sb strings.Builder
		minX := glyphs[0].X
		maxX := minX
		maxSize := 0.0
		for _, g := range glyphs {
			sb.WriteString(g.S)
			if right := g.X + g.W; right > maxX {
				maxX = right
			}
			if g.FontSize > maxSize {
				maxSize = g.FontSize
			}
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		if maxSize == 0 {
			maxSize = 12
		}

		layer.Runs = append(layer.Runs, Run{
			Text: text,
			Rect: geometry.Rect{
				X:      minX,
				Y:      box.Height - k - maxSize, // flip to top-left origin
				Width:  maxX - minX,
				Height: maxSize,
			},
		})
	}
	return layer, nil
}

// mediaBox reads the page size from the MediaBox entry, defaulting to US
// Letter when it is missing or malformed.
func mediaBox(page ltpdf.Page) geometry.Box {
	mb := page.V.Key("MediaBox")
	if mb.IsNull() || mb.Len() < 4 {
		return geometry.Box{Width: 612, Height: 792}
	}
	w := mb.Index(2).Float64() - mb.Index(0).Float64()
	h := mb.Index(3).Float64() - mb.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return geometry.Box{Width: 612, Height: 792}
	}
	return geometry.Box{Width: w, Height: h}
}
