package textlayer

import (
	"strings"

	"pdfreader-backend/internal/geometry"
)

// MatchStrategy identifies which search strategy located the text.
type MatchStrategy string

const (
	MatchExact    MatchStrategy = "exact"    // substring within a single run
	MatchSpanning MatchStrategy = "spanning" // concatenation of consecutive runs
	MatchFuzzy    MatchStrategy = "fuzzy"    // word-overlap >= 60%
	MatchPartial  MatchStrategy = "partial"  // sentence-fragment match
)

// Maximum number of consecutive runs concatenated when searching for text
// that spans run boundaries (line wraps, styled spans).
const maxSpanRuns = 5

// Minimum share of search words that must appear in a run for a fuzzy match.
const fuzzyWordThreshold = 0.6

// Fragments at or below this length are too ambiguous for partial matching.
const minFragmentLen = 10

// Match is the result of locating a piece of source text in a layer.
type Match struct {
	Rects    []geometry.Rect // screen-space rects of the matched run(s)
	Strategy MatchStrategy
}

// FindText locates needle in the layer's runs, trying progressively looser
// strategies. The first strategy that succeeds wins. Returns nil when no
// strategy clears its threshold.
func (l *Layer) FindText(needle string) *Match {
	needle = collapseSpaces(needle)
	if needle == "" || len(l.Runs) == 0 {
		return nil
	}
	lowered := strings.ToLower(needle)

	if m := l.findExact(lowered); m != nil {
		return m
	}
	if m := l.findSpanning(lowered); m != nil {
		return m
	}
	if m := l.findFuzzy(lowered); m != nil {
		return m
	}
	return l.findPartial(lowered)
}

func (l *Layer) findExact(needle string) *Match {
	for _, run := range l.Runs {
		if strings.Contains(runKey(run.Text), needle) {
			return &Match{Rects: []geometry.Rect{run.Rect}, Strategy: MatchExact}
		}
	}
	return nil
}

// findSpanning concatenates up to maxSpanRuns consecutive runs to catch text
// crossing run boundaries. All runs in the matched window contribute rects,
// one per visually distinct segment.
func (l *Layer) findSpanning(needle string) *Match {
	for size := 2; size <= maxSpanRuns; size++ {
		for start := 0; start+size <= len(l.Runs); start++ {
			parts := make([]string, size)
			for i := 0; i < size; i++ {
				parts[i] = runKey(l.Runs[start+i].Text)
			}
			joined := strings.Join(parts, " ")
			if !strings.Contains(joined, needle) {
				continue
			}
			rects := make([]geometry.Rect, size)
			for i := 0; i < size; i++ {
				rects[i] = l.Runs[start+i].Rect
			}
			return &Match{Rects: rects, Strategy: MatchSpanning}
		}
	}
	return nil
}

// findFuzzy picks the run containing the largest share of the search words,
// provided at least 60% of them are present. Tolerates whitespace and minor
// wording differences in AI-suggested source text.
func (l *Layer) findFuzzy(needle string) *Match {
	words := strings.Fields(needle)
	if len(words) == 0 {
		return nil
	}

	bestIdx := -1
	bestRatio := 0.0
	for i, run := range l.Runs {
		key := runKey(run.Text)
		found := 0
		for _, w := range words {
			if strings.Contains(key, w) {
				found++
			}
		}
		ratio := float64(found) / float64(len(words))
		if ratio > bestRatio {
			bestRatio = ratio
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestRatio < fuzzyWordThreshold {
		return nil
	}
	return &Match{Rects: []geometry.Rect{l.Runs[bestIdx].Rect}, Strategy: MatchFuzzy}
}

// findPartial splits the needle into sentence fragments and matches the first
// fragment longer than minFragmentLen that appears in a run.
func (l *Layer) findPartial(needle string) *Match {
	for _, frag := range splitFragments(needle) {
		if len(frag) <= minFragmentLen {
			continue
		}
		for _, run := range l.Runs {
			if strings.Contains(runKey(run.Text), frag) {
				return &Match{Rects: []geometry.Rect{run.Rect}, Strategy: MatchPartial}
			}
		}
	}
	return nil
}

// runKey normalizes run text for comparison: lower-cased, whitespace collapsed.
func runKey(s string) string {
	return strings.ToLower(collapseSpaces(s))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitFragments breaks text at sentence punctuation and commas.
func splitFragments(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '.', ',', ';', ':', '!', '?':
			return true
		}
		return false
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
