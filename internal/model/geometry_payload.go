package model

import (
	"encoding/json"
	"errors"

	"pdfreader-backend/internal/geometry"
)

var (
	ErrInvalidGeometry = errors.New("invalid geometry payload")
	ErrShortDrawing    = errors.New("drawing needs at least 2 points")
)

// GeometryPayload 주석 타입별 좌표 페이로드 (Geometry 컬럼에 JSON 저장)
//
// highlight/underline → Rects (라인별 사각형 목록)
// comment/sticky_note → Point (앵커 좌표 1개)
// drawing             → Path (폴리라인, 최소 2점)
type GeometryPayload struct {
	Rects []geometry.Rect  `json:"rects,omitempty"`
	Point *geometry.Point  `json:"point,omitempty"`
	Path  []geometry.Point `json:"path,omitempty"`
}

// ValidateFor 주석 타입에 맞는 페이로드인지 검증
func (g GeometryPayload) ValidateFor(t AnnotationType) error {
	switch t {
	case AnnotationHighlight, AnnotationUnderline:
		if len(g.Rects) == 0 {
			return ErrInvalidGeometry
		}
	case AnnotationComment, AnnotationStickyNote:
		if g.Point == nil {
			return ErrInvalidGeometry
		}
	case AnnotationDrawing:
		if len(g.Path) < 2 {
			return ErrShortDrawing
		}
	default:
		return ErrInvalidGeometry
	}
	return nil
}

// InUnitRange 모든 좌표가 단위 범위(0~1) 안에 있는지 확인
func (g GeometryPayload) InUnitRange() bool {
	for _, r := range g.Rects {
		if !r.InUnitRange() {
			return false
		}
	}
	if g.Point != nil && !g.Point.InUnitRange() {
		return false
	}
	for _, p := range g.Path {
		if !p.InUnitRange() {
			return false
		}
	}
	return true
}

// DecodeGeometry Geometry 컬럼의 JSON 역직렬화
func (a *Annotation) DecodeGeometry() (GeometryPayload, error) {
	var g GeometryPayload
	if err := json.Unmarshal([]byte(a.Geometry), &g); err != nil {
		return GeometryPayload{}, ErrInvalidGeometry
	}
	return g, nil
}

// SetGeometry 페이로드를 JSON으로 직렬화하여 저장
func (a *Annotation) SetGeometry(g GeometryPayload) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	a.Geometry = string(data)
	return nil
}

// DecodeTags Tags 컬럼의 JSON 역직렬화
func (a *Annotation) DecodeTags() []string {
	if a.Tags == nil || *a.Tags == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(*a.Tags), &tags); err != nil {
		return nil
	}
	return tags
}

// SetTags 태그 목록을 JSON으로 직렬화하여 저장
func (a *Annotation) SetTags(tags []string) {
	if len(tags) == 0 {
		a.Tags = nil
		return
	}
	data, _ := json.Marshal(tags)
	s := string(data)
	a.Tags = &s
}
