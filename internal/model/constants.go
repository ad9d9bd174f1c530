package model

// AnnotationType 주석 타입
type AnnotationType string

const (
	AnnotationHighlight  AnnotationType = "highlight"
	AnnotationUnderline  AnnotationType = "underline"
	AnnotationComment    AnnotationType = "comment"
	AnnotationStickyNote AnnotationType = "sticky_note"
	AnnotationDrawing    AnnotationType = "drawing"
)

func (t AnnotationType) String() string {
	return string(t)
}

// Valid 지원하는 주석 타입인지 확인
func (t AnnotationType) Valid() bool {
	switch t {
	case AnnotationHighlight, AnnotationUnderline, AnnotationComment,
		AnnotationStickyNote, AnnotationDrawing:
		return true
	}
	return false
}

// TextAnchored sourceText 기반 복구 대상 타입인지 확인
func (t AnnotationType) TextAnchored() bool {
	return t == AnnotationHighlight || t == AnnotationUnderline
}

// GeometryMode 좌표 저장 방식
type GeometryMode string

const (
	// GeometryNormalized 텍스트 레이어 기준 단위 좌표 (0~1)
	GeometryNormalized GeometryMode = "normalized"
	// GeometryLegacyAbsolute 구버전 절대 픽셀 좌표 (하위 호환)
	GeometryLegacyAbsolute GeometryMode = "legacy_absolute"
)

func (m GeometryMode) String() string {
	return string(m)
}

// Origin 주석 생성 주체
type Origin string

const (
	OriginUser        Origin = "user"
	OriginAISuggested Origin = "ai_suggested"
)

func (o Origin) String() string {
	return string(o)
}

// ToolMode 뷰어 활성 도구 (상호 배타적)
type ToolMode string

const (
	ToolHighlight  ToolMode = "highlight"
	ToolUnderline  ToolMode = "underline"
	ToolDraw       ToolMode = "draw"
	ToolComment    ToolMode = "comment"
	ToolStickyNote ToolMode = "sticky_note"
	ToolErase      ToolMode = "erase"
)

func (t ToolMode) String() string {
	return string(t)
}

// Valid 지원하는 도구인지 확인
func (t ToolMode) Valid() bool {
	switch t {
	case ToolHighlight, ToolUnderline, ToolDraw, ToolComment, ToolStickyNote, ToolErase:
		return true
	}
	return false
}

// CoordVersionNormalized 단위 좌표 포맷 버전 태그
const CoordVersionNormalized = "v2"

// CoordVersionLegacy 절대 픽셀 포맷 버전 태그
const CoordVersionLegacy = "v1"

// MaxAttachmentBytes 스티키 노트 첨부파일 최대 크기 (개당)
const MaxAttachmentBytes = 5 * 1024 * 1024 // 5MB

// 타입/출처별 기본 색상
var defaultColors = map[AnnotationType]string{
	AnnotationHighlight:  "#ffeb3b",
	AnnotationUnderline:  "#f44336",
	AnnotationComment:    "#2196f3",
	AnnotationStickyNote: "#ffc107",
	AnnotationDrawing:    "#4caf50",
}

var aiDefaultColors = map[AnnotationType]string{
	AnnotationHighlight: "#b39ddb",
	AnnotationUnderline: "#9575cd",
}

// DefaultColor 타입과 출처에 따른 기본 색상 반환
func DefaultColor(t AnnotationType, origin Origin) string {
	if origin == OriginAISuggested {
		if c, ok := aiDefaultColors[t]; ok {
			return c
		}
	}
	if c, ok := defaultColors[t]; ok {
		return c
	}
	return "#ffeb3b"
}
