package model

import (
	"encoding/json"
	"time"
)

// User 사용자
type User struct {
	ID           int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname     string  `gorm:"type:varchar(100);not null" json:"nickname"`
	PasswordHash *string `gorm:"type:varchar(255)" json:"-"`
	ProfileImg   *string `gorm:"type:text" json:"profile_img,omitempty"`
	Provider     *string `gorm:"type:varchar(50)" json:"provider,omitempty"`
	ProviderID   *string `gorm:"type:varchar(255)" json:"provider_id,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Documents []Document       `gorm:"foreignKey:OwnerID" json:"documents,omitempty"`
	Sessions  []ReadingSession `gorm:"foreignKey:UserID" json:"sessions,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Document 업로드된 PDF 문서
type Document struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   int64     `gorm:"not null;index" json:"owner_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	FilePath  string    `gorm:"type:varchar(500);not null" json:"file_path"`
	FileSize  int64     `gorm:"not null" json:"file_size"`
	PageCount int       `gorm:"not null" json:"page_count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Owner       User         `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Annotations []Annotation `gorm:"foreignKey:DocumentID" json:"annotations,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}

// Annotation 페이지 주석
//
// Geometry에는 타입별 좌표 페이로드가 JSON으로 저장된다.
// GeometryMode가 normalized이면 값은 텍스트 레이어 기준 단위 좌표(0~1),
// legacy_absolute이면 생성 당시 절대 픽셀 좌표 그대로이다.
type Annotation struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DocumentID   int64     `gorm:"not null;index:idx_doc_page" json:"document_id"`
	UserID       int64     `gorm:"not null;index" json:"user_id"`
	PageNumber   int       `gorm:"not null;index:idx_doc_page" json:"page_number"` // 1-based, 생성 후 불변
	Type         string    `gorm:"type:varchar(20);not null" json:"type"`
	GeometryMode string    `gorm:"type:varchar(20);not null;default:'normalized'" json:"geometry_mode"`
	Geometry     string    `gorm:"type:jsonb;not null" json:"geometry"`
	Color        string    `gorm:"type:varchar(20);not null" json:"color"`
	SourceText   *string   `gorm:"type:text" json:"source_text,omitempty"` // 복구용 원본 텍스트
	Content      *string   `gorm:"type:text" json:"content,omitempty"`
	Metadata     *string   `gorm:"type:jsonb" json:"metadata,omitempty"`
	Tags         *string   `gorm:"type:jsonb" json:"tags,omitempty"`
	Origin       string    `gorm:"type:varchar(20);not null;default:'user'" json:"origin"`
	AICategory   *string   `gorm:"type:varchar(50)" json:"ai_category,omitempty"`
	AIImportance *int      `gorm:"type:smallint" json:"ai_importance,omitempty"`
	AIReason     *string   `gorm:"type:text" json:"ai_reason,omitempty"`
	Synced       bool      `gorm:"default:true" json:"synced"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// Relations
	Document    Document               `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
	User        User                   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Attachments []AnnotationAttachment `gorm:"foreignKey:AnnotationID" json:"attachments,omitempty"`
}

func (Annotation) TableName() string {
	return "annotations"
}

// AnnotationAttachment 스티키 노트 첨부파일 (소용량 블롭)
type AnnotationAttachment struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AnnotationID string    `gorm:"type:varchar(36);not null;index" json:"annotation_id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	MimeType     string    `gorm:"type:varchar(100);not null" json:"mime_type"`
	Size         int64     `gorm:"not null" json:"size"`
	Data         []byte    `gorm:"type:bytea;not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Annotation Annotation `gorm:"foreignKey:AnnotationID" json:"annotation,omitempty"`
}

func (AnnotationAttachment) TableName() string {
	return "annotation_attachments"
}

// PageTextLayer 뷰어가 보고한 페이지 텍스트 레이어 (박스 + 런 목록)
type PageTextLayer struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID int64     `gorm:"not null;uniqueIndex:idx_layer_doc_page" json:"document_id"`
	PageNumber int       `gorm:"not null;uniqueIndex:idx_layer_doc_page" json:"page_number"`
	BoxWidth   float64   `gorm:"not null" json:"box_width"`
	BoxHeight  float64   `gorm:"not null" json:"box_height"`
	Runs       string    `gorm:"type:jsonb;not null" json:"runs"` // JSON array of runs
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Document Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
}

func (PageTextLayer) TableName() string {
	return "page_text_layers"
}

// ReadingSession 읽기 세션 (대시보드 통계용)
type ReadingSession struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64      `gorm:"not null;index" json:"user_id"`
	DocumentID      int64      `gorm:"not null;index" json:"document_id"`
	StartedAt       time.Time  `gorm:"autoCreateTime" json:"started_at"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int64      `gorm:"default:0" json:"duration_seconds"`
	LastPage        int        `gorm:"default:1" json:"last_page"`
	ActiveTool      string     `gorm:"type:varchar(20);default:'highlight'" json:"active_tool"`

	// Relations
	User     User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Document Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
}

func (ReadingSession) TableName() string {
	return "reading_sessions"
}

// PageProgress 페이지별 읽기 진행도
type PageProgress struct {
	UserID      int64     `gorm:"primaryKey" json:"user_id"`
	DocumentID  int64     `gorm:"primaryKey" json:"document_id"`
	PageNumber  int       `gorm:"primaryKey" json:"page_number"`
	ReadSeconds int64     `gorm:"default:0" json:"read_seconds"`
	LastReadAt  time.Time `json:"last_read_at"`
}

func (PageProgress) TableName() string {
	return "page_progress"
}

// CreationContext 주석 생성 당시의 뷰어 상태 (Metadata 컬럼에 JSON 저장)
type CreationContext struct {
	Page         int     `json:"page"`
	Zoom         float64 `json:"zoom"`
	Rotation     float64 `json:"rotation"`
	CoordVersion string  `json:"coord_version"`
	TextChecksum int     `json:"text_checksum"` // sourceText 길이 기반 간이 체크섬
}

// EncodeCreationContext CreationContext를 JSON 문자열로 직렬화
func EncodeCreationContext(ctx CreationContext) string {
	data, _ := json.Marshal(ctx)
	return string(data)
}

// DecodeCreationContext Metadata 컬럼의 JSON 역직렬화
func DecodeCreationContext(raw *string) (CreationContext, bool) {
	if raw == nil || *raw == "" {
		return CreationContext{}, false
	}
	var ctx CreationContext
	if err := json.Unmarshal([]byte(*raw), &ctx); err != nil {
		return CreationContext{}, false
	}
	return ctx, true
}

// TextChecksum sourceText에 대한 간이 체크섬 (길이 기반 타당성 검사용)
func TextChecksum(s string) int {
	return len(s)
}
