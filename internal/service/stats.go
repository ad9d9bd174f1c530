package service

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdfreader-backend/internal/model"
)

// maxHeartbeatGap 하트비트 사이 읽기 시간으로 인정하는 최대 간격.
// 탭을 켜둔 채 자리를 비운 시간은 독서 시간에서 제외한다.
const maxHeartbeatGap = 60 * time.Second

var ErrSessionClosed = errors.New("reading session already ended")

// StatsService 독서 세션/통계 관련 비즈니스 로직
type StatsService struct {
	db *gorm.DB
}

// NewStatsService StatsService 생성
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// StartSession 새 독서 세션 시작. 끝나지 않은 기존 세션은 닫는다.
func (s *StatsService) StartSession(userID, documentID int64) (*model.ReadingSession, error) {
	now := time.Now()
	s.db.Model(&model.ReadingSession{}).
		Where("user_id = ? AND document_id = ? AND ended_at IS NULL", userID, documentID).
		Update("ended_at", now)

	session := &model.ReadingSession{
		UserID:     userID,
		DocumentID: documentID,
		LastSeenAt: now,
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// Heartbeat 세션 생존 신호 처리. 경과 시간을 세션과 페이지 진행도에 적립한다.
func (s *StatsService) Heartbeat(sessionID, userID int64, page int, tool string) (*model.ReadingSession, error) {
	var session model.ReadingSession
	err := s.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if err != nil {
		return nil, err
	}
	if session.EndedAt != nil {
		return nil, ErrSessionClosed
	}

	now := time.Now()
	elapsed := now.Sub(session.LastSeenAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > maxHeartbeatGap {
		elapsed = 0
	}
	seconds := int64(elapsed / time.Second)

	session.LastSeenAt = now
	session.DurationSeconds += seconds
	if page > 0 {
		session.LastPage = page
	}
	if model.ToolMode(tool).Valid() {
		session.ActiveTool = tool
	}
	if err := s.db.Save(&session).Error; err != nil {
		return nil, err
	}

	// 페이지별 누적 읽기 시간 upsert
	if page > 0 && seconds > 0 {
		progress := model.PageProgress{
			UserID:      userID,
			DocumentID:  session.DocumentID,
			PageNumber:  page,
			ReadSeconds: seconds,
			LastReadAt:  now,
		}
		err := s.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "document_id"}, {Name: "page_number"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"read_seconds": gorm.Expr("page_progress.read_seconds + ?", seconds),
				"last_read_at": now,
			}),
		}).Create(&progress).Error
		if err != nil {
			return nil, err
		}
	}

	return &session, nil
}

// EndSession 세션 종료
func (s *StatsService) EndSession(sessionID, userID int64) error {
	now := time.Now()
	result := s.db.Model(&model.ReadingSession{}).
		Where("id = ? AND user_id = ? AND ended_at IS NULL", sessionID, userID).
		Update("ended_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DocumentStats 단일 문서의 독서 통계
type DocumentStats struct {
	DocumentID        int64            `json:"document_id"`
	TotalReadSeconds  int64            `json:"total_read_seconds"`
	PagesRead         int              `json:"pages_read"`
	PageCount         int              `json:"page_count"`
	LastPage          int              `json:"last_page"`
	AnnotationsByType map[string]int64 `json:"annotations_by_type"`
}

// GetDocumentStats 문서별 통계 조회
func (s *StatsService) GetDocumentStats(userID, documentID int64) (*DocumentStats, error) {
	var doc model.Document
	if err := s.db.First(&doc, documentID).Error; err != nil {
		return nil, err
	}

	stats := &DocumentStats{
		DocumentID:        documentID,
		PageCount:         doc.PageCount,
		AnnotationsByType: make(map[string]int64),
	}

	var totals struct {
		ReadSeconds int64
		PagesRead   int
	}
	s.db.Model(&model.PageProgress{}).
		Select("COALESCE(SUM(read_seconds), 0) AS read_seconds, COUNT(*) AS pages_read").
		Where("user_id = ? AND document_id = ?", userID, documentID).
		Scan(&totals)
	stats.TotalReadSeconds = totals.ReadSeconds
	stats.PagesRead = totals.PagesRead

	var lastSession model.ReadingSession
	err := s.db.Where("user_id = ? AND document_id = ?", userID, documentID).
		Order("started_at DESC").First(&lastSession).Error
	if err == nil {
		stats.LastPage = lastSession.LastPage
	}

	type typeCount struct {
		Type  string
		Count int64
	}
	var counts []typeCount
	s.db.Model(&model.Annotation{}).
		Select("type, COUNT(*) AS count").
		Where("user_id = ? AND document_id = ?", userID, documentID).
		Group("type").
		Scan(&counts)
	for _, tc := range counts {
		stats.AnnotationsByType[tc.Type] = tc.Count
	}

	return stats, nil
}

// OverviewStats 전체 문서 대시보드 통계
type OverviewStats struct {
	DocumentCount    int64 `json:"document_count"`
	TotalReadSeconds int64 `json:"total_read_seconds"`
	AnnotationCount  int64 `json:"annotation_count"`
	SessionCount     int64 `json:"session_count"`
}

// GetOverviewStats 사용자 전체 통계 조회
func (s *StatsService) GetOverviewStats(userID int64) (*OverviewStats, error) {
	stats := &OverviewStats{}

	if err := s.db.Model(&model.Document{}).
		Where("owner_id = ?", userID).
		Count(&stats.DocumentCount).Error; err != nil {
		return nil, err
	}

	var readSeconds int64
	s.db.Model(&model.PageProgress{}).
		Select("COALESCE(SUM(read_seconds), 0)").
		Where("user_id = ?", userID).
		Scan(&readSeconds)
	stats.TotalReadSeconds = readSeconds

	s.db.Model(&model.Annotation{}).Where("user_id = ?", userID).Count(&stats.AnnotationCount)
	s.db.Model(&model.ReadingSession{}).Where("user_id = ?", userID).Count(&stats.SessionCount)

	return stats, nil
}
