package service

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdfreader-backend/internal/model"
)

// AnnotationPersister 주석 저장소의 DB 구현 (annotation.Persister)
type AnnotationPersister struct {
	db *gorm.DB
}

// NewAnnotationPersister AnnotationPersister 생성
func NewAnnotationPersister(db *gorm.DB) *AnnotationPersister {
	return &AnnotationPersister{db: db}
}

// Save 주석 upsert. 동일 ID 재시도 시 기존 행을 갱신한다.
func (p *AnnotationPersister) Save(ctx context.Context, a *model.Annotation) error {
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"geometry_mode", "geometry", "color", "content", "metadata", "tags", "synced",
		}),
	}).Create(a).Error
}

// Delete 주석 삭제. 첨부파일도 함께 지우며 이미 없는 ID도 성공으로 처리 (멱등)
func (p *AnnotationPersister) Delete(ctx context.Context, id string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("annotation_id = ?", id).Delete(&model.AnnotationAttachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Annotation{}, "id = ?", id).Error
	})
}

// ListByDocument 문서의 모든 주석 조회 (생성순)
func (p *AnnotationPersister) ListByDocument(ctx context.Context, documentID int64) ([]*model.Annotation, error) {
	var records []*model.Annotation
	err := p.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
