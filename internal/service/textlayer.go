package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdfreader-backend/internal/model"
	"pdfreader-backend/internal/textlayer"
)

// TextLayerService 페이지 텍스트 레이어 조회/저장.
// 뷰어가 측정해 올린 레이어를 우선 사용하고, 없으면 PDF에서 직접 추출한다.
type TextLayerService struct {
	db *gorm.DB
}

// NewTextLayerService TextLayerService 생성
func NewTextLayerService(db *gorm.DB) *TextLayerService {
	return &TextLayerService{db: db}
}

// GetLayer 문서 페이지의 텍스트 레이어 조회
func (s *TextLayerService) GetLayer(doc *model.Document, page int) (*textlayer.Layer, error) {
	if page < 1 || page > doc.PageCount {
		return nil, fmt.Errorf("page %d out of range (1..%d)", page, doc.PageCount)
	}

	var row model.PageTextLayer
	err := s.db.Where("document_id = ? AND page_number = ?", doc.ID, page).First(&row).Error
	if err == nil {
		layer, derr := decodeLayer(&row)
		if derr == nil {
			return layer, nil
		}
		// 깨진 행은 무시하고 PDF에서 다시 추출
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read document file: %w", err)
	}

	layer, err := textlayer.DeriveLayer(data, page)
	if err != nil {
		return nil, err
	}

	if err := s.SaveLayer(doc.ID, layer); err != nil {
		return nil, err
	}
	return layer, nil
}

// SaveLayer 텍스트 레이어 upsert. 뷰어가 측정해 보고한 레이어도 이 경로로 저장된다.
func (s *TextLayerService) SaveLayer(documentID int64, layer *textlayer.Layer) error {
	runs, err := json.Marshal(layer.Runs)
	if err != nil {
		return err
	}

	row := model.PageTextLayer{
		DocumentID: documentID,
		PageNumber: layer.PageNumber,
		BoxWidth:   layer.Box.Width,
		BoxHeight:  layer.Box.Height,
		Runs:       string(runs),
		UpdatedAt:  time.Now(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}, {Name: "page_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"box_width", "box_height", "runs", "updated_at"}),
	}).Create(&row).Error
}

func decodeLayer(row *model.PageTextLayer) (*textlayer.Layer, error) {
	var runs []textlayer.Run
	if err := json.Unmarshal([]byte(row.Runs), &runs); err != nil {
		return nil, err
	}
	layer := &textlayer.Layer{
		PageNumber: row.PageNumber,
		Runs:       runs,
	}
	layer.Box.Width = row.BoxWidth
	layer.Box.Height = row.BoxHeight
	if !layer.Box.Valid() {
		return nil, fmt.Errorf("stored layer for page %d has invalid box", row.PageNumber)
	}
	return layer, nil
}
