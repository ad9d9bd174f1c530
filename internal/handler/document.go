package handler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"pdfreader-backend/internal/annotation"
	"pdfreader-backend/internal/cache"
	"pdfreader-backend/internal/model"
	"pdfreader-backend/internal/textlayer"
)

// DocumentHandler PDF 문서 핸들러
type DocumentHandler struct {
	db          *gorm.DB
	redis       *cache.RedisClient
	stores      *annotation.Manager
	uploadDir   string
	maxFileSize int
}

// NewDocumentHandler DocumentHandler 생성
func NewDocumentHandler(db *gorm.DB, redis *cache.RedisClient, stores *annotation.Manager, uploadDir string, maxFileSize int) *DocumentHandler {
	return &DocumentHandler{
		db:          db,
		redis:       redis,
		stores:      stores,
		uploadDir:   uploadDir,
		maxFileSize: maxFileSize,
	}
}

// DocumentResponse 문서 응답
type DocumentResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FileSize  int64     `json:"file_size"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Upload PDF 업로드. 파일 검증 후 디스크에 저장한다.
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}
	if fileHeader.Size > int64(h.maxFileSize) {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("file exceeds %d bytes", h.maxFileSize),
		})
	}

	name := sanitizeString(c.FormValue("name"))
	if name == "" {
		name = sanitizeString(fileHeader.Filename)
	}
	if name == "" {
		name = "untitled.pdf"
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to open uploaded file",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read uploaded file",
		})
	}

	// PDF 구조 검증 + 페이지 수 확인
	pageCount, err := textlayer.ValidatePDF(data)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "not a valid PDF file",
		})
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to prepare upload directory",
		})
	}
	filePath := filepath.Join(h.uploadDir, uuid.NewString()+".pdf")
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store file",
		})
	}

	doc := model.Document{
		OwnerID:   userID,
		Name:      name,
		FilePath:  filePath,
		FileSize:  int64(len(data)),
		PageCount: pageCount,
	}
	if err := h.db.Create(&doc).Error; err != nil {
		os.Remove(filePath)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create document",
		})
	}

	log.Printf("[Document] Uploaded doc %d (%s, %d pages) for user %d", doc.ID, doc.Name, pageCount, userID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"document": toDocumentResponse(&doc),
	})
}

// List 내 문서 목록
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var docs []model.Document
	if err := h.db.Where("owner_id = ?", userID).Order("created_at DESC").Find(&docs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list documents",
		})
	}

	resp := make([]DocumentResponse, len(docs))
	for i := range docs {
		resp[i] = toDocumentResponse(&docs[i])
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"documents": resp,
	})
}

// Get 문서 단건 조회
func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	documentID := c.Locals("documentID").(int64)

	var doc model.Document
	if err := h.db.First(&doc, documentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "document not found",
		})
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"document": toDocumentResponse(&doc),
	})
}

// ServeFile PDF 원본 파일 전송
func (h *DocumentHandler) ServeFile(c *fiber.Ctx) error {
	documentID := c.Locals("documentID").(int64)

	var doc model.Document
	if err := h.db.First(&doc, documentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "document not found",
		})
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.SendFile(doc.FilePath)
}

// Delete 문서와 부속 데이터 전체 삭제
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	documentID := c.Locals("documentID").(int64)

	var doc model.Document
	if err := h.db.First(&doc, documentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "document not found",
		})
	}

	// 열려 있는 주석 스토어 먼저 닫기
	h.stores.Drop(userID, documentID)

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("annotation_id IN (?)",
			tx.Model(&model.Annotation{}).Select("id").Where("document_id = ?", documentID),
		).Delete(&model.AnnotationAttachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", documentID).Delete(&model.Annotation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", documentID).Delete(&model.PageTextLayer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", documentID).Delete(&model.ReadingSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", documentID).Delete(&model.PageProgress{}).Error; err != nil {
			return err
		}
		return tx.Delete(&doc).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete document",
		})
	}

	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ [Document] Failed to remove file %s: %v", doc.FilePath, err)
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := h.redis.DeleteBackup(ctx, userID, documentID); err != nil {
			log.Printf("⚠️ [Document] Failed to drop backup mirror for doc %d: %v", documentID, err)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "document deleted",
	})
}

func toDocumentResponse(doc *model.Document) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID,
		Name:      doc.Name,
		FileSize:  doc.FileSize,
		PageCount: doc.PageCount,
		CreatedAt: doc.CreatedAt,
	}
}

// PageText 페이지 텍스트 추출
func (h *DocumentHandler) PageText(c *fiber.Ctx) error {
	documentID := c.Locals("documentID").(int64)

	page, err := c.ParamsInt("page")
	if err != nil || page < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid page number",
		})
	}

	var doc model.Document
	if err := h.db.First(&doc, documentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "document not found",
		})
	}
	if page > doc.PageCount {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "page is out of range",
		})
	}

	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read document file",
		})
	}

	text, err := textlayer.ExtractPageText(data, page)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "failed to extract page text",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"page":    page,
		"text":    text,
	})
}
