package handler

import (
	"encoding/base64"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"pdfreader-backend/internal/annotation"
	"pdfreader-backend/internal/geometry"
	"pdfreader-backend/internal/model"
	"pdfreader-backend/internal/service"
	"pdfreader-backend/internal/textlayer"
)

// AnnotationHandler 주석 핸들러
type AnnotationHandler struct {
	db     *gorm.DB
	stores *annotation.Manager
	layers *service.TextLayerService
	hub    *AnnotationWSHandler
}

// NewAnnotationHandler AnnotationHandler 생성
func NewAnnotationHandler(db *gorm.DB, stores *annotation.Manager, layers *service.TextLayerService, hub *AnnotationWSHandler) *AnnotationHandler {
	return &AnnotationHandler{
		db:     db,
		stores: stores,
		layers: layers,
		hub:    hub,
	}
}

// GeometryDTO 뷰어 픽셀 좌표계의 도형
type GeometryDTO struct {
	Rects []geometry.Rect  `json:"rects,omitempty"`
	Point *geometry.Point  `json:"point,omitempty"`
	Path  []geometry.Point `json:"path,omitempty"`
}

// CreateAnnotationRequest 주석 생성 요청.
// 좌표는 뷰어가 측정한 픽셀 값이며 서버가 단위 좌표로 정규화한다.
type CreateAnnotationRequest struct {
	Type         string       `json:"type" validate:"required"`
	Page         int          `json:"page" validate:"required,min=1"`
	Color        string       `json:"color,omitempty"`
	SourceText   *string      `json:"source_text,omitempty"`
	Content      *string      `json:"content,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Origin       string       `json:"origin,omitempty"`
	AICategory   *string      `json:"ai_category,omitempty"`
	AIImportance *int         `json:"ai_importance,omitempty"`
	AIReason     *string      `json:"ai_reason,omitempty"`
	Geometry     GeometryDTO  `json:"geometry"`
	TextLayerBox geometry.Box `json:"text_layer_box"`
	Zoom         float64      `json:"zoom,omitempty"`
	Rotation     float64      `json:"rotation,omitempty"`
}

// UpdateAnnotationRequest 주석 수정 요청. 좌표와 페이지는 수정 불가.
type UpdateAnnotationRequest struct {
	Content *string  `json:"content,omitempty"`
	Color   *string  `json:"color,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// EraseRequest 지우개 요청. 픽셀 좌표의 클릭 지점으로 최상단 주석을 찾는다.
type EraseRequest struct {
	Page         int            `json:"page" validate:"required,min=1"`
	Point        geometry.Point `json:"point"`
	TextLayerBox geometry.Box   `json:"text_layer_box"`
	Tolerance    float64        `json:"tolerance,omitempty"`
}

// ReportTextLayerRequest 뷰어가 측정한 페이지 텍스트 레이어
type ReportTextLayerRequest struct {
	Box  geometry.Box    `json:"box"`
	Runs []textlayer.Run `json:"runs" validate:"required,min=1"`
}

// Create 주석 생성
func (h *AnnotationHandler) Create(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	documentID := c.Locals("documentID").(int64)

	var req CreateAnnotationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation failed: " + err.Error(),
		})
	}

	annType := model.AnnotationType(req.Type)
	if !annType.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown annotation type",
		})
	}

	origin := model.Origin(req.Origin)
	if origin != model.OriginAISuggested {
		origin = model.OriginUser
	}

	payload, mode := h.normalizeGeometry(&req)
	if err := payload.ValidateFor(annType); err != nil {
		if errors.Is(err, model.ErrShortDrawing) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "drawing needs at least two points",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "geometry does not match annotation type",
		})
	}

	color := req.Color
	if color == "" {
		color = model.DefaultColor(annType, origin)
	}

	rec := &model.Annotation{
		ID:           uuid.NewString(),
		DocumentID:   documentID,
		UserID:       userID,
		PageNumber:   req.Page,
		Type:         annType.String(),
		GeometryMode: mode.String(),
		Color:        color,
		SourceText:   req.SourceText,
		Content:      req.Content,
		Origin:       origin.String(),
		AICategory:   req.AICategory,
		AIImportance: req.AIImportance,
		AIReason:     req.AIReason,
		CreatedAt:    time.Now(),
	}
	if err := rec.SetGeometry(payload); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to encode geometry",
		})
	}
	if len(req.Tags) > 0 {
		rec.SetTags(req.Tags)
	}

	coordVersion := model.CoordVersionNormalized
	if mode == model.GeometryLegacyAbsolute {
		coordVersion = model.CoordVersionLegacy
	}
	ctx := model.CreationContext{
		Page:         req.Page,
		Zoom:         req.Zoom,
		Rotation:     req.Rotation,
		CoordVersion: coordVersion,
	}
	if req.SourceText != nil {
		ctx.TextChecksum = model.TextChecksum(*req.SourceText)
	}
	meta := model.EncodeCreationContext(ctx)
	rec.Metadata = &meta

	store, err := h.stores.Get(c.Context(), userID, documentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to open annotation store",
		})
	}
	store.Add(rec)

	h.hub.Broadcast(documentID, "annotation_created", rec)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"annotation": rec,
	})
}

// normalizeGeometry 픽셀 좌표를 단위 좌표로 변환.
// 회전된 페이지에서 찍힌 좌표는 먼저 회전을 되돌린다.
// 텍스트 레이어 박스가 비정상이면 변환 없이 legacy 모드로 저장한다.
func (h *AnnotationHandler) normalizeGeometry(req *CreateAnnotationRequest) (model.GeometryPayload, model.GeometryMode) {
	box := req.TextLayerBox
	rects := geometry.FilterZeroRects(req.Geometry.Rects)
	point := req.Geometry.Point
	path := req.Geometry.Path

	if req.Rotation != 0 && box.Valid() {
		center := geometry.Point{X: box.Width / 2, Y: box.Height / 2}
		for i := range rects {
			rects[i] = geometry.UnrotateRect(rects[i], center, req.Rotation)
		}
		if point != nil {
			p := geometry.RotatePoint(*point, center, -req.Rotation)
			point = &p
		}
		path = geometry.UnrotatePath(path, center, req.Rotation)
	}

	normRects, ok := geometry.NormalizeRects(rects, box)
	if !ok {
		log.Printf("[Annotation] Invalid text layer box %+v, keeping absolute coordinates", box)
		return model.GeometryPayload{Rects: rects, Point: point, Path: path}, model.GeometryLegacyAbsolute
	}

	payload := model.GeometryPayload{Rects: normRects}
	if point != nil {
		p, _ := geometry.NormalizePoint(*point, box)
		payload.Point = &p
	}
	if len(path) > 0 {
		payload.Path, _ = geometry.NormalizePath(path, box)
	}
	return payload, model.GeometryNormalized
}

// ListForPage 페이지 주석 목록. 렌더 전에 좌표 검증을 거친다.
func (h *AnnotationHandler) ListForPage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	documentID := c.Locals("documentID").(int64)

	page := c.QueryInt("page")
	if page < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "page query parameter is required",
		})
	}

	store, err := h.stores.Get(c.Context(), userID, documentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to open annotation store",
		})
	}

	records := h.repairedPage(store, documentID, page)

	return c.JSON(fiber.Map{
		"success":     true,
		"annotations": records,
	})
}

// repairedPage 페이지 목록을 현재 텍스트 레이어로 검증한 뒤 반환.
// 레이어가 없으면 저장된 그대로 반환한다.
func (h *AnnotationHandler) repairedPage(store *annotation.Store, documentID int64, page int) []*model.Annotation {
	records := store.ListForPage(page)

	layer := h.lookupLayer(documentID, page)
	if layer != nil {
		repairedList, repaired := annotation.ValidatePage(records, layer)
		if repaired > 0 {
			log.Printf("[Annotation] Repaired %d record(s) on doc %d page %d", repaired, documentID, page)
			store.ReplacePage(page, repairedList)
			records = repairedList
		}
	}
	return records
}

// Update 주석 내용 수정
func (h *AnnotationHandler) Update(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	documentID := c.Locals("documentID").(int64)
	annotationID := c.Params("annotationId")

	var req UpdateAnnotationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	store, err := h.stores.Get(c.Context(), userID, documentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to open annotation store",
		})
	}

	rec, err := store.Update(annotationID, annotation.UpdatePatch{
		Content: req.Content,
		Color:   req.Color,
		Tags:    req.Tags,
	})
	if err != nil {
		if errors.Is(err, annotation.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "annotation not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update annotation",
		})
	}

	h.hub.Broadcast(documentID, "annotation_updated", rec)

	return c.JSON(fiber.Map{
		"success":    true,
		"annotation": rec,
	})
}

// Delete 주석 삭제
func (h *AnnotationHandler) Delete(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	documentID := c.Locals("documentID").(int64)
	annotationID := c.Params("annotationId")

	store, err := h.stores.Get(c.Context(), userID, documentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to open annotation store",
		})
	}

	if err := store.Remove(annotationID); err != nil {
		if errors.Is(err, annotation.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "annotation not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete annotation",
		})
	}

	h.hub.Broadcast(documentID, "annotation_deleted", fiber.Map{"id": annotationID})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "annotation deleted",
	})
}

// EraseAt 지우개 도구: 클릭 지점의 최상단 주석 삭제
func (h *AnnotationHandler) EraseAt(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	documentID := c.Locals("documentID").(int64)

	var req EraseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation failed: " + err.Error(),
		})
	}

	store, err := h.stores.Get(c.Context(), userID, documentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to open annotation store",
		})
	}

	tolerance := req.Tolerance
	if tolerance <= 0 {
		tolerance = annotation.DefaultTolerance
	}

	// Repair suspect coordinates first so the hit-test sees the same
	// geometry the viewer renders.
	records := h.repairedPage(store, documentID, req.Page)
	target := annotation.FindAt(req.Point, records, req.TextLayerBox, tolerance)
	if target == nil {
		return c.JSON(fiber.Map{
			"success": true,
			"erased":  nil,
		})
	}

	if err := store.Remove(target.ID); err != nil && !errors.Is(err, annotation.ErrNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to erase annotation",
		})
	}

	h.hub.Broadcast(documentID, "annotation_deleted", fiber.Map{"id": target.ID})

	return c.JSON(fiber.Map{
		"success": true,
		"erased":  target.ID,
	})
}

// ReportTextLayer 뷰어가 측정한 텍스트 레이어 저장
func (h *AnnotationHandler) ReportTextLayer(c *fiber.Ctx) error {
	documentID := c.Locals("documentID").(int64)

	page, _ := c.ParamsInt("page", 0)
	if page < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid page number",
		})
	}

	var req ReportTextLayerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if !req.Box.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "text layer box must have positive dimensions",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation failed: " + err.Error(),
		})
	}

	layer := &textlayer.Layer{
		PageNumber: page,
		Box:        req.Box,
		Runs:       req.Runs,
	}
	if err := h.layers.SaveLayer(documentID, layer); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save text layer",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "text layer saved",
	})
}

// lookupLayer 검증용 레이어 조회 (실패해도 nil 반환으로 진행)
func (h *AnnotationHandler) lookupLayer(documentID int64, page int) *textlayer.Layer {
	var doc model.Document
	if err := h.db.First(&doc, documentID).Error; err != nil {
		return nil
	}
	layer, err := h.layers.GetLayer(&doc, page)
	if err != nil {
		log.Printf("[Annotation] No text layer for doc %d page %d: %v", documentID, page, err)
		return nil
	}
	return layer
}

// AddAttachmentRequest 스티키 노트 첨부파일 업로드 요청 (base64 블롭)
type AddAttachmentRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	MimeType string `json:"mime_type" validate:"required,max=100"`
	Data     string `json:"data" validate:"required"`
}

// AddAttachment 스티키 노트에 첨부파일 추가
func (h *AnnotationHandler) AddAttachment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	documentID := c.Locals("documentID").(int64)
	annotationID := c.Params("annotationId")

	var req AddAttachmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation failed: " + err.Error(),
		})
	}

	store, err := h.stores.Get(c.Context(), userID, documentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to open annotation store",
		})
	}

	rec, err := store.Get(annotationID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "annotation not found",
		})
	}
	if rec.Type != model.AnnotationStickyNote.String() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "attachments are only allowed on sticky notes",
		})
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "attachment data must be base64 encoded",
		})
	}
	if len(data) == 0 || len(data) > model.MaxAttachmentBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "attachment exceeds the size limit",
		})
	}

	attachment := &model.AnnotationAttachment{
		AnnotationID: annotationID,
		Name:         sanitizeString(req.Name),
		MimeType:     req.MimeType,
		Size:         int64(len(data)),
		Data:         data,
	}
	if err := h.db.Create(attachment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save attachment",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"attachment": attachment,
	})
}

// ListAttachments 첨부파일 메타데이터 목록
func (h *AnnotationHandler) ListAttachments(c *fiber.Ctx) error {
	annotationID := c.Params("annotationId")

	var attachments []model.AnnotationAttachment
	if err := h.db.Where("annotation_id = ?", annotationID).
		Order("created_at ASC").
		Find(&attachments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list attachments",
		})
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"attachments": attachments,
	})
}

// ServeAttachment 첨부파일 블롭 응답
func (h *AnnotationHandler) ServeAttachment(c *fiber.Ctx) error {
	annotationID := c.Params("annotationId")
	attachmentID, err := c.ParamsInt("attachmentId")
	if err != nil || attachmentID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid attachment id",
		})
	}

	var attachment model.AnnotationAttachment
	if err := h.db.Where("id = ? AND annotation_id = ?", attachmentID, annotationID).
		First(&attachment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "attachment not found",
		})
	}

	c.Set(fiber.HeaderContentType, attachment.MimeType)
	return c.Send(attachment.Data)
}

// DeleteAttachment 첨부파일 삭제 (멱등)
func (h *AnnotationHandler) DeleteAttachment(c *fiber.Ctx) error {
	annotationID := c.Params("annotationId")
	attachmentID, err := c.ParamsInt("attachmentId")
	if err != nil || attachmentID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid attachment id",
		})
	}

	if err := h.db.Where("id = ? AND annotation_id = ?", attachmentID, annotationID).
		Delete(&model.AnnotationAttachment{}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete attachment",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "attachment deleted",
	})
}
