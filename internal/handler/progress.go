package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pdfreader-backend/internal/service"
)

// ProgressHandler 독서 세션/통계 핸들러
type ProgressHandler struct {
	stats *service.StatsService
}

// NewProgressHandler ProgressHandler 생성
func NewProgressHandler(stats *service.StatsService) *ProgressHandler {
	return &ProgressHandler{stats: stats}
}

// HeartbeatRequest 세션 생존 신호
type HeartbeatRequest struct {
	SessionID int64  `json:"session_id" validate:"required"`
	Page      int    `json:"page,omitempty"`
	Tool      string `json:"tool,omitempty"`
}

// EndSessionRequest 세션 종료 요청
type EndSessionRequest struct {
	SessionID int64 `json:"session_id" validate:"required"`
}

// StartSession 독서 세션 시작
func (h *ProgressHandler) StartSession(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	documentID := c.Locals("documentID").(int64)

	session, err := h.stats.StartSession(userID, documentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to start session",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"session": session,
	})
}

// Heartbeat 세션 생존 신호 처리
func (h *ProgressHandler) Heartbeat(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var req HeartbeatRequest
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

	session, err := h.stats.Heartbeat(req.SessionID, userID, req.Page, req.Tool)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "session not found",
			})
		}
		if errors.Is(err, service.ErrSessionClosed) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "session already ended",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to record heartbeat",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"session": session,
	})
}

// EndSession 독서 세션 종료
func (h *ProgressHandler) EndSession(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var req EndSessionRequest
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

	if err := h.stats.EndSession(req.SessionID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "session not found or already ended",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to end session",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "session ended",
	})
}

// DocumentStats 문서별 독서 통계
func (h *ProgressHandler) DocumentStats(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)
	documentID := c.Locals("documentID").(int64)

	stats, err := h.stats.GetDocumentStats(userID, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "document not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load stats",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

// Overview 전체 대시보드 통계
func (h *ProgressHandler) Overview(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	stats, err := h.stats.GetOverviewStats(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load stats",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}
