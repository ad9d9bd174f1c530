package handler

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pdfreader-backend/internal/ai"
	"pdfreader-backend/internal/cache"
	"pdfreader-backend/internal/geometry"
	"pdfreader-backend/internal/model"
	"pdfreader-backend/internal/service"
	"pdfreader-backend/internal/textlayer"
)

// summaryCacheTTL 요약 캐시 유지 시간. 문서 본문은 변하지 않으므로 길게 잡는다.
const summaryCacheTTL = 24 * time.Hour

// AIHandler AI 독서 보조 핸들러
type AIHandler struct {
	db     *gorm.DB
	client *ai.Client
	redis  *cache.RedisClient
	layers *service.TextLayerService
}

// NewAIHandler AIHandler 생성
func NewAIHandler(db *gorm.DB, client *ai.Client, redis *cache.RedisClient, layers *service.TextLayerService) *AIHandler {
	return &AIHandler{
		db:     db,
		client: client,
		redis:  redis,
		layers: layers,
	}
}

// SummarizeRequest 요약 요청
type SummarizeRequest struct {
	Page int     `json:"page" validate:"required,min=1"`
	Text *string `json:"text,omitempty"` // 선택 영역 요약 시 뷰어가 보낸 본문
}

// ExplainRequest 구절 설명 요청
type ExplainRequest struct {
	Page      int    `json:"page" validate:"required,min=1"`
	Selection string `json:"selection" validate:"required,min=1"`
}

// QuizRequest 퀴즈 생성 요청
type QuizRequest struct {
	Page  int `json:"page" validate:"required,min=1"`
	Count int `json:"count,omitempty"`
}

// SuggestRequest 하이라이트 제안 요청
type SuggestRequest struct {
	Page int `json:"page" validate:"required,min=1"`
}

// AnchoredSuggestion 텍스트 매칭으로 위치까지 찾은 하이라이트 제안
type AnchoredSuggestion struct {
	ai.Suggestion
	Page     int             `json:"page"`
	Color    string          `json:"color"`
	Anchored bool            `json:"anchored"`
	Rects    []geometry.Rect `json:"rects,omitempty"` // 단위 좌표
}

func (h *AIHandler) unavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": "AI features are not enabled",
	})
}

// Summarize 페이지 요약
func (h *AIHandler) Summarize(c *fiber.Ctx) error {
	if h.client == nil {
		return h.unavailable(c)
	}
	documentID := c.Locals("documentID").(int64)

	var req SummarizeRequest
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

	// 선택 영역이 없으면 페이지 전체를 요약하고 캐시한다
	cacheKey := ""
	text := ""
	if req.Text != nil && *req.Text != "" {
		text = *req.Text
	} else {
		cacheKey = fmt.Sprintf("ai:summary:%d:%d", documentID, req.Page)
		if h.redis != nil {
			if cached, err := h.redis.Get(c.Context(), cacheKey); err == nil && cached != "" {
				return c.JSON(fiber.Map{
					"success": true,
					"summary": cached,
					"cached":  true,
				})
			}
		}
		var err error
		text, err = h.pageText(documentID, req.Page)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "failed to extract page text",
			})
		}
	}

	summary, err := h.client.Summarize(c.Context(), text)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "AI request failed",
		})
	}

	if cacheKey != "" && h.redis != nil {
		if err := h.redis.Set(c.Context(), cacheKey, summary, summaryCacheTTL); err != nil {
			log.Printf("⚠️ [AI] Failed to cache summary: %v", err)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"summary": summary,
	})
}

// Explain 선택 구절 설명
func (h *AIHandler) Explain(c *fiber.Ctx) error {
	if h.client == nil {
		return h.unavailable(c)
	}
	documentID := c.Locals("documentID").(int64)

	var req ExplainRequest
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

	surrounding, err := h.pageText(documentID, req.Page)
	if err != nil {
		surrounding = ""
	}

	explanation, err := h.client.Explain(c.Context(), req.Selection, surrounding)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "AI request failed",
		})
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"explanation": explanation,
	})
}

// Quiz 복습 퀴즈 생성
func (h *AIHandler) Quiz(c *fiber.Ctx) error {
	if h.client == nil {
		return h.unavailable(c)
	}
	documentID := c.Locals("documentID").(int64)

	var req QuizRequest
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

	text, err := h.pageText(documentID, req.Page)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "failed to extract page text",
		})
	}

	questions, err := h.client.Quiz(c.Context(), text, req.Count)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "AI request failed",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"questions": questions,
	})
}

// SuggestHighlights 하이라이트 제안.
// 각 제안의 sourceText를 텍스트 레이어에서 찾아 단위 좌표까지 붙여준다.
// 위치를 못 찾은 제안도 anchored=false로 함께 내려보낸다.
func (h *AIHandler) SuggestHighlights(c *fiber.Ctx) error {
	if h.client == nil {
		return h.unavailable(c)
	}
	documentID := c.Locals("documentID").(int64)

	var req SuggestRequest
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

	var doc model.Document
	if err := h.db.First(&doc, documentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "document not found",
		})
	}

	layer, err := h.layers.GetLayer(&doc, req.Page)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "failed to build page text layer",
		})
	}

	suggestions, err := h.client.SuggestHighlights(c.Context(), layer.PlainText())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "AI request failed",
		})
	}

	anchored := make([]AnchoredSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		out := AnchoredSuggestion{
			Suggestion: s,
			Page:       req.Page,
			Color:      model.DefaultColor(model.AnnotationHighlight, model.OriginAISuggested),
		}
		if match := layer.FindText(s.SourceText); match != nil {
			if rects, ok := geometry.NormalizeRects(match.Rects, layer.Box); ok && len(rects) > 0 {
				out.Anchored = true
				out.Rects = rects
			}
		}
		anchored = append(anchored, out)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"suggestions": anchored,
	})
}

// pageText 문서 파일에서 페이지 본문 추출
func (h *AIHandler) pageText(documentID int64, page int) (string, error) {
	var doc model.Document
	if err := h.db.First(&doc, documentID).Error; err != nil {
		return "", err
	}
	if page > doc.PageCount {
		return "", fmt.Errorf("page %d out of range", page)
	}

	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		return "", err
	}
	return textlayer.ExtractPageText(data, page)
}
