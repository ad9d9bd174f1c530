package middleware

import (
	"errors"
	"strconv"

	"pdfreader-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// DocumentMiddleware 문서 접근 권한 미들웨어
type DocumentMiddleware struct {
	db *gorm.DB
}

// NewDocumentMiddleware DocumentMiddleware 생성
func NewDocumentMiddleware(db *gorm.DB) *DocumentMiddleware {
	return &DocumentMiddleware{db: db}
}

// getDocumentIDFromContext URL에서 문서 ID 추출
func getDocumentIDFromContext(c *fiber.Ctx) (int64, error) {
	// 우선순위: :documentId > :id
	idStr := c.Params("documentId")
	if idStr == "" {
		idStr = c.Params("id")
	}
	if idStr == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "document ID is required")
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// RequireOwnership 문서 소유자 필수
func (m *DocumentMiddleware) RequireOwnership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := auth.GetClaimsFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		documentID, err := getDocumentIDFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid document ID",
			})
		}

		if err := auth.CheckDocumentAccess(m.db, documentID, claims.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "document not found",
				})
			}
			if errors.Is(err, auth.ErrDocumentNotOwned) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "not the document owner",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to check document access",
			})
		}

		// 문서 ID를 컨텍스트에 저장
		c.Locals("documentID", documentID)
		return c.Next()
	}
}
