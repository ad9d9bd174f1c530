package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate 요청 DTO 검증기 (패키지 공용)
var validate = validator.New()

// sanitizeString 문자열 정리
func sanitizeString(s string) string {
	s = strings.TrimSpace(s)
	// 위험한 문자 제거
	invalidChars := []string{"<", ">", "\"", "/", "\\", "|", "?", "*"}
	for _, char := range invalidChars {
		s = strings.ReplaceAll(s, char, "")
	}
	return s
}
