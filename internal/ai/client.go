package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// 요청 타임아웃
	RequestTimeout = 60 * time.Second

	// 한 요청에 보내는 본문 최대 길이 (rune 기준)
	MaxInputRunes = 24000
)

var ErrEmptyInput = errors.New("ai: empty input text")

// Client OpenAI 기반 독서 보조 클라이언트
type Client struct {
	client openai.Client
	model  shared.ChatModel
}

// QuizQuestion 생성된 복습 퀴즈 한 문항
type QuizQuestion struct {
	Question  string   `json:"question"`
	Choices   []string `json:"choices"`
	Answer    int      `json:"answer"`
	Rationale string   `json:"rationale"`
}

// Suggestion AI가 제안한 하이라이트 후보
type Suggestion struct {
	SourceText string `json:"sourceText"`
	Category   string `json:"category"`
	Importance int    `json:"importance"`
	Reason     string `json:"reason"`
}

// NewClient 새 OpenAI 클라이언트 생성
func NewClient(apiKey, model string) *Client {
	m := shared.ChatModel(model)
	if m == "" {
		m = shared.ChatModelGPT5Mini
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}
}

// quizSchema 퀴즈 응답의 JSON 스키마
var quizSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question":  map[string]any{"type": "string"},
					"choices":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"answer":    map[string]any{"type": "integer"},
					"rationale": map[string]any{"type": "string"},
				},
				"required":             []string{"question", "choices", "answer", "rationale"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"questions"},
	"additionalProperties": false,
}

// suggestionSchema 하이라이트 제안 응답의 JSON 스키마.
// sourceText는 본문에 있는 그대로 돌려받아야 텍스트 매칭으로 위치를 찾을 수 있다.
var suggestionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"suggestions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sourceText": map[string]any{"type": "string"},
					"category":   map[string]any{"type": "string", "enum": []string{"definition", "key_concept", "conclusion", "example", "data"}},
					"importance": map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
					"reason":     map[string]any{"type": "string"},
				},
				"required":             []string{"sourceText", "category", "importance", "reason"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"suggestions"},
	"additionalProperties": false,
}

// Summarize 페이지 또는 구간 본문을 요약
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", ErrEmptyInput
	}
	prompt := "Summarize the following document text in a few short paragraphs. " +
		"Answer in the same language as the text.\n\n" + truncateRunes(text, MaxInputRunes)
	return c.complete(ctx, prompt)
}

// Explain 선택한 구절을 주변 문맥과 함께 설명
func (c *Client) Explain(ctx context.Context, selection, surrounding string) (string, error) {
	if selection == "" {
		return "", ErrEmptyInput
	}
	prompt := fmt.Sprintf(
		"Explain the following passage for a reader who finds it unclear. "+
			"Answer in the same language as the passage.\n\nPassage:\n%s\n\nSurrounding text:\n%s",
		selection, truncateRunes(surrounding, MaxInputRunes))
	return c.complete(ctx, prompt)
}

// Quiz 본문으로 복습용 객관식 퀴즈 생성
func (c *Client) Quiz(ctx context.Context, text string, count int) ([]QuizQuestion, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if count <= 0 || count > 10 {
		count = 5
	}

	prompt := fmt.Sprintf(
		"Write %d multiple-choice questions that test understanding of the text below. "+
			"Each question has 4 choices; answer is the zero-based index of the correct one. "+
			"Use the same language as the text.\n\n%s",
		count, truncateRunes(text, MaxInputRunes))

	raw, err := c.completeJSON(ctx, prompt, "quiz", quizSchema)
	if err != nil {
		return nil, err
	}

	var out struct {
		Questions []QuizQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("ai: decode quiz response: %w", err)
	}
	return out.Questions, nil
}

// SuggestHighlights 페이지 본문에서 하이라이트할 만한 구절을 추출.
// 반환된 sourceText는 본문의 연속된 부분 문자열이어야 하며, 위치는
// 호출 측이 텍스트 매칭으로 찾는다.
func (c *Client) SuggestHighlights(ctx context.Context, pageText string) ([]Suggestion, error) {
	if pageText == "" {
		return nil, ErrEmptyInput
	}

	prompt := "From the page text below, pick up to 6 passages worth highlighting for study. " +
		"Each sourceText MUST be copied verbatim from the page text, as one contiguous span, " +
		"without paraphrasing or changing whitespace beyond trimming.\n\n" +
		truncateRunes(pageText, MaxInputRunes)

	raw, err := c.completeJSON(ctx, prompt, "highlight_suggestions", suggestionSchema)
	if err != nil {
		return nil, err
	}

	var out struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("ai: decode suggestions: %w", err)
	}

	// 본문에 없는 구절을 지어낸 경우도 그대로 내려보낸다.
	// 저장 시 텍스트 매칭이 퍼지 단계까지 내려가며 위치를 찾고,
	// 끝내 못 찾으면 해당 제안만 버려진다.
	return out.Suggestions, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	response, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	})
	if err != nil {
		log.Printf("❌ [AI] request failed: %v", err)
		return "", err
	}
	return response.OutputText(), nil
}

func (c *Client) completeJSON(ctx context.Context, prompt, schemaName string, schema map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	response, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema(schemaName, schema),
		},
	})
	if err != nil {
		log.Printf("❌ [AI] request failed: %v", err)
		return "", err
	}
	return response.OutputText(), nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
