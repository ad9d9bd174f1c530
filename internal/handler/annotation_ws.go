package handler

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// AnnotationWSHandler 문서별 주석 실시간 동기화 WebSocket 핸들러.
// 같은 문서를 여러 탭에서 열었을 때 주석 변경을 밀어준다.
type AnnotationWSHandler struct {
	clients map[int64]map[*websocket.Conn]bool // documentID -> connections
	mu      sync.RWMutex
}

// AnnotationWSMessage 주석 WebSocket 메시지
type AnnotationWSMessage struct {
	Type    string      `json:"type"` // annotation_created, annotation_updated, annotation_deleted, ping, pong
	Payload interface{} `json:"payload,omitempty"`
}

// 글로벌 인스턴스 (싱글톤)
var annotationWSHandler *AnnotationWSHandler
var annotationWSOnce sync.Once

// GetAnnotationWSHandler 싱글톤 인스턴스 반환
func GetAnnotationWSHandler() *AnnotationWSHandler {
	annotationWSOnce.Do(func() {
		annotationWSHandler = &AnnotationWSHandler{
			clients: make(map[int64]map[*websocket.Conn]bool),
		}
	})
	return annotationWSHandler
}

// NewAnnotationWSHandler AnnotationWSHandler 생성
func NewAnnotationWSHandler() *AnnotationWSHandler {
	return GetAnnotationWSHandler()
}

// HandleWebSocket WebSocket 연결 처리
func (h *AnnotationWSHandler) HandleWebSocket(c *websocket.Conn) {
	// 패닉 복구 - 서버 크래시 방지
	defer func() {
		if r := recover(); r != nil {
			log.Printf("주석 WebSocket 패닉 복구: %v", r)
		}
	}()

	documentID, ok := c.Locals("documentID").(int64)
	if !ok {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","message":"invalid session"}`))
		c.Close()
		return
	}

	// 클라이언트 등록
	h.mu.Lock()
	if h.clients[documentID] == nil {
		h.clients[documentID] = make(map[*websocket.Conn]bool)
	}
	h.clients[documentID][c] = true
	h.mu.Unlock()

	log.Printf("주석 WebSocket 연결: doc=%d", documentID)

	// 연결 해제 시 정리
	defer func() {
		h.mu.Lock()
		delete(h.clients[documentID], c)
		if len(h.clients[documentID]) == 0 {
			delete(h.clients, documentID)
		}
		h.mu.Unlock()
		c.Close()
		log.Printf("주석 WebSocket 연결 해제: doc=%d", documentID)
	}()

	// 연결 유지를 위한 ping/pong 처리
	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			break
		}

		var msg AnnotationWSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			continue
		}

		// ping 메시지에 pong 응답
		if msg.Type == "ping" {
			pong := AnnotationWSMessage{Type: "pong"}
			pongBytes, _ := json.Marshal(pong)
			c.WriteMessage(websocket.TextMessage, pongBytes)
		}
	}
}

// Broadcast 문서를 보고 있는 모든 연결에 변경 이벤트 전송
func (h *AnnotationWSHandler) Broadcast(documentID int64, eventType string, payload interface{}) {
	h.mu.RLock()
	connections := h.clients[documentID]
	h.mu.RUnlock()

	if len(connections) == 0 {
		return
	}

	msg := AnnotationWSMessage{
		Type:    eventType,
		Payload: payload,
	}

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("주석 이벤트 직렬화 실패: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.clients[documentID] {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			log.Printf("주석 이벤트 전송 실패: doc=%d, err=%v", documentID, err)
		}
	}
}

// GetConnectedDocuments 연결된 문서 수 반환
func (h *AnnotationWSHandler) GetConnectedDocuments() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
