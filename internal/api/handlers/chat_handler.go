package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xcode-ai/ai-gateway/internal/llm"
	"github.com/xcode-ai/ai-gateway/internal/stream"
	"github.com/xcode-ai/ai-gateway/pkg/logger"
)

const errMessageRequired = "Message is required"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the CORS middleware
	},
}

// ChatService generates answers. *chat.Service implements it.
type ChatService interface {
	Reply(ctx context.Context, message string) (string, error)
	stream.Generator
}

// Streamer starts push sessions. *stream.Emitter implements it.
type Streamer interface {
	Stream(ctx context.Context, prompt string, gen stream.Generator) (*stream.Session, error)
}

// ChatRequest is the body of a chat call
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatHandler serves the chat endpoints
type ChatHandler struct {
	chat     ChatService
	streamer Streamer
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatService, streamer Streamer, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:     chat,
		streamer: streamer,
		logger:   logger,
	}
}

// Chat answers a message in one response
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": errMessageRequired})
		return
	}

	log := logger.FromContext(c.Request.Context(), h.logger)
	answer, err := h.chat.Reply(c.Request.Context(), req.Message)
	if err != nil {
		log.Error("Chat request failed", zap.String("kind", llm.Kind(err)), zap.Error(err))
		c.JSON(chatErrorStatus(err), gin.H{"success": false, "error": "Error processing AI chat: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": answer})
}

// SSE streams the answer as server-sent events
func (h *ChatHandler) SSE(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), h.logger)

	session, err := h.streamer.Stream(c.Request.Context(), c.Query("message"), h.chat)
	if err != nil {
		log.Warn("Failed to start stream session", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Streaming is unavailable, try again later"})
		return
	}
	log.Debug("SSE session started", zap.String("session_id", session.ID))

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events := session.Events()
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(ev.Type), sseData(ev.Data))
		return !ev.Terminal()
	})

	log.Debug("SSE session finished",
		zap.String("session_id", session.ID),
		zap.Stringer("state", session.State()))
}

// WebSocket streams the answer as JSON frames {"event","data"}
func (h *ChatHandler) WebSocket(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), h.logger)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Handle WebSocket close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	session, err := h.streamer.Stream(ctx, c.Query("message"), h.chat)
	if err != nil {
		log.Warn("Failed to start stream session", zap.Error(err))
		if werr := conn.WriteJSON(stream.Event{Type: stream.EventError, Data: "Error: " + err.Error()}); werr != nil {
			log.Debug("Failed to write WebSocket error event", zap.Error(werr))
		}
		closeNormal(conn, log)
		return
	}
	log.Info("WebSocket session established", zap.String("session_id", session.ID))

	for ev := range session.Events() {
		if err := conn.WriteJSON(ev); err != nil {
			log.Info("WebSocket client disconnected", zap.String("session_id", session.ID), zap.Error(err))
			cancel()
			// drain so the session can finish closing its channel
			for range session.Events() {
			}
			return
		}
	}
	closeNormal(conn, log)
}

func closeNormal(conn *websocket.Conn, log *zap.Logger) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Debug("Failed to write WebSocket close frame", zap.Error(err))
	}
}

// EventSource ends a line at CRLF, CR or LF alike
var sseLineBreaks = strings.NewReplacer("\r\n", "\n ", "\r", "\n ", "\n", "\n ")

// sseData prefixes every line with the single space that EventSource strips,
// so chunks keep their own leading whitespace. Line breaks arrive as LF.
func sseData(data string) string {
	return " " + sseLineBreaks.Replace(data)
}

func chatErrorStatus(err error) int {
	var cfgErr *llm.ConfigError
	if errors.As(err, &cfgErr) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
