package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xcode-ai/ai-gateway/internal/llm"
	"github.com/xcode-ai/ai-gateway/internal/probe"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubChecker struct{ report probe.Report }

func (s stubChecker) Check(ctx context.Context) probe.Report { return s.report }

type stubResolver string

func (s stubResolver) BaseURL() string { return string(s) }

type stubChat struct {
	answer string
	err    error
}

func (s stubChat) Reply(ctx context.Context, message string) (string, error) { return s.answer, s.err }
func (s stubChat) Generate(ctx context.Context, prompt string) (string, error) {
	return s.answer, s.err
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func systemRouter(report probe.Report) *gin.Engine {
	h := NewSystemHandler(stubChecker{report}, stubResolver("https://example.test/v1"), 8081, "AI Gateway", zap.NewNop())
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	r.GET("/config", h.Config)
	return r
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	systemRouter(probe.Report{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"status": "UP", "service": "AI Gateway"}, decode(t, w))
}

func TestConfig(t *testing.T) {
	w := httptest.NewRecorder()
	systemRouter(probe.Report{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/config", nil))

	body := decode(t, w)
	assert.Equal(t, float64(8081), body["serverPort"])
	assert.Equal(t, "https://example.test/v1", body["apiBaseUrl"])
}

func TestStatus(t *testing.T) {
	unauthorized := http.StatusUnauthorized

	t.Run("production hides diagnosis", func(t *testing.T) {
		report := probe.Report{
			Status:           probe.StatusAvailable,
			HasAPIKey:        true,
			ConnectionStatus: &unauthorized,
			Diagnosis:        probe.Diagnosis{KeyMasked: "sk-abc***mnop"},
		}
		w := httptest.NewRecorder()
		systemRouter(report).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

		body := decode(t, w)
		assert.Equal(t, "available", body["status"])
		assert.Equal(t, true, body["hasApiKey"])
		assert.Equal(t, false, body["apiConfigured"])
		assert.Equal(t, float64(401), body["connectionStatus"])
		assert.NotContains(t, body, "diagnosis")
	})

	t.Run("dev exposes diagnosis", func(t *testing.T) {
		report := probe.Report{
			Status: probe.StatusAvailable,
			Diagnosis: probe.Diagnosis{
				KeySource:   "none",
				KeyMasked:   "<none>",
				DevMode:     true,
				Suggestions: []string{llm.SuggestMissingKey},
			},
		}
		w := httptest.NewRecorder()
		systemRouter(report).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

		body := decode(t, w)
		assert.NotContains(t, body, "connectionStatus")
		diag, ok := body["diagnosis"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "<none>", diag["keyMasked"])
		assert.Equal(t, []interface{}{llm.SuggestMissingKey}, diag["suggestions"])
	})
}

func chatRouter(chat ChatService) *gin.Engine {
	h := NewChatHandler(chat, nil, zap.NewNop())
	r := gin.New()
	r.POST("/chat", h.Chat)
	return r
}

func postChat(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChat(t *testing.T) {
	tests := []struct {
		name   string
		chat   stubChat
		body   string
		status int
		want   map[string]interface{}
	}{
		{
			name:   "success",
			chat:   stubChat{answer: "hello there"},
			body:   `{"message":"hi"}`,
			status: http.StatusOK,
			want:   map[string]interface{}{"success": true, "message": "hello there"},
		},
		{
			name:   "blank message",
			body:   `{"message":"   "}`,
			status: http.StatusBadRequest,
			want:   map[string]interface{}{"success": false, "error": "Message is required"},
		},
		{
			name:   "missing message",
			body:   `{}`,
			status: http.StatusBadRequest,
			want:   map[string]interface{}{"success": false, "error": "Message is required"},
		},
		{
			name:   "invalid json",
			body:   `{`,
			status: http.StatusBadRequest,
			want:   map[string]interface{}{"success": false, "error": "Invalid request body"},
		},
		{
			name:   "no api key",
			chat:   stubChat{err: &llm.ConfigError{Err: llm.ErrMissingAPIKey}},
			body:   `{"message":"hi"}`,
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "upstream failure",
			chat:   stubChat{err: &llm.UpstreamError{Status: 500, Body: "oops"}},
			body:   `{"message":"hi"}`,
			status: http.StatusBadGateway,
		},
		{
			name:   "plain error",
			chat:   stubChat{err: errors.New("boom")},
			body:   `{"message":"hi"}`,
			status: http.StatusBadGateway,
			want:   map[string]interface{}{"success": false, "error": "Error processing AI chat: boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postChat(chatRouter(tt.chat), tt.body)
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			if tt.want != nil {
				assert.Equal(t, tt.want, body)
			} else {
				assert.Equal(t, false, body["success"])
				assert.True(t, strings.HasPrefix(body["error"].(string), "Error processing AI chat: "))
			}
		})
	}
}

func TestSSEData(t *testing.T) {
	assert.Equal(t, " hello", sseData("hello"))
	assert.Equal(t, "  world", sseData(" world"))
	assert.Equal(t, " a\n b", sseData("a\nb"))
	assert.Equal(t, " ", sseData(""))
	assert.Equal(t, " a\n b", sseData("a\r\nb"))
	assert.Equal(t, " a\n b\n \n c", sseData("a\rb\n\r\nc"))
	assert.NotContains(t, sseData("x\r\ny\rz"), "\r")
}

func TestCloseNormalLogsWriteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	core, logs := observer.New(zapcore.DebugLevel)
	closeNormal(conn, zap.New(core))

	entries := logs.FilterMessage("Failed to write WebSocket close frame").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
}
