package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xcode-ai/ai-gateway/pkg/logger"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, &Claims{
		Name: "tester",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.Use(Auth(secret))
	r.GET("/me", func(c *gin.Context) {
		sub, _ := GetSubject(c)
		c.String(http.StatusOK, sub)
	})
	return r
}

func TestAuth(t *testing.T) {
	valid := sign(t, jwt.SigningMethodHS256, []byte(secret), time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "header", header: "Bearer " + valid, status: http.StatusOK, body: "user-1"},
		{name: "query", query: "?token=" + valid, status: http.StatusOK, body: "user-1"},
		{name: "missing", status: http.StatusUnauthorized, body: "Missing bearer token"},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized, body: "Invalid token"},
		{
			name:   "wrong secret",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), time.Now().Add(time.Hour)),
			status: http.StatusUnauthorized,
			body:   "Invalid token",
		},
		{
			name:   "expired",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), time.Now().Add(-time.Minute)),
			status: http.StatusUnauthorized,
			body:   "Token expired",
		},
		{
			name:   "wrong algorithm",
			header: "Bearer " + sign(t, jwt.SigningMethodHS512, []byte(secret), time.Now().Add(time.Hour)),
			status: http.StatusUnauthorized,
			body:   "Invalid token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			authRouter().ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestID(zap.New(core)))
	r.GET("/", func(c *gin.Context) {
		logger.FromContext(c.Request.Context(), nil).Info("inside")
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	id := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, w.Body.String())

	entries := logs.FilterMessage("inside").All()
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ContextMap()["request_id"])

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "caller-id", w.Header().Get(RequestIDHeader))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestID(zap.NewNop()), Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for _, path := range []string{"/ok", "/bad", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	all := logs.All()
	require.Len(t, all, 3)
	assert.Equal(t, "Request handled", all[0].Message)
	assert.Equal(t, "Request rejected", all[1].Message)
	assert.Equal(t, "Request failed", all[2].Message)
	assert.Equal(t, "/boom", all[2].ContextMap()["path"])
	assert.NotEmpty(t, all[2].ContextMap()["request_id"])
}
