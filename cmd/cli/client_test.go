package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcode-ai/ai-gateway/internal/api/middleware"
	"github.com/xcode-ai/ai-gateway/internal/stream"
)

func withAPI(t *testing.T, url string) {
	t.Helper()
	old := apiURL
	apiURL = url
	t.Cleanup(func() { apiURL = old })
}

func TestPrintOutput(t *testing.T) {
	data := []byte(`{"status":"available","hasApiKey":true}`)

	var buf bytes.Buffer
	require.NoError(t, printOutput(&buf, data, "yaml"))
	assert.Equal(t, "hasApiKey: true\nstatus: available\n", buf.String())

	buf.Reset()
	require.NoError(t, printOutput(&buf, data, "json"))
	assert.Equal(t, "{\n  \"hasApiKey\": true,\n  \"status\": \"available\"\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, printOutput(&buf, []byte("plain text"), "json"))
	assert.Equal(t, "plain text\n", buf.String())

	assert.Error(t, printOutput(&buf, data, "xml"))
}

func TestMakeRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ai/chat":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.Write([]byte(`{"success":true,"message":"hi"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Missing bearer token"}`))
		}
	}))
	defer srv.Close()
	withAPI(t, srv.URL+"/")

	body, err := makeRequest(http.MethodPost, "/api/ai/chat", map[string]string{"message": "hi"}, "tok")
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"hi"}`, string(body))

	_, err = makeRequest(http.MethodGet, "/api/status", nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestWSURL(t *testing.T) {
	got, err := wsURL("https://gw.example.com/", "hello world", "tok")
	require.NoError(t, err)
	assert.Equal(t, "wss://gw.example.com/api/ai/chat-ws?message=hello+world&token=tok", got)

	got, err = wsURL("http://localhost:8081", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8081/api/ai/chat-ws?message=hi", got)
}

func wsServer(t *testing.T, events ...stream.Event) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, ev := range events {
			conn.WriteJSON(ev)
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamChat(t *testing.T) {
	t.Run("prints chunks", func(t *testing.T) {
		withAPI(t, wsServer(t,
			stream.Event{Type: stream.EventStart},
			stream.Event{Type: stream.EventChunk, Data: "hello"},
			stream.Event{Type: stream.EventChunk, Data: " world"},
			stream.Event{Type: stream.EventDone, Data: stream.DoneSentinel},
		).URL)

		var buf bytes.Buffer
		require.NoError(t, streamChat(context.Background(), &buf, "hi", ""))
		assert.Equal(t, "hello world\n", buf.String())
	})

	t.Run("error event", func(t *testing.T) {
		withAPI(t, wsServer(t,
			stream.Event{Type: stream.EventStart},
			stream.Event{Type: stream.EventError, Data: "Error: no key"},
		).URL)

		err := streamChat(context.Background(), &bytes.Buffer{}, "hi", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no key")
	})

	t.Run("closed early", func(t *testing.T) {
		withAPI(t, wsServer(t, stream.Event{Type: stream.EventStart}).URL)

		err := streamChat(context.Background(), &bytes.Buffer{}, "hi", "")
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "before completion"))
	})
}

func TestMintToken(t *testing.T) {
	signed, err := mintToken("secret", "me", time.Hour)
	require.NoError(t, err)

	claims := &middleware.Claims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "me", claims.Subject)
}

func TestPrintAnswer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printAnswer(&buf, []byte(`{"success":true,"message":"# Title\n\nhello **world**"}`)))
	assert.Contains(t, buf.String(), "Title")
	assert.Contains(t, buf.String(), "hello")

	err := printAnswer(&buf, []byte(`{"success":false,"error":"Message is required"}`))
	require.Error(t, err)
	assert.Equal(t, "Message is required", err.Error())

	assert.Error(t, printAnswer(&buf, []byte("oops")))
}
