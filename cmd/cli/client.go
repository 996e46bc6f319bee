package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"github.com/xcode-ai/ai-gateway/internal/stream"
)

// makeRequest calls the gateway and returns the response body
func makeRequest(method, path string, body interface{}, authToken string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, strings.TrimRight(apiURL, "/")+path, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// printOutput re-renders a JSON body as indented JSON or YAML
func printOutput(w io.Writer, data []byte, format string) error {
	var result interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(result)
	case "json", "":
		formatted, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(formatted))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// printAnswer renders the chat answer as terminal markdown
func printAnswer(w io.Writer, data []byte) error {
	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("unexpected response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}
	out, err := renderer.Render(result.Message)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

// wsURL turns the API base URL into the websocket chat endpoint
func wsURL(base, message, authToken string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/api/ai/chat-ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("message", message)
	if authToken != "" {
		q.Set("token", authToken)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// streamChat prints chunks as they arrive over the websocket endpoint
func streamChat(ctx context.Context, w io.Writer, message, authToken string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	target, err := wsURL(apiURL, message, authToken)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("stream failed: HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("stream failed: %w", err)
	}
	defer conn.Close()

	for {
		var ev stream.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return fmt.Errorf("stream closed before completion")
			}
			return fmt.Errorf("stream failed: %w", err)
		}

		switch ev.Type {
		case stream.EventChunk:
			fmt.Fprint(w, ev.Data)
		case stream.EventDone:
			fmt.Fprintln(w)
			return nil
		case stream.EventError:
			fmt.Fprintln(w)
			return fmt.Errorf("stream error: %s", color.YellowString(ev.Data))
		}
	}
}
