package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xcode-ai/ai-gateway/internal/config"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 8 << 20
)

// Recorder receives per-call metrics. *metrics.Collector implements it.
type Recorder interface {
	ObserveRequest(model string, status int, elapsed time.Duration)
	ObserveError(kind string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, int, time.Duration) {}
func (nopRecorder) ObserveError(string)                       {}

// Options configures a QwenClient
type Options struct {
	HTTPClient *http.Client
	// FallbackAPIKey is used only when the resolved credentials carry no key
	FallbackAPIKey string
	Metrics        Recorder
	Logger         *zap.Logger
}

// QwenClient calls the DashScope OpenAI-compatible chat completions API.
// All fields are fixed at construction, so one client may be shared by any
// number of goroutines.
type QwenClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	devMode      bool

	httpClient *http.Client
	metrics    Recorder
	logger     *zap.Logger
}

// NewQwenClient creates a client from resolved credentials
func NewQwenClient(creds config.Credentials, opts Options) *QwenClient {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	recorder := opts.Metrics
	if recorder == nil {
		recorder = nopRecorder{}
	}

	apiKey := strings.TrimSpace(creds.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(opts.FallbackAPIKey)
		if apiKey != "" {
			logger.Info("API key resolved from application config")
		}
	}
	if apiKey != "" && !strings.HasPrefix(apiKey, KeyPrefix) {
		logger.Warn("Resolved API key does not start with 'sk-'; make sure it is a DashScope key",
			zap.String("api_key", config.Mask(apiKey)),
		)
	}

	baseURL := strings.TrimRight(creds.BaseURL, "/")
	if !config.ValidBaseURL(baseURL) {
		logger.Warn("Base URL appears invalid, falling back to default",
			zap.String("received", creds.BaseURL),
		)
		baseURL = config.DefaultBaseURL
	}
	defaultModel := creds.DefaultModel
	if defaultModel == "" {
		defaultModel = config.DefaultModel
	}

	logger.Info("Provider client configured",
		zap.String("base_url", baseURL),
		zap.String("default_model", defaultModel),
		zap.Bool("api_key_present", apiKey != ""),
	)

	return &QwenClient{
		apiKey:       apiKey,
		baseURL:      baseURL,
		defaultModel: defaultModel,
		devMode:      creds.DevMode,
		httpClient:   httpClient,
		metrics:      recorder,
		logger:       logger,
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireRequest is the subset of ChatRequest the provider accepts
type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type wireResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func toWire(req *ChatRequest) wireRequest {
	messages := make([]wireMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = wireMessage{Role: string(m.Role), Content: m.Content}
	}
	return wireRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
}

func fromWire(w *wireResponse, status int) *ChatResponse {
	resp := &ChatResponse{
		ID:        w.ID,
		Model:     w.Model,
		Choices:   make([]Choice, len(w.Choices)),
		RawStatus: status,
		Usage: Usage{
			PromptTokens:     w.Usage.PromptTokens,
			CompletionTokens: w.Usage.CompletionTokens,
			TotalTokens:      w.Usage.TotalTokens,
		},
	}
	for i, c := range w.Choices {
		resp.Choices[i] = Choice{
			Message:      Message{Role: Role(c.Message.Role), Content: c.Message.Content},
			FinishReason: c.FinishReason,
		}
	}
	return resp
}

// Chat sends one chat completion request. An empty req.Model is replaced by
// the default model on req itself.
func (c *QwenClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, errors.New("nil chat request")
	}
	if req.Model == "" {
		req.Model = c.defaultModel
	}

	if c.apiKey == "" {
		c.logger.Error("API key is not configured; set DASHSCOPE_API_KEY or QWEN_API_KEY")
		c.metrics.ObserveError(KindConfig)
		return nil, &ConfigError{
			Reason: "API key is not configured; set DASHSCOPE_API_KEY or QWEN_API_KEY",
			Err:    ErrMissingAPIKey,
		}
	}

	data, err := json.Marshal(toWire(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info("Provider request",
		zap.String("url", url),
		zap.String("model", req.Model),
		zap.String("api_key", config.Mask(c.apiKey)),
	)
	c.logger.Debug("Provider request body", zap.ByteString("body", data))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(req.Model, 0, time.Since(start))
		c.metrics.ObserveError(KindTransport)
		c.logger.Error("Provider call failed", zap.String("url", url), zap.Error(err))
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.ObserveRequest(req.Model, resp.StatusCode, time.Since(start))
	if err != nil {
		c.metrics.ObserveError(KindTransport)
		c.logger.Error("Failed to read provider response", zap.String("url", url), zap.Error(err))
		return nil, &TransportError{URL: url, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.upstreamError(url, req.Model, resp.StatusCode, body)
	}

	var result wireResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.metrics.ObserveError(KindParse)
		c.logger.Error("Error parsing provider response",
			zap.Error(err),
			zap.ByteString("response", body),
		)
		return nil, &ParseError{Status: resp.StatusCode, Body: snippet(body), Err: err}
	}

	return fromWire(&result, resp.StatusCode), nil
}

func (c *QwenClient) upstreamError(url, model string, status int, body []byte) error {
	c.metrics.ObserveError(KindUpstream)
	c.logger.Error("Provider request failed",
		zap.String("url", url),
		zap.Int("status", status),
		zap.String("model", model),
		zap.ByteString("response", body),
		zap.String("api_key", config.Mask(c.apiKey)),
	)

	upErr := &UpstreamError{Status: status, Body: snippet(body)}
	if status == http.StatusUnauthorized {
		upErr.Auth = DiagnoseUnauthorized(c.apiKey, string(body))
		c.logger.Info("Unauthorized response classified",
			zap.String("cause", string(upErr.Auth.Cause())),
			zap.String("provider_code", upErr.Auth.ProviderCode),
		)
		for _, hint := range upErr.Auth.Suggestions(c.devMode) {
			c.logger.Warn("Unauthorized: " + hint)
		}
	}
	return upErr
}

// TestConnection issues a minimal, cheap request and reports the HTTP status.
// ok is false when no key is configured or no response was received.
func (c *QwenClient) TestConnection(ctx context.Context) (status int, ok bool) {
	if c.apiKey == "" {
		c.logger.Warn("API key is not configured for connection test")
		return 0, false
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Connection test panicked", zap.Any("panic", r))
			status, ok = 0, false
		}
	}()

	resp, err := c.Chat(ctx, &ChatRequest{
		Model:       c.defaultModel,
		Messages:    []Message{{Role: RoleUser, Content: "Hello"}},
		Temperature: Float64(0.1),
		MaxTokens:   Int(10),
	})
	if err == nil {
		return resp.RawStatus, true
	}

	var (
		upErr    *UpstreamError
		parseErr *ParseError
	)
	switch {
	case errors.As(err, &upErr):
		return upErr.Status, true
	case errors.As(err, &parseErr):
		return parseErr.Status, true
	}

	c.logger.Warn("Connection test failed", zap.Error(err))
	return 0, false
}

// DefaultModel returns the model used when a request names none
func (c *QwenClient) DefaultModel() string {
	return c.defaultModel
}

// Name returns the client name
func (c *QwenClient) Name() string {
	return "qwen:" + c.defaultModel
}
