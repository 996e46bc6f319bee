// Package chat turns a single user message into an answer using the
// provider client. It is the generation path shared by the plain chat
// endpoint and the streaming endpoints.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/xcode-ai/ai-gateway/internal/llm"
	"go.uber.org/zap"
)

// ErrEmptyMessage is returned for blank user input
var ErrEmptyMessage = errors.New("message is required")

// Config for the chat service
type Config struct {
	SystemPrompt string
	Model        string // empty uses the client's default
	Temperature  float64
	MaxTokens    int
}

// Service answers single-turn chat messages
type Service struct {
	client llm.Client
	config Config
	logger *zap.Logger
}

// NewService creates a chat service
func NewService(client llm.Client, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, config: cfg, logger: logger}
}

// BuildRequest translates a user message into a chat request
func (s *Service) BuildRequest(message string) *llm.ChatRequest {
	var messages []llm.Message
	if s.config.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.config.SystemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	req := &llm.ChatRequest{
		Model:    s.config.Model,
		Messages: messages,
	}
	if s.config.Temperature > 0 {
		req.Temperature = llm.Float64(s.config.Temperature)
	}
	if s.config.MaxTokens > 0 {
		req.MaxTokens = llm.Int(s.config.MaxTokens)
	}
	return req
}

// Reply returns the provider's answer to message
func (s *Service) Reply(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	resp, err := s.client.Chat(ctx, s.BuildRequest(message))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		s.logger.Warn("Provider returned no choices", zap.String("client", s.client.Name()))
	}
	return resp.Content(), nil
}

// Generate implements stream.Generator
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	return s.Reply(ctx, prompt)
}
