package llm

import (
	"context"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the gateway's internal request model. Only the fields the
// provider understands are put on the wire.
type ChatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"` // oldest first
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`

	// Internal only, never forwarded
	TopP     *float64          `json:"top_p,omitempty"`
	User     string            `json:"user,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Choice is one completion alternative
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse represents a provider response
type ChatResponse struct {
	ID        string   `json:"id,omitempty"`
	Model     string   `json:"model,omitempty"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RawStatus int      `json:"raw_status"`
}

// Content returns the text of the first choice, or "" when there is none
func (r *ChatResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Float64 returns a pointer to v, for optional request fields
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional request fields
func Int(v int) *int { return &v }

// Client interface for the completion provider
type Client interface {
	// Chat performs exactly one blocking provider call
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// TestConnection returns the HTTP status of a minimal request, or
	// ok=false when no request could be made
	TestConnection(ctx context.Context) (status int, ok bool)
	Name() string
}
