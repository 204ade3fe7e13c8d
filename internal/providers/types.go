// Package providers talks to OpenAI-compatible embedding and chat
// completion services (Azure OpenAI, OpenAI, DashScope compatible mode).
package providers

import (
	"context"
	"fmt"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single completion call over a full history.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

// Usage reports token accounting returned by the service.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        *Usage
}

// ChatProvider produces the next assistant message for a history.
type ChatProvider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// EmbeddingProvider generates vector embeddings for text. The returned
// slice matches texts in length and order.
type EmbeddingProvider interface {
	Name() string
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPError is a non-2xx answer from the service.
type HTTPError struct {
	Provider string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.Status, e.Body)
}
