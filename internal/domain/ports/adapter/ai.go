package adapter

import (
	"context"
	"encoding/json"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// Usage for a single chat call, as reported by the provider.
type Usage struct {
	InputTokens  int
	OutputTokens int
	// Raw is the provider's usage object as received. When set it is what
	// gets marshalled, so cache and tier counters reach the client intact.
	Raw json.RawMessage
}

type usageCounts struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u *Usage) UnmarshalJSON(b []byte) error {
	var c usageCounts
	if err := json.Unmarshal(b, &c); err != nil {
		return err
	}
	u.InputTokens, u.OutputTokens = c.InputTokens, c.OutputTokens
	u.Raw = append(json.RawMessage(nil), b...)
	return nil
}

func (u Usage) MarshalJSON() ([]byte, error) {
	if len(u.Raw) > 0 {
		return u.Raw, nil
	}
	return json.Marshal(usageCounts{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens})
}

// ChatRequest is a single completion request. System is sent out-of-band
// for providers that support it.
type ChatRequest struct {
	Model       string
	System      string
	MaxTokens   int
	Temperature float64
	Messages    []Message
}

type ChatResponse struct {
	Text     string
	Model    string
	Provider string
	Usage    *Usage
}

// AIServiceAdapter is the port for LLM chat.
type AIServiceAdapter interface {
	Name() string

	// Chat returns the assistant text. Non-2xx upstream replies are returned
	// as *domain.UpstreamError carrying the provider status.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
