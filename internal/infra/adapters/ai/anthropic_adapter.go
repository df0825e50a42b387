package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobflow/internal/domain"
	"jobflow/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*AnthropicAdapter)(nil)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
	anthropicFallbackErr = "Claude request failed."
)

// AnthropicAdapter calls the Anthropic Messages API. A single attempt is made
// per call; failures surface to the caller with the upstream status.
type AnthropicAdapter struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewAnthropicAdapter accepts an empty apiKey; Chat then reports the key missing.
func NewAnthropicAdapter(apiKey, baseURL, model string) *AnthropicAdapter {
	if baseURL == "" {
		baseURL = anthropicMessagesURL
	}
	return &AnthropicAdapter{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

// Ready reports a missing API key before any request is built.
func (a *AnthropicAdapter) Ready(string) error {
	if a.apiKey == "" {
		return domain.MissingConfig("ANTHROPIC_API_KEY not set.")
	}
	return nil
}

type anthropicRequest struct {
	Model       string            `json:"model"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float64           `json:"temperature"`
	System      string            `json:"system,omitempty"`
	Messages    []adapter.Message `json:"messages"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *adapter.Usage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AnthropicAdapter) Chat(ctx context.Context, req adapter.ChatRequest) (*adapter.ChatResponse, error) {
	if err := a.Ready(req.Model); err != nil {
		return nil, err
	}
	model := modelOrDefault(req.Model, a.model)

	body, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages:    req.Messages,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: a.Name(), Message: anthropicFallbackErr}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var payload anthropicResponse
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := anthropicFallbackErr
		if decodeErr == nil && payload.Error != nil && strings.TrimSpace(payload.Error.Message) != "" {
			msg = payload.Error.Message
		}
		return nil, &domain.UpstreamError{Provider: a.Name(), Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	var sb strings.Builder
	for _, part := range payload.Content {
		sb.WriteString(part.Text)
	}
	if payload.Model != "" {
		model = payload.Model
	}
	return &adapter.ChatResponse{
		Text:     strings.TrimSpace(sb.String()),
		Model:    model,
		Provider: a.Name(),
		Usage:    payload.Usage,
	}, nil
}
