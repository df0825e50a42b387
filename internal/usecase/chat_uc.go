package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"jobflow/internal/domain"
	"jobflow/internal/domain/ports/adapter"
	"jobflow/internal/infra/logging"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

const (
	MaxChatHistory = 12

	chatSystemPrompt = "You are JobFlow's helpful assistant. Keep answers concise and actionable.\n" +
		"If asked about resumes or job tracking, provide practical advice."
	EmptyReplyMessage = "Claude response was empty."
)

type ChatUseCase interface {
	// Reply sends the sanitized history to the model. raw is the decoded
	// "messages" array exactly as the client sent it.
	Reply(ctx context.Context, raw []any) (*ChatReply, error)
}

type ChatReply struct {
	Reply    string
	Model    string
	Provider string
	Usage    *adapter.Usage
}

// ChatSettings are the fixed generation parameters.
type ChatSettings struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// readiness is implemented by providers that can report missing credentials
// before a request is built.
type readiness interface {
	Ready(model string) error
}

type chatUC struct {
	ai       adapter.AIServiceAdapter
	settings ChatSettings
	log      *zerolog.Logger
}

func NewChatUseCase(ai adapter.AIServiceAdapter, settings ChatSettings, logger *zerolog.Logger) *chatUC {
	return &chatUC{ai: ai, settings: settings, log: logger}
}

func (c *chatUC) Reply(ctx context.Context, raw []any) (*ChatReply, error) {
	defer logging.TraceDuration(c.log, "ChatUC.Reply")()

	if r, ok := c.ai.(readiness); ok {
		if err := r.Ready(c.settings.Model); err != nil {
			return nil, err
		}
	}

	history := SanitizeHistory(raw)
	if len(history) == 0 {
		return nil, domain.Invalid("Message is required.")
	}

	resp, err := c.ai.Chat(ctx, adapter.ChatRequest{
		Model:       c.settings.Model,
		System:      chatSystemPrompt,
		MaxTokens:   c.settings.MaxTokens,
		Temperature: c.settings.Temperature,
		Messages:    history,
	})
	if err != nil {
		logging.With(ctx, c.log).Warn().Err(err).Str("model", c.settings.Model).Msg("chat upstream failed")
		return nil, err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, &domain.UpstreamError{Provider: resp.Provider, Status: 502, Message: EmptyReplyMessage}
	}
	model := resp.Model
	if model == "" {
		model = c.settings.Model
	}
	return &ChatReply{Reply: text, Model: model, Provider: resp.Provider, Usage: resp.Usage}, nil
}

// SanitizeHistory keeps entries whose content is a string that is non-empty
// once trimmed, maps every role other than "assistant" to "user" and returns
// the last MaxChatHistory of them.
func SanitizeHistory(raw []any) []adapter.Message {
	out := make([]adapter.Message, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok || m == nil {
			continue
		}
		content, ok := m["content"].(string)
		if !ok {
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		role := "user"
		if r, _ := m["role"].(string); r == "assistant" {
			role = "assistant"
		}
		out = append(out, adapter.Message{Role: role, Content: content})
	}
	if len(out) > MaxChatHistory {
		out = out[len(out)-MaxChatHistory:]
	}
	return out
}
