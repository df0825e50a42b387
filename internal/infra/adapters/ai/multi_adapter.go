package ai

import (
	"context"
	"fmt"
	"strings"

	"jobflow/internal/domain"
	"jobflow/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes each request to a provider chosen from the model name.
type MultiAIAdapter struct {
	defaultProvider string // e.g., "anthropic"
	byProvider      map[string]adapter.AIServiceAdapter
	modelToProvider map[string]string // model -> provider
}

// NewMultiAIAdapter does not inject any default model; it only knows a default provider.
// Each provider adapter is responsible for its own default model.
func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.AIServiceAdapter,
	modelToProvider map[string]string,
) *MultiAIAdapter {
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

func (m *MultiAIAdapter) Name() string { return "multi" }

func (m *MultiAIAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "claude"):
		return "anthropic"
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"), strings.HasPrefix(l, "o4"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

// Readiness is implemented by adapters that can report missing credentials up front.
type Readiness interface {
	Ready(model string) error
}

func (m *MultiAIAdapter) pick(model string) (adapter.AIServiceAdapter, error) {
	a := m.byProvider[m.resolveProvider(model)]
	if a == nil {
		return nil, domain.MissingConfig(fmt.Sprintf("No AI provider configured for model %q.", model))
	}
	return a, nil
}

func (m *MultiAIAdapter) Ready(model string) error {
	a, err := m.pick(model)
	if err != nil {
		return err
	}
	if r, ok := a.(Readiness); ok {
		return r.Ready(model)
	}
	return nil
}

func (m *MultiAIAdapter) Chat(ctx context.Context, req adapter.ChatRequest) (*adapter.ChatResponse, error) {
	a, err := m.pick(req.Model)
	if err != nil {
		return nil, err
	}
	return a.Chat(ctx, req)
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
