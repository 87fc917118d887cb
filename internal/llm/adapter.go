package llm

import (
	"context"

	"rook/internal/ports"
)

// PortsAdapter exposes a Provider through ports.LLM, the narrow contract
// the ingestion gate's contradiction check and the façade's fact extraction
// depend on. It collapses streaming, tool calls, and image payloads down to
// plain text in/out, since neither caller needs them.
type PortsAdapter struct {
	Provider Provider
	Model    string
}

// NewPortsAdapter wraps provider, routing every call to model.
func NewPortsAdapter(provider Provider, model string) *PortsAdapter {
	return &PortsAdapter{Provider: provider, Model: model}
}

// Generate satisfies ports.LLM.
func (a *PortsAdapter) Generate(ctx context.Context, messages []ports.GenerateMessage, opts ports.GenerateOptions) (ports.GenerateResult, error) {
	msgs := make([]Message, len(messages))
	for i, m := range messages {
		msgs[i] = Message{Role: m.Role, Content: m.Content}
	}

	reply, err := a.Provider.Chat(ctx, msgs, nil, a.Model)
	if err != nil {
		return ports.GenerateResult{}, err
	}

	return ports.GenerateResult{Content: reply.Content}, nil
}
