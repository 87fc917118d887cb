package llm

import (
	"context"
	"errors"
	"testing"

	"rook/internal/ports"
)

type fakeProvider struct {
	lastMsgs  []Message
	lastModel string
	reply     Message
	err       error
}

func (f *fakeProvider) Chat(ctx context.Context, msgs []Message, tools []ToolSchema, model string) (Message, error) {
	f.lastMsgs = msgs
	f.lastModel = model
	return f.reply, f.err
}

func (f *fakeProvider) ChatStream(ctx context.Context, msgs []Message, tools []ToolSchema, model string, h StreamHandler) error {
	return errors.New("not implemented")
}

func TestPortsAdapter_GenerateTranslatesMessagesAndReply(t *testing.T) {
	fp := &fakeProvider{reply: Message{Role: "assistant", Content: "yes"}}
	adapter := NewPortsAdapter(fp, "test-model")

	result, err := adapter.Generate(context.Background(), []ports.GenerateMessage{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "contradicts?"},
	}, ports.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Content != "yes" {
		t.Errorf("Content = %q, want yes", result.Content)
	}
	if fp.lastModel != "test-model" {
		t.Errorf("model = %q, want test-model", fp.lastModel)
	}
	if len(fp.lastMsgs) != 2 || fp.lastMsgs[1].Content != "contradicts?" {
		t.Errorf("messages not translated correctly: %+v", fp.lastMsgs)
	}
}

func TestPortsAdapter_GeneratePropagatesError(t *testing.T) {
	fp := &fakeProvider{err: errors.New("provider down")}
	adapter := NewPortsAdapter(fp, "test-model")

	if _, err := adapter.Generate(context.Background(), nil, ports.GenerateOptions{}); err == nil {
		t.Error("expected the provider error to propagate")
	}
}
