package openai

import (
	sdk "github.com/openai/openai-go/v2"

	"rook/internal/llm"
)

// adaptMessages converts portable llm.Message history to OpenAI SDK message
// params. rook's callers (fact extraction, contradiction checks, procedural
// summarization) only ever send system/user/assistant turns with plain text
// content, so tool-call and image adaptation from the upstream client isn't
// carried here.
func adaptMessages(msgs []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, sdk.SystemMessage(firstNonEmptyMsg(m.Content, "You are a helpful assistant.")))
		case "assistant":
			out = append(out, sdk.AssistantMessage(firstNonEmptyMsg(m.Content, " ")))
		case "tool":
			out = append(out, sdk.ToolMessage(firstNonEmptyMsg(m.Content, `{"error": "empty tool response"}`), m.ToolID))
		default: // "user" and anything unrecognized falls back to user content
			out = append(out, sdk.UserMessage(firstNonEmptyMsg(m.Content, " ")))
		}
	}
	return out
}

func firstNonEmptyMsg(content, fallback string) string {
	if content == "" {
		return fallback
	}
	return content
}
