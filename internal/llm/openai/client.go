// Package openai adapts an OpenAI-compatible chat completions endpoint to
// llm.Provider. It carries only what rook's callers need: plain-text
// request/response turns, no tool calling, no image attachments, no
// Responses-API fallback. A deployment pointed at a self-hosted
// OpenAI-compatible server (llama.cpp, vLLM, mlx_lm.server) works the same
// way, by setting BaseURL.
package openai

import (
	"context"
	"net/http"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog/log"

	"rook/internal/llm"
)

// Config names the connection details for an OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string
}

// Client implements llm.Provider over the OpenAI Go SDK's chat completions
// API.
type Client struct {
	sdk sdk.Client
}

// New builds a Client from cfg. httpClient may be nil, in which case
// http.DefaultClient is used.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithHTTPClient(httpClient)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{sdk: sdk.NewClient(opts...)}
}

// Chat implements llm.Provider.Chat using OpenAI's non-streaming chat
// completions endpoint.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, _ []llm.ToolSchema, model string) (llm.Message, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: adaptMessages(msgs),
	}

	start := time.Now()
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("chat_completion_error")
		return llm.Message{}, err
	}
	log.Debug().Str("model", model).Dur("duration", dur).
		Int("prompt_tokens", int(comp.Usage.PromptTokens)).
		Int("completion_tokens", int(comp.Usage.CompletionTokens)).
		Msg("chat_completion_ok")

	if len(comp.Choices) == 0 {
		return llm.Message{Role: "assistant"}, nil
	}
	return llm.Message{Role: "assistant", Content: comp.Choices[0].Message.Content}, nil
}

// ChatStream implements llm.Provider.ChatStream. It streams content deltas
// to h as they arrive and reports the error, if any, once the stream ends.
func (c *Client) ChatStream(ctx context.Context, msgs []llm.Message, _ []llm.ToolSchema, model string, h llm.StreamHandler) error {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: adaptMessages(msgs),
	}

	stream := c.sdk.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" && h != nil {
			h.OnDelta(delta)
		}
	}
	if err := stream.Err(); err != nil {
		log.Error().Err(err).Str("model", model).Msg("chat_completion_stream_error")
		return err
	}
	return nil
}
