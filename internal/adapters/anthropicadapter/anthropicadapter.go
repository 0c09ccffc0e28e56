// Package anthropicadapter wraps the Anthropic Go SDK's non-streaming
// Messages.New behind the provider.Adapter interface. Like openaiadapter it
// never streams: Invoke returns the full reply in one Response.
package anthropicadapter

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/flexigate/internal/provider"
	"github.com/haasonsaas/flexigate/internal/unified"
)

const defaultMaxTokens = 1024

// Adapter implements provider.Adapter against the Anthropic Messages API.
type Adapter struct {
	name   string
	model  string
	client anthropic.Client
}

// New builds an Adapter named name using model as the default when a
// request doesn't override it. baseURL overrides the SDK's default
// endpoint when set, for proxies and compatible gateways.
func New(name, apiKey, model, baseURL string) *Adapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Adapter{name: name, model: model, client: anthropic.NewClient(opts...)}
}

// Invoke implements provider.Adapter.
func (a *Adapter) Invoke(ctx context.Context, req unified.Request) (unified.Response, error) {
	messages, system := toAnthropicMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.modelFor(req)),
		Messages:  messages,
		MaxTokens: int64(a.maxTokensFor(req)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return unified.Response{}, a.classify(err)
	}
	if len(msg.Content) == 0 {
		return unified.Response{}, &provider.Error{Kind: provider.KindTransient, Provider: a.name, Message: "empty content blocks in response"}
	}

	var content string
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			content += text
		}
	}

	return unified.Response{
		Content:  content,
		Provider: a.name,
		Model:    string(msg.Model),
		Usage: unified.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		FinishReason: toFinishReason(msg.StopReason),
		Raw:          msg,
	}, nil
}

// HealthCheck implements provider.Adapter with a minimal one-token probe,
// since the SDK has no dedicated health endpoint.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	_, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	return err == nil
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return a.name }

// Model implements provider.Adapter.
func (a *Adapter) Model() string { return a.model }

func (a *Adapter) modelFor(req unified.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return a.model
}

func (a *Adapter) maxTokensFor(req unified.Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

func (a *Adapter) classify(err error) *provider.Error {
	perr := provider.New(a.name, err)

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		perr = perr.WithStatus(apiErr.StatusCode)
		if code, message, ok := decodeErrorPayload(apiErr.RawJSON()); ok {
			perr.Message = message
			perr = perr.WithCode(code)
		}
	}
	return perr
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeErrorPayload(raw string) (code, message string, ok bool) {
	if raw == "" {
		return "", "", false
	}
	var payload anthropicErrorPayload
	if json.Unmarshal([]byte(raw), &payload) != nil {
		return "", "", false
	}
	return payload.Error.Type, payload.Error.Message, payload.Error.Message != ""
}

func toAnthropicMessages(messages []unified.Message) ([]anthropic.MessageParam, string) {
	var system string
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case unified.RoleSystem:
			system = m.Content
		case unified.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out, system
}

func toFinishReason(reason anthropic.StopReason) unified.FinishReason {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return unified.FinishStop
	case anthropic.StopReasonMaxTokens:
		return unified.FinishLength
	case anthropic.StopReasonToolUse:
		return unified.FinishToolCall
	default:
		return unified.FinishStop
	}
}
