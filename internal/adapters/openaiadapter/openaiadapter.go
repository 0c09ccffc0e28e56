// Package openaiadapter wraps go-openai's CreateChatCompletion behind the
// provider.Adapter interface. It does not stream: Invoke makes one
// synchronous call and returns the full message as Response.Content, a
// valid degenerate pass-through for adapters that don't stream at all.
package openaiadapter

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/flexigate/internal/provider"
	"github.com/haasonsaas/flexigate/internal/unified"
)

// Adapter implements provider.Adapter against the OpenAI chat completions
// API.
type Adapter struct {
	name   string
	model  string
	client *openai.Client
}

// New builds an Adapter named name using model as the default when a
// request doesn't override it. apiKey is required; baseURL overrides the
// default OpenAI endpoint for Azure/OpenAI-compatible gateways when set.
func New(name, apiKey, model, baseURL string) *Adapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Adapter{name: name, model: model, client: openai.NewClientWithConfig(cfg)}
}

// Invoke implements provider.Adapter.
func (a *Adapter) Invoke(ctx context.Context, req unified.Request) (unified.Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    a.modelFor(req),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return unified.Response{}, a.classify(err)
	}
	if len(resp.Choices) == 0 {
		return unified.Response{}, &provider.Error{Kind: provider.KindTransient, Provider: a.name, Message: "empty choices in response"}
	}

	choice := resp.Choices[0]
	return unified.Response{
		Content:  choice.Message.Content,
		Provider: a.name,
		Model:    resp.Model,
		Usage: unified.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: toFinishReason(choice.FinishReason),
		Raw:          resp,
	}, nil
}

// HealthCheck implements provider.Adapter with a cheap model-list probe.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	_, err := a.client.ListModels(ctx)
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

func (a *Adapter) classify(err error) *provider.Error {
	perr := provider.New(a.name, err)
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		perr = perr.WithStatus(apiErr.HTTPStatusCode)
		if code, ok := apiErr.Code.(string); ok {
			perr = perr.WithCode(code)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		perr = perr.WithStatus(reqErr.HTTPStatusCode)
	}
	return perr
}

func toOpenAIMessages(messages []unified.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func toFinishReason(reason openai.FinishReason) unified.FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return unified.FinishStop
	case openai.FinishReasonLength:
		return unified.FinishLength
	case openai.FinishReasonContentFilter:
		return unified.FinishContentFilter
	case openai.FinishReasonFunctionCall, openai.FinishReasonToolCalls:
		return unified.FinishToolCall
	default:
		return unified.FinishStop
	}
}
