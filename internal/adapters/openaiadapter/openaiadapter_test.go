package openaiadapter

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"github.com/haasonsaas/flexigate/internal/provider"
	"github.com/haasonsaas/flexigate/internal/unified"
)

func TestToOpenAIMessagesPreservesRoleAndContent(t *testing.T) {
	messages := []unified.Message{
		{Role: unified.RoleSystem, Content: "be terse"},
		{Role: unified.RoleUser, Content: "hi"},
	}
	out := toOpenAIMessages(messages)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "be terse", out[0].Content)
	assert.Equal(t, "user", out[1].Role)
}

func TestToFinishReasonMapsKnownValues(t *testing.T) {
	assert.Equal(t, unified.FinishStop, toFinishReason(openai.FinishReasonStop))
	assert.Equal(t, unified.FinishLength, toFinishReason(openai.FinishReasonLength))
	assert.Equal(t, unified.FinishContentFilter, toFinishReason(openai.FinishReasonContentFilter))
	assert.Equal(t, unified.FinishToolCall, toFinishReason(openai.FinishReasonToolCalls))
}

func TestModelForPrefersRequestOverride(t *testing.T) {
	a := &Adapter{name: "openai", model: "gpt-4o-mini"}
	assert.Equal(t, "gpt-4o", a.modelFor(unified.Request{Model: "gpt-4o"}))
	assert.Equal(t, "gpt-4o-mini", a.modelFor(unified.Request{}))
}

func TestClassifyMapsAPIErrorStatusToProviderKind(t *testing.T) {
	a := &Adapter{name: "openai"}
	apiErr := &openai.APIError{HTTPStatusCode: 401, Code: "invalid_api_key"}
	perr := a.classify(apiErr)
	assert.Equal(t, provider.KindAuth, perr.Kind)
	assert.Equal(t, 401, perr.Status)
	assert.Equal(t, "openai", perr.Provider)
}

func TestClassifyFallsBackToMessageSniffingForPlainErrors(t *testing.T) {
	a := &Adapter{name: "openai"}
	perr := a.classify(assertionError("connection timeout"))
	assert.Equal(t, provider.KindTransient, perr.Kind)
}

type assertionError string

func (e assertionError) Error() string { return string(e) }
