// Package promptbuilder is a thin, optional ergonomic layer over
// internal/router: a fluent way to describe a named prompt's defaults
// once and issue calls against it, instead of repopulating a
// unified.Request by hand at every call site.
package promptbuilder

import (
	"context"

	"github.com/haasonsaas/flexigate/internal/router"
	"github.com/haasonsaas/flexigate/internal/unified"
)

// Builder accumulates the fixed parts of a prompt (system message, sampling
// defaults, a forced provider) so callers only supply the user's input at
// call time.
type Builder struct {
	name        string
	system      string
	temperature *float64
	maxTokens   int
	provider    string
}

// Prompt starts a Builder named name. The name is descriptive only — it
// never reaches the provider and is not validated against the registry.
func Prompt(name string) *Builder {
	return &Builder{name: name}
}

// System sets the system message prepended to every call built from b.
func (b *Builder) System(content string) *Builder {
	b.system = content
	return b
}

// Temperature fixes the sampling temperature for every call built from b.
func (b *Builder) Temperature(temperature float64) *Builder {
	b.temperature = &temperature
	return b
}

// MaxTokens fixes the max token budget for every call built from b.
func (b *Builder) MaxTokens(maxTokens int) *Builder {
	b.maxTokens = maxTokens
	return b
}

// Provider forces every call built from b to a single named provider,
// disabling failover for this prompt (unified.Request.Provider).
func (b *Builder) Provider(name string) *Builder {
	b.provider = name
	return b
}

// Name returns the prompt's descriptive name.
func (b *Builder) Name() string {
	return b.name
}

// Request composes the unified.Request for one call with userInput,
// prepending b.System as a system message when set.
func (b *Builder) Request(userInput string) unified.Request {
	var messages []unified.Message
	if b.system != "" {
		messages = append(messages, unified.Message{Role: unified.RoleSystem, Content: b.system})
	}
	messages = append(messages, unified.Message{Role: unified.RoleUser, Content: userInput})

	return unified.Request{
		Messages:    messages,
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
		Provider:    b.provider,
	}
}

// Call builds a request from userInput and issues it through client.
func (b *Builder) Call(ctx context.Context, client *router.Client, userInput string) (unified.Response, error) {
	return client.ChatCompletion(ctx, b.Request(userInput))
}
