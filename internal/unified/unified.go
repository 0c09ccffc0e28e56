// Package unified defines the provider-neutral request/response types that
// flow through the router. Every adapter translates to and from these types
// so the rest of the core never deals with vendor-specific payload shapes.
package unified

import "strconv"

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Message is one turn in the conversation sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// FinishReason explains why a provider stopped generating.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishToolCall      FinishReason = "tool_call"
	FinishError         FinishReason = "error"
)

// Request is the input to Router.ChatCompletion.
//
// Provider, when set, forces a single named provider and disables
// failover.
type Request struct {
	Messages    []Message
	Model       string
	Temperature *float64
	MaxTokens   int
	Stream      bool
	Provider    string
	Extra       map[string]any
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the output of one successful adapter attempt.
type Response struct {
	Content      string
	Provider     string
	Model        string
	Usage        Usage
	FinishReason FinishReason
	Raw          any
}

// ValidationError reports a Request that failed Validate before any
// provider was ever contacted. It is never retried and never opens a
// breaker.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Field + ": " + e.Reason
}

const (
	minTemperature = 0.0
	maxTemperature = 2.0
)

// Validate enforces the request invariants: at least one
// message, known roles, non-empty content, and a temperature within
// [0.0, 2.0] when set. It never touches the registry — Provider
// existence is checked by the router once it resolves candidates.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Reason: "must contain at least one message"}
	}
	for i, msg := range r.Messages {
		if !msg.Role.valid() {
			return &ValidationError{Field: "messages[" + strconv.Itoa(i) + "].role", Reason: "unknown role " + string(msg.Role)}
		}
		if msg.Content == "" {
			return &ValidationError{Field: "messages[" + strconv.Itoa(i) + "].content", Reason: "must not be empty"}
		}
	}
	if r.Temperature != nil {
		if *r.Temperature < minTemperature || *r.Temperature > maxTemperature {
			return &ValidationError{Field: "temperature", Reason: "must be within [0.0, 2.0]"}
		}
	}
	if r.MaxTokens < 0 {
		return &ValidationError{Field: "max_tokens", Reason: "must be positive"}
	}
	return nil
}
