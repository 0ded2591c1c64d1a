// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (OpenAI, Anthropic, Gemini,
// a local Ollama instance, ...) and exposes a uniform completion call to the
// AI assessment client without coupling it to any specific SDK.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrTruncated is returned when the backend stopped generating because it hit
// the token limit. A truncated reply cannot hold a complete assessment object.
var ErrTruncated = errors.New("llm: reply truncated at token limit")

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single message in an LLM conversation.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser], or [RoleAssistant].
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically from
	// the user role and drives the response.
	Messages []Message

	// SystemPrompt is an optional instruction injected before Messages. Providers
	// without a dedicated system field prepend it as a system-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero leaves the
	// provider default in place.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int

	// JSON asks the backend to constrain its output to a single JSON object.
	// Providers that cannot enforce this rely on the prompt alone; callers must
	// still tolerate stray text around the object.
	JSON bool

	// Seed asks backends that support it for reproducible sampling. Zero
	// leaves sampling unseeded.
	Seed int64
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Model is the model that produced the reply, as reported by the backend.
	Model string

	Usage Usage
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsJSONMode reports whether [CompletionRequest.JSON] is enforced by
	// the backend rather than only requested in the prompt.
	SupportsJSONMode bool
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use and return promptly when ctx
// is cancelled.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing the underlying model.
	Capabilities() ModelCapabilities
}

// EstimateTokens approximates the prompt size of messages at roughly four
// characters per token plus a small per-message overhead. The estimate errs
// on the high side.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content)+3)/4 + 4
	}
	return total
}

// CapabilityRule maps a model name prefix to its capabilities.
type CapabilityRule struct {
	Prefix string
	Caps   ModelCapabilities
}

// LookupCapabilities returns the capabilities of the first rule whose prefix
// matches model case-insensitively, or fallback when none does.
func LookupCapabilities(model string, rules []CapabilityRule, fallback ModelCapabilities) ModelCapabilities {
	lower := strings.ToLower(model)
	for _, r := range rules {
		if strings.HasPrefix(lower, r.Prefix) {
			return r.Caps
		}
	}
	return fallback
}
