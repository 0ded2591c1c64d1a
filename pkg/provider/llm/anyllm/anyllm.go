// Package anyllm implements [llm.Provider] on github.com/mozilla-ai/any-llm-go,
// which puts Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq and local
// llama.cpp servers behind one completion API. Secondary assessment tiers
// use it to run on a different vendor than the primary.
//
//	p, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey(key))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/fluentia/pkg/provider/llm"
)

type backendFactory func(...anyllmlib.Option) (anyllmlib.Provider, error)

var factories = map[string]backendFactory{
	"openai":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anyllmoai.New(o...) },
	"anthropic": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anthropic.New(o...) },
	"gemini":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return gemini.New(o...) },
	"ollama":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return ollama.New(o...) },
	"deepseek":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return deepseek.New(o...) },
	"mistral":   func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return mistral.New(o...) },
	"groq":      func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return groq.New(o...) },
	"llamacpp":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamacpp.New(o...) },
	"llamafile": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamafile.New(o...) },
}

// Backends lists the provider names accepted by [New], in display order.
var Backends = []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

var defaultCaps = llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}

// capabilityRules never report JSON mode: backends differ in how they
// enforce it, so the assessment prompt carries the format instead.
var capabilityRules = []llm.CapabilityRule{
	{Prefix: "gpt-4o", Caps: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}},
	{Prefix: "gpt-3.5-turbo", Caps: llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}},
	{Prefix: "claude", Caps: llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 8_192}},
	{Prefix: "gemini-1.5-pro", Caps: llm.ModelCapabilities{ContextWindow: 2_097_152, MaxOutputTokens: 8_192}},
	{Prefix: "gemini", Caps: llm.ModelCapabilities{ContextWindow: 1_048_576, MaxOutputTokens: 8_192}},
	{Prefix: "llama", Caps: llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 2_048}},
	{Prefix: "mistral", Caps: llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 2_048}},
}

// Provider routes completion requests through an any-llm-go backend.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a provider for model on the backend called name, one of
// [Backends]. opts are passed to the backend unchanged. Without
// anyllmlib.WithAPIKey the backend reads its usual environment variable.
func New(name, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if name == "" {
		return nil, errors.New("anyllm: backend name is required")
	}
	if model == "" {
		return nil, errors.New("anyllm: model is required")
	}
	key := strings.ToLower(name)
	factory, ok := factories[key]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend %q (supported: %s)", name, strings.Join(Backends, ", "))
	}
	backend, err := factory(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %s backend: %w", key, err)
	}
	return &Provider{backend: backend, name: key, model: model}, nil
}

// NewAnthropic is New("anthropic", model, opts...).
func NewAnthropic(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("anthropic", model, opts...)
}

// NewOllama is New("ollama", model, opts...). The backend defaults to
// http://localhost:11434.
func NewOllama(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("ollama", model, opts...)
}

// Complete implements [llm.Provider]. A reply cut off at the token limit is
// reported as [llm.ErrTruncated].
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s/%s: %w", p.name, p.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: %s/%s returned no choices", p.name, p.model)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		return nil, fmt.Errorf("anyllm: %s/%s: %w", p.name, p.model, llm.ErrTruncated)
	}
	out := &llm.CompletionResponse{
		Content: choice.Message.ContentString(),
		Model:   p.model,
	}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// Capabilities implements [llm.Provider].
func (p *Provider) Capabilities() llm.ModelCapabilities { return modelCapabilities(p.model) }

func modelCapabilities(model string) llm.ModelCapabilities {
	return llm.LookupCapabilities(model, capabilityRules, defaultCaps)
}

// buildParams ignores req.JSON; see capabilityRules.
func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: messages}
	if t := req.Temperature; t != 0 {
		params.Temperature = &t
	}
	if mt := req.MaxTokens; mt > 0 {
		params.MaxTokens = &mt
	}
	return params
}

func convertMessage(m llm.Message) anyllmlib.Message {
	return anyllmlib.Message{Role: m.Role, Content: m.Content}
}

var _ llm.Provider = (*Provider)(nil)
