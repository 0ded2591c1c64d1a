// Package openai implements [llm.Provider] on the official OpenAI SDK. Any
// endpoint speaking the chat completions protocol can be targeted with
// [WithBaseURL].
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/fluentia/pkg/provider/llm"
)

const finishLength = "length"

// defaultCaps applies to models missing from capabilityRules, which covers
// most OpenAI-compatible servers.
var defaultCaps = llm.ModelCapabilities{
	ContextWindow:    128_000,
	MaxOutputTokens:  4_096,
	SupportsJSONMode: true,
}

// capabilityRules is ordered: longer prefixes shadow shorter ones.
var capabilityRules = []llm.CapabilityRule{
	{Prefix: "gpt-4o", Caps: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384, SupportsJSONMode: true}},
	{Prefix: "gpt-4-turbo", Caps: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096, SupportsJSONMode: true}},
	{Prefix: "gpt-4", Caps: llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}},
	{Prefix: "gpt-3.5-turbo", Caps: llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096, SupportsJSONMode: true}},
	{Prefix: "o1-mini", Caps: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 65_536}},
	{Prefix: "o1", Caps: llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000, SupportsJSONMode: true}},
	{Prefix: "o3", Caps: llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000, SupportsJSONMode: true}},
}

// Provider sends completion requests to an OpenAI chat model.
type Provider struct {
	client  oai.Client
	model   string
	caps    llm.ModelCapabilities
	reqOpts []option.RequestOption
}

// Option configures a [Provider].
type Option func(*Provider)

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.reqOpts = append(p.reqOpts, option.WithBaseURL(url)) }
}

// WithOrganization sends the organization header on every request.
func WithOrganization(org string) Option {
	return func(p *Provider) { p.reqOpts = append(p.reqOpts, option.WithOrganization(org)) }
}

// WithTimeout bounds every HTTP round trip, including retries made by the SDK.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.reqOpts = append(p.reqOpts, option.WithHTTPClient(&http.Client{Timeout: d}))
	}
}

// WithMaxRetries sets how often the SDK retries failed requests. The
// assessment chain has its own fallback tiers, so a low value keeps a failing
// provider from eating the whole call budget.
func WithMaxRetries(n int) Option {
	return func(p *Provider) { p.reqOpts = append(p.reqOpts, option.WithMaxRetries(n)) }
}

// New creates a provider for model, authenticated with apiKey.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	switch {
	case apiKey == "":
		return nil, errors.New("openai: api key is required")
	case model == "":
		return nil, errors.New("openai: model is required")
	}
	p := &Provider{
		model:   model,
		caps:    modelCapabilities(model),
		reqOpts: []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, o := range opts {
		o(p)
	}
	p.client = oai.NewClient(p.reqOpts...)
	return p, nil
}

// Complete implements [llm.Provider]. A reply cut off at the token limit is
// reported as [llm.ErrTruncated].
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %s: %w", p.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: %s returned no choices", p.model)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == finishLength {
		return nil, fmt.Errorf("openai: %s: %w", p.model, llm.ErrTruncated)
	}
	return &llm.CompletionResponse{
		Content: choice.Message.Content,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Capabilities implements [llm.Provider].
func (p *Provider) Capabilities() llm.ModelCapabilities { return p.caps }

func modelCapabilities(model string) llm.ModelCapabilities {
	return llm.LookupCapabilities(model, capabilityRules, defaultCaps)
}

func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Seed != 0 {
		params.Seed = param.NewOpt(req.Seed)
	}
	if req.JSON && p.caps.SupportsJSONMode {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params, nil
}

func convertMessage(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return oai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	}
	return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unsupported message role %q", m.Role)
}

var _ llm.Provider = (*Provider)(nil)
