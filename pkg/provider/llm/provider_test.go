package llm_test

import (
	"testing"

	"github.com/MrWong99/fluentia/pkg/provider/llm"
)

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msgs []llm.Message
		want int
	}{
		{"empty", nil, 0},
		{"empty content", []llm.Message{{Role: llm.RoleUser}}, 4},
		{"rounds up", []llm.Message{{Role: llm.RoleUser, Content: "hello"}}, 2 + 4},
		{"two messages", []llm.Message{
			{Role: llm.RoleSystem, Content: "abcd"},
			{Role: llm.RoleUser, Content: "abcdefgh"},
		}, (1 + 4) + (2 + 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := llm.EstimateTokens(tt.msgs); got != tt.want {
				t.Errorf("EstimateTokens = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLookupCapabilities(t *testing.T) {
	t.Parallel()

	fallback := llm.ModelCapabilities{ContextWindow: 1}
	rules := []llm.CapabilityRule{
		{Prefix: "gpt-4o", Caps: llm.ModelCapabilities{ContextWindow: 3}},
		{Prefix: "gpt-4", Caps: llm.ModelCapabilities{ContextWindow: 2}},
	}
	tests := []struct {
		model string
		want  int
	}{
		{"gpt-4o-mini", 3},
		{"GPT-4-0613", 2},
		{"gpt-3.5-turbo", 1},
		{"", 1},
	}
	for _, tt := range tests {
		if got := llm.LookupCapabilities(tt.model, rules, fallback).ContextWindow; got != tt.want {
			t.Errorf("LookupCapabilities(%q).ContextWindow = %d, want %d", tt.model, got, tt.want)
		}
	}
}
