package config_test

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/fluentia/internal/config"
	"github.com/MrWong99/fluentia/pkg/provider/llm"
	"github.com/MrWong99/fluentia/pkg/provider/llm/mock"
)

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  shutdown_timeout: 5s

providers:
  assessor:
    - name: openai
      api_key: sk-test
      model: gpt-4o-mini
    - name: gemini
      label: gemini-flash
      model: gemini-2.0-flash
      options:
        region: eu

assessment:
  language: en-GB
  ai_timeout: 8s
  min_plausible_score: 15
  placeholder:
    min: 50
    max: 70
  circuit_breaker:
    max_failures: 3
    reset_timeout: 1m

storage:
  postgres_dsn: postgres://localhost/fluentia
  redis_url: redis://localhost:6379/0
  live_ttl: 10m
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if n := len(cfg.Providers.Assessor); n != 2 {
		t.Fatalf("got %d assessor providers, want 2", n)
	}
	if got := cfg.Providers.Assessor[0].DisplayName(); got != "openai" {
		t.Errorf("primary DisplayName = %q, want openai", got)
	}
	if got := cfg.Providers.Assessor[1].DisplayName(); got != "gemini-flash" {
		t.Errorf("secondary DisplayName = %q, want gemini-flash", got)
	}
	if got := config.OptString(cfg.Providers.Assessor[1].Options, "region"); got != "eu" {
		t.Errorf("region option = %q, want eu", got)
	}

	a := cfg.Assessment
	if a.Language != "en-GB" || a.AITimeout != 8*time.Second || a.MinPlausibleScore != 15 {
		t.Errorf("Assessment = %+v", a)
	}
	if a.Placeholder.Min != 50 || a.Placeholder.Max != 70 {
		t.Errorf("Placeholder = %+v, want [50, 70]", a.Placeholder)
	}
	if a.CircuitBreaker.MaxFailures != 3 || a.CircuitBreaker.ResetTimeout != time.Minute {
		t.Errorf("CircuitBreaker = %+v", a.CircuitBreaker)
	}
	if cfg.Storage.LiveTTL != 10*time.Minute {
		t.Errorf("LiveTTL = %v, want 10m", cfg.Storage.LiveTTL)
	}
}

func TestLoadFromReader_EmptyGetsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config should be valid, got: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Assessment.Language != "en-US" || cfg.Assessment.AITimeout != 20*time.Second {
		t.Errorf("Assessment = %+v", cfg.Assessment)
	}
	if cfg.Assessment.Placeholder.Min != 60 || cfg.Assessment.Placeholder.Max != 85 {
		t.Errorf("Placeholder = %+v", cfg.Assessment.Placeholder)
	}
	if cfg.Storage.LiveTTL != 30*time.Minute {
		t.Errorf("LiveTTL = %v", cfg.Storage.LiveTTL)
	}
	if len(cfg.Providers.Assessor) != 0 {
		t.Errorf("Assessor = %v, want none", cfg.Providers.Assessor)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_adr: \":1\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFromReader_ExpandsEnv(t *testing.T) {
	t.Setenv("FLUENTIA_TEST_KEY", "sk-from-env")

	const y = `
providers:
  assessor:
    - name: openai
      api_key: ${FLUENTIA_TEST_KEY}
storage:
  postgres_dsn: postgres://user:pa$$word@db/fluentia
`
	cfg, err := config.LoadFromReader(strings.NewReader(y))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Providers.Assessor[0].APIKey; got != "sk-from-env" {
		t.Errorf("APIKey = %q, want sk-from-env", got)
	}
	if got := cfg.Storage.PostgresDSN; got != "postgres://user:pa$$word@db/fluentia" {
		t.Errorf("PostgresDSN = %q, bare dollars must be kept", got)
	}
}

func TestExpandEnv_Unset(t *testing.T) {
	t.Setenv("FLUENTIA_TEST_EMPTY", "")

	got := string(config.ExpandEnv([]byte("key: '${FLUENTIA_TEST_EMPTY}'")))
	if got != "key: ''" {
		t.Errorf("ExpandEnv = %q", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "invalid log level", yaml: "server:\n  log_level: verbose\n", wantErr: "log_level"},
		{name: "tls without key", yaml: "server:\n  tls:\n    cert_file: c.pem\n", wantErr: "server.tls"},
		{name: "provider without name", yaml: "providers:\n  assessor:\n    - model: gpt-4o\n", wantErr: "providers.assessor[0].name is required"},
		{name: "duplicate provider label", yaml: "providers:\n  assessor:\n    - name: openai\n    - name: openai\n", wantErr: "duplicate"},
		{name: "negative timeout", yaml: "assessment:\n  ai_timeout: -1s\n", wantErr: "ai_timeout"},
		{name: "plausible score too high", yaml: "assessment:\n  min_plausible_score: 120\n", wantErr: "min_plausible_score"},
		{name: "placeholder inverted", yaml: "assessment:\n  placeholder:\n    min: 80\n    max: 40\n", wantErr: "placeholder"},
		{name: "placeholder above 100", yaml: "assessment:\n  placeholder:\n    min: 90\n    max: 110\n", wantErr: "placeholder"},
		{name: "negative breaker", yaml: "assessment:\n  circuit_breaker:\n    max_failures: -1\n", wantErr: "circuit_breaker"},
		{name: "negative live ttl", yaml: "storage:\n  live_ttl: -5m\n", wantErr: "live_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DistinctLabelsAllowed(t *testing.T) {
	t.Parallel()

	const y = `
providers:
  assessor:
    - name: openai
      model: gpt-4o
    - name: openai
      label: openai-mini
      model: gpt-4o-mini
`
	if _, err := config.LoadFromReader(strings.NewReader(y)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server:     config.ServerConfig{LogLevel: "loud"},
		Assessment: config.AssessmentConfig{AITimeout: -time.Second},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"log_level", "ai_timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q does not mention %q", err, want)
		}
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"openai", "anthropic", "gemini", "ollama"} {
		found := false
		for _, n := range config.ValidProviderNames["llm"] {
			if n == name {
				found = true
			}
		}
		if !found {
			t.Errorf("ValidProviderNames[llm] is missing %q", name)
		}
	}
}

func TestRegistry_UnknownLLM(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_RegisteredLLM(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var got config.ProviderEntry
	want := &mock.Provider{}
	reg.RegisterLLM("stub", func(e config.ProviderEntry) (llm.Provider, error) {
		got = e
		return want, nil
	})
	reg.RegisterLLM("another", func(config.ProviderEntry) (llm.Provider, error) { return want, nil })

	p, err := reg.CreateLLM(config.ProviderEntry{Name: "stub", Model: "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != want {
		t.Error("factory result not returned")
	}
	if got.Model != "m1" {
		t.Errorf("factory saw entry %+v", got)
	}
	if names := reg.LLMNames(); strings.Join(names, ",") != "another,stub" {
		t.Errorf("LLMNames() = %v", names)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterLLM("bad", func(config.ProviderEntry) (llm.Provider, error) { return nil, boom })
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "bad"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestOptString(t *testing.T) {
	t.Parallel()

	opts := map[string]any{"org": "acme", "retries": 3}
	if got := config.OptString(opts, "org"); got != "acme" {
		t.Errorf("org = %q", got)
	}
	if got := config.OptString(opts, "retries"); got != "" {
		t.Errorf("non-string option = %q, want empty", got)
	}
	if got := config.OptString(nil, "org"); got != "" {
		t.Errorf("nil map = %q, want empty", got)
	}
}

func TestOptInt(t *testing.T) {
	t.Parallel()

	opts := map[string]any{"seed": 7, "big": int64(9), "float": 2.0, "frac": 1.5, "str": "4", "bad": "x"}
	tests := []struct {
		key    string
		want   int
		wantOK bool
	}{
		{"seed", 7, true},
		{"big", 9, true},
		{"float", 2, true},
		{"frac", 0, false},
		{"str", 4, true},
		{"bad", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		got, ok := config.OptInt(opts, tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("OptInt(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if n := len(cfg.Providers.Assessor); n != 3 {
		t.Errorf("got %d assessor providers, want 3", n)
	}
	if got := cfg.Providers.Assessor[2].DisplayName(); got != "local-llama" {
		t.Errorf("third provider = %q, want local-llama", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("does-not-exist.yaml")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}
