package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr        = ":8080"
	DefaultLanguage          = "en-US"
	DefaultAITimeout         = 20 * time.Second
	DefaultMinPlausibleScore = 10
	DefaultPlaceholderMin    = 60
	DefaultPlaceholderMax    = 85
	DefaultLiveTTL           = 30 * time.Minute
	DefaultShutdownTimeout   = 15 * time.Second
)

// envRef matches ${VAR} references. Bare $VAR is left alone so that values
// such as passwords may contain a dollar sign.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references from
// the environment, applies defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	data = ExpandEnv(data)

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandEnv replaces every ${VAR} in data with the value of the environment
// variable VAR. Unset variables expand to the empty string.
func ExpandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// ApplyDefaults fills zero values of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	a := &cfg.Assessment
	if a.Language == "" {
		a.Language = DefaultLanguage
	}
	if a.AITimeout == 0 {
		a.AITimeout = DefaultAITimeout
	}
	if a.MinPlausibleScore == 0 {
		a.MinPlausibleScore = DefaultMinPlausibleScore
	}
	if a.Placeholder.Min == 0 && a.Placeholder.Max == 0 {
		a.Placeholder.Min, a.Placeholder.Max = DefaultPlaceholderMin, DefaultPlaceholderMax
	}

	if cfg.Storage.LiveTTL == 0 {
		cfg.Storage.LiveTTL = DefaultLiveTTL
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Providers
	labelsSeen := make(map[string]int, len(cfg.Providers.Assessor))
	for i, p := range cfg.Providers.Assessor {
		prefix := fmt.Sprintf("providers.assessor[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("llm", p.Name)
		label := p.DisplayName()
		if prev, ok := labelsSeen[label]; ok {
			errs = append(errs, fmt.Errorf("%s label %q is a duplicate of providers.assessor[%d]; set a distinct label", prefix, label, prev))
		}
		labelsSeen[label] = i
	}

	// Assessment
	a := cfg.Assessment
	if a.AITimeout < 0 {
		errs = append(errs, fmt.Errorf("assessment.ai_timeout %s must not be negative", a.AITimeout))
	}
	if a.MinPlausibleScore < 0 || a.MinPlausibleScore > 100 {
		errs = append(errs, fmt.Errorf("assessment.min_plausible_score %.1f is out of range [0, 100]", a.MinPlausibleScore))
	}
	if a.Placeholder.Min < 0 || a.Placeholder.Max > 100 || a.Placeholder.Min > a.Placeholder.Max {
		errs = append(errs, fmt.Errorf("assessment.placeholder range [%.1f, %.1f] is invalid; need 0 <= min <= max <= 100", a.Placeholder.Min, a.Placeholder.Max))
	}
	if a.DisableLocal && a.Placeholder.Disabled && len(cfg.Providers.Assessor) == 0 {
		slog.Warn("no AI provider, local scoring and placeholder are all disabled; every assessment will score zero")
	}
	cb := a.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("assessment.circuit_breaker values must not be negative"))
	}

	// Storage
	if cfg.Storage.LiveTTL < 0 {
		errs = append(errs, fmt.Errorf("storage.live_ttl %s must not be negative", cfg.Storage.LiveTTL))
	}
	if cfg.Storage.PostgresDSN != "" && cfg.Storage.FilePath != "" {
		slog.Warn("storage.postgres_dsn and storage.file_path are both set; file_path is ignored")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not in the
// known list for the given provider kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if !slices.Contains(known, name) {
		slog.Warn("unknown provider name; it must be registered before use", "kind", kind, "name", name, "known", known)
	}
}
