// Package config provides the configuration schema, loader, and provider registry
// for the Fluentia assessment server.
package config

import "time"

// LogLevel controls log verbosity for the Fluentia server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Fluentia.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Storage    StorageConfig    `yaml:"storage"`
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API binds to. Default: ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel sets the minimum log severity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS enables HTTPS when set. Both files are required.
	TLS *TLSConfig `yaml:"tls"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TLSConfig points at a PEM certificate and key.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig lists the AI assessment providers.
type ProvidersConfig struct {
	// Assessor is the ordered AI chain: the first entry is the primary, the
	// rest are tried in order when it fails. Empty disables AI scoring.
	Assessor []ProviderEntry `yaml:"assessor"`
}

// ProviderEntry configures a single LLM backend.
type ProviderEntry struct {
	// Name selects the registered factory, e.g. "openai" or "gemini".
	Name string `yaml:"name"`

	// Label distinguishes two entries of the same provider in logs, metrics
	// and result sources. Defaults to Name.
	Label string `yaml:"label"`

	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Options carries provider-specific settings such as "organization".
	Options map[string]any `yaml:"options"`
}

// DisplayName returns Label, or Name when no label is set.
func (e ProviderEntry) DisplayName() string {
	if e.Label != "" {
		return e.Label
	}
	return e.Name
}

// AssessmentConfig tunes scoring and the fallback chain.
type AssessmentConfig struct {
	// Language is the default BCP 47 tag for submissions without one.
	// Default: "en-US".
	Language string `yaml:"language"`

	// AITimeout bounds each AI provider call. Default: 20s.
	AITimeout time.Duration `yaml:"ai_timeout"`

	// MinPlausibleScore rejects AI overall scores below it as implausible.
	// Default: 10.
	MinPlausibleScore float64 `yaml:"min_plausible_score"`

	// DisableLocal skips deterministic local scoring in the chain.
	DisableLocal bool `yaml:"disable_local"`

	Placeholder    PlaceholderConfig    `yaml:"placeholder"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// PlaceholderConfig bounds the scores handed out while every scoring tier is
// unavailable.
type PlaceholderConfig struct {
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	Disabled bool    `yaml:"disabled"`
}

// CircuitBreakerConfig mirrors the breaker settings applied to each AI
// provider. Zero values select the breaker defaults.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// StorageConfig selects where results and live feedback are kept.
type StorageConfig struct {
	// PostgresDSN enables PostgreSQL persistence of assessments.
	PostgresDSN string `yaml:"postgres_dsn"`

	// FilePath enables JSON Lines persistence when no DSN is set. With
	// neither, assessments are kept in memory.
	FilePath string `yaml:"file_path"`

	// RedisURL enables the shared live feedback cache.
	RedisURL string `yaml:"redis_url"`

	// LiveTTL is how long a live feedback snapshot survives. Default: 30m.
	LiveTTL time.Duration `yaml:"live_ttl"`
}
