package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only the log level is applied at runtime; the other flags tell the operator
// that a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ServerChanged     bool // listen address, TLS or shutdown timeout
	ProvidersChanged  bool // assessor chain entries or their order
	AssessmentChanged bool
	StorageChanged    bool
}

// RestartRequired reports whether any change cannot be applied live.
func (d ConfigDiff) RestartRequired() bool {
	return d.ServerChanged || d.ProvidersChanged || d.AssessmentChanged || d.StorageChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.ServerChanged = old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.ShutdownTimeout != new.Server.ShutdownTimeout ||
		!equalTLS(old.Server.TLS, new.Server.TLS)

	d.ProvidersChanged = !slices.EqualFunc(old.Providers.Assessor, new.Providers.Assessor, equalEntry)

	oa, na := old.Assessment, new.Assessment
	d.AssessmentChanged = oa.Language != na.Language ||
		oa.AITimeout != na.AITimeout ||
		oa.MinPlausibleScore != na.MinPlausibleScore ||
		oa.DisableLocal != na.DisableLocal ||
		oa.Placeholder != na.Placeholder ||
		oa.CircuitBreaker != na.CircuitBreaker

	d.StorageChanged = old.Storage != new.Storage

	return d
}

func equalTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// equalEntry compares the fields that select and authenticate a provider.
// Options are compared by key set and string value.
func equalEntry(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.Label != b.Label || a.APIKey != b.APIKey ||
		a.BaseURL != b.BaseURL || a.Model != b.Model || len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		w, ok := b.Options[k]
		if !ok || optionString(v) != optionString(w) {
			return false
		}
	}
	return true
}
