package config

type DBConfig struct {
	Path string `yaml:"path"`
	// Pending records older than this many hours are reported as stale by
	// the client on startup.
	StaleAfterHours int `yaml:"staleAfterHours"`

	// Test-only parameters, do not enable outside of tests
	InMemoryDONOTUSE bool `yaml:"-"`
}

// WithDefaults returns a copy of the DBConfig with any missing fields set to
// their default values. An empty path is resolved by LoadConfig relative to
// the config directory.
func (c DBConfig) WithDefaults() DBConfig {
	cpy := c
	if cpy.StaleAfterHours == 0 {
		cpy.StaleAfterHours = 24
	}
	return cpy
}
