package config

import "time"

const (
	defaultProgramID       = "BQbwqV2LhBNcxLjFwQRXfF8UU1fULKdx87nMQ5m3nQLK"
	defaultArciumProgramID = "Arcj82pX7HxYKLR92qvgZUAd7vGS1k4hQvAFcPATFdEQ"
	defaultVariant         = "dna4"
	defaultCircuitSource   = "https://raw.githubusercontent.com/Silent-Builder-x/ArcDNA/main/build/%s.arcis"
	defaultArtifactDir     = "build"
	defaultAwaitAttempts   = 15
	defaultAwaitDelay      = 3000 * time.Millisecond
	defaultMXEKeyAttempts  = 20
	defaultMXEKeyDelay     = 500 * time.Millisecond
)

// CircuitConfig describes where MPC nodes fetch the compiled circuit from.
type CircuitConfig struct {
	// SourceURL may contain %s, replaced with the circuit label.
	SourceURL string `yaml:"sourceUrl"`
	// Hex SHA-256 of the compiled circuit. Empty skips verification.
	Hash string `yaml:"hash"`
	// Directory holding <label>.arcis artifacts.
	ArtifactDir string `yaml:"artifactDir"`
}

type ProgramConfig struct {
	ProgramID       string `yaml:"programId"`
	ArciumProgramID string `yaml:"arciumProgramId"`
	// Options: "dna4", "dna8".
	Variant string        `yaml:"variant"`
	Circuit CircuitConfig `yaml:"circuit"`
}

// WithDefaults returns a copy of the ProgramConfig with any missing fields set
// to their default values.
func (c ProgramConfig) WithDefaults() ProgramConfig {
	cpy := c
	if cpy.ProgramID == "" {
		cpy.ProgramID = defaultProgramID
	}
	if cpy.ArciumProgramID == "" {
		cpy.ArciumProgramID = defaultArciumProgramID
	}
	if cpy.Variant == "" {
		cpy.Variant = defaultVariant
	}
	if cpy.Circuit.SourceURL == "" {
		cpy.Circuit.SourceURL = defaultCircuitSource
	}
	if cpy.Circuit.ArtifactDir == "" {
		cpy.Circuit.ArtifactDir = defaultArtifactDir
	}
	return cpy
}

type KeyConfig struct {
	// solana-keygen JSON array or a base58 encoded secret key.
	PayerKeypairPath string `yaml:"payerKeypairPath"`
}

// WithDefaults returns a copy of the KeyConfig with any missing fields set to
// their default values.
func (c KeyConfig) WithDefaults() KeyConfig {
	cpy := c
	if cpy.PayerKeypairPath == "" {
		cpy.PayerKeypairPath = "~/.config/solana/id.json"
	}
	return cpy
}

// AwaitConfig bounds the wait for a computation to finalize.
type AwaitConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Delay       time.Duration `yaml:"delay"`
}

// WithDefaults returns a copy of the AwaitConfig with any missing fields set
// to their default values.
func (c AwaitConfig) WithDefaults() AwaitConfig {
	cpy := c
	if cpy.MaxAttempts == 0 {
		cpy.MaxAttempts = defaultAwaitAttempts
	}
	if cpy.Delay == 0 {
		cpy.Delay = defaultAwaitDelay
	}
	return cpy
}

type MXEKeyConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Delay       time.Duration `yaml:"delay"`
	CacheSize   int           `yaml:"cacheSize"`
}

// WithDefaults returns a copy of the MXEKeyConfig with any missing fields set
// to their default values.
func (c MXEKeyConfig) WithDefaults() MXEKeyConfig {
	cpy := c
	if cpy.MaxAttempts == 0 {
		cpy.MaxAttempts = defaultMXEKeyAttempts
	}
	if cpy.Delay == 0 {
		cpy.Delay = defaultMXEKeyDelay
	}
	if cpy.CacheSize == 0 {
		cpy.CacheSize = 16
	}
	return cpy
}

type MetricsConfig struct {
	// Serves /metrics when set, e.g. "127.0.0.1:9464".
	ListenAddr string `yaml:"listenAddr"`
}
