// Package params defines the process-wide configuration of the
// clearinghouse. Values are defaulted here and overridden at startup from
// cli flags, or in tests via OverrideClearinghouseConfig.
package params

import "time"

// Config contains the tunable constants of the contract lifecycle engine and
// its verifier strategies.
type Config struct {
	// Escrow defaults.
	DefaultMaxRetries int
	MaxPayloadBytes   int

	// Idempotency key registry.
	IdempotencyTTL time.Duration

	// Code execution strategy.
	SandboxTimeout            time.Duration
	SandboxAllocationAttempts uint64
	SandboxRetryMinWait       time.Duration
	SandboxRetryMaxWait       time.Duration

	// Semantic strategy.
	JudgeModel        string
	JudgeMaxTokens    int
	JudgeAttempts     uint64
	JudgeRetryMinWait time.Duration
	JudgeRetryMaxWait time.Duration

	// Preview ceilings for recorded logs and details.
	StdoutPreviewBytes  int
	PayloadPreviewBytes int
}

// Copy returns a copy of the configuration.
func (c *Config) Copy() *Config {
	cfg := *c
	return &cfg
}

func mainnetClearinghouseConfig() *Config {
	return &Config{
		DefaultMaxRetries:         3,
		MaxPayloadBytes:           1 << 20, // 1 MiB submission ceiling.
		IdempotencyTTL:            24 * time.Hour,
		SandboxTimeout:            30 * time.Second,
		SandboxAllocationAttempts: 2,
		SandboxRetryMinWait:       2 * time.Second,
		SandboxRetryMaxWait:       8 * time.Second,
		JudgeModel:                "gemini/gemini-2.0-flash",
		JudgeMaxTokens:            1024,
		JudgeAttempts:             3,
		JudgeRetryMinWait:         2 * time.Second,
		JudgeRetryMaxWait:         10 * time.Second,
		StdoutPreviewBytes:        200,
		PayloadPreviewBytes:       500,
	}
}

var clearinghouseConfig = mainnetClearinghouseConfig()

// ClearinghouseConfig returns the active configuration.
func ClearinghouseConfig() *Config {
	return clearinghouseConfig
}

// OverrideClearinghouseConfig replaces the active configuration. Intended for
// startup wiring and tests.
func OverrideClearinghouseConfig(c *Config) {
	clearinghouseConfig = c
}

// SetupTestConfigCleanup overrides the configuration with a copy the test may
// mutate and restores the original when the test completes.
func SetupTestConfigCleanup(t interface{ Cleanup(func()) }) *Config {
	prev := clearinghouseConfig
	cfg := *prev
	clearinghouseConfig = &cfg
	t.Cleanup(func() {
		clearinghouseConfig = prev
	})
	return &cfg
}
