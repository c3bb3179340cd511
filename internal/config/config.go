// internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"time"

	"cosmossdk.io/math"

	"github.com/altuslabsxyz/rentflow/internal/lifecycle"
	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// Config is the single source of truth for rentflow configuration.
// Priority: defaults < config file < environment variables < CLI flags
type Config struct {
	Client   ClientConfig              `toml:"client"`
	Fees     FeeConfig                 `toml:"fees"`
	Signer   SignerConfig              `toml:"signer"`
	Tracking TrackingConfig            `toml:"tracking"`
	History  HistoryConfig             `toml:"history"`
	Networks map[string]network.Preset `toml:"networks"`
}

// ClientConfig holds settings shared by every command.
type ClientConfig struct {
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`
	Network  string `toml:"network"`
	Wallet   string `toml:"wallet"`
}

// FeeConfig holds fee computation settings.
type FeeConfig struct {
	BaseFee int64 `toml:"base_fee"`

	// Buffer is a decimal multiplier applied to the estimated resource fee (e.g. "1.2").
	Buffer   string                `toml:"buffer"`
	Schedule lifecycle.FeeSchedule `toml:"schedule"`
}

// SignerConfig selects the signing agent.
type SignerConfig struct {
	Agent   string        `toml:"agent"` // "prompt" or "http"
	URL     string        `toml:"url"`
	Timeout time.Duration `toml:"timeout"`
}

// TrackingConfig holds confirmation polling settings.
type TrackingConfig struct {
	Interval time.Duration `toml:"interval"`
	Timeout  time.Duration `toml:"timeout"`
}

// HistoryConfig holds history store settings for both the client and the server.
type HistoryConfig struct {
	// URL is the history API used by invoke and status.
	// Empty means commands open the local store directly.
	URL string `toml:"url"`

	// Listen, Backend, Path and DSN configure `history serve`.
	Listen  string `toml:"listen"`
	Backend string `toml:"backend"` // memory, bolt, sqlite or postgres
	Path    string `toml:"path"`
	DSN     string `toml:"dsn"`
}

// Supported signing agents.
const (
	AgentPrompt = "prompt"
	AgentHTTP   = "http"
)

// Supported history backends.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultDataDir returns the default data directory path.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rentflow")
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Client: ClientConfig{
			DataDir:  dataDir,
			LogLevel: "warn",
			Network:  "testnet",
		},
		Fees: FeeConfig{
			BaseFee:  lifecycle.DefaultBaseFee,
			Buffer:   "1.0",
			Schedule: lifecycle.DefaultFeeSchedule(),
		},
		Signer: SignerConfig{
			Agent:   AgentPrompt,
			Timeout: 5 * time.Minute,
		},
		Tracking: TrackingConfig{
			Interval: lifecycle.DefaultPollInterval,
			Timeout:  lifecycle.DefaultPollTimeout,
		},
		History: HistoryConfig{
			Listen:  "127.0.0.1:8420",
			Backend: BackendBolt,
			Path:    filepath.Join(dataDir, "history.db"),
		},
	}
}

// FeeBuffer parses the configured fee buffer.
func (c *Config) FeeBuffer() (math.LegacyDec, error) {
	return math.LegacyNewDecFromStr(c.Fees.Buffer)
}

// OrchestratorConfig converts the configuration into lifecycle settings.
func (c *Config) OrchestratorConfig() (lifecycle.Config, error) {
	buf, err := c.FeeBuffer()
	if err != nil {
		return lifecycle.Config{}, err
	}
	return lifecycle.Config{
		BaseFee:     c.Fees.BaseFee,
		FeeBuffer:   buf,
		FeeSchedule: c.Fees.Schedule,
		Presets:     c.Networks,
	}, nil
}

// PollOptions converts the tracking settings into lifecycle poll options.
func (c *Config) PollOptions() lifecycle.PollOptions {
	return lifecycle.PollOptions{
		Interval: c.Tracking.Interval,
		Timeout:  c.Tracking.Timeout,
	}
}
