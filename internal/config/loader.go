// internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "rentflow.toml"

// Environment variable names
const (
	EnvDataDir  = "RENTFLOW_DATA_DIR"
	EnvLogLevel = "RENTFLOW_LOG_LEVEL"
	EnvNetwork  = "RENTFLOW_NETWORK"
	EnvWallet   = "RENTFLOW_WALLET"

	EnvBaseFee   = "RENTFLOW_BASE_FEE"
	EnvFeeBuffer = "RENTFLOW_FEE_BUFFER"

	EnvSignerAgent   = "RENTFLOW_SIGNER_AGENT"
	EnvSignerURL     = "RENTFLOW_SIGNER_URL"
	EnvSignerTimeout = "RENTFLOW_SIGNER_TIMEOUT"

	EnvPollInterval = "RENTFLOW_POLL_INTERVAL"
	EnvPollTimeout  = "RENTFLOW_POLL_TIMEOUT"

	// History store environment variables
	EnvHistoryURL     = "RENTFLOW_HISTORY_URL"
	EnvHistoryListen  = "RENTFLOW_HISTORY_LISTEN"
	EnvHistoryBackend = "RENTFLOW_HISTORY_BACKEND"
	EnvHistoryPath    = "RENTFLOW_HISTORY_PATH"
	EnvHistoryDSN     = "RENTFLOW_HISTORY_DSN" //nolint:gosec // This is an env var name, not a credential
)

// Loader loads configuration from file, environment, and applies defaults.
type Loader struct {
	dataDir    string
	configPath string // explicit config path (empty = use default)
	getenv     func(string) string
}

// NewLoader creates a new config loader.
// dataDir is the base data directory (for finding rentflow.toml).
// configPath is an explicit config file path (empty = use dataDir/rentflow.toml).
func NewLoader(dataDir, configPath string) *Loader {
	return &Loader{
		dataDir:    dataDir,
		configPath: configPath,
		getenv:     os.Getenv,
	}
}

// Load loads configuration with priority: defaults < file < env.
// Returns fully populated Config ready for use.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.dataDir != "" {
		cfg.Client.DataDir = l.dataDir
		cfg.History.Path = filepath.Join(l.dataDir, "history.db")
	}

	fileCfg, err := l.loadFile(cfg.Client.DataDir)
	if err != nil {
		return nil, err
	}

	if fileCfg != nil {
		if err := mergeFileConfig(cfg, fileCfg); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnvVars(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads and parses the config file.
// Returns nil if no config file exists (not an error).
func (l *Loader) loadFile(dataDir string) (*FileConfig, error) {
	configPath := l.configPath
	if configPath == "" {
		configPath = filepath.Join(dataDir, ConfigFileName)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) && l.configPath == "" {
			return nil, nil // No default config file is OK
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg FileConfig
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("invalid TOML in %s: %w", configPath, err)
	}

	return &fileCfg, nil
}

// mergeFileConfig merges non-nil FileConfig values into Config.
func mergeFileConfig(cfg *Config, file *FileConfig) error {
	// Client
	if file.Client.DataDir != nil {
		cfg.Client.DataDir = *file.Client.DataDir
	}
	if file.Client.LogLevel != nil {
		cfg.Client.LogLevel = *file.Client.LogLevel
	}
	if file.Client.Network != nil {
		cfg.Client.Network = *file.Client.Network
	}
	if file.Client.Wallet != nil {
		cfg.Client.Wallet = *file.Client.Wallet
	}

	// Fees
	if file.Fees.BaseFee != nil {
		cfg.Fees.BaseFee = *file.Fees.BaseFee
	}
	if file.Fees.Buffer != nil {
		cfg.Fees.Buffer = *file.Fees.Buffer
	}
	if v := file.Fees.Schedule.FeePer10KInstructions; v != nil {
		cfg.Fees.Schedule.FeePer10KInstructions = *v
	}
	if v := file.Fees.Schedule.FeePerReadKB; v != nil {
		cfg.Fees.Schedule.FeePerReadKB = *v
	}
	if v := file.Fees.Schedule.FeePerWriteKB; v != nil {
		cfg.Fees.Schedule.FeePerWriteKB = *v
	}

	// Signer
	if file.Signer.Agent != nil {
		cfg.Signer.Agent = *file.Signer.Agent
	}
	if file.Signer.URL != nil {
		cfg.Signer.URL = *file.Signer.URL
	}
	if err := parseDurationInto(&cfg.Signer.Timeout, file.Signer.Timeout, "signer.timeout"); err != nil {
		return err
	}

	// Tracking (parse duration strings)
	if err := parseDurationInto(&cfg.Tracking.Interval, file.Tracking.Interval, "tracking.interval"); err != nil {
		return err
	}
	if err := parseDurationInto(&cfg.Tracking.Timeout, file.Tracking.Timeout, "tracking.timeout"); err != nil {
		return err
	}

	// History
	if file.History.URL != nil {
		cfg.History.URL = *file.History.URL
	}
	if file.History.Listen != nil {
		cfg.History.Listen = *file.History.Listen
	}
	if file.History.Backend != nil {
		cfg.History.Backend = *file.History.Backend
	}
	if file.History.Path != nil {
		cfg.History.Path = *file.History.Path
	}
	if file.History.DSN != nil {
		cfg.History.DSN = *file.History.DSN
	}

	// Networks
	for name, preset := range file.Networks {
		key := strings.ToLower(name)
		if preset.Name == "" {
			preset.Name = key
		}
		if cfg.Networks == nil {
			cfg.Networks = make(map[string]network.Preset)
		}
		cfg.Networks[key] = preset
	}

	return nil
}

// applyEnvVars applies environment variable overrides to config.
func (l *Loader) applyEnvVars(cfg *Config) error {
	if v := l.getenv(EnvDataDir); v != "" {
		cfg.Client.DataDir = v
	}
	if v := l.getenv(EnvLogLevel); v != "" {
		cfg.Client.LogLevel = v
	}
	if v := l.getenv(EnvNetwork); v != "" {
		cfg.Client.Network = v
	}
	if v := l.getenv(EnvWallet); v != "" {
		cfg.Client.Wallet = v
	}

	if v := l.getenv(EnvBaseFee); v != "" {
		fee, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvBaseFee, v, err)
		}
		cfg.Fees.BaseFee = fee
	}
	if v := l.getenv(EnvFeeBuffer); v != "" {
		cfg.Fees.Buffer = v
	}

	if v := l.getenv(EnvSignerAgent); v != "" {
		cfg.Signer.Agent = v
	}
	if v := l.getenv(EnvSignerURL); v != "" {
		cfg.Signer.URL = v
	}

	durations := []struct {
		env    string
		target *time.Duration
	}{
		{EnvSignerTimeout, &cfg.Signer.Timeout},
		{EnvPollInterval, &cfg.Tracking.Interval},
		{EnvPollTimeout, &cfg.Tracking.Timeout},
	}
	for _, d := range durations {
		if v := l.getenv(d.env); v != "" {
			if err := parseDurationInto(d.target, &v, d.env); err != nil {
				return err
			}
		}
	}

	// History store
	if v := l.getenv(EnvHistoryURL); v != "" {
		cfg.History.URL = v
	}
	if v := l.getenv(EnvHistoryListen); v != "" {
		cfg.History.Listen = v
	}
	if v := l.getenv(EnvHistoryBackend); v != "" {
		cfg.History.Backend = v
	}
	if v := l.getenv(EnvHistoryPath); v != "" {
		cfg.History.Path = v
	}
	if v := l.getenv(EnvHistoryDSN); v != "" {
		cfg.History.DSN = v
	}

	return nil
}

// parseDurationInto sets *target from raw when raw is non-nil.
func parseDurationInto(target *time.Duration, raw *string, name string) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("invalid duration for %s %q: %w", name, *raw, err)
	}
	*target = d
	return nil
}
