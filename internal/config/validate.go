// internal/config/validate.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	"cosmossdk.io/math"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// ValidLogLevels are the allowed log level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidBackends are the allowed history backends.
var ValidBackends = []string{BackendMemory, BackendBolt, BackendSQLite, BackendPostgres}

// Validate validates the configuration and returns an error if invalid.
func Validate(cfg *Config) error {
	var errs []string

	if !contains(ValidLogLevels, cfg.Client.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level %q (must be one of: %s)",
			cfg.Client.LogLevel, strings.Join(ValidLogLevels, ", ")))
	}

	if cfg.Client.Network == "" {
		errs = append(errs, "network is required")
	} else if _, ok := cfg.Networks[strings.ToLower(cfg.Client.Network)]; !ok {
		if _, err := network.LookupPreset(cfg.Client.Network); err != nil {
			errs = append(errs, err.Error())
		}
	}

	for name, preset := range cfg.Networks {
		if preset.RPCEndpoint == "" {
			errs = append(errs, fmt.Sprintf("networks.%s: rpc_endpoint is required", name))
		}
		if preset.Passphrase == "" {
			errs = append(errs, fmt.Sprintf("networks.%s: passphrase is required", name))
		}
	}

	// Fees
	if cfg.Fees.BaseFee < 1 {
		errs = append(errs, "base_fee must be at least 1")
	}
	if buf, err := cfg.FeeBuffer(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid fee buffer %q: %v", cfg.Fees.Buffer, err))
	} else if buf.LT(math.LegacyOneDec()) {
		errs = append(errs, fmt.Sprintf("fee buffer %s must be at least 1", buf))
	}
	s := cfg.Fees.Schedule
	if s.FeePer10KInstructions < 0 || s.FeePerReadKB < 0 || s.FeePerWriteKB < 0 {
		errs = append(errs, "fee schedule rates must be non-negative")
	}

	// Signer
	switch cfg.Signer.Agent {
	case AgentPrompt:
	case AgentHTTP:
		if err := validateURL(cfg.Signer.URL); err != nil {
			errs = append(errs, fmt.Sprintf("signer.url: %v", err))
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid signer agent %q (must be one of: %s, %s)",
			cfg.Signer.Agent, AgentPrompt, AgentHTTP))
	}
	if cfg.Signer.Timeout < 0 {
		errs = append(errs, "signer timeout must be non-negative")
	}

	// Tracking
	if cfg.Tracking.Interval <= 0 {
		errs = append(errs, "poll interval must be positive")
	}
	if cfg.Tracking.Timeout <= 0 {
		errs = append(errs, "poll timeout must be positive")
	}

	// History
	if cfg.History.URL != "" {
		if err := validateURL(cfg.History.URL); err != nil {
			errs = append(errs, fmt.Sprintf("history.url: %v", err))
		}
	}
	if !contains(ValidBackends, cfg.History.Backend) {
		errs = append(errs, fmt.Sprintf("invalid history backend %q (must be one of: %s)",
			cfg.History.Backend, strings.Join(ValidBackends, ", ")))
	}
	switch cfg.History.Backend {
	case BackendBolt, BackendSQLite:
		if cfg.History.Path == "" {
			errs = append(errs, fmt.Sprintf("history.path is required for the %s backend", cfg.History.Backend))
		}
	case BackendPostgres:
		if cfg.History.DSN == "" {
			errs = append(errs, "history.dsn is required for the postgres backend")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
