// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/math"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Client.LogLevel != "warn" {
		t.Errorf("expected log_level 'warn', got %q", cfg.Client.LogLevel)
	}
	if cfg.Client.Network != "testnet" {
		t.Errorf("expected network 'testnet', got %q", cfg.Client.Network)
	}
	if cfg.Fees.BaseFee != 100 {
		t.Errorf("expected base_fee 100, got %d", cfg.Fees.BaseFee)
	}
	if cfg.Signer.Agent != AgentPrompt {
		t.Errorf("expected signer agent %q, got %q", AgentPrompt, cfg.Signer.Agent)
	}
	if cfg.Tracking.Interval != 4*time.Second {
		t.Errorf("expected poll interval 4s, got %v", cfg.Tracking.Interval)
	}
	if cfg.Tracking.Timeout != 120*time.Second {
		t.Errorf("expected poll timeout 120s, got %v", cfg.Tracking.Timeout)
	}
	if cfg.History.Backend != BackendBolt {
		t.Errorf("expected history backend %q, got %q", BackendBolt, cfg.History.Backend)
	}

	buf, err := cfg.FeeBuffer()
	if err != nil {
		t.Fatalf("FeeBuffer() error: %v", err)
	}
	if !buf.Equal(math.LegacyOneDec()) {
		t.Errorf("expected fee buffer 1, got %s", buf)
	}
}

func TestFileConfigIsEmpty(t *testing.T) {
	fc := &FileConfig{}
	if !fc.IsEmpty() {
		t.Error("expected empty FileConfig to return IsEmpty() == true")
	}

	val := "test"
	fc.Signer.URL = &val
	if fc.IsEmpty() {
		t.Error("expected non-empty FileConfig to return IsEmpty() == false")
	}
}

func TestLoaderLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "rentflow.toml")
	configContent := `
[client]
log_level = "debug"
network = "local"

[fees]
base_fee = 200
buffer = "1.25"

[fees.schedule]
fee_per_read_kb = 2000

[tracking]
interval = "2s"

[history]
backend = "sqlite"

[networks.Local]
passphrase = "Local Network"
rpc_endpoint = "http://localhost:8000/rpc"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(tmpDir, configPath)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Client.LogLevel != "debug" {
		t.Errorf("expected log_level 'debug', got %q", cfg.Client.LogLevel)
	}
	if cfg.Fees.BaseFee != 200 {
		t.Errorf("expected base_fee 200, got %d", cfg.Fees.BaseFee)
	}
	if cfg.Fees.Schedule.FeePerReadKB != 2000 {
		t.Errorf("expected fee_per_read_kb 2000, got %d", cfg.Fees.Schedule.FeePerReadKB)
	}
	if cfg.Tracking.Interval != 2*time.Second {
		t.Errorf("expected poll interval 2s, got %v", cfg.Tracking.Interval)
	}
	if cfg.History.Backend != BackendSQLite {
		t.Errorf("expected history backend sqlite, got %q", cfg.History.Backend)
	}

	// Unset values keep their defaults
	if cfg.Fees.Schedule.FeePer10KInstructions != 25 {
		t.Errorf("expected default fee_per_10k_instructions 25, got %d", cfg.Fees.Schedule.FeePer10KInstructions)
	}
	if cfg.Tracking.Timeout != 120*time.Second {
		t.Errorf("expected default poll timeout 120s, got %v", cfg.Tracking.Timeout)
	}
	if cfg.History.Path != filepath.Join(tmpDir, "history.db") {
		t.Errorf("expected history path under data dir, got %q", cfg.History.Path)
	}

	local, ok := cfg.Networks["local"]
	if !ok {
		t.Fatalf("expected network 'local' to be registered, got %v", cfg.Networks)
	}
	if local.Name != "local" || local.RPCEndpoint != "http://localhost:8000/rpc" {
		t.Errorf("unexpected local preset %+v", local)
	}

	oc, err := cfg.OrchestratorConfig()
	if err != nil {
		t.Fatalf("OrchestratorConfig() error: %v", err)
	}
	if !oc.FeeBuffer.Equal(math.LegacyMustNewDecFromStr("1.25")) {
		t.Errorf("expected fee buffer 1.25, got %s", oc.FeeBuffer)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoaderMissingDefaultFile(t *testing.T) {
	cfg, err := NewLoader(t.TempDir(), "").Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Client.LogLevel != "warn" {
		t.Errorf("expected default log_level, got %q", cfg.Client.LogLevel)
	}
}

func TestLoaderMissingExplicitFile(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := NewLoader(tmpDir, filepath.Join(tmpDir, "nope.toml")).Load()
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoaderInvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "rentflow.toml")
	if err := os.WriteFile(configPath, []byte("[tracking]\ntimeout = \"soon\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewLoader(tmpDir, configPath).Load()
	if err == nil || !strings.Contains(err.Error(), "tracking.timeout") {
		t.Fatalf("expected tracking.timeout error, got %v", err)
	}
}

func TestLoaderEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "rentflow.toml")
	configContent := `
[client]
log_level = "debug"

[signer]
agent = "prompt"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvSignerAgent, "http")
	t.Setenv(EnvSignerURL, "http://127.0.0.1:9911/sign")
	t.Setenv(EnvFeeBuffer, "1.5")
	t.Setenv(EnvPollTimeout, "30s")

	loader := NewLoader(tmpDir, configPath)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Client.LogLevel != "error" {
		t.Errorf("expected log_level 'error' from env, got %q", cfg.Client.LogLevel)
	}
	if cfg.Signer.Agent != AgentHTTP {
		t.Errorf("expected signer agent 'http' from env, got %q", cfg.Signer.Agent)
	}
	if cfg.Fees.Buffer != "1.5" {
		t.Errorf("expected fee buffer '1.5' from env, got %q", cfg.Fees.Buffer)
	}
	if cfg.Tracking.Timeout != 30*time.Second {
		t.Errorf("expected poll timeout 30s from env, got %v", cfg.Tracking.Timeout)
	}
}

func TestLoaderInvalidEnvBaseFee(t *testing.T) {
	t.Setenv(EnvBaseFee, "lots")
	if _, err := NewLoader(t.TempDir(), "").Load(); err == nil {
		t.Fatal("expected error for invalid base fee")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Client.LogLevel = "invalid"
			},
			wantErr: true,
		},
		{
			name: "unknown network",
			modify: func(c *Config) {
				c.Client.Network = "nowhere"
			},
			wantErr: true,
		},
		{
			name: "fee buffer below one",
			modify: func(c *Config) {
				c.Fees.Buffer = "0.5"
			},
			wantErr: true,
		},
		{
			name: "fee buffer not a decimal",
			modify: func(c *Config) {
				c.Fees.Buffer = "plenty"
			},
			wantErr: true,
		},
		{
			name: "zero base fee",
			modify: func(c *Config) {
				c.Fees.BaseFee = 0
			},
			wantErr: true,
		},
		{
			name: "http agent without url",
			modify: func(c *Config) {
				c.Signer.Agent = AgentHTTP
			},
			wantErr: true,
		},
		{
			name: "http agent with url",
			modify: func(c *Config) {
				c.Signer.Agent = AgentHTTP
				c.Signer.URL = "https://wallet.example.com/sign"
			},
			wantErr: false,
		},
		{
			name: "postgres without dsn",
			modify: func(c *Config) {
				c.History.Backend = BackendPostgres
			},
			wantErr: true,
		},
		{
			name: "zero poll interval",
			modify: func(c *Config) {
				c.Tracking.Interval = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Client.LogLevel = "loud"
	cfg.History.Backend = "cassandra"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"log_level", "history backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}
}
