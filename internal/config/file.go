// internal/config/file.go
package config

import "github.com/altuslabsxyz/rentflow/pkg/network"

// FileConfig represents the raw rentflow.toml file contents.
// All fields are pointers to distinguish "not set" from "set to zero/false".
type FileConfig struct {
	Client   FileClientConfig          `toml:"client"`
	Fees     FileFeeConfig             `toml:"fees"`
	Signer   FileSignerConfig          `toml:"signer"`
	Tracking FileTrackingConfig        `toml:"tracking"`
	History  FileHistoryConfig         `toml:"history"`
	Networks map[string]network.Preset `toml:"networks"`
}

// FileClientConfig is the TOML representation of ClientConfig.
type FileClientConfig struct {
	DataDir  *string `toml:"data_dir"`
	LogLevel *string `toml:"log_level"`
	Network  *string `toml:"network"`
	Wallet   *string `toml:"wallet"`
}

// FileFeeConfig is the TOML representation of FeeConfig.
type FileFeeConfig struct {
	BaseFee  *int64                `toml:"base_fee"`
	Buffer   *string               `toml:"buffer"`
	Schedule FileFeeScheduleConfig `toml:"schedule"`
}

// FileFeeScheduleConfig is the TOML representation of lifecycle.FeeSchedule.
type FileFeeScheduleConfig struct {
	FeePer10KInstructions *int64 `toml:"fee_per_10k_instructions"`
	FeePerReadKB          *int64 `toml:"fee_per_read_kb"`
	FeePerWriteKB         *int64 `toml:"fee_per_write_kb"`
}

// FileSignerConfig is the TOML representation of SignerConfig.
// Uses strings for duration values since TOML cannot decode directly to time.Duration.
type FileSignerConfig struct {
	Agent   *string `toml:"agent"`
	URL     *string `toml:"url"`
	Timeout *string `toml:"timeout"`
}

// FileTrackingConfig is the TOML representation of TrackingConfig.
type FileTrackingConfig struct {
	Interval *string `toml:"interval"`
	Timeout  *string `toml:"timeout"`
}

// FileHistoryConfig is the TOML representation of HistoryConfig.
type FileHistoryConfig struct {
	URL     *string `toml:"url"`
	Listen  *string `toml:"listen"`
	Backend *string `toml:"backend"`
	Path    *string `toml:"path"`
	DSN     *string `toml:"dsn"`
}

// IsEmpty returns true if no configuration values are set.
func (f *FileConfig) IsEmpty() bool {
	return f.Client.DataDir == nil &&
		f.Client.LogLevel == nil &&
		f.Client.Network == nil &&
		f.Client.Wallet == nil &&
		f.Fees.BaseFee == nil &&
		f.Fees.Buffer == nil &&
		f.Fees.Schedule.FeePer10KInstructions == nil &&
		f.Fees.Schedule.FeePerReadKB == nil &&
		f.Fees.Schedule.FeePerWriteKB == nil &&
		f.Signer.Agent == nil &&
		f.Signer.URL == nil &&
		f.Signer.Timeout == nil &&
		f.Tracking.Interval == nil &&
		f.Tracking.Timeout == nil &&
		f.History.URL == nil &&
		f.History.Listen == nil &&
		f.History.Backend == nil &&
		f.History.Path == nil &&
		f.History.DSN == nil &&
		len(f.Networks) == 0
}
