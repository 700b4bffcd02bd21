package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// OracleConfig selects and tunes the collateral price source. When URL is set
// the daemon polls the HTTP feed; otherwise it serves the static price, which
// keeps development and test environments self-contained.
type OracleConfig struct {
	URL           string `toml:"URL"`
	MaxAgeSeconds int64  `toml:"MaxAgeSeconds"`
	StaticPrice   uint64 `toml:"StaticPrice"`
	StaticScale   uint64 `toml:"StaticScale"`
}

// LogConfig controls structured log output and file rotation.
type LogConfig struct {
	Env        string `toml:"Env"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Config is the daemon configuration, read from TOML.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`

	// InitialUSDCSupply seeds the debt-asset vault on first start.
	InitialUSDCSupply uint64 `toml:"InitialUSDCSupply"`

	// PausedActions disables individual ledger operations by name
	// (originate, repay, liquidate, withdraw, deposit).
	PausedActions []string `toml:"PausedActions"`

	Oracle OracleConfig `toml:"oracle"`
	Log    LogConfig    `toml:"log"`
}

// Default returns the configuration a fresh deployment starts from.
func Default() *Config {
	return &Config{
		ListenAddress:     "0.0.0.0:8545",
		DataDir:           "./savings-data",
		InitialUSDCSupply: 1_000_000_000_000,
		Oracle: OracleConfig{
			MaxAgeSeconds: 300,
			StaticPrice:   15_000,
			StaticScale:   10_000,
		},
		Log: LogConfig{
			Env:        "dev",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads the TOML configuration at path. When the file does not exist a
// default configuration is written there and returned, so a first run leaves
// an editable file behind.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefault(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode defaults: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("config: ListenAddress is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir is required")
	}
	if c.Oracle.URL == "" && c.Oracle.StaticPrice == 0 {
		return fmt.Errorf("config: oracle needs either URL or StaticPrice")
	}
	return nil
}

// Pauses converts PausedActions into the lookup the engine guard consumes.
func (c *Config) Pauses() map[string]bool {
	if len(c.PausedActions) == 0 {
		return nil
	}
	out := make(map[string]bool, len(c.PausedActions))
	for _, action := range c.PausedActions {
		out[action] = true
	}
	return out
}
