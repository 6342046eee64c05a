package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"soliver/crypto"
)

const (
	defaultRPCAddress     = ":8645"
	defaultMetricsAddress = ":9465"
	defaultDataDir        = "./soliver-data"
	defaultRelayerTimeout = 10
	defaultDispatchSecs   = 2
)

type Config struct {
	RPCAddress        string   `toml:"RPCAddress"`
	MetricsAddress    string   `toml:"MetricsAddress"`
	DataDir           string   `toml:"DataDir"`
	RelayerURL        string   `toml:"RelayerURL"`
	RelayerTimeout    int      `toml:"RelayerTimeoutSeconds"`
	LiquidatorAddress string   `toml:"LiquidatorAddress"`
	OutboxEnabled     bool     `toml:"OutboxEnabled"`
	OutboxPath        string   `toml:"OutboxPath"`
	DispatchInterval  int      `toml:"DispatchIntervalSeconds"`
	PausedModules     []string `toml:"PausedModules"`
	LogFile           string   `toml:"LogFile"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = defaultMetricsAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.RelayerTimeout <= 0 {
		cfg.RelayerTimeout = defaultRelayerTimeout
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = defaultDispatchSecs
	}
	if strings.TrimSpace(cfg.OutboxPath) == "" {
		cfg.OutboxPath = filepath.Join(cfg.DataDir, "outbox.db")
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

func validate(cfg *Config) error {
	if trimmed := strings.TrimSpace(cfg.LiquidatorAddress); trimmed != "" {
		if _, err := crypto.DecodeAddress(trimmed); err != nil {
			return fmt.Errorf("invalid LiquidatorAddress: %w", err)
		}
	}
	return nil
}

// Liquidator decodes the configured liquidator authority address. It returns
// the zero address when none is configured, which leaves liquidation disabled.
func (c *Config) Liquidator() (crypto.Address, error) {
	trimmed := strings.TrimSpace(c.LiquidatorAddress)
	if trimmed == "" {
		return crypto.Address{}, nil
	}
	return crypto.DecodeAddress(trimmed)
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:       defaultRPCAddress,
		MetricsAddress:   defaultMetricsAddress,
		DataDir:          defaultDataDir,
		RelayerTimeout:   defaultRelayerTimeout,
		DispatchInterval: defaultDispatchSecs,
		PausedModules:    []string{},
	}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
