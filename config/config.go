package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full core configuration.
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
}

// AccountConfig contains account initialization parameters.
type AccountConfig struct {
	// Descriptor is the broker-visible account identifier, passed through to
	// live gateways.
	Descriptor     string  `json:"descriptor" yaml:"descriptor"`
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`
}

// SimulationConfig contains simulator parameters.
type SimulationConfig struct {
	// Speed is the virtual-clock tick interval in milliseconds.
	Speed int `json:"speed" yaml:"speed"`
	// Source is the directory of tick files, one per instrument.
	Source string `json:"source" yaml:"source"`
	// Instruments lists the instruments to subscribe at startup.
	Instruments []string `json:"instruments,omitempty" yaml:"instruments,omitempty"`
}

// SpeedDuration converts the millisecond Speed into a duration, applying
// the 100ms default.
func (s SimulationConfig) SpeedDuration() time.Duration {
	if s.Speed <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(s.Speed) * time.Millisecond
}

// JournalConfig contains audit journal parameters.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	DealsFile  string `json:"deals_file,omitempty" yaml:"deals_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON based on
// content; YAML is tried first).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML (.yaml/.yml) or JSON.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Account.InitialBalance <= 0 {
		return fmt.Errorf("account.initial_balance must be positive")
	}
	if c.Simulation.Speed < 0 {
		return fmt.Errorf("simulation.speed must not be negative")
	}
	if c.Simulation.Source == "" {
		return fmt.Errorf("simulation.source is required")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.DealsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal deals_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Descriptor:     "SIM-001",
			InitialBalance: 50000,
		},
		Simulation: SimulationConfig{
			Speed:  100,
			Source: "./ticks",
		},
		Journal: JournalConfig{
			Type: "none",
		},
	}
}
