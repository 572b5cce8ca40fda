package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Filters FilterConfig  `json:"filters" yaml:"filters"`
	Market  MarketConfig  `json:"market" yaml:"market"`
	Sim     SimConfig     `json:"sim" yaml:"sim"`
	Journal JournalConfig `json:"journal" yaml:"journal"`

	// StateFile is where the account snapshot persists across sessions.
	StateFile string `json:"state_file" yaml:"state_file"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	ID          string  `json:"id,omitempty" yaml:"id,omitempty"`
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
}

// EngineConfig contains execution parameters
type EngineConfig struct {
	RiskPercent    float64 `json:"risk_percent" yaml:"risk_percent"`
	MaxPositionPct float64 `json:"max_position_pct" yaml:"max_position_pct"`
	FillTimeout    string  `json:"fill_timeout" yaml:"fill_timeout"` // e.g. "2.5s"
}

// FilterConfig contains signal admission thresholds
type FilterConfig struct {
	MinConfidence    float64 `json:"min_confidence" yaml:"min_confidence"`
	MinProfitBP      float64 `json:"min_profit_bp" yaml:"min_profit_bp"`
	MinTradeInterval string  `json:"min_trade_interval" yaml:"min_trade_interval"` // e.g. "5m"
}

// MarketConfig contains data admission parameters
type MarketConfig struct {
	FreshnessThreshold string `json:"freshness_threshold" yaml:"freshness_threshold"` // e.g. "15m"
	AllowAfterHours    bool   `json:"allow_after_hours" yaml:"allow_after_hours"`
}

// SimConfig contains simulated broker parameters
type SimConfig struct {
	Seed          int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
	FillDelay     string  `json:"fill_delay" yaml:"fill_delay"` // e.g. "100ms"
	RejectProb    float64 `json:"reject_prob" yaml:"reject_prob"`
	MaxSlippageBP float64 `json:"max_slippage_bp" yaml:"max_slippage_bp"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "jsonl" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// ParseFillTimeout converts the fill timeout string to time.Duration
func (ec EngineConfig) ParseFillTimeout() (time.Duration, error) {
	if ec.FillTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(ec.FillTimeout)
}

// ParseMinTradeInterval converts the cooldown string to time.Duration
func (fc FilterConfig) ParseMinTradeInterval() (time.Duration, error) {
	if fc.MinTradeInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(fc.MinTradeInterval)
}

// ParseFreshnessThreshold converts the staleness limit to time.Duration
func (mc MarketConfig) ParseFreshnessThreshold() (time.Duration, error) {
	if mc.FreshnessThreshold == "" {
		return 0, nil
	}
	return time.ParseDuration(mc.FreshnessThreshold)
}

// ParseFillDelay converts the simulated latency string to time.Duration
func (sc SimConfig) ParseFillDelay() (time.Duration, error) {
	if sc.FillDelay == "" {
		return 0, nil
	}
	return time.ParseDuration(sc.FillDelay)
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
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

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialCash <= 0 {
		return fmt.Errorf("account.initial_cash must be positive")
	}
	if c.Engine.RiskPercent <= 0 || c.Engine.RiskPercent > 100 {
		return fmt.Errorf("engine.risk_percent must be between 0 and 100")
	}
	if c.Engine.MaxPositionPct <= 0 || c.Engine.MaxPositionPct > 100 {
		return fmt.Errorf("engine.max_position_pct must be between 0 and 100")
	}
	if _, err := c.Engine.ParseFillTimeout(); err != nil {
		return fmt.Errorf("engine.fill_timeout: %w", err)
	}
	if c.Filters.MinConfidence < 0 || c.Filters.MinConfidence > 1 {
		return fmt.Errorf("filters.min_confidence must be between 0 and 1")
	}
	if c.Filters.MinProfitBP < 0 {
		return fmt.Errorf("filters.min_profit_bp must not be negative")
	}
	if _, err := c.Filters.ParseMinTradeInterval(); err != nil {
		return fmt.Errorf("filters.min_trade_interval: %w", err)
	}
	if c.Market.FreshnessThreshold == "" {
		return fmt.Errorf("market.freshness_threshold is required")
	}
	if d, err := c.Market.ParseFreshnessThreshold(); err != nil {
		return fmt.Errorf("market.freshness_threshold: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("market.freshness_threshold must be positive")
	}
	if c.Sim.RejectProb < 0 || c.Sim.RejectProb > 1 {
		return fmt.Errorf("sim.reject_prob must be between 0 and 1")
	}
	if c.Sim.MaxSlippageBP < 0 {
		return fmt.Errorf("sim.max_slippage_bp must not be negative")
	}
	if _, err := c.Sim.ParseFillDelay(); err != nil {
		return fmt.Errorf("sim.fill_delay: %w", err)
	}
	if c.Journal.Type != "jsonl" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'jsonl' or 'sqlite'")
	}
	if c.Journal.Type == "jsonl" && (c.Journal.TradesFile == "" || c.Journal.EventsFile == "") {
		return fmt.Errorf("journal trades_file and events_file required for JSONL type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state_file is required")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCash: 100000,
		},
		Engine: EngineConfig{
			RiskPercent:    1.0,
			MaxPositionPct: 10.0,
			FillTimeout:    "2.5s",
		},
		Filters: FilterConfig{
			MinConfidence:    0.60,
			MinProfitBP:      3.0,
			MinTradeInterval: "5m",
		},
		Market: MarketConfig{
			FreshnessThreshold: "15m",
		},
		Sim: SimConfig{
			FillDelay:     "100ms",
			RejectProb:    0.05,
			MaxSlippageBP: 2.0,
		},
		Journal: JournalConfig{
			Type:       "jsonl",
			TradesFile: "./trades.jsonl",
			EventsFile: "./equity.jsonl",
		},
		StateFile: "./account_state.json",
	}
}
