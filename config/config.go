package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration for FinSight. Secrets are not kept
// here; see Secrets.
type Config struct {
	Account         AccountConfig `json:"account" yaml:"account"`
	Ledger          LedgerConfig  `json:"ledger" yaml:"ledger"`
	Journal         JournalConfig `json:"journal" yaml:"journal"`
	Lock            LockConfig    `json:"lock" yaml:"lock"`
	Redis           RedisConfig   `json:"redis" yaml:"redis"`
	Market          MarketConfig  `json:"market" yaml:"market"`
	LLM             LLMConfig     `json:"llm" yaml:"llm"`
	Notify          NotifyConfig  `json:"notify" yaml:"notify"`
	Server          ServerConfig  `json:"server" yaml:"server"`
	AgentConfigPath string        `json:"agent_config_path" yaml:"agent_config_path"`
	LogLevel        string        `json:"log_level" yaml:"log_level"`
}

// AccountConfig seeds a new simulated ledger.
type AccountConfig struct {
	Currency        string  `json:"currency" yaml:"currency"`
	StartingBalance float64 `json:"starting_balance" yaml:"starting_balance"`
}

// LedgerConfig selects where the simulated ledger document lives.
type LedgerConfig struct {
	Store     string `json:"store" yaml:"store"` // "file", "redis" or "memory"
	StatePath string `json:"state_path,omitempty" yaml:"state_path,omitempty"`
	RedisKey  string `json:"redis_key,omitempty" yaml:"redis_key,omitempty"`
}

// JournalConfig contains trade and equity history parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "json", "sqlite" or "memory"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LockConfig struct {
	Type   string `json:"type" yaml:"type"` // "file", "redis" or "none"
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	TTL    string `json:"ttl,omitempty" yaml:"ttl,omitempty"` // e.g. "30s"
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db" yaml:"db"`
}

type MarketConfig struct {
	CacheTTL          string  `json:"cache_ttl" yaml:"cache_ttl"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
	FinnhubURL        string  `json:"finnhub_url,omitempty" yaml:"finnhub_url,omitempty"`
}

type LLMConfig struct {
	OllamaURL string `json:"ollama_url" yaml:"ollama_url"`
	OpenAIURL string `json:"openai_url,omitempty" yaml:"openai_url,omitempty"`
	GeminiURL string `json:"gemini_url,omitempty" yaml:"gemini_url,omitempty"`
	Timeout   string `json:"timeout" yaml:"timeout"`
}

type NotifyConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	WebhookURL string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	SlackURL   string `json:"slack_url,omitempty" yaml:"slack_url,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LoadFromFile loads configuration from a file (YAML or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
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
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.StartingBalance <= 0 {
		return fmt.Errorf("account.starting_balance must be positive")
	}

	switch c.Ledger.Store {
	case "file":
		if c.Ledger.StatePath == "" {
			return fmt.Errorf("ledger.state_path required for file store")
		}
	case "redis", "memory":
	default:
		return fmt.Errorf("ledger.store must be 'file', 'redis' or 'memory'")
	}

	switch c.Journal.Type {
	case "json":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for JSON type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "memory":
	default:
		return fmt.Errorf("journal.type must be 'json', 'sqlite' or 'memory'")
	}

	switch c.Lock.Type {
	case "file":
		if c.Lock.Path == "" {
			return fmt.Errorf("lock.path required for file lock")
		}
	case "redis", "none", "":
	default:
		return fmt.Errorf("lock.type must be 'file', 'redis' or 'none'")
	}
	if _, err := parseDuration(c.Lock.TTL); err != nil {
		return fmt.Errorf("lock.ttl: %w", err)
	}

	if (c.Ledger.Store == "redis" || c.Lock.Type == "redis") && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required when redis store or lock is used")
	}

	if _, err := parseDuration(c.Market.CacheTTL); err != nil {
		return fmt.Errorf("market.cache_ttl: %w", err)
	}
	if c.Market.RequestsPerSecond < 0 {
		return fmt.Errorf("market.requests_per_second must not be negative")
	}
	if _, err := parseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("llm.timeout: %w", err)
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

func (l LockConfig) TTLDuration() time.Duration {
	d, _ := parseDuration(l.TTL)
	return d
}

func (m MarketConfig) CacheTTLDuration() time.Duration {
	d, _ := parseDuration(m.CacheTTL)
	return d
}

func (l LLMConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(l.Timeout)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", s)
	}
	return d, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Currency:        "USD",
			StartingBalance: 100000,
		},
		Ledger: LedgerConfig{
			Store:     "file",
			StatePath: "./simulated_portfolio.json",
			RedisKey:  "finsight:ledger",
		},
		Journal: JournalConfig{
			Type:       "json",
			TradesFile: "./trade_history.json",
			EquityFile: "./performance_history.json",
		},
		Lock: LockConfig{
			Type: "file",
			Path: "./.locks",
			TTL:  "30s",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Market: MarketConfig{
			CacheTTL:          "1m",
			RequestsPerSecond: 2,
			Burst:             4,
		},
		LLM: LLMConfig{
			OllamaURL: "http://localhost:11434/v1",
			Timeout:   "90s",
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		AgentConfigPath: "./agent_config.json",
		LogLevel:        "info",
	}
}
