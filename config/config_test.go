package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 100000.0, cfg.Account.StartingBalance)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTLDuration())
	assert.Equal(t, time.Minute, cfg.Market.CacheTTLDuration())
	assert.Equal(t, 90*time.Second, cfg.LLM.TimeoutDuration())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing currency", func(c *Config) { c.Account.Currency = "" }, "account.currency is required"},
		{"negative balance", func(c *Config) { c.Account.StartingBalance = -1000 }, "account.starting_balance must be positive"},
		{"unknown store", func(c *Config) { c.Ledger.Store = "s3" }, "ledger.store must be"},
		{"file store without path", func(c *Config) { c.Ledger.StatePath = "" }, "ledger.state_path required"},
		{"json journal without files", func(c *Config) { c.Journal.EquityFile = "" }, "journal trades_file and equity_file required"},
		{"sqlite without path", func(c *Config) { c.Journal.Type = "sqlite" }, "journal db_path required"},
		{"unknown journal", func(c *Config) { c.Journal.Type = "csv" }, "journal.type must be"},
		{"unknown lock", func(c *Config) { c.Lock.Type = "etcd" }, "lock.type must be"},
		{"bad ttl", func(c *Config) { c.Lock.TTL = "soon" }, "lock.ttl"},
		{"redis without addr", func(c *Config) { c.Lock.Type = "redis"; c.Redis.Addr = "" }, "redis.addr required"},
		{"negative rate", func(c *Config) { c.Market.RequestsPerSecond = -1 }, "requests_per_second"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"memory everything", func(c *Config) {
			c.Ledger.Store = "memory"
			c.Journal.Type = "memory"
			c.Lock.Type = "none"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finsight.yaml")
	yamlBody := `
account:
  currency: USD
  starting_balance: 25000
journal:
  type: sqlite
  db_path: ./finsight.db
server:
  addr: ":9000"
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, cfg.Account.StartingBalance)
	assert.Equal(t, "sqlite", cfg.Journal.Type)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Unset sections keep their defaults.
	assert.Equal(t, "file", cfg.Ledger.Store)
	assert.Equal(t, "./agent_config.json", cfg.AgentConfigPath)
}

func TestSaveAndLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finsight.json")
	cfg := Default()
	cfg.Notify.SlackURL = "https://hooks.slack.example/T000"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  starting_balance: -5\n"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadSecrets(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("FINNHUB_API_KEY=from-file\nALPACA_API_KEY=k\n"), 0o644))
	t.Setenv("FINNHUB_API_KEY", "from-env")
	t.Setenv("ALPACA_API_KEY", "")
	t.Setenv("ALPACA_SECRET_KEY", "")

	s := LoadSecrets(env)
	assert.Equal(t, "from-env", s.FinnhubKey)
	assert.False(t, s.AlpacaEnabled())
}
