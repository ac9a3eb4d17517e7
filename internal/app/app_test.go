package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/config"
	"github.com/shreyanshxt/FinSight/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Ledger.StatePath = filepath.Join(dir, "simulated_portfolio.json")
	cfg.Journal.TradesFile = filepath.Join(dir, "trade_history.json")
	cfg.Journal.EquityFile = filepath.Join(dir, "performance_history.json")
	cfg.Lock.Path = filepath.Join(dir, "locks")
	cfg.AgentConfigPath = filepath.Join(dir, "agent_config.json")
	cfg.Server.Addr = "127.0.0.1:0"
	return cfg
}

func TestNewSimulation(t *testing.T) {
	a, err := New(testConfig(t), config.Secrets{})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.Equal(t, broker.ModeSimulation, a.Broker.Mode())
	assert.Same(t, a.Ledger, a.Broker)
	assert.IsType(t, &journal.File{}, a.Journal)

	snap, err := a.Broker.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100000.0, snap.Cash)
	assert.FileExists(t, a.Config.Ledger.StatePath)
	assert.Equal(t, config.DefaultModel, a.Agents.Current().Model)
}

func TestNewSelectsAlpacaWithKeys(t *testing.T) {
	a, err := New(testConfig(t), config.Secrets{AlpacaKey: "k", AlpacaSecret: "s"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, broker.ModeAlpaca, a.Broker.Mode())
}

func TestNewJournalTypes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Type = "sqlite"
	cfg.Journal.DBPath = filepath.Join(t.TempDir(), "db", "finsight.sqlite")
	cfg.Ledger.Store = "memory"
	cfg.Lock.Type = "none"

	a, err := New(cfg, config.Secrets{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.IsType(t, &journal.SQLite{}, a.Journal)
}

func TestNewRejectsUnknownLock(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lock.Type = "zookeeper"
	_, err := New(cfg, config.Secrets{})
	assert.ErrorContains(t, err, "create lock")
}

func TestServeStopsOnCancel(t *testing.T) {
	a, err := New(testConfig(t), config.Secrets{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Serve(ctx, false))
}
