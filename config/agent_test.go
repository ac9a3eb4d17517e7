package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentManagerCreatesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agent_config.json")
	m, err := NewAgentManager(path)
	require.NoError(t, err)

	cfg := m.Current()
	assert.True(t, cfg.AutonomousEnabled)
	assert.Equal(t, "llama3.1", cfg.Model)
	assert.Equal(t, []string{"AAPL", "NVDA", "BTC-USD", "TSLA"}, cfg.Watchlist)
	assert.Equal(t, 5*time.Minute, cfg.Interval())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestAgentManagerMissingKeysUseDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agent_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":"gemini-2.0-flash"}`), 0o644))

	m, err := NewAgentManager(path)
	require.NoError(t, err)
	cfg := m.Load()
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.True(t, cfg.AutonomousEnabled)
	assert.Len(t, cfg.Watchlist, 4)
}

func TestAgentManagerCorruptFileFallsBack(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agent_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":`), 0o644))

	m, err := NewAgentManager(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultAgent(), m.Load())
}

func TestAgentManagerUpdateMerges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agent_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":"llama3","theme":"dark","interval_minutes":2}`), 0o644))
	m, err := NewAgentManager(path, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	off := false
	capital := 2500.0
	cfg, err := m.Update(AgentPatch{Enabled: &off, Watchlist: []string{" msft ", "aapl"}, AgentCapital: &capital})
	require.NoError(t, err)
	assert.False(t, cfg.AutonomousEnabled)
	assert.Equal(t, "llama3", cfg.Model)
	assert.Equal(t, []string{"MSFT", "AAPL"}, cfg.Watchlist)
	assert.Equal(t, 2*time.Minute, cfg.Interval())
	require.NotNil(t, cfg.AgentCapital)
	assert.Equal(t, 2500.0, *cfg.AgentCapital)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "dark", onDisk["theme"])
	assert.Equal(t, false, onDisk["autonomous_enabled"])

	assert.Equal(t, cfg, m.Load())
}

func TestAgentPatchValidate(t *testing.T) {
	t.Parallel()

	empty := " "
	zero := 0.0
	neg := -1.0
	assert.Error(t, AgentPatch{Model: &empty}.Validate())
	assert.Error(t, AgentPatch{IntervalMinutes: &zero}.Validate())
	assert.Error(t, AgentPatch{AgentCapital: &neg}.Validate())
	assert.Error(t, AgentPatch{Watchlist: []string{"AAPL", ""}}.Validate())
	assert.NoError(t, AgentPatch{}.Validate())
}

func TestAgentManagerWatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agent_config.json")
	m, err := NewAgentManager(path, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []Agent
	)
	require.NoError(t, m.Watch(ctx, func(a Agent) {
		mu.Lock()
		got = append(got, a)
		mu.Unlock()
	}))

	require.NoError(t, os.WriteFile(path, []byte(`{"model":"deepseek-chat","autonomous_enabled":false}`), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].Model == "deepseek-chat"
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "deepseek-chat", m.Current().Model)
	assert.False(t, m.Current().AutonomousEnabled)
}

func TestStaticAgent(t *testing.T) {
	t.Parallel()

	s := StaticAgent(DefaultAgent())
	a := s.Load()
	a.Watchlist[0] = "XXX"
	assert.Equal(t, "AAPL", s.Load().Watchlist[0])
}
