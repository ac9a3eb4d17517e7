package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shreyanshxt/FinSight/logger"
)

const (
	DefaultModel           = "llama3.1"
	DefaultIntervalMinutes = 5
)

var DefaultWatchlist = []string{"AAPL", "NVDA", "BTC-USD", "TSLA"}

// Agent is the decision engine's runtime configuration. It is re-read
// before every ticker so edits take effect without a restart.
type Agent struct {
	AutonomousEnabled bool     `json:"autonomous_enabled"`
	Model             string   `json:"model"`
	Watchlist         []string `json:"watchlist"`
	IntervalMinutes   float64  `json:"interval_minutes"`
	AgentCapital      *float64 `json:"agent_capital,omitempty"`
}

func DefaultAgent() Agent {
	return Agent{
		AutonomousEnabled: true,
		Model:             DefaultModel,
		Watchlist:         append([]string(nil), DefaultWatchlist...),
		IntervalMinutes:   DefaultIntervalMinutes,
	}
}

// Interval is the sleep between watchlist passes.
func (a Agent) Interval() time.Duration {
	if a.IntervalMinutes <= 0 {
		return DefaultIntervalMinutes * time.Minute
	}
	return time.Duration(a.IntervalMinutes * float64(time.Minute))
}

func (a Agent) clone() Agent {
	a.Watchlist = append([]string(nil), a.Watchlist...)
	if a.AgentCapital != nil {
		c := *a.AgentCapital
		a.AgentCapital = &c
	}
	return a
}

// AgentPatch is a partial update. Nil fields are left alone. Enabled is
// accepted as an alias of AutonomousEnabled.
type AgentPatch struct {
	Enabled           *bool    `json:"enabled,omitempty"`
	AutonomousEnabled *bool    `json:"autonomous_enabled,omitempty"`
	Model             *string  `json:"model,omitempty"`
	Watchlist         []string `json:"watchlist,omitempty"`
	IntervalMinutes   *float64 `json:"interval_minutes,omitempty"`
	AgentCapital      *float64 `json:"agent_capital,omitempty"`
}

func (p AgentPatch) Validate() error {
	if p.Model != nil && strings.TrimSpace(*p.Model) == "" {
		return fmt.Errorf("model must not be empty")
	}
	for _, s := range p.Watchlist {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("watchlist contains an empty symbol")
		}
	}
	if p.IntervalMinutes != nil && *p.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be positive")
	}
	if p.AgentCapital != nil && *p.AgentCapital < 0 {
		return fmt.Errorf("agent_capital must not be negative")
	}
	return nil
}

// AgentSource is what the decision engine reads its settings from.
type AgentSource interface {
	Load() Agent
}

// AgentManager owns agent_config.json. Keys it does not know about are
// preserved across updates.
type AgentManager struct {
	path         string
	mu           sync.RWMutex
	cfg          Agent
	watcher      *fsnotify.Watcher
	debounce     time.Duration
	onChange     func(Agent)
	suppressSelf atomic.Bool
}

type AgentOption func(*AgentManager)

func WithDebounce(d time.Duration) AgentOption {
	return func(m *AgentManager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// NewAgentManager loads path, creating it with defaults when missing.
func NewAgentManager(path string, opts ...AgentOption) (*AgentManager, error) {
	if path == "" {
		return nil, fmt.Errorf("agent config path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	m := &AgentManager{path: path, debounce: 300 * time.Millisecond}
	for _, opt := range opts {
		opt(m)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		m.cfg = DefaultAgent()
		raw, err := encodeFields(m.cfg)
		if err != nil {
			return nil, err
		}
		if err := writeJSONFile(path, raw); err != nil {
			return nil, fmt.Errorf("write initial agent config: %w", err)
		}
		return m, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat agent config: %w", err)
	}

	m.cfg = m.Load()
	return m, nil
}

func (m *AgentManager) Path() string { return m.path }

// Current returns the last loaded configuration without touching disk.
func (m *AgentManager) Current() Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.clone()
}

// Load re-reads the file. An unreadable file yields the defaults.
func (m *AgentManager) Load() Agent {
	cfg, err := readAgent(m.path)
	if err != nil {
		logger.Warn("agent config: %v; using defaults", err)
		cfg = DefaultAgent()
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg.clone()
}

// Update merges p into the file on disk and returns the result.
func (m *AgentManager) Update(p AgentPatch) (Agent, error) {
	if err := p.Validate(); err != nil {
		return Agent{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fields, err := readFields(m.path)
	if err != nil {
		logger.Warn("agent config: %v; starting from empty", err)
		fields = map[string]json.RawMessage{}
	}
	enabled := p.AutonomousEnabled
	if p.Enabled != nil {
		enabled = p.Enabled
	}
	set := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		fields[key] = b
		return nil
	}
	if enabled != nil {
		if err := set("autonomous_enabled", *enabled); err != nil {
			return Agent{}, err
		}
	}
	if p.Model != nil {
		if err := set("model", strings.TrimSpace(*p.Model)); err != nil {
			return Agent{}, err
		}
	}
	if p.Watchlist != nil {
		wl := make([]string, len(p.Watchlist))
		for i, s := range p.Watchlist {
			wl[i] = strings.ToUpper(strings.TrimSpace(s))
		}
		if err := set("watchlist", wl); err != nil {
			return Agent{}, err
		}
	}
	if p.IntervalMinutes != nil {
		if err := set("interval_minutes", *p.IntervalMinutes); err != nil {
			return Agent{}, err
		}
	}
	if p.AgentCapital != nil {
		if err := set("agent_capital", *p.AgentCapital); err != nil {
			return Agent{}, err
		}
	}

	cfg, err := decodeFields(fields)
	if err != nil {
		return Agent{}, err
	}

	m.suppressSelf.Store(true)
	defer time.AfterFunc(m.debounce, func() { m.suppressSelf.Store(false) })
	if err := writeJSONFile(m.path, fields); err != nil {
		m.suppressSelf.Store(false)
		return Agent{}, err
	}
	m.cfg = cfg
	return cfg.clone(), nil
}

// Watch reloads the file when it changes on disk and calls onChange with
// the new configuration. It returns once the watcher is running.
func (m *AgentManager) Watch(ctx context.Context, onChange func(Agent)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watcher != nil {
		m.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.watcher = watcher
	m.mu.Unlock()

	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		m.mu.Lock()
		m.watcher = nil
		m.mu.Unlock()
		return fmt.Errorf("watch config dir: %w", err)
	}
	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *AgentManager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var timerMu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(m.debounce, m.reloadFromDisk)
		timerMu.Unlock()
	}

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(m.path) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if m.suppressSelf.Load() {
				continue
			}
			trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("agent config watcher: %v", err)
		case <-ctx.Done():
			return
		}
	}
}

func (m *AgentManager) reloadFromDisk() {
	cfg, err := readAgent(m.path)
	if err != nil {
		logger.Warn("agent config reload failed: %v", err)
		return
	}

	m.mu.Lock()
	if reflect.DeepEqual(m.cfg, cfg) {
		m.mu.Unlock()
		return
	}
	m.cfg = cfg
	cb := m.onChange
	m.mu.Unlock()

	logger.Info("agent config reloaded: model=%s enabled=%t watchlist=%v", cfg.Model, cfg.AutonomousEnabled, cfg.Watchlist)
	if cb != nil {
		cb(cfg.clone())
	}
}

func readFields(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fields, nil
}

func readAgent(path string) (Agent, error) {
	fields, err := readFields(path)
	if err != nil {
		return Agent{}, err
	}
	return decodeFields(fields)
}

func decodeFields(fields map[string]json.RawMessage) (Agent, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return Agent{}, err
	}
	cfg := DefaultAgent()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Agent{}, fmt.Errorf("decode agent config: %w", err)
	}
	if len(cfg.Watchlist) == 0 {
		cfg.Watchlist = append([]string(nil), DefaultWatchlist...)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	return cfg, nil
}

func encodeFields(a Agent) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	return fields, json.Unmarshal(data, &fields)
}

func writeJSONFile(path string, v any) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "agent-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(v); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmpFile.Name(), path)
}

var _ AgentSource = (*AgentManager)(nil)

// StaticAgent is a fixed AgentSource.
type StaticAgent Agent

func (s StaticAgent) Load() Agent { return Agent(s).clone() }
