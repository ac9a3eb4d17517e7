// Package app assembles FinSight's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/shreyanshxt/FinSight/agent"
	"github.com/shreyanshxt/FinSight/api"
	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/broker/alpaca"
	"github.com/shreyanshxt/FinSight/config"
	"github.com/shreyanshxt/FinSight/journal"
	"github.com/shreyanshxt/FinSight/lock"
	"github.com/shreyanshxt/FinSight/logger"
	"github.com/shreyanshxt/FinSight/market"
	"github.com/shreyanshxt/FinSight/notify"
	"github.com/shreyanshxt/FinSight/signal"
	"github.com/shreyanshxt/FinSight/sim"
	"golang.org/x/sync/errgroup"
)

// App holds one wired instance of every component.
type App struct {
	Config  *config.Config
	Secrets config.Secrets

	Ledger   *sim.Ledger
	Broker   broker.Broker
	Journal  journal.Journal
	Oracle   market.Oracle
	News     market.NewsSource
	Signals  *signal.Registry
	Agents   *config.AgentManager
	Notifier *notify.Service
	Engine   *agent.Engine

	closers []func() error
}

// New builds the application. The caller must Close it.
func New(cfg *config.Config, secrets config.Secrets) (_ *App, err error) {
	a := &App{Config: cfg, Secrets: secrets}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var rdb *redis.Client
	if cfg.Ledger.Store == "redis" || cfg.Lock.Type == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
	}

	store, err := newStore(cfg.Ledger, rdb)
	if err != nil {
		return nil, err
	}
	lk, err := lock.New(lock.Options{
		Type:   cfg.Lock.Type,
		Dir:    cfg.Lock.Path,
		Prefix: cfg.Lock.Prefix,
		Redis:  rdb,
	})
	if err != nil {
		return nil, fmt.Errorf("create lock: %w", err)
	}
	a.closers = append(a.closers, lk.Close)

	if a.Journal, err = newJournal(cfg.Journal); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Journal.Close)

	yahoo := market.NewYahoo(market.WithRateLimit(cfg.Market.RequestsPerSecond, cfg.Market.Burst))
	a.Oracle = yahoo
	if ttl := cfg.Market.CacheTTLDuration(); ttl > 0 {
		a.Oracle = market.NewCached(yahoo, ttl)
	}
	a.News = market.NewFinnhub(cfg.Market.FinnhubURL, secrets.FinnhubKey)

	a.Notifier = newNotifier(cfg.Notify)

	a.Signals = signal.NewRegistry(signal.Endpoints{
		OllamaURL:   cfg.LLM.OllamaURL,
		OpenAIURL:   cfg.LLM.OpenAIURL,
		GeminiURL:   cfg.LLM.GeminiURL,
		OpenAIKey:   secrets.OpenAIKey,
		GeminiKey:   secrets.GeminiKey,
		DeepSeekKey: secrets.DeepSeekKey,
		Timeout:     cfg.LLM.TimeoutDuration(),
	})

	if a.Agents, err = config.NewAgentManager(cfg.AgentConfigPath); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}

	a.Ledger = sim.NewLedger(store, a.Oracle, a.Journal,
		sim.WithLock(lk, cfg.Lock.TTLDuration()),
		sim.WithStartingBalance(cfg.Account.StartingBalance, cfg.Account.Currency),
		sim.WithNotifier(a.Notifier),
	)
	a.Broker = a.Ledger
	if secrets.AlpacaEnabled() {
		client, err := alpaca.New(alpaca.Config{
			BaseURL:   secrets.AlpacaBaseURL,
			KeyID:     secrets.AlpacaKey,
			SecretKey: secrets.AlpacaSecret,
		}, a.Ledger, a.Oracle)
		if err != nil {
			return nil, err
		}
		a.Broker = client
	}
	logger.Info("app: trading mode %s", a.Broker.Mode())

	a.Engine = agent.New(agent.Deps{
		Broker:   a.Broker,
		Oracle:   a.Oracle,
		News:     a.News,
		Signals:  a.Signals,
		Config:   a.Agents,
		Notifier: a.Notifier,
	})
	return a, nil
}

func newStore(c config.LedgerConfig, rdb *redis.Client) (sim.Store, error) {
	switch c.Store {
	case "redis":
		return sim.NewRedisStore(rdb, c.RedisKey), nil
	case "memory":
		return sim.NewMemoryStore(), nil
	default:
		s, err := sim.NewFileStore(c.StatePath)
		if err != nil {
			return nil, fmt.Errorf("ledger store: %w", err)
		}
		return s, nil
	}
}

func newJournal(c config.JournalConfig) (journal.Journal, error) {
	switch c.Type {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(c.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
		j, err := journal.NewSQLite(c.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		return j, nil
	case "memory":
		return journal.NewMemory(), nil
	default:
		j, err := journal.NewFile(c.TradesFile, c.EquityFile)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		return j, nil
	}
}

func newNotifier(c config.NotifyConfig) *notify.Service {
	senders := []notify.Sender{notify.LogSender{}}
	if !c.Enabled {
		return notify.NewService(senders...)
	}
	if c.WebhookURL != "" {
		if w, err := notify.NewWebhook(c.WebhookURL); err != nil {
			logger.Warn("app: webhook notifications disabled: %v", err)
		} else {
			senders = append(senders, w)
		}
	}
	if c.SlackURL != "" {
		if s, err := notify.NewSlack(c.SlackURL); err != nil {
			logger.Warn("app: slack notifications disabled: %v", err)
		} else {
			senders = append(senders, s)
		}
	}
	return notify.NewService(senders...)
}

// Server returns the HTTP API bound to this app's components.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Config.Server.Addr, api.Deps{
		Broker:      a.Broker,
		Journal:     a.Journal,
		Oracle:      a.Oracle,
		Signals:     a.Signals,
		AgentConfig: a.Agents,
		Engine:      a.Engine,
	})
}

// Serve runs the HTTP API and, when withAgent is set, the decision loop
// until ctx is cancelled or one of them fails.
func (a *App) Serve(ctx context.Context, withAgent bool) error {
	if err := a.Agents.Watch(ctx, func(c config.Agent) {
		logger.Info("app: agent config reloaded (model %s, %d tickers, enabled=%v)",
			c.Model, len(c.Watchlist), c.AutonomousEnabled)
	}); err != nil {
		logger.Warn("app: agent config hot reload unavailable: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Server().Run(ctx) })
	if withAgent {
		g.Go(func() error {
			err := a.Engine.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Close waits for background work and releases resources in reverse order.
func (a *App) Close() error {
	if a.Ledger != nil {
		a.Ledger.Wait()
	}
	if a.Notifier != nil {
		a.Notifier.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
