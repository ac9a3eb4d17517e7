// Package api serves the dashboard's HTTP interface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shreyanshxt/FinSight/agent"
	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/config"
	"github.com/shreyanshxt/FinSight/journal"
	"github.com/shreyanshxt/FinSight/logger"
	"github.com/shreyanshxt/FinSight/market"
)

// AgentConfigStore reads and patches the agent configuration.
// config.AgentManager satisfies it.
type AgentConfigStore interface {
	Load() config.Agent
	Update(config.AgentPatch) (config.Agent, error)
}

// Runner runs one decision cycle for a ticker. agent.Engine satisfies it.
type Runner interface {
	RunOnce(ctx context.Context, symbol string) agent.Outcome
}

type Deps struct {
	Broker      broker.Broker
	Journal     journal.Journal
	Oracle      market.Oracle
	Signals     agent.SignalProvider
	AgentConfig AgentConfigStore
	Engine      Runner
}

type Server struct {
	d      Deps
	router *gin.Engine
	srv    *http.Server
}

func NewServer(addr string, d Deps) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger.GetLevel() <= logger.DEBUG), allowAllOrigins())

	s := &Server{d: d, router: r}
	s.routes()
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute, // analysis can wait on a slow model
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	r := s.router
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/account", s.account)
	r.POST("/trade", s.trade)
	r.GET("/trades", s.trades)
	r.GET("/performance", s.performance)

	r.GET("/market/status/:ticker", s.marketStatus)
	r.POST("/analyze", s.analyze)

	ag := r.Group("/agent")
	ag.POST("/allocation", s.setAllocation)
	ag.GET("/config", s.agentConfig)
	ag.POST("/config", s.updateAgentConfig)
	ag.POST("/run/:ticker", s.runAgent)
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("api: listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("api: server stopped")
	return nil
}
