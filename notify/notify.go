// Package notify delivers trade, analysis and alert messages to whatever
// channels are configured. Delivery is best effort.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shreyanshxt/FinSight/logger"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Kind string

const (
	KindMessage  Kind = "message"
	KindTrade    Kind = "trade"
	KindAnalysis Kind = "analysis"
)

type Event struct {
	Kind    Kind      `json:"kind"`
	Level   Level     `json:"level"`
	Symbol  string    `json:"symbol,omitempty"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"timestamp"`
}

// Sink is what the rest of FinSight talks to. Calls never block on delivery
// and never fail.
type Sink interface {
	Notify(msg string, level Level)
	NotifyTrade(symbol, side string, qty int64, note string)
	NotifyAnalysis(symbol, signal, note string)
}

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, evt Event) error
	Name() string
}

// Service fans every event out to its senders concurrently.
type Service struct {
	senders []Sender
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewService(senders ...Sender) *Service {
	return &Service{
		senders: senders,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

func (s *Service) Notify(msg string, level Level) {
	s.send(Event{Kind: KindMessage, Level: level, Title: "FinSight", Message: msg})
}

func (s *Service) NotifyTrade(symbol, side string, qty int64, note string) {
	s.send(Event{
		Kind:    KindTrade,
		Level:   LevelSuccess,
		Symbol:  symbol,
		Title:   fmt.Sprintf("Trade executed: %s %d %s", side, qty, symbol),
		Message: note,
	})
}

func (s *Service) NotifyAnalysis(symbol, signal, note string) {
	s.send(Event{
		Kind:    KindAnalysis,
		Level:   LevelInfo,
		Symbol:  symbol,
		Title:   fmt.Sprintf("Analysis %s: %s", symbol, signal),
		Message: note,
	})
}

func (s *Service) send(evt Event) {
	evt.Time = s.now()
	for _, snd := range s.senders {
		s.wg.Add(1)
		go func(snd Sender) {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			if err := snd.Send(ctx, evt); err != nil {
				logger.Warn("notify: %s delivery failed: %v", snd.Name(), err)
			}
		}(snd)
	}
}

// Wait blocks until every in-flight delivery has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(string, Level)                      {}
func (Nop) NotifyTrade(string, string, int64, string) {}
func (Nop) NotifyAnalysis(string, string, string)     {}
