package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/shreyanshxt/FinSight/logger"
	"github.com/shreyanshxt/FinSight/metrics"
)

const DefaultTimeout = 90 * time.Second

// Generator is the slice of an eino chat model that LLMSource needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// LLMSource prompts a chat model and decodes its reply.
type LLMSource struct {
	name    string
	gen     Generator
	timeout time.Duration
}

func NewLLMSource(name string, gen Generator, timeout time.Duration) *LLMSource {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LLMSource{name: name, gen: gen, timeout: timeout}
}

func (s *LLMSource) Name() string { return s.name }

func (s *LLMSource) Recommend(ctx context.Context, req Request) (Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := userPrompt(req)
	if err != nil {
		return Recommendation{}, err
	}
	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(user),
	}

	content, err := s.generate(ctx, msgs)
	if err != nil {
		return Recommendation{}, err
	}
	if !strings.Contains(content, "{") {
		logger.Debug("signal: %s reply for %s had no json, asking again", s.name, req.Symbol)
		msgs = append(msgs, schema.AssistantMessage(content, nil), schema.UserMessage(followUpPrompt))
		if content, err = s.generate(ctx, msgs); err != nil {
			return Recommendation{}, err
		}
	}

	rec := Decode(content)
	rec.Model = s.name
	metrics.RecordSignal(s.name, string(rec.Signal), rec.Decoder)
	return rec, nil
}

func (s *LLMSource) generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	reply, err := s.gen.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", s.name, err)
	}
	if reply == nil {
		return "", fmt.Errorf("%s generate: empty reply", s.name)
	}
	return reply.Content, nil
}
