package signal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
)

type Provider string

const (
	ProviderOllama   Provider = "ollama"
	ProviderOpenAI   Provider = "openai"
	ProviderGemini   Provider = "gemini"
	ProviderDeepSeek Provider = "deepseek"
)

const (
	DefaultOllamaURL = "http://localhost:11434/v1"
	DefaultOpenAIURL = "https://api.openai.com/v1"
	DefaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

var openAIReasoning = regexp.MustCompile(`^o\d`)

// ProviderFor picks the backend that serves a model name. Anything not
// recognised is assumed to be a local Ollama model.
func ProviderFor(name string) Provider {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(n, "deepseek"):
		return ProviderDeepSeek
	case strings.Contains(n, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(n, "gpt-"), openAIReasoning.MatchString(n):
		return ProviderOpenAI
	}
	return ProviderOllama
}

// Endpoints carries provider URLs and credentials.
type Endpoints struct {
	OllamaURL   string
	OpenAIURL   string
	GeminiURL   string
	OpenAIKey   string
	GeminiKey   string
	DeepSeekKey string
	Timeout     time.Duration
}

type buildFunc func(ctx context.Context, p Provider, name string) (Generator, error)

// Registry hands out one Source per model name, building it on first use.
type Registry struct {
	mu      sync.Mutex
	ep      Endpoints
	sources map[string]Source
	build   buildFunc
}

func NewRegistry(ep Endpoints) *Registry {
	r := &Registry{ep: ep, sources: make(map[string]Source)}
	r.build = r.newGenerator
	return r
}

// Register pins a Source to a model name, replacing any cached one.
func (r *Registry) Register(name string, s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = s
}

func (r *Registry) Get(ctx context.Context, name string) (Source, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("model name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[name]; ok {
		return s, nil
	}
	gen, err := r.build(ctx, ProviderFor(name), name)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	s := NewLLMSource(name, gen, r.ep.Timeout)
	r.sources[name] = s
	return s, nil
}

func (r *Registry) newGenerator(ctx context.Context, p Provider, name string) (Generator, error) {
	switch p {
	case ProviderDeepSeek:
		if r.ep.DeepSeekKey == "" {
			return nil, fmt.Errorf("DEEPSEEK_API_KEY is not set")
		}
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    r.ep.DeepSeekKey,
			Model:     name,
			MaxTokens: 2000,
		})
	case ProviderGemini:
		if r.ep.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  r.ep.GeminiKey,
			BaseURL: orDefault(r.ep.GeminiURL, DefaultGeminiURL),
			Model:   name,
			Timeout: r.ep.Timeout,
		})
	case ProviderOpenAI:
		if r.ep.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  r.ep.OpenAIKey,
			BaseURL: orDefault(r.ep.OpenAIURL, DefaultOpenAIURL),
			Model:   name,
			Timeout: r.ep.Timeout,
		})
	default:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  "ollama",
			BaseURL: OllamaBaseURL(r.ep.OllamaURL),
			Model:   name,
			Timeout: r.ep.Timeout,
		})
	}
}

// OllamaBaseURL normalises a configured Ollama address to its
// OpenAI-compatible /v1 root.
func OllamaBaseURL(u string) string {
	u = strings.TrimRight(orDefault(u, DefaultOllamaURL), "/")
	if !strings.HasSuffix(u, "/v1") {
		u += "/v1"
	}
	return u
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
