package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderFor(t *testing.T) {
	t.Parallel()

	tests := map[string]Provider{
		"llama3.1":          ProviderOllama,
		"mistral":           ProviderOllama,
		"deepseek-chat":     ProviderDeepSeek,
		"gemini-2.0-flash":  ProviderGemini,
		"models/Gemini-1.5": ProviderGemini,
		"gpt-4o-mini":       ProviderOpenAI,
		"o3-mini":           ProviderOpenAI,
		"orca-mini":         ProviderOllama,
	}
	for name, want := range tests {
		assert.Equal(t, want, ProviderFor(name), name)
	}
}

func TestRegistryCachesPerModel(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Endpoints{})
	built := map[string]int{}
	r.build = func(ctx context.Context, p Provider, name string) (Generator, error) {
		built[name]++
		return &scriptedGenerator{}, nil
	}

	a, err := r.Get(context.Background(), "llama3.1")
	require.NoError(t, err)
	b, err := r.Get(context.Background(), "llama3.1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "llama3.1", a.Name())

	_, err = r.Get(context.Background(), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"llama3.1": 1, "gpt-4o": 1}, built)
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Endpoints{})
	_, err := r.Get(context.Background(), "deepseek-chat")
	assert.ErrorContains(t, err, "DEEPSEEK_API_KEY")
	_, err = r.Get(context.Background(), "gpt-4o")
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
	_, err = r.Get(context.Background(), " ")
	assert.Error(t, err)

	r.build = func(ctx context.Context, p Provider, name string) (Generator, error) {
		return nil, errors.New("boom")
	}
	_, err = r.Get(context.Background(), "llama3")
	assert.ErrorContains(t, err, "boom")
}

func TestRegistryRegisterOverrides(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Endpoints{})
	r.Register("fixed", Static{Rec: Recommendation{Signal: Buy}})
	s, err := r.Get(context.Background(), "fixed")
	require.NoError(t, err)
	assert.Equal(t, "static", s.Name())
}

func TestOllamaBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultOllamaURL, OllamaBaseURL(""))
	assert.Equal(t, "http://gpu:11434/v1", OllamaBaseURL("http://gpu:11434/"))
	assert.Equal(t, "http://gpu:11434/v1", OllamaBaseURL("http://gpu:11434/v1"))
}
