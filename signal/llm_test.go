package signal

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/shreyanshxt/FinSight/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]*schema.Message
}

func (g *scriptedGenerator) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, in)
	if g.err != nil {
		return nil, g.err
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	return schema.AssistantMessage(reply, nil), nil
}

func testRequest() Request {
	return Request{
		Symbol: "AAPL",
		Market: market.Snapshot{Symbol: "AAPL", Price: 187.2},
		News:   []market.Headline{{Headline: "Apple ships"}},
	}
}

func TestLLMSourceDecodesReply(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: []string{`{"signal":"BUY","risk_score":2,"stop_loss":180,"reasoning":"trend"}`}}
	src := NewLLMSource("llama3.1", gen, 0)

	rec, err := src.Recommend(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, Buy, rec.Signal)
	assert.Equal(t, 180.0, rec.StopLoss)
	assert.Equal(t, "llama3.1", rec.Model)

	require.Len(t, gen.calls, 1)
	msgs := gen.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, `"ticker":"AAPL"`)
	assert.Contains(t, msgs[1].Content, "Apple ships")
}

func TestLLMSourceAsksAgainWithoutJSON(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: []string{
		"Let me think about the chart.",
		`{"signal":"SELL","risk_score":9,"stop_loss":0,"reasoning":"weak"}`,
	}}
	src := NewLLMSource("gemini-2.0-flash", gen, 0)

	rec, err := src.Recommend(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, Sell, rec.Signal)
	assert.Equal(t, DecoderStrict, rec.Decoder)

	require.Len(t, gen.calls, 2)
	second := gen.calls[1]
	require.Len(t, second, 4)
	assert.Equal(t, schema.Assistant, second[2].Role)
	assert.Equal(t, followUpPrompt, second[3].Content)
}

func TestLLMSourceHeuristicReply(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: []string{"{ I'd say BUY }"}}
	rec, err := NewLLMSource("llama3", gen, 0).Recommend(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, Buy, rec.Signal)
	assert.Equal(t, DecoderHeuristic, rec.Decoder)
}

func TestLLMSourceError(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{err: errors.New("connection refused")}
	_, err := NewLLMSource("llama3", gen, 0).Recommend(context.Background(), testRequest())
	assert.ErrorContains(t, err, "connection refused")

	rec := Failed(err)
	assert.Equal(t, Hold, rec.Signal)
	assert.Contains(t, rec.Reasoning, "analysis failed")
}

func TestStatic(t *testing.T) {
	t.Parallel()

	rec, err := Static{}.Recommend(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, Hold, rec.Signal)

	_, err = Static{Err: errors.New("down")}.Recommend(context.Background(), testRequest())
	assert.Error(t, err)
}
