package signal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStrict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Recommendation
	}{
		{
			name: "plain object",
			in:   `{"signal":"BUY","risk_score":3,"stop_loss":142.5,"reasoning":"RSI recovering"}`,
			want: Recommendation{Signal: Buy, RiskScore: 3, StopLoss: 142.5, Reasoning: "RSI recovering", Decoder: DecoderStrict},
		},
		{
			name: "wrapped in prose and fences",
			in:   "Here you go:\n```json\n{\"signal\": \"sell\", \"risk_score\": \"8\", \"stop_loss\": \"$99.10\", \"reasoning\": \"breakdown\"}\n```",
			want: Recommendation{Signal: Sell, RiskScore: 8, StopLoss: 99.10, Reasoning: "breakdown", Decoder: DecoderStrict},
		},
		{
			name: "bad numbers fall back to defaults",
			in:   `{"signal":"HOLD","risk_score":"high","stop_loss":"n/a"}`,
			want: Recommendation{Signal: Hold, RiskScore: 5, Decoder: DecoderStrict},
		},
		{
			name: "score clamped",
			in:   `{"signal":"BUY","risk_score":14,"stop_loss":-3}`,
			want: Recommendation{Signal: Buy, RiskScore: 10, Decoder: DecoderStrict},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeStrict(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeStrictErrors(t *testing.T) {
	t.Parallel()

	_, err := DecodeStrict("I would buy this stock")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = DecodeStrict(`{"risk_score": 4}`)
	assert.ErrorIs(t, err, ErrMissingSignal)

	_, err = DecodeStrict(`{"signal": "STRONG BUY"}`)
	assert.ErrorIs(t, err, ErrInvalidSignal)

	_, err = DecodeStrict(`{"signal": BUY}`)
	assert.Error(t, err)
}

func TestDecodeHeuristic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Buy, DecodeHeuristic("I would buy, not sell").Signal)
	assert.Equal(t, Sell, DecodeHeuristic("time to Sell").Signal)
	assert.Equal(t, Hold, DecodeHeuristic("unclear picture").Signal)

	long := strings.Repeat("x", 500)
	rec := DecodeHeuristic(long)
	assert.Len(t, rec.Reasoning, 200)
	assert.Equal(t, 5, rec.RiskScore)
	assert.Equal(t, DecoderHeuristic, rec.Decoder)
}

func TestDecodeFallsBack(t *testing.T) {
	t.Parallel()

	rec := Decode(`{"verdict": "SELL"}`)
	assert.Equal(t, Sell, rec.Signal)
	assert.Equal(t, DecoderHeuristic, rec.Decoder)

	rec = Decode(`{"signal":"HOLD","risk_score":2}`)
	assert.Equal(t, DecoderStrict, rec.Decoder)
	assert.Equal(t, 2, rec.RiskScore)
}

func TestParseAndSide(t *testing.T) {
	t.Parallel()

	s, ok := Parse(" buy ")
	require.True(t, ok)
	side, ok := s.Side()
	assert.True(t, ok)
	assert.Equal(t, "buy", string(side))

	_, ok = Hold.Side()
	assert.False(t, ok)
	_, ok = Parse("maybe")
	assert.False(t, ok)
}
