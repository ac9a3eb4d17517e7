package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shreyanshxt/FinSight/risk"
)

var (
	ErrNoJSON        = errors.New("reply contains no json object")
	ErrMissingSignal = errors.New("reply json has no signal")
	ErrInvalidSignal = errors.New("reply signal is not BUY, SELL or HOLD")
)

const reasoningPrefix = 200

// Decode tries DecodeStrict and falls back to DecodeHeuristic.
func Decode(text string) Recommendation {
	if rec, err := DecodeStrict(text); err == nil {
		return rec
	}
	return DecodeHeuristic(text)
}

// DecodeStrict extracts the outermost {...} from text and validates it.
// risk_score and stop_loss may be numbers or numeric strings; anything else
// falls back to the defaults.
func DecodeStrict(text string) (Recommendation, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Recommendation{}, ErrNoJSON
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Recommendation{}, fmt.Errorf("decode reply: %w", err)
	}
	sigRaw, ok := raw["signal"]
	if !ok {
		return Recommendation{}, ErrMissingSignal
	}
	var sigText string
	if err := json.Unmarshal(sigRaw, &sigText); err != nil {
		return Recommendation{}, fmt.Errorf("%w: %s", ErrInvalidSignal, sigRaw)
	}
	sig, ok := Parse(sigText)
	if !ok {
		return Recommendation{}, fmt.Errorf("%w: %q", ErrInvalidSignal, sigText)
	}

	rec := Recommendation{Signal: sig, RiskScore: risk.DefaultScore, Decoder: DecoderStrict}
	if f, ok := number(raw["risk_score"]); ok {
		rec.RiskScore = risk.ClampScore(f)
	}
	if f, ok := number(raw["stop_loss"]); ok && f > 0 {
		rec.StopLoss = f
	}
	if r, ok := raw["reasoning"]; ok {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			rec.Reasoning = s
		} else {
			rec.Reasoning = string(r)
		}
	}
	return rec, nil
}

// DecodeHeuristic scans for BUY, then SELL, and otherwise returns HOLD.
func DecodeHeuristic(text string) Recommendation {
	upper := strings.ToUpper(text)
	sig := Hold
	switch {
	case strings.Contains(upper, string(Buy)):
		sig = Buy
	case strings.Contains(upper, string(Sell)):
		sig = Sell
	}
	return Recommendation{
		Signal:    sig,
		RiskScore: risk.DefaultScore,
		Reasoning: prefix(text, reasoningPrefix),
		Decoder:   DecoderHeuristic,
	}
}

func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$")), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
