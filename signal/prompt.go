package signal

import (
	"encoding/json"
	"fmt"

	"github.com/shreyanshxt/FinSight/market"
)

const systemPrompt = `You are an experienced equity and crypto technical analyst.
Analyze the market data you are given and answer with a single JSON object and nothing else.
The object must contain:
  "signal": one of "BUY", "SELL" or "HOLD".
  "risk_score": a number from 1 (safe) to 10 (extreme volatility or danger).
  "stop_loss": the price at which to exit if the trade goes against us, based on support levels.
  "reasoning": one short paragraph referring to the indicators, the risk profile and the news.`

const followUpPrompt = "Analyze and provide a JSON response with 'signal', 'risk_score', 'stop_loss', and 'reasoning' keys."

type promptContext struct {
	Ticker string            `json:"ticker"`
	Market market.Snapshot   `json:"market"`
	News   []market.Headline `json:"news,omitempty"`
}

func userPrompt(req Request) (string, error) {
	body, err := json.Marshal(promptContext{Ticker: req.Symbol, Market: req.Market, News: req.News})
	if err != nil {
		return "", fmt.Errorf("encode market context: %w", err)
	}
	return fmt.Sprintf("Analyze %s based on this data: %s", req.Symbol, body), nil
}
