package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultFinnhubURL = "https://finnhub.io/api/v1"
	maxHeadlines      = 10
)

type finnhubNews struct {
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Finnhub fetches recent company news.
type Finnhub struct {
	client *resty.Client
	apiKey string
	window time.Duration
	now    func() time.Time
}

func NewFinnhub(baseURL, apiKey string) *Finnhub {
	if baseURL == "" {
		baseURL = defaultFinnhubURL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)

	return &Finnhub{
		client: client,
		apiKey: apiKey,
		window: 7 * 24 * time.Hour,
		now:    time.Now,
	}
}

// Headlines returns up to ten headlines from the last week. Without an API
// key it returns nothing rather than failing.
func (f *Finnhub) Headlines(ctx context.Context, symbol string) ([]Headline, error) {
	if f.apiKey == "" {
		return nil, nil
	}
	symbol = normalize(symbol)
	to := f.now()
	from := to.Add(-f.window)

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"from":   from.Format("2006-01-02"),
			"to":     to.Format("2006-01-02"),
			"token":  f.apiKey,
		}).
		Get("/company-news")
	if err != nil {
		return nil, fmt.Errorf("fetch news for %s: %w", symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("finnhub %d: %s", resp.StatusCode(), resp.String())
	}

	var raw []finnhubNews
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("parse news response: %w", err)
	}

	out := make([]Headline, 0, min(len(raw), maxHeadlines))
	for _, n := range raw {
		if len(out) == maxHeadlines {
			break
		}
		out = append(out, Headline{
			Headline:  n.Headline,
			Summary:   n.Summary,
			Source:    n.Source,
			URL:       n.URL,
			Published: time.Unix(n.DateTime, 0).UTC(),
		})
	}
	return out, nil
}
