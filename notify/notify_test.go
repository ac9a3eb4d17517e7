package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) Send(ctx context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func TestServiceFansOut(t *testing.T) {
	t.Parallel()

	a, b := &recordingSender{}, &recordingSender{err: errors.New("down")}
	s := NewService(a, b, LogSender{})

	s.NotifyTrade("AAPL", "buy", 3, "Risk 4/10")
	s.NotifyAnalysis("AAPL", "BUY", "looks good")
	s.Notify("PANIC SELL: AAPL", LevelError)
	s.Wait()

	for _, r := range []*recordingSender{a, b} {
		require.Len(t, r.events, 3)
	}

	kinds := map[Kind]Event{}
	for _, e := range a.events {
		kinds[e.Kind] = e
	}
	assert.Equal(t, "Trade executed: buy 3 AAPL", kinds[KindTrade].Title)
	assert.Equal(t, LevelError, kinds[KindMessage].Level)
	assert.Equal(t, "AAPL", kinds[KindAnalysis].Symbol)
}

func TestWebhookPostsEvent(t *testing.T) {
	t.Parallel()

	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w, err := NewWebhook(srv.URL)
	require.NoError(t, err)
	require.NoError(t, w.Send(context.Background(), Event{Kind: KindTrade, Title: "t", Symbol: "NVDA"}))
	assert.Equal(t, "NVDA", got.Symbol)
}

func TestSlackReportsErrorStatus(t *testing.T) {
	t.Parallel()

	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s, err := NewSlack(srv.URL)
	require.NoError(t, err)
	err = s.Send(context.Background(), Event{Level: LevelError, Title: "PANIC", Message: "sold"})
	assert.ErrorContains(t, err, "400")
	assert.Equal(t, ":rotating_light: *PANIC*\nsold", body["text"])
}

func TestSendersRequireURL(t *testing.T) {
	t.Parallel()

	_, err := NewWebhook("")
	assert.Error(t, err)
	_, err = NewSlack("")
	assert.Error(t, err)
}
