package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shreyanshxt/FinSight/logger"
)

// LogSender writes events to the process log.
type LogSender struct{}

func (LogSender) Name() string { return "log" }

func (LogSender) Send(ctx context.Context, evt Event) error {
	line := fmt.Sprintf("notify: %s | %s", evt.Title, evt.Message)
	switch evt.Level {
	case LevelError:
		logger.Error("%s", line)
	case LevelWarning:
		logger.Warn("%s", line)
	default:
		logger.Info("%s", line)
	}
	return nil
}

// Webhook posts the raw event as JSON.
type Webhook struct {
	url    string
	client *resty.Client
}

func NewWebhook(url string) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url is not configured")
	}
	return &Webhook{url: url, client: resty.New().SetTimeout(3 * time.Second)}, nil
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, evt Event) error {
	return postJSON(ctx, w.client, w.url, evt)
}

// Slack posts a one-line text message to an incoming webhook.
type Slack struct {
	url    string
	client *resty.Client
}

func NewSlack(url string) (*Slack, error) {
	if url == "" {
		return nil, fmt.Errorf("slack webhook url is not configured")
	}
	return &Slack{url: url, client: resty.New().SetTimeout(3 * time.Second)}, nil
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, evt Event) error {
	return postJSON(ctx, s.client, s.url, map[string]string{"text": slackText(evt)})
}

func slackText(evt Event) string {
	icon := ":information_source:"
	switch evt.Level {
	case LevelSuccess:
		icon = ":white_check_mark:"
	case LevelWarning:
		icon = ":warning:"
	case LevelError:
		icon = ":rotating_light:"
	}
	if evt.Message == "" {
		return fmt.Sprintf("%s *%s*", icon, evt.Title)
	}
	return fmt.Sprintf("%s *%s*\n%s", icon, evt.Title, evt.Message)
}

func postJSON(ctx context.Context, c *resty.Client, url string, body any) error {
	resp, err := c.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return nil
}
