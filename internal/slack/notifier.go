// Package slack posts plain-text messages to an incoming webhook.
package slack

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier posts messages to an incoming webhook.
type Notifier struct {
	http       *resty.Client
	webhookURL string
}

// NewNotifier returns a Notifier for webhookURL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		http:       resty.New().SetTimeout(15 * time.Second),
		webhookURL: webhookURL,
	}
}

type message struct {
	Text string `json:"text"`
}

// Post sends text to the webhook.
func (n *Notifier) Post(ctx context.Context, text string) error {
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(message{Text: text}).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("posting to webhook: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
