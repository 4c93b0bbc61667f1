// Package notifier provides concrete model.Notifier implementations. The
// real chat-platform client (slash commands, channel resolution) remains
// an external collaborator; these stand in for it during development and
// in deployments that only need a webhook relay.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"x2discord/internal/logging"
)

// LoggingNotifier records every send as a structured log line instead of
// delivering it anywhere. Used when no webhook URL is configured.
type LoggingNotifier struct {
	log *logging.Logger
}

// NewLoggingNotifier constructs a LoggingNotifier against logger, or the
// global logger when nil.
func NewLoggingNotifier(logger *logging.Logger) *LoggingNotifier {
	if logger == nil {
		logger = logging.L()
	}
	return &LoggingNotifier{log: logger}
}

// Send logs the notification at Info level and never fails.
func (n *LoggingNotifier) Send(channelID int64, threadID int64, account string, text string, link string) error {
	n.log.Info("notify",
		logging.String("channel_id", strconv.FormatInt(channelID, 10)),
		logging.String("thread_id", strconv.FormatInt(threadID, 10)),
		logging.String("account", account),
		logging.String("link", link),
	)
	return nil
}

// WebhookNotifier POSTs a JSON payload to a configured webhook URL,
// standing in for the out-of-scope chat-platform client.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// NewWebhookNotifier constructs a WebhookNotifier targeting url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	ChannelID int64  `json:"channel_id"`
	ThreadID  int64  `json:"thread_id,omitempty"`
	Account   string `json:"account"`
	Text      string `json:"text"`
	Link      string `json:"link"`
}

// Send POSTs the notification and returns an error on any non-2xx
// response or transport failure. The poll engine logs and tolerates this
// failure per the SendFailed error kind and records no dedup key for the
// entry; the watermark has already moved past it, so later polls do not
// send it again.
func (n *WebhookNotifier) Send(channelID int64, threadID int64, account string, text string, link string) error {
	body, err := json.Marshal(webhookPayload{
		ChannelID: channelID,
		ThreadID:  threadID,
		Account:   account,
		Text:      text,
		Link:      link,
	})
	if err != nil {
		return fmt.Errorf("notifier: encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notifier: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
