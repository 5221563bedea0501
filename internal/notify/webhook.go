package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// WebhookNotifier posts alerts as plain-text webhook messages.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify sends an alert to webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg AlertMessage) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatAlertMessage(msg)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: status %d", resp.StatusCode)
	}
	return nil
}

func formatAlertMessage(msg AlertMessage) string {
	var b strings.Builder
	title := msg.Title
	if title == "" {
		title = "RailWatch"
	}
	fmt.Fprintf(&b, "[%s]\n", title)
	if msg.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", msg.RunID)
	}
	if msg.Date != "" {
		fmt.Fprintf(&b, "Date: %s\n", msg.Date)
	}
	if len(msg.Stations) > 0 {
		fmt.Fprintf(&b, "Stations: %s\n", strings.Join(msg.Stations, ", "))
	}
	if msg.ReportURL != "" {
		fmt.Fprintf(&b, "Report URL: %s\n", msg.ReportURL)
	}
	if msg.RecommendedAction != "" {
		fmt.Fprintf(&b, "Suggested: %s\n", msg.RecommendedAction)
	}
	if len(msg.Summary) > 0 {
		if raw, err := json.Marshal(msg.Summary); err == nil {
			fmt.Fprintf(&b, "Summary: %s\n", string(raw))
		}
	}
	if len(msg.Meta) > 0 {
		keys := make([]string, 0, len(msg.Meta))
		for key := range msg.Meta {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "%s: %s\n", key, msg.Meta[key])
		}
	}
	return strings.TrimSpace(b.String())
}
