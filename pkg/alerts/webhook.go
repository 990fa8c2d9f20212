package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EventNotificationCreated is the event name carried by webhook deliveries.
const EventNotificationCreated = "notification.created"

// SignatureHeader carries the HMAC-SHA256 of the request body when a secret is set.
const SignatureHeader = "X-Signature-256"

// WebhookNotifier posts alerts as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook notifier.
// If secret is non-empty, requests are signed with HMAC-SHA256.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	sentAt := alert.CreatedAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	body, err := json.Marshal(webhookPayload{
		Event:     EventNotificationCreated,
		Timestamp: sentAt.UTC().Format(time.RFC3339),
		Alert:     alert,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "finalert/1.0")
	req.Header.Set("X-Finalert-Event", EventNotificationCreated)
	if w.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(body, w.secret))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type webhookPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Alert     Alert  `json:"alert"`
}

// Sign returns the hex HMAC-SHA256 of body keyed with secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
