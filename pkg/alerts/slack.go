package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

// SlackNotifier sends alerts to a Slack webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, alert Alert) error {
	fields := []slackField{
		{Title: "Priority", Value: string(alert.Priority), Short: true},
		{Title: "Category", Value: alert.Category, Short: true},
	}
	if alert.RuleName != "" {
		fields = append(fields, slackField{Title: "Rule", Value: alert.RuleName, Short: true})
	}
	if alert.ActionURL != "" {
		fields = append(fields, slackField{Title: "Link", Value: alert.ActionURL, Short: true})
	}

	payload := slackPayload{
		Channel: s.channel,
		Attachments: []slackAttachment{
			{
				Color:  priorityColor(alert.Priority),
				Title:  alert.Title,
				Text:   alert.Message,
				Fields: fields,
				Footer: "finalert",
				Ts:     alert.CreatedAt.Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

func priorityColor(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "#cc0000" // red
	case model.PriorityNormal:
		return "#ff9900" // orange
	default:
		return "#36a64f" // green
	}
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
