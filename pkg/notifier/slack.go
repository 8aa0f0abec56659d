// Package notifier provides notification services for the cycle bot.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/volcycle/volcycle/pkg/engine"
)

// SlackNotifier sends notifications to a Slack channel. Delivery is best
// effort: callers log failures and never let them affect trading.
type SlackNotifier struct {
	apiToken   string
	channel    string
	httpClient *http.Client
	enabled    bool
}

// SlackConfig holds Slack configuration.
type SlackConfig struct {
	APIToken string
	Channel  string
	Enabled  bool
}

// slackMessage represents a Slack message payload.
type slackMessage struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text,omitempty"`
	Blocks  []slackBlock `json:"blocks,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewSlackNotifier creates a new Slack notifier.
func NewSlackNotifier(config *SlackConfig) *SlackNotifier {
	if config == nil || config.APIToken == "" || config.Channel == "" {
		return &SlackNotifier{enabled: false}
	}

	return &SlackNotifier{
		apiToken: config.APIToken,
		channel:  config.Channel,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		enabled: config.Enabled,
	}
}

// IsEnabled returns whether the notifier is enabled.
func (s *SlackNotifier) IsEnabled() bool {
	return s.enabled
}

// NotifyRunStart sends a notification that a wallet run is starting.
func (s *SlackNotifier) NotifyRunStart(wallet string, targetLegs int, window time.Duration, dryRun bool) error {
	if !s.enabled {
		return nil
	}

	mode := "LIVE"
	if dryRun {
		mode = "DRY RUN"
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{
				Type: "plain_text",
				Text: fmt.Sprintf("🚀 Run started: %s", wallet),
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Mode:*\n%s", mode)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Target Legs:*\n%d", targetLegs)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Window:*\n%s", window)},
			},
		},
		{
			Type: "context",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("Started at %s", time.Now().Format(time.RFC3339)),
			},
		},
	}

	return s.sendMessage(blocks, fmt.Sprintf("Run started: %s (%s, %d legs)", wallet, mode, targetLegs))
}

// NotifyRunSummary sends the final outcome of a wallet run.
func (s *SlackNotifier) NotifyRunSummary(summary *engine.Summary) error {
	if !s.enabled || summary == nil {
		return nil
	}

	var emoji, status string
	switch {
	case summary.Err != nil:
		emoji = "❌"
		status = "FATAL"
	case summary.Interrupted:
		emoji = "⏸️"
		status = "INTERRUPTED"
	default:
		emoji = "✅"
		status = "COMPLETE"
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{
				Type: "plain_text",
				Text: fmt.Sprintf("%s Run %s: %s", emoji, status, summary.Wallet),
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Legs:*\n%d", summary.CompletedLegs)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Round Trips:*\n%d", summary.Cycles)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Skipped Buys:*\n%d", summary.SkippedBuys)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Duration:*\n%s", summary.Duration.Round(time.Second))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Final State:*\n%s", summary.FinalState)},
			},
		},
	}

	if summary.Err != nil {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Error:* %s", summary.Err),
			},
		})
	}

	blocks = append(blocks, slackBlock{
		Type: "context",
		Text: &slackText{
			Type: "mrkdwn",
			Text: fmt.Sprintf("Run %s, finished at %s", summary.RunID, time.Now().Format(time.RFC3339)),
		},
	})

	return s.sendMessage(blocks, fmt.Sprintf("Run %s: %s - %d legs, %d round trips",
		status, summary.Wallet, summary.CompletedLegs, summary.Cycles))
}

// NotifyFatal sends an alert for a fatal condition that stopped a run.
func (s *SlackNotifier) NotifyFatal(wallet string, err error) error {
	if !s.enabled || err == nil {
		return nil
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{
				Type: "plain_text",
				Text: fmt.Sprintf("🚨 Fatal error: %s", wallet),
			},
		},
		{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Error:* %s\n\nThe run was stopped. Manual inspection of the wallet and state file is required.", err),
			},
		},
		{
			Type: "context",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("At %s", time.Now().Format(time.RFC3339)),
			},
		},
	}

	return s.sendMessage(blocks, fmt.Sprintf("Fatal error on %s: %v", wallet, err))
}

// sendMessage sends a message to Slack.
func (s *SlackNotifier) sendMessage(blocks []slackBlock, fallbackText string) error {
	msg := slackMessage{
		Channel: s.channel,
		Text:    fallbackText,
		Blocks:  blocks,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequest("POST", "https://slack.com/api/chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("slack API error: %s", result.Error)
	}

	return nil
}
