package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EventKind classifies operator notifications.
type EventKind string

const (
	// EventCycleFailed fires when a cycle reaches the FAILED state.
	EventCycleFailed EventKind = "cycle_failed"
	// EventVeto fires when the reviewer vetoes a forecast.
	EventVeto EventKind = "veto"
	// EventMetaRule fires when the analyzer mints a new meta-rule.
	EventMetaRule EventKind = "meta_rule"
)

// Event carries the context of one operator notification.
type Event struct {
	Kind       EventKind
	Timeframe  string
	ForecastID string
	Detail     string
	At         time.Time
}

// Notifier dispatches operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// TelegramNotifier pushes events to a Telegram chat.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram channel.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the event text via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(event),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("kind", string(event.Kind)).
		Str("timeframe", event.Timeframe).
		Str("forecast_id", event.ForecastID).
		Msg("operator alert sent")
	return nil
}

func renderMessage(event Event) string {
	builder := strings.Builder{}
	switch event.Kind {
	case EventCycleFailed:
		builder.WriteString("[BTC Predictor] Cycle FAILED\n")
	case EventVeto:
		builder.WriteString("[BTC Predictor] Reviewer veto\n")
	case EventMetaRule:
		builder.WriteString("[BTC Predictor] New meta-rule\n")
	default:
		builder.WriteString("[BTC Predictor]\n")
	}
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", event.At.UTC().Format(time.RFC3339)))
	if event.Timeframe != "" {
		builder.WriteString(fmt.Sprintf("Timeframe: %s\n", event.Timeframe))
	}
	if event.ForecastID != "" {
		builder.WriteString(fmt.Sprintf("Forecast: %s\n", event.ForecastID))
	}
	if event.Detail != "" {
		builder.WriteString(event.Detail)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
