package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/telemetry"
)

// Notifier forwards level alerts to a telegram chat.
type Notifier struct {
	client Client
	apiKey string
	chatID string
	queue  chan string
	logger zerolog.Logger
}

func NewNotifier(client Client, apiKey, chatID string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		client: client,
		apiKey: apiKey,
		chatID: chatID,
		queue:  make(chan string, 32),
		logger: logger.With().Str("pkg", "telegram").Logger(),
	}
}

// Notify queues the alert. Alerts are dropped when the queue is full.
func (n *Notifier) Notify(alert telemetry.Alert) {
	select {
	case n.queue <- AlertText(alert):
	default:
		n.logger.Warn().Str("id", alert.ID).Msg("notification queue is full")
	}
}

// Send queues a free form message.
func (n *Notifier) Send(text string) {
	select {
	case n.queue <- text:
	default:
		n.logger.Warn().Msg("notification queue is full")
	}
}

// Run delivers queued messages until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			sendCtx, cancel := context.WithTimeout(n.logger.WithContext(ctx), 10*time.Second)
			if err := n.client.SendMessageViaHTTP(sendCtx, n.apiKey, n.chatID, text); err != nil {
				n.logger.Error().Err(err).Msg("can't notify telegram")
			}
			cancel()
		}
	}
}

// AlertText renders alert for humans.
func AlertText(alert telemetry.Alert) string {
	switch alert.Band {
	case model.BandLow:
		return fmt.Sprintf("%s (%s) is low: %d%% (threshold %d%%)", alert.Name, alert.ID, alert.Level, alert.Threshold)
	case model.BandFull:
		return fmt.Sprintf("%s (%s) is full: %d%%", alert.Name, alert.ID, alert.Level)
	default:
		return fmt.Sprintf("%s (%s): %d%%", alert.Name, alert.ID, alert.Level)
	}
}
