// Package notify sends run summaries to a Telegram chat.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gleaner/engine"
)

// Notifier posts collection summaries to one chat. A nil Notifier is
// valid and does nothing, so callers need no guard when notification
// is not configured.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

// New connects to the bot API. Returns an error when the token is
// rejected.
func New(token string, chatID int64, log *slog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	log.Info("telegram notifier ready", "bot", api.Self.UserName, "chat_id", chatID)
	return &Notifier{api: api, chatID: chatID, log: log}, nil
}

// RunFinished sends the end-of-run summary. runErr, when non-nil, turns
// the message into a failure report.
func (n *Notifier) RunFinished(runID string, sum engine.Summary, runErr error) {
	if n == nil {
		return
	}
	text := formatSummary(runID, sum, runErr)
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "HTML"
	if _, err := n.api.Send(msg); err != nil {
		n.log.Warn("telegram send failed", "error", err)
	}
}

func formatSummary(runID string, sum engine.Summary, runErr error) string {
	var b strings.Builder
	if runErr != nil {
		b.WriteString("❌ <b>Collection run failed</b>\n")
	} else {
		b.WriteString("✅ <b>Collection run finished</b>\n")
	}
	fmt.Fprintf(&b, "Run: <code>%s</code>\n", runID)
	fmt.Fprintf(&b, "Dates: %d (skipped %d)\n", sum.Dates, sum.Skipped)
	fmt.Fprintf(&b, "Items saved: %d\n", sum.Items)
	if sum.Restarts > 0 {
		fmt.Fprintf(&b, "Session restarts: %d\n", sum.Restarts)
	}
	if !sum.Finished.IsZero() {
		fmt.Fprintf(&b, "Duration: %s\n", sum.Finished.Sub(sum.Started).Round(time.Second))
	}
	if runErr != nil {
		fmt.Fprintf(&b, "Error: %s\n", runErr)
	}
	return b.String()
}
