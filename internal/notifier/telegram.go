package notifier

import (
	"errors"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"github.com/boylston-chess/bcf-monitor/internal/report"
)

// telegramMessageLimit is the Bot API's maximum message length.
const telegramMessageLimit = 4096

// Telegram sends the report's text rendering to a single chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram notifier: token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Notify sends the text report, truncated to the Bot API limit.
func (t *Telegram) Notify(rep *report.Report, _ time.Time) error {
	msg := tgbotapi.NewMessage(t.chatID, truncateMessage(rep.Text))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return &SendError{Notifier: t.Name(), Err: err}
	}
	return nil
}

// truncateMessage caps the text at the Bot API byte limit without cutting
// through a multi-byte rune.
func truncateMessage(s string) string {
	if len(s) <= telegramMessageLimit {
		return s
	}
	cut := telegramMessageLimit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
