package notify

import (
	"context"
	"fmt"
	"strings"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type messageSender interface {
	Send(c tg.Chattable) (tg.Message, error)
}

// TelegramSink sends notifications to a single Telegram chat.
type TelegramSink struct {
	bot    messageSender
	chatID int64
}

// NewTelegramSink connects to the bot API with token.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tg.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.bot.Send(tg.NewMessage(s.chatID, FormatText(n))); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// FormatText renders a notification as plain text.
func FormatText(n Notification) string {
	var b strings.Builder
	b.WriteString("⏰ " + n.Heading + "\n")
	b.WriteString(n.Title + "\n")
	fmt.Fprintf(&b, "%s · %s", n.When, n.Priority)
	if n.MaxCount > 1 {
		fmt.Fprintf(&b, " · %d/%d", n.Count, n.MaxCount)
	}
	return b.String()
}
