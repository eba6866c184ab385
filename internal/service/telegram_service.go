package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"glowbook/internal/domain"
	"glowbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// telegramMaxMessage is the Bot API limit on message text, in runes.
	telegramMaxMessage = 4096
	telegramMaxRetries = 2
)

// TelegramService delivers provider notifications through the Bot API.
type TelegramService struct {
	bot   domain.TelegramSender
	sleep func(ctx context.Context, d time.Duration) error
}

func NewTelegramService(bot domain.TelegramSender) *TelegramService {
	return &TelegramService{bot: bot, sleep: sleepContext}
}

// SendMarkdown sends text to chatID, split on line breaks into chunks that
// fit one message. Flood-control replies are retried after the delay
// Telegram asks for.
func (s *TelegramService) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, telegramMaxMessage) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = models.ParseModeMarkdown
		msg.DisableWebPagePreview = true
		if err := s.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *TelegramService) send(ctx context.Context, msg tgbotapi.Chattable) error {
	for attempt := 0; ; attempt++ {
		_, err := s.bot.Send(msg)
		if err == nil {
			return nil
		}

		var apiErr *tgbotapi.Error
		if attempt >= telegramMaxRetries || !errors.As(err, &apiErr) || apiErr.RetryAfter <= 0 {
			return err
		}
		if err := s.sleep(ctx, time.Duration(apiErr.RetryAfter)*time.Second); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// splitMessage cuts text into pieces of at most limit runes, preferring
// line boundaries.
func splitMessage(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		if curLen+len(runes) > limit {
			flush()
		}
		cur.WriteString(string(runes))
		curLen += len(runes)
	}
	flush()
	return chunks
}

// escapeMarkdown makes user-entered text safe inside a Markdown message.
func escapeMarkdown(s string) string {
	return tgbotapi.EscapeText(models.ParseModeMarkdown, s)
}
