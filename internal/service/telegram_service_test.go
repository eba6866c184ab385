package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"glowbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTelegramService_SendMarkdown(t *testing.T) {
	sender := new(mockTelegramSender)
	svc := NewTelegramService(sender)

	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 123 && msg.Text == "*bold*" &&
			msg.ParseMode == models.ParseModeMarkdown && msg.DisableWebPagePreview
	})).Return(tgbotapi.Message{}, nil).Once()

	require.NoError(t, svc.SendMarkdown(context.Background(), 123, "*bold*"))
	sender.AssertExpectations(t)
}

func TestTelegramService_RetriesFloodControl(t *testing.T) {
	sender := new(mockTelegramSender)
	svc := NewTelegramService(sender)
	var waited []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	flood := &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}}
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, flood).Once()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	require.NoError(t, svc.SendMarkdown(context.Background(), 1, "hi"))
	assert.Equal(t, []time.Duration{3 * time.Second}, waited)
	sender.AssertExpectations(t)
}

func TestTelegramService_GivesUp(t *testing.T) {
	t.Run("PlainError", func(t *testing.T) {
		sender := new(mockTelegramSender)
		svc := NewTelegramService(sender)
		sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("bot blocked")).Once()

		assert.EqualError(t, svc.SendMarkdown(context.Background(), 1, "hi"), "bot blocked")
		sender.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("RetriesExhausted", func(t *testing.T) {
		sender := new(mockTelegramSender)
		svc := NewTelegramService(sender)
		svc.sleep = func(context.Context, time.Duration) error { return nil }
		flood := &tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 1}}
		sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, flood)

		assert.Error(t, svc.SendMarkdown(context.Background(), 1, "hi"))
		sender.AssertNumberOfCalls(t, "Send", telegramMaxRetries+1)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		sender := new(mockTelegramSender)
		svc := NewTelegramService(sender)
		flood := &tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 60}}
		sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, flood)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, svc.SendMarkdown(ctx, 1, "hi"), context.Canceled)
	})
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	chunks := splitMessage("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, chunks)

	long := strings.Repeat("x", 25)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, splitMessage(long, 10))

	for _, c := range splitMessage(strings.Repeat("line of text\n", 1000), telegramMaxMessage) {
		assert.LessOrEqual(t, len([]rune(c)), telegramMaxMessage)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `\*Nails\_and\_brows\*`, escapeMarkdown("*Nails_and_brows*"))
}
