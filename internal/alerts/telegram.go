package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"pumpguard/internal/domain"
)

// MessageSender is the part of *bot.Bot the Telegram sink uses.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramSink posts alerts to a chat with Markdown formatting.
type TelegramSink struct {
	sender  MessageSender
	chatID  string
	limiter *rate.Limiter // nil = unlimited
}

// NewTelegramBot builds a bot client for token. It does not start polling.
func NewTelegramBot(token string, opts ...bot.Option) (*bot.Bot, error) {
	b, err := bot.New(token, append([]bot.Option{bot.WithSkipGetMe()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

// NewTelegramSink creates a sink. perMinute caps deliveries; 0 means unlimited.
func NewTelegramSink(sender MessageSender, chatID string, perMinute int) *TelegramSink {
	s := &TelegramSink{sender: sender, chatID: chatID}
	if perMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return s
}

// Name implements Sink.
func (s *TelegramSink) Name() string { return "telegram" }

// Deliver implements Sink.
func (s *TelegramSink) Deliver(ctx context.Context, a domain.Alert) error {
	if s.limiter != nil && !s.limiter.Allow() {
		return ErrRateLimited
	}
	_, err := s.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             s.chatID,
		Text:               FormatTelegram(a),
		ParseMode:          models.ParseModeMarkdownV1,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatTelegram renders an alert as "{emoji} *{title}*\n\n{message}".
func FormatTelegram(a domain.Alert) string {
	return fmt.Sprintf("%s *%s*\n\n%s", Emoji(a.Kind), a.Title, a.Message)
}

// Emoji returns the marker prefix for an alert kind.
func Emoji(kind domain.AlertKind) string {
	switch kind {
	case domain.AlertRug:
		return "🚨"
	case domain.AlertWhaleBuy:
		return "🐋📈"
	case domain.AlertWhaleSell:
		return "🐋📉"
	case domain.AlertNewToken:
		return "🆕"
	case domain.AlertSuspicious:
		return "⚠️"
	default:
		return "📢"
	}
}
