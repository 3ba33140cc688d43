package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram sends text messages to one chat. The bot client is created on
// the first Notify so a run without notifications never touches the API.
type Telegram struct {
	token    string
	chatID   int64
	endpoint string
	api      *tgbotapi.BotAPI
}

// TelegramOption configures a Telegram notifier.
type TelegramOption func(*Telegram)

// WithTelegramEndpoint sets the API endpoint format (for testing). It takes
// the same form as tgbotapi.APIEndpoint.
func WithTelegramEndpoint(endpoint string) TelegramOption {
	return func(t *Telegram) {
		t.endpoint = endpoint
	}
}

// NewTelegram returns a Telegram notifier, or nil when the token or chat is
// missing.
func NewTelegram(token string, chatID int64, opts ...TelegramOption) *Telegram {
	if token == "" || chatID == 0 {
		return nil
	}
	t := &Telegram{
		token:    token,
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Telegram) Name() string { return "telegram" }

// Notify sends text as a plain message.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	if t.api == nil {
		api, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.token, t.endpoint)
		if err != nil {
			return fmt.Errorf("%w: init telegram bot: %w", ErrDeliveryFailed, err)
		}
		t.api = api
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("%w: send message: %w", ErrDeliveryFailed, err)
	}
	return nil
}
