package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"signals-platform/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs outgoing messages instead of sending them. Used when no bot token is configured.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "telegram_noop").Logger()
	return &NoopBotAdapter{log: &l}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Debug().Int64("chat_id", chatID).Str("text", text).Msg("message not sent")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Debug().Int64("chat_id", chatID).Str("text", text).Int("button_rows", len(rows)).Msg("message not sent")
	return nil
}

func (b *NoopBotAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return nil
}
