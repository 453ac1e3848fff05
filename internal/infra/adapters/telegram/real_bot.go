package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/infra/worker"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// CallbackEvent is an inline button press, stripped of the tgbotapi types.
type CallbackEvent struct {
	ID       string
	ChatID   int64
	FromID   int64
	Username string
	Data     string
}

type CallbackHandler interface {
	HandleCallback(ctx context.Context, ev CallbackEvent) error
}

// RealTelegramBotAdapter sends admin messages and polls for inline button presses.
type RealTelegramBotAdapter struct {
	bot           *tgbotapi.BotAPI
	log           *zerolog.Logger
	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(token string, updateWorkers int, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if updateWorkers <= 0 {
		updateWorkers = 2
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "telegram").Str("bot", bot.Self.UserName).Logger()
	return &RealTelegramBotAdapter{bot: bot, log: &l, updateWorkers: updateWorkers}, nil
}

// StartPolling blocks until ctx is cancelled, handing callback queries to h.
// Plain messages are ignored; the bot only serves admin buttons.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, h CallbackHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"callback_query"}
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	pool := worker.NewPool("telegram_callbacks", r.updateWorkers, 100, r.log)
	pool.Start(ctx)

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			pool.Stop()
			return ctx.Err()
		case up := <-updates:
			ev, ok := callbackEvent(up)
			if !ok {
				continue
			}
			err := pool.Submit(func(ctx context.Context) error { return h.HandleCallback(ctx, ev) })
			if err != nil {
				r.log.Warn().Err(err).Str("data", ev.Data).Msg("callback dropped")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func callbackEvent(up tgbotapi.Update) (CallbackEvent, bool) {
	q := up.CallbackQuery
	if q == nil || q.From == nil {
		return CallbackEvent{}, false
	}
	ev := CallbackEvent{
		ID:       q.ID,
		FromID:   q.From.ID,
		Username: q.From.UserName,
		Data:     strings.TrimSpace(q.Data),
	}
	if q.Message != nil && q.Message.Chat != nil {
		ev.ChatID = q.Message.Chat.ID
	} else {
		ev.ChatID = q.From.ID
	}
	return ev, true
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := r.bot.Send(msg)
	return err
}

// SendButtons sends a message with inline buttons.
// A button with a URL opens the link, otherwise it sends Data (or its label) as callback data.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard(rows)
	_, err := r.bot.Send(msg)
	return err
}

func keyboard(rows [][]adapter.InlineButton) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, kr)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}

// AnswerCallback stops the client spinner, optionally with a short notice.
func (r *RealTelegramBotAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}
