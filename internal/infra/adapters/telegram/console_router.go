package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/infra/logging"
	"signals-platform/internal/usecase"
)

var _ CallbackHandler = (*ConsoleRouter)(nil)

type sessionSource interface {
	SID(ctx context.Context) (string, error)
}

type limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ConsoleRouter routes the Validate / Cancel buttons of admin chats into the payment console.
type ConsoleRouter struct {
	bot      adapter.TelegramBotAdapter
	console  usecase.ConsoleUseCase
	session  sessionSource
	limiter  limiter
	adminIDs map[int64]struct{}
	log      *zerolog.Logger
}

// NewConsoleRouter accepts presses only from the given admin chats. limiter may be nil.
func NewConsoleRouter(bot adapter.TelegramBotAdapter, console usecase.ConsoleUseCase, session sessionSource, limiter limiter, adminChatIDs []int64, logger *zerolog.Logger) *ConsoleRouter {
	ids := make(map[int64]struct{}, len(adminChatIDs))
	for _, id := range adminChatIDs {
		ids[id] = struct{}{}
	}
	l := logger.With().Str("component", "telegram_console").Logger()
	return &ConsoleRouter{bot: bot, console: console, session: session, limiter: limiter, adminIDs: ids, log: &l}
}

type consoleAction func(ctx context.Context, sid string, actor usecase.Actor, id int64, filter model.PaymentStatus) ([]*model.PendingPayment, error)

func (r *ConsoleRouter) HandleCallback(ctx context.Context, ev CallbackEvent) error {
	notice, err := r.route(ctx, ev)
	if aerr := r.bot.AnswerCallback(ctx, ev.ID, notice); aerr != nil {
		r.log.Debug().Err(aerr).Msg("answer callback failed")
	}
	return err
}

// route returns the short notice shown on the pressed button.
func (r *ConsoleRouter) route(ctx context.Context, ev CallbackEvent) (string, error) {
	if _, ok := r.adminIDs[ev.ChatID]; !ok {
		return "Not allowed", fmt.Errorf("%w: chat %d is not an admin chat", domain.ErrForbidden, ev.ChatID)
	}
	if r.limiter != nil {
		key := "rate_limit:tg_callback:" + strconv.FormatInt(ev.FromID, 10)
		if ok, err := r.limiter.Allow(ctx, key, 30, time.Minute); err == nil && !ok {
			return "Slow down", nil
		}
	}

	var (
		act   consoleAction
		kind  model.AdminActionKind
		rawID string
	)
	switch {
	case strings.HasPrefix(ev.Data, cbValidate):
		act, kind, rawID = r.console.Validate, model.AdminActionValidate, strings.TrimPrefix(ev.Data, cbValidate)
	case strings.HasPrefix(ev.Data, cbCancel):
		act, kind, rawID = r.console.Cancel, model.AdminActionCancel, strings.TrimPrefix(ev.Data, cbCancel)
	default:
		return "", errors.New("unknown callback data")
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("%w: callback payment id %q", domain.ErrInvalidArgument, rawID)
	}

	sid, err := r.session.SID(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("bot service session unavailable")
		return "Bot is not signed in", err
	}
	ctx = logging.WithSessID(ctx, sid)

	actor := usecase.Actor{Email: telegramActor(ev), Source: "telegram"}
	remaining, err := act(ctx, sid, actor, id, model.PaymentStatusPending)
	switch {
	case errors.Is(err, domain.ErrRowBusy):
		return "Already in progress", nil
	case err != nil:
		_ = r.bot.SendMessage(ctx, ev.ChatID, fmt.Sprintf("⚠️ Could not %s payment #%d: %v", kind, id, err))
		return "Failed", err
	}

	done := "validated"
	if kind == model.AdminActionCancel {
		done = "cancelled"
	}
	msg := fmt.Sprintf("Payment #%d %s by %s.", id, done, actor.Email)
	if remaining != nil {
		msg += fmt.Sprintf(" %d still pending.", len(remaining))
	}
	if err := r.bot.SendMessage(ctx, ev.ChatID, msg); err != nil {
		r.log.Warn().Err(err).Msg("confirmation message failed")
	}
	return "Done", nil
}

func telegramActor(ev CallbackEvent) string {
	if ev.Username != "" {
		return "telegram:@" + ev.Username
	}
	return "telegram:" + strconv.FormatInt(ev.FromID, 10)
}
