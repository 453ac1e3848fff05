package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/infra/logging"
	"signals-platform/internal/infra/metrics"
)

// Compile-time check
var _ DigestUseCase = (*digestUC)(nil)

// DigestUseCase reminds the admins of payments nobody has handled yet.
type DigestUseCase interface {
	// SendPendingDigest returns how many payments were listed; zero sends nothing.
	SendPendingDigest(ctx context.Context) (int, error)
}

type digestUC struct {
	session  *ServiceSession
	console  ConsoleUseCase
	notifier adapter.AdminNotifier
	log      *zerolog.Logger
}

func NewDigestUseCase(session *ServiceSession, console ConsoleUseCase, notifier adapter.AdminNotifier, logger *zerolog.Logger) *digestUC {
	l := logger.With().Str("component", "pending_digest").Logger()
	return &digestUC{session: session, console: console, notifier: notifier, log: &l}
}

func (uc *digestUC) SendPendingDigest(ctx context.Context) (int, error) {
	sid, err := uc.session.SID(ctx)
	if err != nil {
		return 0, err
	}
	ctx = logging.WithSessID(ctx, sid)

	pending, err := uc.console.List(ctx, sid, model.PaymentStatusPending)
	if err != nil {
		return 0, err
	}
	contacted, err := uc.console.List(ctx, sid, model.PaymentStatusContacted)
	if err != nil {
		return 0, err
	}
	open := append(pending, contacted...)
	if len(open) == 0 {
		uc.log.Debug().Msg("no open payments, digest skipped")
		return 0, nil
	}

	err = uc.notifier.NotifyPendingDigest(ctx, open)
	metrics.IncAdminNotification("pending_digest", err)
	if err != nil {
		return 0, err
	}
	logging.With(ctx, uc.log).Info().Int("pending", len(pending)).Int("contacted", len(contacted)).Msg("pending digest sent")
	return len(open), nil
}
