package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/domain/ports/repository"
	"signals-platform/internal/infra/logging"
	"signals-platform/internal/infra/metrics"
)

// Compile-time check
var _ ConsoleUseCase = (*consoleUC)(nil)

// Actor is who performed an admin action, for the audit trail.
type Actor struct {
	Email  string
	Source string // web | telegram
}

// ConsoleUseCase is the admin payment console. Validate and Cancel hold a per-payment busy
// flag for the duration of the upstream call, never pre-check the payment's status, and on
// success return a fresh list for the caller's filter. A nil list with a nil error means the
// action went through but the list could not be reloaded.
type ConsoleUseCase interface {
	List(ctx context.Context, sid string, status model.PaymentStatus) ([]*model.PendingPayment, error)
	Dashboard(ctx context.Context, sid string) (*model.AdminDashboard, error)
	Validate(ctx context.Context, sid string, actor Actor, id int64, filter model.PaymentStatus) ([]*model.PendingPayment, error)
	Cancel(ctx context.Context, sid string, actor Actor, id int64, filter model.PaymentStatus) ([]*model.PendingPayment, error)
	IsBusy(id int64) bool
	BusyRows() []int64
	History(ctx context.Context, id int64) ([]*model.AdminAction, error)
	RecentActions(ctx context.Context, limit int) ([]*model.AdminAction, error)
}

const eventAdminActionPrefix = "payment.admin."

type consoleUC struct {
	payments adapter.PaymentAPI
	audit    repository.AdminActionRepository
	events   adapter.EventPublisher
	locker   repository.RowLocker
	lockTTL  time.Duration
	clock    Clock
	log      *zerolog.Logger

	mu   sync.Mutex
	busy map[int64]struct{}
}

// NewConsoleUseCase builds the console. locker is optional and extends the busy flag
// to every replica; audit and events may be nil.
func NewConsoleUseCase(
	payments adapter.PaymentAPI,
	audit repository.AdminActionRepository,
	events adapter.EventPublisher,
	locker repository.RowLocker,
	clock Clock,
	logger *zerolog.Logger,
) *consoleUC {
	l := logger.With().Str("component", "admin_console").Logger()
	return &consoleUC{
		payments: payments,
		audit:    audit,
		events:   events,
		locker:   locker,
		lockTTL:  time.Minute,
		clock:    clock,
		log:      &l,
		busy:     map[int64]struct{}{},
	}
}

func (uc *consoleUC) List(ctx context.Context, sid string, status model.PaymentStatus) ([]*model.PendingPayment, error) {
	if status == "" {
		status = model.PaymentStatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, status)
	}
	list, err := uc.payments.ListPendingPayments(ctx, sid, status)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.PendingPayment{}
	}
	return list, nil
}

func (uc *consoleUC) Dashboard(ctx context.Context, sid string) (*model.AdminDashboard, error) {
	return uc.payments.AdminDashboard(ctx, sid)
}

func (uc *consoleUC) Validate(ctx context.Context, sid string, actor Actor, id int64, filter model.PaymentStatus) ([]*model.PendingPayment, error) {
	return uc.act(ctx, sid, actor, id, model.AdminActionValidate, filter)
}

func (uc *consoleUC) Cancel(ctx context.Context, sid string, actor Actor, id int64, filter model.PaymentStatus) ([]*model.PendingPayment, error) {
	return uc.act(ctx, sid, actor, id, model.AdminActionCancel, filter)
}

func (uc *consoleUC) IsBusy(id int64) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	_, ok := uc.busy[id]
	return ok
}

func (uc *consoleUC) BusyRows() []int64 {
	uc.mu.Lock()
	ids := make([]int64, 0, len(uc.busy))
	for id := range uc.busy {
		ids = append(ids, id)
	}
	uc.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (uc *consoleUC) acquire(id int64) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, held := uc.busy[id]; held {
		return false
	}
	uc.busy[id] = struct{}{}
	return true
}

func (uc *consoleUC) release(id int64) {
	uc.mu.Lock()
	delete(uc.busy, id)
	uc.mu.Unlock()
}

func (uc *consoleUC) act(ctx context.Context, sid string, actor Actor, id int64, kind model.AdminActionKind, filter model.PaymentStatus) ([]*model.PendingPayment, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: payment id %d", domain.ErrInvalidArgument, id)
	}
	if filter != "" && !filter.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, filter)
	}
	if err := uc.dispatch(ctx, sid, actor, id, kind); err != nil {
		return nil, err
	}
	// the row's busy flag is already released; the refetch is not part of the action
	list, err := uc.List(ctx, sid, filter)
	if err != nil {
		logging.With(ctx, uc.log).Warn().Err(err).Int64("payment_id", id).Str("action", string(kind)).Msg("refetch after admin action failed")
		return nil, nil
	}
	if list == nil {
		list = []*model.PendingPayment{}
	}
	return list, nil
}

// dispatch holds the row's busy flag for exactly the upstream call.
func (uc *consoleUC) dispatch(ctx context.Context, sid string, actor Actor, id int64, kind model.AdminActionKind) (err error) {
	log := logging.With(ctx, uc.log).With().Int64("payment_id", id).Str("action", string(kind)).Logger()

	if !uc.acquire(id) {
		metrics.IncAdminRowBusy()
		return domain.ErrRowBusy
	}
	defer uc.release(id)

	if uc.locker != nil {
		key := "console:payment:" + strconv.FormatInt(id, 10)
		token, lerr := uc.locker.TryLock(ctx, key, uc.lockTTL)
		switch {
		case errors.Is(lerr, domain.ErrRowBusy):
			metrics.IncAdminRowBusy()
			return domain.ErrRowBusy
		case lerr != nil:
			log.Warn().Err(lerr).Msg("shared row lock unavailable, using local flag only")
		default:
			defer func() {
				if uerr := uc.locker.Unlock(context.WithoutCancel(ctx), key, token); uerr != nil {
					log.Warn().Err(uerr).Msg("shared row unlock failed")
				}
			}()
		}
	}

	var updated *model.PendingPayment
	switch kind {
	case model.AdminActionValidate:
		updated, err = uc.payments.ValidatePayment(ctx, sid, id)
	case model.AdminActionCancel:
		updated, err = uc.payments.CancelPayment(ctx, sid, id)
	default:
		return fmt.Errorf("%w: action %q", domain.ErrInvalidArgument, kind)
	}

	metrics.IncAdminAction(string(kind), err)
	uc.record(ctx, actor, id, kind, err)
	if err != nil {
		log.Warn().Err(err).Str("admin", actor.Email).Msg("admin payment action failed")
		return err
	}
	log.Info().Str("admin", actor.Email).Str("source", actor.Source).Msg("admin payment action applied")

	if uc.events != nil {
		payload := map[string]any{"payment_id": id, "action": kind, "admin": actor.Email, "target_status": kind.TargetStatus()}
		if updated != nil {
			payload["payment"] = updated
		}
		rk := eventAdminActionPrefix + string(kind)
		perr := uc.events.Publish(ctx, rk, payload)
		metrics.IncEventPublished(rk, perr)
		if perr != nil {
			log.Warn().Err(perr).Msg("event publish failed")
		}
	}
	return nil
}

func (uc *consoleUC) record(ctx context.Context, actor Actor, id int64, kind model.AdminActionKind, actErr error) {
	if uc.audit == nil {
		return
	}
	now := uc.clock.now().UTC()
	a := &model.AdminAction{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		PaymentID:  id,
		Action:     kind,
		AdminEmail: actor.Email,
		Succeeded:  actErr == nil,
		CreatedAt:  now,
	}
	if actErr != nil {
		a.Error = actErr.Error()
	}
	if err := uc.audit.Save(context.WithoutCancel(ctx), nil, a); err != nil {
		logging.With(ctx, uc.log).Error().Err(err).Int64("payment_id", id).Msg("failed to write admin action audit")
	}
}

func (uc *consoleUC) History(ctx context.Context, id int64) ([]*model.AdminAction, error) {
	if uc.audit == nil {
		return []*model.AdminAction{}, nil
	}
	return uc.audit.ListByPayment(ctx, nil, id)
}

func (uc *consoleUC) RecentActions(ctx context.Context, limit int) ([]*model.AdminAction, error) {
	if uc.audit == nil {
		return []*model.AdminAction{}, nil
	}
	return uc.audit.ListRecent(ctx, nil, limit)
}
