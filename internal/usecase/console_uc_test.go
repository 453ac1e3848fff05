//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/usecase"
)

// upstreamPayments is a tiny stand-in for the upstream's admin list: cancelled and
// confirmed payments leave the pending filter.
type upstreamPayments struct {
	mu   sync.Mutex
	byID map[int64]*model.PendingPayment
}

func newUpstreamPayments(ids ...int64) *upstreamPayments {
	u := &upstreamPayments{byID: map[int64]*model.PendingPayment{}}
	for _, id := range ids {
		u.byID[id] = &model.PendingPayment{ID: id, Status: model.PaymentStatusPending}
	}
	return u
}

func (u *upstreamPayments) wire(m *MockPaymentAPI) {
	m.ListFunc = func(ctx context.Context, sid string, status model.PaymentStatus) ([]*model.PendingPayment, error) {
		u.mu.Lock()
		defer u.mu.Unlock()
		var out []*model.PendingPayment
		for _, p := range u.byID {
			if p.Status == status {
				out = append(out, p)
			}
		}
		return out, nil
	}
	m.CancelFunc = func(ctx context.Context, sid string, id int64) (*model.PendingPayment, error) {
		u.mu.Lock()
		defer u.mu.Unlock()
		p, ok := u.byID[id]
		if !ok {
			return nil, domain.ErrNotFound
		}
		p.Status = model.PaymentStatusCancelled
		return p, nil
	}
}

func TestConsoleUseCase_Cancel(t *testing.T) {
	ctx := context.Background()
	admin := usecase.Actor{Email: "admin@example.com", Source: "web"}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("should return a refetched list without the cancelled payment", func(t *testing.T) {
		// --- Arrange ---
		payments := &MockPaymentAPI{}
		newUpstreamPayments(41, 42, 43).wire(payments)
		audit := &memAudit{}
		events := &MockEvents{}
		uc := usecase.NewConsoleUseCase(payments, audit, events, newMemLocker(), fixedClock(&now), newTestLogger())

		// --- Act ---
		list, err := uc.Cancel(ctx, "admin-sess", admin, 42, model.PaymentStatusPending)

		// --- Assert ---
		if err != nil {
			t.Fatalf("Cancel returned an error: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 remaining pending payments, got %d", len(list))
		}
		for _, p := range list {
			if p.ID == 42 {
				t.Errorf("cancelled payment 42 is still listed")
			}
		}
		if len(payments.Cancelled) != 1 || payments.Cancelled[0] != 42 {
			t.Errorf("expected exactly one cancel of 42, got %v", payments.Cancelled)
		}
		if uc.IsBusy(42) {
			t.Errorf("expected row 42 to be released")
		}
		if len(audit.actions) != 1 || !audit.actions[0].Succeeded || audit.actions[0].Action != model.AdminActionCancel {
			t.Errorf("expected one successful cancel audit entry, got %+v", audit.actions)
		}
		if audit.actions[0].ID == "" || !audit.actions[0].CreatedAt.Equal(now) {
			t.Errorf("expected audit id and timestamp, got %+v", audit.actions[0])
		}
		if len(events.Keys) != 1 || events.Keys[0] != "payment.admin.cancel" {
			t.Errorf("expected payment.admin.cancel event, got %v", events.Keys)
		}
	})

	t.Run("should report success when only the refetch fails", func(t *testing.T) {
		// --- Arrange ---
		payments := &MockPaymentAPI{}
		newUpstreamPayments(41, 42).wire(payments)
		payments.ListFunc = func(ctx context.Context, sid string, status model.PaymentStatus) ([]*model.PendingPayment, error) {
			return nil, domain.ErrUpstreamUnavailable
		}
		audit := &memAudit{}
		uc := usecase.NewConsoleUseCase(payments, audit, &MockEvents{}, nil, fixedClock(&now), newTestLogger())

		// --- Act ---
		list, err := uc.Cancel(ctx, "s", admin, 42, model.PaymentStatusPending)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected the applied cancel to succeed, got %v", err)
		}
		if list != nil {
			t.Errorf("expected no list when the refetch failed, got %v", list)
		}
		if len(payments.Cancelled) != 1 || len(audit.actions) != 1 || !audit.actions[0].Succeeded {
			t.Errorf("expected one recorded cancel, got %v and %+v", payments.Cancelled, audit.actions)
		}
	})

	t.Run("should return an empty, non-nil list when nothing is left", func(t *testing.T) {
		payments := &MockPaymentAPI{}
		newUpstreamPayments(42).wire(payments)
		uc := usecase.NewConsoleUseCase(payments, &memAudit{}, &MockEvents{}, nil, fixedClock(&now), newTestLogger())

		list, err := uc.Cancel(ctx, "s", admin, 42, model.PaymentStatusPending)

		if err != nil || list == nil || len(list) != 0 {
			t.Errorf("expected an empty list, got %v err=%v", list, err)
		}
	})

	t.Run("should surface an upstream failure and record it", func(t *testing.T) {
		payments := &MockPaymentAPI{
			CancelFunc: func(ctx context.Context, sid string, id int64) (*model.PendingPayment, error) {
				return nil, domain.ErrNotFound
			},
		}
		audit := &memAudit{}
		events := &MockEvents{}
		uc := usecase.NewConsoleUseCase(payments, audit, events, nil, fixedClock(&now), newTestLogger())

		_, err := uc.Cancel(ctx, "s", admin, 42, "")

		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if len(payments.Listed) != 0 {
			t.Errorf("expected no refetch after a failed action")
		}
		if len(audit.actions) != 1 || audit.actions[0].Succeeded {
			t.Errorf("expected a failed audit entry, got %+v", audit.actions)
		}
		if len(events.Keys) != 0 {
			t.Errorf("expected no event for a failed action")
		}
	})
}

func TestConsoleUseCase_RowBusy(t *testing.T) {
	ctx := context.Background()
	admin := usecase.Actor{Email: "admin@example.com", Source: "web"}

	t.Run("should refuse a second action on a row while the first is in flight", func(t *testing.T) {
		// --- Arrange ---
		entered := make(chan struct{})
		release := make(chan struct{})
		payments := &MockPaymentAPI{
			ValidateFunc: func(ctx context.Context, sid string, id int64) (*model.PendingPayment, error) {
				if id == 7 {
					close(entered)
					<-release
				}
				return &model.PendingPayment{ID: id, Status: model.PaymentStatusConfirmed}, nil
			},
		}
		uc := usecase.NewConsoleUseCase(payments, nil, nil, nil, nil, newTestLogger())

		done := make(chan error, 1)
		go func() {
			_, err := uc.Validate(ctx, "s", admin, 7, "")
			done <- err
		}()
		<-entered

		// --- Act ---
		_, busyErr := uc.Cancel(ctx, "s", admin, 7, "")
		_, otherErr := uc.Validate(ctx, "s", admin, 8, "")
		busyRows := uc.BusyRows()
		close(release)

		// --- Assert ---
		if !errors.Is(busyErr, domain.ErrRowBusy) {
			t.Fatalf("expected ErrRowBusy, got %v", busyErr)
		}
		if otherErr != nil {
			t.Errorf("expected another row to proceed, got %v", otherErr)
		}
		if len(busyRows) != 1 || busyRows[0] != 7 {
			t.Errorf("expected only row 7 busy, got %v", busyRows)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("first validate failed: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the first validate")
		}
		if len(payments.Cancelled) != 0 {
			t.Errorf("expected the busy cancel to never reach the upstream")
		}
		if uc.IsBusy(7) {
			t.Errorf("expected row 7 to be released")
		}
	})

	t.Run("should refuse a row locked by another replica", func(t *testing.T) {
		locker := newMemLocker()
		_, _ = locker.TryLock(ctx, "console:payment:5", time.Minute)
		payments := &MockPaymentAPI{}
		uc := usecase.NewConsoleUseCase(payments, nil, nil, locker, nil, newTestLogger())

		_, err := uc.Validate(ctx, "s", admin, 5, "")

		if !errors.Is(err, domain.ErrRowBusy) {
			t.Fatalf("expected ErrRowBusy, got %v", err)
		}
		if len(payments.Validated) != 0 {
			t.Errorf("expected no upstream call")
		}
		if uc.IsBusy(5) {
			t.Errorf("expected the local flag to be released")
		}
	})

	t.Run("should proceed when the shared lock backend is down", func(t *testing.T) {
		locker := newMemLocker()
		locker.Err = errors.New("redis down")
		payments := &MockPaymentAPI{}
		uc := usecase.NewConsoleUseCase(payments, nil, nil, locker, nil, newTestLogger())

		_, err := uc.Validate(ctx, "s", admin, 5, "")

		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(payments.Validated) != 1 {
			t.Errorf("expected one upstream call, got %d", len(payments.Validated))
		}
	})
}

func TestConsoleUseCase_List(t *testing.T) {
	ctx := context.Background()
	payments := &MockPaymentAPI{}
	uc := usecase.NewConsoleUseCase(payments, nil, nil, nil, nil, newTestLogger())

	t.Run("should default to pending", func(t *testing.T) {
		list, err := uc.List(ctx, "s", "")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if list == nil {
			t.Errorf("expected an empty list, not nil")
		}
		if payments.Listed[len(payments.Listed)-1] != model.PaymentStatusPending {
			t.Errorf("expected pending filter, got %v", payments.Listed)
		}
	})

	t.Run("should reject an unknown status", func(t *testing.T) {
		_, err := uc.List(ctx, "s", model.PaymentStatus("refunded"))
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
