//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/usecase"
)

func TestDigestUseCase(t *testing.T) {
	ctx := context.Background()
	staff := func(ctx context.Context, sid string, c model.Credentials) (*model.User, error) {
		return &model.User{ID: 99, Email: c.Email, IsStaff: true}, nil
	}
	creds := model.Credentials{Email: "bot@example.com", Password: "x"}

	t.Run("should send pending and contacted payments in one digest", func(t *testing.T) {
		// --- Arrange ---
		auth := newMockAuthAPI()
		auth.LoginFn = staff
		payments := &MockPaymentAPI{
			ListFunc: func(ctx context.Context, sid string, status model.PaymentStatus) ([]*model.PendingPayment, error) {
				if status == model.PaymentStatusPending {
					return []*model.PendingPayment{{ID: 1}, {ID: 2}}, nil
				}
				return []*model.PendingPayment{{ID: 3, Status: model.PaymentStatusContacted}}, nil
			},
		}
		notifier := &MockNotifier{}
		console := usecase.NewConsoleUseCase(payments, nil, nil, nil, nil, newTestLogger())
		session := usecase.NewServiceSession(auth, "svc:digest", creds)
		uc := usecase.NewDigestUseCase(session, console, notifier, newTestLogger())

		// --- Act ---
		n, err := uc.SendPendingDigest(ctx)
		_, _ = uc.SendPendingDigest(ctx)

		// --- Assert ---
		if err != nil {
			t.Fatalf("SendPendingDigest failed: %v", err)
		}
		if n != 3 || len(notifier.Digests) != 2 || len(notifier.Digests[0]) != 3 {
			t.Errorf("expected 3 payments per digest, got n=%d digests=%v", n, notifier.Digests)
		}
		if auth.Logins != 1 {
			t.Errorf("expected the service session to log in once, got %d", auth.Logins)
		}
	})

	t.Run("should send nothing when the queue is empty", func(t *testing.T) {
		auth := newMockAuthAPI()
		auth.LoginFn = staff
		notifier := &MockNotifier{}
		console := usecase.NewConsoleUseCase(&MockPaymentAPI{}, nil, nil, nil, nil, newTestLogger())
		uc := usecase.NewDigestUseCase(usecase.NewServiceSession(auth, "svc", creds), console, notifier, newTestLogger())

		n, err := uc.SendPendingDigest(ctx)

		if err != nil || n != 0 || len(notifier.Digests) != 0 {
			t.Fatalf("expected a silent no-op, got n=%d err=%v digests=%d", n, err, len(notifier.Digests))
		}
	})

	t.Run("should refuse a non-staff service account", func(t *testing.T) {
		auth := newMockAuthAPI()
		console := usecase.NewConsoleUseCase(&MockPaymentAPI{}, nil, nil, nil, nil, newTestLogger())
		uc := usecase.NewDigestUseCase(usecase.NewServiceSession(auth, "svc", creds), console, &MockNotifier{}, newTestLogger())

		_, err := uc.SendPendingDigest(ctx)

		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if len(auth.LoggedOut) != 1 {
			t.Errorf("expected the non-staff session to be logged out")
		}
	})
}
