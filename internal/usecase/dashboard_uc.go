package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
)

// Compile-time check
var _ DashboardUseCase = (*dashboardUC)(nil)

// SubscriptionView is a subscription with its countdown fields derived at GeneratedAt.
type SubscriptionView struct {
	model.Subscription
	ElapsedPercent   float64 `json:"elapsed_percent"`
	RemainingPercent float64 `json:"remaining_percent"`
	TimeRemaining    string  `json:"time_remaining"`
}

type UserDashboardView struct {
	ActiveSubscriptions []SubscriptionView      `json:"active_subscriptions"`
	PendingPayments     []*model.PendingPayment `json:"pending_payments"`
	PaymentHistory      []*model.PaymentRecord  `json:"payment_history"`
	TotalSpent          decimal.Decimal         `json:"total_spent"`
	GeneratedAt         time.Time               `json:"generated_at"`
}

// DashboardUseCase is the user subscription view. It only reads and derives;
// expired subscriptions are left for the upstream to exclude.
type DashboardUseCase interface {
	Dashboard(ctx context.Context, sid string) (*UserDashboardView, error)
}

type dashboardUC struct {
	payments adapter.PaymentAPI
	clock    Clock
}

func NewDashboardUseCase(payments adapter.PaymentAPI, clock Clock) *dashboardUC {
	return &dashboardUC{payments: payments, clock: clock}
}

func (uc *dashboardUC) Dashboard(ctx context.Context, sid string) (*UserDashboardView, error) {
	d, err := uc.payments.UserDashboard(ctx, sid)
	if err != nil {
		return nil, err
	}
	now := uc.clock.now()
	view := &UserDashboardView{
		ActiveSubscriptions: make([]SubscriptionView, 0, len(d.ActiveSubscriptions)),
		PendingPayments:     d.PendingPayments,
		PaymentHistory:      d.PaymentHistory,
		TotalSpent:          d.TotalSpent,
		GeneratedAt:         now,
	}
	if view.PendingPayments == nil {
		view.PendingPayments = []*model.PendingPayment{}
	}
	if view.PaymentHistory == nil {
		view.PaymentHistory = []*model.PaymentRecord{}
	}
	for _, s := range d.ActiveSubscriptions {
		if s == nil {
			continue
		}
		view.ActiveSubscriptions = append(view.ActiveSubscriptions, DeriveSubscription(*s, now))
	}
	return view, nil
}

// DeriveSubscription fills in the countdown fields, computing days/hours remaining when the upstream omitted them.
func DeriveSubscription(s model.Subscription, now time.Time) SubscriptionView {
	days, hours := s.Remaining(now)
	s.DaysRemaining = &days
	s.HoursRemaining = &hours
	return SubscriptionView{
		Subscription:     s,
		ElapsedPercent:   s.ElapsedPercent(now),
		RemainingPercent: s.RemainingPercent(now),
		TimeRemaining:    s.TimeRemainingLabel(now),
	}
}
