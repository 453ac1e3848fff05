package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		checkoutSubmissionsTotal,
		pendingAmountTotal,
		adminActionsTotal,
		adminRowBusyTotal,
	)
}

var (
	checkoutSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_submissions_total",
			Help: "Pending-payment submissions from checkout.",
		},
		[]string{"result"}, // ok | rejected | error
	)

	pendingAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pending_payments_amount_total",
			Help: "Sum of amounts requested through created pending payments, by currency.",
		},
		[]string{"currency"},
	)

	adminActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_payment_actions_total",
			Help: "Admin validate/cancel actions by outcome.",
		},
		[]string{"action", "result"},
	)

	adminRowBusyTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "admin_payment_row_busy_total",
			Help: "Admin actions refused because another action on the same payment was in flight.",
		},
	)
)

func IncCheckoutSubmission(res string) {
	checkoutSubmissionsTotal.WithLabelValues(norm(res)).Inc()
}

func AddPendingAmount(currency string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	pendingAmountTotal.WithLabelValues(norm(currency)).Add(f)
}

func IncAdminAction(action string, err error) {
	adminActionsTotal.WithLabelValues(norm(action), result(err)).Inc()
}

func IncAdminRowBusy() {
	adminRowBusyTotal.Inc()
}
