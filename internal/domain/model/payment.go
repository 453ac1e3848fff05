package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // created by checkout, nobody reached out yet
	PaymentStatusContacted PaymentStatus = "contacted" // an admin reached the user on the chosen channel
	PaymentStatusConfirmed PaymentStatus = "confirmed" // validated by an admin; subscription granted
	PaymentStatusCancelled PaymentStatus = "cancelled" // cancelled by an admin
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusContacted, PaymentStatusConfirmed, PaymentStatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusCancelled
}

type paymentTransition struct {
	From PaymentStatus
	To   PaymentStatus
}

// Only admins move a payment between statuses; the upstream enforces it.
var paymentTransitions = map[paymentTransition]bool{
	{PaymentStatusPending, PaymentStatusContacted}:   true,
	{PaymentStatusPending, PaymentStatusConfirmed}:   true, // validate
	{PaymentStatusPending, PaymentStatusCancelled}:   true, // cancel
	{PaymentStatusContacted, PaymentStatusConfirmed}: true,
	{PaymentStatusContacted, PaymentStatusCancelled}: true,
}

// CanTransition reports whether an admin action may move a payment from one status to another.
func CanTransition(from, to PaymentStatus) bool {
	return paymentTransitions[paymentTransition{from, to}]
}

type ContactMethod string

const (
	ContactWhatsApp ContactMethod = "whatsapp"
	ContactTelegram ContactMethod = "telegram"
	ContactDiscord  ContactMethod = "discord"
	ContactEmail    ContactMethod = "email"
)

func (m ContactMethod) Valid() bool {
	switch m {
	case ContactWhatsApp, ContactTelegram, ContactDiscord, ContactEmail:
		return true
	}
	return false
}

// PaymentUser is the requesting user as embedded in payment records.
type PaymentUser struct {
	ID        int64  `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PendingPayment is a purchase request awaiting manual confirmation by an admin.
type PendingPayment struct {
	ID            int64           `json:"id"`
	OfferID       int64           `json:"offer"`
	OfferName     string          `json:"offer_name,omitempty"`
	User          *PaymentUser    `json:"user,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ContactMethod ContactMethod   `json:"contact_method"`
	ContactInfo   string          `json:"contact_info"`
	Status        PaymentStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PendingPaymentRequest is the creation body sent by checkout.
// Amount keeps the scale of the offer price ("49.00" stays "49.00").
type PendingPaymentRequest struct {
	Offer         int64         `json:"offer"`
	ContactMethod ContactMethod `json:"contact_method"`
	ContactInfo   string        `json:"contact_info"`
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
}

// FormatAmount renders d with the number of decimals it was parsed with.
func FormatAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// PaymentRecord is one line of a user's payment history.
type PaymentRecord struct {
	ID        int64           `json:"id"`
	OfferName string          `json:"offer_name"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    PaymentStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
