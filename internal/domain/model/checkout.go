package model

import "time"

type CheckoutStep string

const (
	CheckoutSelectingOffer         CheckoutStep = "selecting-offer"
	CheckoutSelectingContactMethod CheckoutStep = "selecting-contact-method"
	CheckoutSubmitting             CheckoutStep = "submitting"
	CheckoutSuccess                CheckoutStep = "success"
	CheckoutError                  CheckoutStep = "error"
)

// OfferQuery identifies the offer a checkout starts from: an explicit id,
// or an offer type plus a plan name to match against the catalog.
type OfferQuery struct {
	ID       int64     `json:"offer,omitempty"`
	Type     OfferType `json:"type,omitempty"`
	PlanName string    `json:"plan,omitempty"`
}

func (q OfferQuery) IsZero() bool { return q.ID == 0 && q.Type == "" }

// CheckoutSummary is what the success view renders.
type CheckoutSummary struct {
	PaymentID     int64         `json:"payment_id"`
	OfferName     string        `json:"offer_name"`
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
	ContactMethod ContactMethod `json:"contact_method"`
	ContactInfo   string        `json:"contact_info"`
	Guidance      string        `json:"guidance"`
}

// CheckoutState is one browser session's progress through checkout.
// Offer, method and contact info survive an error so the user can resubmit as is.
type CheckoutState struct {
	Step          CheckoutStep     `json:"step"`
	Offer         *Offer           `json:"offer,omitempty"`
	ContactMethod ContactMethod    `json:"contact_method,omitempty"`
	ContactInfo   string           `json:"contact_info,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
	Summary       *CheckoutSummary `json:"summary,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
