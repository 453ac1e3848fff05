package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ContactChannel is static reference data for the checkout form.
type ContactChannel struct {
	Type         ContactMethod `json:"type" yaml:"type"`
	ContactInfo  string        `json:"contact_info" yaml:"contact_info"`
	Instructions string        `json:"instructions,omitempty" yaml:"instructions"`
	Link         string        `json:"link,omitempty" yaml:"link"`
}

// UserDashboard is the upstream aggregate behind the user subscription view.
type UserDashboard struct {
	ActiveSubscriptions []*Subscription   `json:"active_subscriptions"`
	PendingPayments     []*PendingPayment `json:"pending_payments"`
	PaymentHistory      []*PaymentRecord  `json:"payment_history"`
	TotalSpent          decimal.Decimal   `json:"total_spent"`
}

// AdminDashboard is the upstream aggregate behind the admin console header.
type AdminDashboard struct {
	PendingCount   int               `json:"pending_count"`
	ContactedCount int               `json:"contacted_count"`
	ConfirmedCount int               `json:"confirmed_count"`
	CancelledCount int               `json:"cancelled_count"`
	TotalRevenue   decimal.Decimal   `json:"total_revenue"`
	MonthRevenue   decimal.Decimal   `json:"month_revenue"`
	RecentPayments []*PendingPayment `json:"recent_payments"`
}

// HomepageContent is the cached marketing payload. The payload itself is opaque here.
type HomepageContent struct {
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// ContentBlock is one CMS block edited from the admin content editor.
type ContentBlock struct {
	ID        int64           `json:"id,omitempty"`
	Page      string          `json:"page"`
	Key       string          `json:"key"`
	BlockType string          `json:"block_type"`
	Content   json.RawMessage `json:"content"`
	Order     int             `json:"order"`
	IsActive  bool            `json:"is_active"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}
