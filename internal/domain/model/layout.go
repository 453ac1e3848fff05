package model

import "time"

// WidgetLayout is a user's ordered widget arrangement on one dashboard surface.
type WidgetLayout struct {
	UserID    int64     `json:"user_id"`
	Surface   string    `json:"surface"`
	Widgets   []string  `json:"widgets"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AdminActionKind string

const (
	AdminActionValidate AdminActionKind = "validate"
	AdminActionCancel   AdminActionKind = "cancel"
)

// TargetStatus is the status the upstream is asked to move the payment to.
func (k AdminActionKind) TargetStatus() PaymentStatus {
	if k == AdminActionValidate {
		return PaymentStatusConfirmed
	}
	return PaymentStatusCancelled
}

// AdminAction is one audit entry of the admin payment console.
type AdminAction struct {
	ID         string          `json:"id"` // ULID
	PaymentID  int64           `json:"payment_id"`
	Action     AdminActionKind `json:"action"`
	AdminEmail string          `json:"admin_email"`
	Succeeded  bool            `json:"succeeded"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
