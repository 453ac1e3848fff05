package repository

import (
	"context"

	"signals-platform/internal/domain/model"
)

// AdminActionRepository is the audit trail of admin console actions.
type AdminActionRepository interface {
	Save(ctx context.Context, tx Tx, action *model.AdminAction) error
	ListByPayment(ctx context.Context, tx Tx, paymentID int64) ([]*model.AdminAction, error)
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.AdminAction, error)
}
