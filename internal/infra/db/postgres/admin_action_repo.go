package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
)

var _ repository.AdminActionRepository = (*adminActionRepo)(nil)

type adminActionRepo struct {
	pool *pgxpool.Pool
}

func NewAdminActionRepo(pool *pgxpool.Pool) repository.AdminActionRepository {
	return &adminActionRepo{pool: pool}
}

func (r *adminActionRepo) Save(ctx context.Context, tx repository.Tx, a *model.AdminAction) error {
	const q = `
INSERT INTO admin_payment_actions (id, payment_id, action, admin_email, succeeded, error, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.PaymentID, string(a.Action), a.AdminEmail, a.Succeeded, a.Error, a.CreatedAt)
	return err
}

func (r *adminActionRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID int64) ([]*model.AdminAction, error) {
	const q = `
SELECT id, payment_id, action, admin_email, succeeded, COALESCE(error, ''), created_at
FROM admin_payment_actions WHERE payment_id = $1 ORDER BY id`
	rows, err := queryRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanAdminActions(rows)
}

func (r *adminActionRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AdminAction, error) {
	if limit <= 0 {
		limit = 50
	}
	// ULIDs sort by creation time
	const q = `
SELECT id, payment_id, action, admin_email, succeeded, COALESCE(error, ''), created_at
FROM admin_payment_actions ORDER BY id DESC LIMIT $1`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, err
	}
	return scanAdminActions(rows)
}

func scanAdminActions(rows pgx.Rows) ([]*model.AdminAction, error) {
	defer rows.Close()
	var out []*model.AdminAction
	for rows.Next() {
		var a model.AdminAction
		var action string
		if err := rows.Scan(&a.ID, &a.PaymentID, &action, &a.AdminEmail, &a.Succeeded, &a.Error, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		a.Action = model.AdminActionKind(action)
		out = append(out, &a)
	}
	return out, rows.Err()
}
