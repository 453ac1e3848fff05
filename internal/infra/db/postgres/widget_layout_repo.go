package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
)

var _ repository.WidgetLayoutRepository = (*widgetLayoutRepo)(nil)

type widgetLayoutRepo struct {
	pool *pgxpool.Pool
}

func NewWidgetLayoutRepo(pool *pgxpool.Pool) repository.WidgetLayoutRepository {
	return &widgetLayoutRepo{pool: pool}
}

func (r *widgetLayoutRepo) Find(ctx context.Context, tx repository.Tx, userID int64, surface string) (*model.WidgetLayout, error) {
	q := `SELECT user_id, surface, widgets, updated_at FROM widget_layouts WHERE user_id = $1 AND surface = $2`
	if tx != nil {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q, userID, surface)
	if err != nil {
		return nil, err
	}
	var l model.WidgetLayout
	if err := row.Scan(&l.UserID, &l.Surface, &l.Widgets, &l.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &l, nil
}

func (r *widgetLayoutRepo) Upsert(ctx context.Context, tx repository.Tx, l *model.WidgetLayout) error {
	const q = `
INSERT INTO widget_layouts (user_id, surface, widgets, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, surface) DO UPDATE
SET widgets = EXCLUDED.widgets, updated_at = EXCLUDED.updated_at`
	_, err := execSQL(ctx, r.pool, tx, q, l.UserID, l.Surface, l.Widgets, l.UpdatedAt)
	return err
}

func (r *widgetLayoutRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.WidgetLayout, error) {
	const q = `SELECT user_id, surface, widgets, updated_at FROM widget_layouts WHERE user_id = $1 ORDER BY surface`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.WidgetLayout
	for rows.Next() {
		var l model.WidgetLayout
		if err := rows.Scan(&l.UserID, &l.Surface, &l.Widgets, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
