package repository

import (
	"context"

	"signals-platform/internal/domain/model"
)

type WidgetLayoutRepository interface {
	// Find returns domain.ErrNotFound when the user never saved a layout for the surface.
	Find(ctx context.Context, tx Tx, userID int64, surface string) (*model.WidgetLayout, error)
	Upsert(ctx context.Context, tx Tx, layout *model.WidgetLayout) error
	ListByUser(ctx context.Context, tx Tx, userID int64) ([]*model.WidgetLayout, error)
}
