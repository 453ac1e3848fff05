package repository

import (
	"context"

	"signals-platform/internal/domain/model"
)

// CheckoutStateRepository persists the checkout progress of a BFF session.
// Get returns domain.ErrNotFound when no checkout was started.
type CheckoutStateRepository interface {
	Get(ctx context.Context, sid string) (*model.CheckoutState, error)
	Save(ctx context.Context, sid string, state *model.CheckoutState) error
	Clear(ctx context.Context, sid string) error
}
