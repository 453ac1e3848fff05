package repository

import (
	"context"

	"signals-platform/internal/domain/model"
)

// OfferRepository is the read side of the offer catalog.
type OfferRepository interface {
	ListAll(ctx context.Context) ([]*model.Offer, error)
	ListByType(ctx context.Context, t model.OfferType) ([]*model.Offer, error)
}
