package repository

import (
	"context"

	"signals-platform/internal/domain/model"
)

// TokenStore keeps the upstream tokens and the cached user profile of a BFF session.
// Get returns domain.ErrNotFound when the session holds no tokens.
type TokenStore interface {
	Get(ctx context.Context, sid string) (*model.Tokens, error)
	Set(ctx context.Context, sid string, tokens *model.Tokens) error
	SetAccess(ctx context.Context, sid string, access string) error
	Clear(ctx context.Context, sid string) error
}
