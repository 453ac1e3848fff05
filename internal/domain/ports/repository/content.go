package repository

import (
	"context"

	"signals-platform/internal/domain/model"
)

// ContentCache holds the last fetched homepage payload together with its fetch time.
// Freshness is decided by the caller. Get returns domain.ErrNotFound on a miss.
type ContentCache interface {
	GetHomepage(ctx context.Context) (*model.HomepageContent, error)
	SetHomepage(ctx context.Context, content *model.HomepageContent) error
	InvalidateHomepage(ctx context.Context) error
}
