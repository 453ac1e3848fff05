package repository

import (
	"context"
	"time"
)

// RowLocker guards an admin action on one payment across processes.
// TryLock returns domain.ErrRowBusy when the key is held.
type RowLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
