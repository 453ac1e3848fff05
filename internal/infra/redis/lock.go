// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/ports/repository"
)

var _ repository.RowLocker = (*RedisLocker)(nil)

// RedisLocker is a best-effort lock shared by every BFF replica.
type RedisLocker struct {
	cli RedisClient
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{cli: c}
}

// TryLock makes a single attempt; a held key yields domain.ErrRowBusy.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrRowBusy
	}
	return token, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.cli.DelIfEquals(ctx, key, token)
	return err
}
