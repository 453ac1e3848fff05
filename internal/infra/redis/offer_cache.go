package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
	"signals-platform/internal/infra/metrics"
)

var _ repository.OfferRepository = (*offerCacheDecorator)(nil)

type offerCacheDecorator struct {
	inner repository.OfferRepository
	cache RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewOfferCacheDecorator caches the upstream offer lists. Offers are edited upstream,
// so entries simply expire after ttl.
func NewOfferCacheDecorator(inner repository.OfferRepository, cache RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.OfferRepository {
	return &offerCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func (d *offerCacheDecorator) ListAll(ctx context.Context) ([]*model.Offer, error) {
	return d.cached(ctx, "offers:all", func() ([]*model.Offer, error) {
		return d.inner.ListAll(ctx)
	})
}

func (d *offerCacheDecorator) ListByType(ctx context.Context, t model.OfferType) ([]*model.Offer, error) {
	return d.cached(ctx, "offers:type:"+string(t), func() ([]*model.Offer, error) {
		return d.inner.ListByType(ctx, t)
	})
}

func (d *offerCacheDecorator) cached(ctx context.Context, key string, load func() ([]*model.Offer, error)) ([]*model.Offer, error) {
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var offers []*model.Offer
		if json.Unmarshal([]byte(val), &offers) == nil {
			metrics.IncCacheRequest("offers", "hit")
			return offers, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) && d.log != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("offer cache read failed")
	}

	metrics.IncCacheRequest("offers", "miss")
	offers, err := load()
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(offers); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil && d.log != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("offer cache write failed")
		}
	}
	return offers, nil
}
