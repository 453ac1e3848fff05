package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/domain/ports/repository"
	"signals-platform/internal/infra/metrics"
)

// Compile-time check
var _ ContentUseCase = (*contentUC)(nil)

// ContentUseCase serves the cached homepage and passes CMS block edits through to the upstream.
type ContentUseCase interface {
	// Homepage is served from cache while now-fetched_at < ttl, refetched otherwise.
	Homepage(ctx context.Context) (*model.HomepageContent, error)
	ListBlocks(ctx context.Context, sid, page string) ([]*model.ContentBlock, error)
	CreateBlock(ctx context.Context, sid string, b *model.ContentBlock) (*model.ContentBlock, error)
	UpdateBlock(ctx context.Context, sid string, b *model.ContentBlock) (*model.ContentBlock, error)
	DeleteBlock(ctx context.Context, sid string, id int64) error
}

type contentUC struct {
	api   adapter.ContentAPI
	cache repository.ContentCache
	ttl   time.Duration
	clock Clock
	log   *zerolog.Logger

	fetches singleflight.Group

	// gen counts invalidations; a fetch that overlaps one is not cached.
	genMu sync.Mutex
	gen   uint64
}

func NewContentUseCase(api adapter.ContentAPI, cache repository.ContentCache, ttl time.Duration, clock Clock, logger *zerolog.Logger) *contentUC {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l := logger.With().Str("component", "content").Logger()
	return &contentUC{api: api, cache: cache, ttl: ttl, clock: clock, log: &l}
}

func (uc *contentUC) Homepage(ctx context.Context) (*model.HomepageContent, error) {
	cached, err := uc.cache.GetHomepage(ctx)
	switch {
	case err == nil && uc.clock.now().Sub(cached.FetchedAt) < uc.ttl:
		metrics.IncCacheRequest("homepage", "hit")
		return cached, nil
	case err == nil:
		metrics.IncCacheRequest("homepage", "stale")
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncCacheRequest("homepage", "miss")
	default:
		metrics.IncCacheRequest("homepage", "error")
		uc.log.Warn().Err(err).Msg("homepage cache read failed")
		cached = nil
	}

	gen := uc.generation()
	v, err, _ := uc.fetches.Do("homepage:"+strconv.FormatUint(gen, 10), func() (any, error) {
		// shared by every waiter, so it must not die with the first caller
		fctx := context.WithoutCancel(ctx)
		payload, err := uc.api.Homepage(fctx)
		if err != nil {
			return nil, err
		}
		fresh := &model.HomepageContent{Payload: payload, FetchedAt: uc.clock.now()}
		uc.store(fctx, gen, fresh)
		return fresh, nil
	})
	if err != nil {
		if cached != nil {
			uc.log.Warn().Err(err).Time("fetched_at", cached.FetchedAt).Msg("homepage refetch failed, serving stale copy")
			return cached, nil
		}
		return nil, err
	}
	return v.(*model.HomepageContent), nil
}

func (uc *contentUC) ListBlocks(ctx context.Context, sid, page string) ([]*model.ContentBlock, error) {
	blocks, err := uc.api.ListBlocks(ctx, sid, strings.TrimSpace(page))
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []*model.ContentBlock{}
	}
	return blocks, nil
}

func validateBlock(b *model.ContentBlock) error {
	if b == nil {
		return fmt.Errorf("%w: empty block", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(b.Page) == "" || strings.TrimSpace(b.Key) == "" {
		return fmt.Errorf("%w: page and key are required", domain.ErrInvalidArgument)
	}
	if len(b.Content) > 0 && !json.Valid(b.Content) {
		return fmt.Errorf("%w: content is not valid JSON", domain.ErrInvalidArgument)
	}
	return nil
}

func (uc *contentUC) CreateBlock(ctx context.Context, sid string, b *model.ContentBlock) (*model.ContentBlock, error) {
	if err := validateBlock(b); err != nil {
		return nil, err
	}
	out, err := uc.api.CreateBlock(ctx, sid, b)
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx)
	return out, nil
}

func (uc *contentUC) UpdateBlock(ctx context.Context, sid string, b *model.ContentBlock) (*model.ContentBlock, error) {
	if err := validateBlock(b); err != nil {
		return nil, err
	}
	if b.ID <= 0 {
		return nil, fmt.Errorf("%w: block id is required", domain.ErrInvalidArgument)
	}
	out, err := uc.api.UpdateBlock(ctx, sid, b)
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx)
	return out, nil
}

func (uc *contentUC) DeleteBlock(ctx context.Context, sid string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: block id is required", domain.ErrInvalidArgument)
	}
	if err := uc.api.DeleteBlock(ctx, sid, id); err != nil {
		return err
	}
	uc.invalidate(ctx)
	return nil
}

func (uc *contentUC) generation() uint64 {
	uc.genMu.Lock()
	defer uc.genMu.Unlock()
	return uc.gen
}

// store writes fresh unless an invalidation happened since the fetch began.
func (uc *contentUC) store(ctx context.Context, gen uint64, fresh *model.HomepageContent) {
	uc.genMu.Lock()
	defer uc.genMu.Unlock()
	if uc.gen != gen {
		uc.log.Debug().Msg("homepage changed during fetch, not caching")
		return
	}
	if err := uc.cache.SetHomepage(ctx, fresh); err != nil {
		uc.log.Warn().Err(err).Msg("homepage cache write failed")
	}
}

func (uc *contentUC) invalidate(ctx context.Context) {
	uc.genMu.Lock()
	uc.gen++
	uc.genMu.Unlock()
	if err := uc.cache.InvalidateHomepage(ctx); err != nil {
		uc.log.Warn().Err(err).Msg("homepage cache invalidation failed")
	}
}
