package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
)

var _ repository.CheckoutStateRepository = (*CheckoutStateRepo)(nil)

// CheckoutStateRepo keeps each session's checkout progress in Redis.
type CheckoutStateRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewCheckoutStateRepo(client RedisClient, ttl time.Duration) *CheckoutStateRepo {
	return &CheckoutStateRepo{client: client, ttl: ttl}
}

func (s *CheckoutStateRepo) stateKey(sid string) string {
	return fmt.Sprintf("checkout:%s", sid)
}

func (s *CheckoutStateRepo) Save(ctx context.Context, sid string, state *model.CheckoutState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.stateKey(sid), data, s.ttl)
}

func (s *CheckoutStateRepo) Get(ctx context.Context, sid string) (*model.CheckoutState, error) {
	data, err := s.client.Get(ctx, s.stateKey(sid))
	if err != nil {
		return nil, err
	}
	var state model.CheckoutState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode checkout state: %w", err)
	}
	return &state, nil
}

func (s *CheckoutStateRepo) Clear(ctx context.Context, sid string) error {
	return s.client.Del(ctx, s.stateKey(sid))
}
