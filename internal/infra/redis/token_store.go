package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
)

var _ repository.TokenStore = (*TokenStore)(nil)

type sealer interface {
	Seal(plain []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// TokenStore persists upstream tokens and the cached profile per BFF session.
// The entry lives as long as the session cookie. With a sealer the entry is encrypted at rest.
type TokenStore struct {
	client RedisClient
	ttl    time.Duration
	sealer sealer
}

func NewTokenStore(client RedisClient, ttl time.Duration, s sealer) *TokenStore {
	return &TokenStore{client: client, ttl: ttl, sealer: s}
}

func (s *TokenStore) key(sid string) string {
	return fmt.Sprintf("session:%s:tokens", sid)
}

func (s *TokenStore) Get(ctx context.Context, sid string) (*model.Tokens, error) {
	data, err := s.client.Get(ctx, s.key(sid))
	if err != nil {
		return nil, err
	}
	raw := []byte(data)
	if s.sealer != nil {
		if raw, err = s.sealer.Open(data); err != nil {
			return nil, fmt.Errorf("open session tokens: %w", err)
		}
	}
	var t model.Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode session tokens: %w", err)
	}
	return &t, nil
}

func (s *TokenStore) Set(ctx context.Context, sid string, tokens *model.Tokens) error {
	data, err := s.encode(tokens)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sid), data, s.ttl)
}

// SetAccess replaces the access token and keeps the refresh token, user and remaining TTL.
func (s *TokenStore) SetAccess(ctx context.Context, sid string, access string) error {
	t, err := s.Get(ctx, sid)
	if err != nil {
		return err
	}
	t.Access = access
	data, err := s.encode(t)
	if err != nil {
		return err
	}
	ttl, err := s.client.TTL(ctx, s.key(sid))
	if err != nil || ttl <= 0 {
		ttl = s.ttl
	}
	return s.client.Set(ctx, s.key(sid), data, ttl)
}

func (s *TokenStore) Clear(ctx context.Context, sid string) error {
	return s.client.Del(ctx, s.key(sid))
}

func (s *TokenStore) encode(t *model.Tokens) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	if s.sealer == nil {
		return string(data), nil
	}
	return s.sealer.Seal(data)
}
