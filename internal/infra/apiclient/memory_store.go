package apiclient

import (
	"context"
	"sync"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
)

var _ repository.TokenStore = (*MemoryTokenStore)(nil)

// MemoryTokenStore keeps session tokens in process memory. Used in dev mode and tests.
type MemoryTokenStore struct {
	mu       sync.Mutex
	sessions map[string]model.Tokens
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{sessions: map[string]model.Tokens{}}
}

func (s *MemoryTokenStore) Get(_ context.Context, sid string) (*model.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sessions[sid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t.User != nil {
		u := *t.User
		t.User = &u
	}
	return &t, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, sid string, tokens *model.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *tokens
	if t.User != nil {
		u := *t.User
		t.User = &u
	}
	s.sessions[sid] = t
	return nil
}

func (s *MemoryTokenStore) SetAccess(_ context.Context, sid string, access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sessions[sid]
	if !ok {
		return domain.ErrNotFound
	}
	t.Access = access
	s.sessions[sid] = t
	return nil
}

func (s *MemoryTokenStore) Clear(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	return nil
}
