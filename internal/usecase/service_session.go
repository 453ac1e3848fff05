package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
)

// ServiceSession is a BFF session owned by a background component (the Telegram bot,
// the digest job) and logged in with a staff account. The token store keeps its tokens
// like any browser session, so they are refreshed the same way.
type ServiceSession struct {
	auth  adapter.AuthAPI
	sid   string
	creds model.Credentials

	mu sync.Mutex
}

func NewServiceSession(auth adapter.AuthAPI, sid string, creds model.Credentials) *ServiceSession {
	return &ServiceSession{auth: auth, sid: sid, creds: creds}
}

// SID returns the session id, logging in first when the session holds no tokens.
func (s *ServiceSession) SID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.auth.CurrentUser(ctx, s.sid)
	if err == nil && !u.IsZero() {
		return s.sid, nil
	}
	if err != nil && !errors.Is(err, domain.ErrUnauthorized) {
		return "", err
	}
	if s.creds.Email == "" {
		return "", fmt.Errorf("%w: service account is not configured", domain.ErrUnauthorized)
	}
	if u, err = s.auth.Login(ctx, s.sid, s.creds); err != nil {
		return "", fmt.Errorf("service login: %w", err)
	}
	if !u.IsStaff {
		_ = s.auth.Logout(ctx, s.sid)
		return "", fmt.Errorf("%w: service account %s is not staff", domain.ErrForbidden, s.creds.Email)
	}
	return s.sid, nil
}

func (s *ServiceSession) Email() string { return s.creds.Email }
