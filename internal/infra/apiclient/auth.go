package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/infra/metrics"
)

var _ adapter.AuthAPI = (*Client)(nil)

type loginResponse struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	User    *model.User `json:"user"`
}

// Login is unauthenticated. On success both tokens and the user profile are stored for sid.
// Failures are classified into unverified account, bad credentials or network.
func (c *Client) Login(ctx context.Context, sid string, creds model.Credentials) (*model.User, error) {
	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: "/api/auth/login/", Body: creds}, "")
	if err != nil {
		metrics.IncLogin(string(AuthErrNetwork))
		return nil, err
	}
	if !resp.OK() {
		apiErr := ParseAPIError(resp)
		cat := ClassifyAuthError(apiErr)
		metrics.IncLogin(string(cat))
		return nil, fmt.Errorf("%w: %w", cat.DomainError(), apiErr)
	}

	var out loginResponse
	if err := resp.Decode(&out); err != nil {
		metrics.IncLogin(string(AuthErrUnknown))
		return nil, err
	}
	if out.Access == "" || out.Refresh == "" {
		metrics.IncLogin(string(AuthErrUnknown))
		return nil, fmt.Errorf("%w: login response carried no tokens", domain.ErrOperationFailed)
	}
	if err := c.tokens.Set(ctx, sid, &model.Tokens{Access: out.Access, Refresh: out.Refresh, User: out.User}); err != nil {
		return nil, fmt.Errorf("store session tokens: %w", err)
	}
	metrics.IncLogin("ok")
	return out.User, nil
}

// Register is unauthenticated; the account must be verified before login succeeds.
func (c *Client) Register(ctx context.Context, reg model.Registration) error {
	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: "/api/auth/register/", Body: reg}, "")
	if err != nil {
		metrics.IncRegistration(err)
		return err
	}
	if !resp.OK() {
		apiErr := ParseAPIError(resp)
		metrics.IncRegistration(apiErr)
		return apiErr
	}
	metrics.IncRegistration(nil)
	return nil
}

func (c *Client) Logout(ctx context.Context, sid string) error {
	return c.tokens.Clear(ctx, sid)
}

// CurrentUser returns the profile cached at login.
func (c *Client) CurrentUser(ctx context.Context, sid string) (*model.User, error) {
	t, err := c.tokens.Get(ctx, sid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if t.User.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	return t.User, nil
}
