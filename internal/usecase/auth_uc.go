package usecase

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/infra/logging"
)

// Compile-time check
var _ AuthUseCase = (*authUC)(nil)

// LoginLimiter throttles login attempts; nil disables throttling.
type LoginLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type AuthUseCase interface {
	Login(ctx context.Context, sid, remoteIP string, creds model.Credentials) (*model.User, error)
	Register(ctx context.Context, reg model.Registration) error
	// Logout drops the session's checkout together with its tokens.
	Logout(ctx context.Context, sid string) error
	Me(ctx context.Context, sid string) (*model.User, error)
}

var ErrTooManyAttempts = fmt.Errorf("%w: too many login attempts", domain.ErrForbidden)

type authUC struct {
	api      adapter.AuthAPI
	limiter  LoginLimiter
	keyFunc  func(ip, email string) string
	limit    int
	window   time.Duration
	checkout CheckoutUseCase
	dev      bool
	log      *zerolog.Logger
}

type AuthOptions struct {
	Limiter     LoginLimiter
	LimiterKey  func(ip, email string) string
	MaxAttempts int
	Window      time.Duration
	Checkout    CheckoutUseCase
	Dev         bool
}

func NewAuthUseCase(api adapter.AuthAPI, opts AuthOptions, logger *zerolog.Logger) *authUC {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.Window <= 0 {
		opts.Window = 15 * time.Minute
	}
	if opts.LimiterKey == nil {
		opts.LimiterKey = func(ip, email string) string { return "login:" + ip + ":" + strings.ToLower(email) }
	}
	l := logger.With().Str("component", "auth").Logger()
	return &authUC{
		api:      api,
		limiter:  opts.Limiter,
		keyFunc:  opts.LimiterKey,
		limit:    opts.MaxAttempts,
		window:   opts.Window,
		checkout: opts.Checkout,
		dev:      opts.Dev,
		log:      &l,
	}
}

func (uc *authUC) Login(ctx context.Context, sid, remoteIP string, creds model.Credentials) (*model.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidArgument)
	}
	log := logging.With(ctx, uc.log)

	if uc.limiter != nil {
		ok, err := uc.limiter.Allow(ctx, uc.keyFunc(remoteIP, creds.Email), uc.limit, uc.window)
		if err != nil {
			log.Warn().Err(err).Msg("login limiter unavailable")
		} else if !ok {
			return nil, ErrTooManyAttempts
		}
	}

	u, err := uc.api.Login(ctx, sid, creds)
	if err != nil {
		log.Info().Err(err).Str("email", logging.Redact(creds.Email, uc.dev)).Msg("login failed")
		return nil, err
	}
	log.Info().Int64("user_id", u.ID).Bool("staff", u.IsStaff).Msg("login succeeded")
	return u, nil
}

func (uc *authUC) Register(ctx context.Context, reg model.Registration) error {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Username = strings.TrimSpace(reg.Username)
	if reg.Username == "" || reg.Password == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrInvalidArgument)
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		return fmt.Errorf("%w: invalid email address", domain.ErrInvalidArgument)
	}
	return uc.api.Register(ctx, reg)
}

func (uc *authUC) Logout(ctx context.Context, sid string) error {
	if uc.checkout != nil {
		if err := uc.checkout.Reset(ctx, sid); err != nil {
			logging.With(ctx, uc.log).Warn().Err(err).Msg("checkout reset on logout failed")
		}
	}
	return uc.api.Logout(ctx, sid)
}

func (uc *authUC) Me(ctx context.Context, sid string) (*model.User, error) {
	return uc.api.CurrentUser(ctx, sid)
}
