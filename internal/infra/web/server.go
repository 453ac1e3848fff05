package web

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"signals-platform/internal/domain/model"
	"signals-platform/internal/infra/logging"
	"signals-platform/internal/usecase"
)

// Services are the use cases the HTTP API exposes.
type Services struct {
	Auth      usecase.AuthUseCase
	Catalog   usecase.CatalogUseCase
	Checkout  usecase.CheckoutUseCase
	Console   usecase.ConsoleUseCase
	Dashboard usecase.DashboardUseCase
	Content   usecase.ContentUseCase
	Layouts   usecase.LayoutUseCase
}

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// ConfirmURL is sent with registrations when the client does not supply one.
	ConfirmURL string
	// TrustedProxies are the peers allowed to set X-Forwarded-For.
	TrustedProxies []netip.Prefix
}

type Server struct {
	svc      Services
	sessions *SessionManager
	opts     Options
	log      *zerolog.Logger
}

func NewServer(svc Services, sessions *SessionManager, opts Options, logger *zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	l := logger.With().Str("component", "http").Logger()
	return &Server{svc: svc, sessions: sessions, opts: opts, log: &l}
}

// Routes builds the full router: /health, /metrics and the /api/v1 surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID())
	r.Use(ClientIP(s.opts.TrustedProxies))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", traceHeader},
		ExposedHeaders:   []string{traceHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.sessions.Sessions())
		r.Use(RequestLog(s.log))
		r.Use(Timeout(s.opts.RequestTimeout))

		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/auth/me", s.handleMe)

		r.Get("/offers", s.handleListOffers)
		r.Get("/offers/type/{type}", s.handleListOffersByType)
		r.Get("/offers/resolve", s.handleResolveOffer)
		r.Get("/offers/{id}", s.handleGetOffer)
		r.Get("/contact-channels", s.handleContactChannels)
		r.Get("/content/homepage", s.handleHomepage)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/checkout", s.handleCheckoutCurrent)
			r.Post("/checkout/start", s.handleCheckoutStart)
			r.Put("/checkout/contact-method", s.handleCheckoutMethod)
			r.Put("/checkout/contact-info", s.handleCheckoutInfo)
			r.Post("/checkout/submit", s.handleCheckoutSubmit)
			r.Delete("/checkout", s.handleCheckoutReset)

			r.Get("/dashboard", s.handleDashboard)
			r.Get("/layouts", s.handleListLayouts)
			r.Get("/layouts/{surface}", s.handleGetLayout)
			r.Put("/layouts/{surface}", s.handleSaveLayout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireUser, requireStaff)

			r.Get("/dashboard", s.handleAdminDashboard)
			r.Get("/payments", s.handleAdminPayments)
			r.Post("/payments/{id}/validate", s.handleAdminValidate)
			r.Post("/payments/{id}/cancel", s.handleAdminCancel)
			r.Get("/payments/{id}/actions", s.handleAdminHistory)
			r.Get("/actions", s.handleAdminRecentActions)

			r.Get("/content/blocks", s.handleListBlocks)
			r.Post("/content/blocks", s.handleCreateBlock)
			r.Put("/content/blocks/{id}", s.handleUpdateBlock)
			r.Delete("/content/blocks/{id}", s.handleDeleteBlock)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type userCtxKey struct{}

// requireUser resolves the session's cached profile; anonymous sessions get 401.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.svc.Auth.Me(r.Context(), sessionID(r.Context()))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userCtxKey{}, u)
		ctx = logging.WithUserID(ctx, u.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r.Context())
		if u == nil || !u.IsStaff {
			writeToast(w, http.StatusForbidden, Toast{Title: "Not allowed", Description: "Administrator access is required.", Variant: destructive})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(ctx context.Context) *model.User {
	u, _ := ctx.Value(userCtxKey{}).(*model.User)
	return u
}

// fail logs server-side failures and writes the toast.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, t := toastFor(err)
	l := logging.With(r.Context(), s.log)
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		l.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request rejected")
	}
	writeToast(w, status, t)
}
