package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"signals-platform/internal/infra/logging"
)

// ===== Session cookie =====

// SessionManager issues the browser's BFF session cookie: an HS256 JWT whose subject is the
// session id the token store and checkout state are keyed by. The cookie carries no upstream token.
type SessionManager struct {
	secret []byte
	name   string
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(secret, cookieName string, secure bool, ttl time.Duration) *SessionManager {
	if cookieName == "" {
		cookieName = "signals_session"
	}
	return &SessionManager{secret: []byte(secret), name: cookieName, secure: secure, ttl: ttl, now: time.Now}
}

type SessionClaims struct {
	jwt.RegisteredClaims
}

var errNoSession = errors.New("missing session")

// Mint signs a cookie for sid and sets it on w.
func (m *SessionManager) Mint(w http.ResponseWriter, sid string) error {
	now := m.now()
	claims := SessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sid,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Parse returns the session id carried by the request cookie.
func (m *SessionManager) Parse(r *http.Request) (string, error) {
	c, err := r.Cookie(m.name)
	if err != nil || c.Value == "" {
		return "", errNoSession
	}
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", errors.New("invalid session")
	}
	return claims.Subject, nil
}

type sessCtxKey struct{}

// Sessions attaches a session id to every request, minting a cookie for new browsers.
func (m *SessionManager) Sessions() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, err := m.Parse(r)
			if err != nil {
				sid = uuid.NewString()
				if err := m.Mint(w, sid); err != nil {
					writeToast(w, http.StatusInternalServerError, genericToast)
					return
				}
			}
			ctx := context.WithValue(r.Context(), sessCtxKey{}, sid)
			ctx = logging.WithSessID(ctx, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessCtxKey{}).(string)
	return v
}
