//go:build !integration

package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
)

// upstreamStub counts calls per path and lets each test script the answers.
type upstreamStub struct {
	dataCalls    atomic.Int32
	refreshCalls atomic.Int32
	refreshBody  atomic.Value

	data    func(w http.ResponseWriter, r *http.Request)
	refresh func(w http.ResponseWriter, r *http.Request)
}

func (s *upstreamStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/data/", func(w http.ResponseWriter, r *http.Request) {
		s.dataCalls.Add(1)
		s.data(w, r)
	})
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.refreshBody.Store(body["refresh"])
		s.refresh(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func seededStore(t *testing.T, sid string) *MemoryTokenStore {
	t.Helper()
	store := NewMemoryTokenStore()
	err := store.Set(context.Background(), sid, &model.Tokens{
		Access:  "old-access",
		Refresh: "refresh-1",
		User:    &model.User{ID: 7, Email: "trader@example.com"},
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func TestClient_Do_SilentRefresh(t *testing.T) {
	ctx := context.Background()
	const sid = "sess-1"

	t.Run("one 401 triggers exactly one refresh and one retry with the new token", func(t *testing.T) {
		// --- Arrange ---
		stub := &upstreamStub{
			data: func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") == "Bearer new-access" {
					w.WriteHeader(http.StatusOK)
					_, _ = w.Write([]byte(`{"ok":true}`))
					return
				}
				w.WriteHeader(http.StatusUnauthorized)
			},
			refresh: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"access":"new-access"}`))
			},
		}
		srv := stub.server(t)
		store := seededStore(t, sid)
		c := New(srv.URL, srv.Client(), store, nil)

		// --- Act ---
		resp, err := c.Do(ctx, sid, Request{Path: "/api/data/"})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 after retry, got %d", resp.StatusCode)
		}
		if got := stub.refreshCalls.Load(); got != 1 {
			t.Errorf("expected exactly 1 refresh, got %d", got)
		}
		if got := stub.dataCalls.Load(); got != 2 {
			t.Errorf("expected original call plus 1 retry, got %d calls", got)
		}
		if got, _ := stub.refreshBody.Load().(string); got != "refresh-1" {
			t.Errorf("expected refresh token to be sent, got %q", got)
		}
		tokens, _ := store.Get(ctx, sid)
		if tokens.Access != "new-access" || tokens.Refresh != "refresh-1" {
			t.Errorf("unexpected stored tokens: %+v", tokens)
		}
	})

	t.Run("a retried call that is still 401 is not retried again", func(t *testing.T) {
		// --- Arrange ---
		stub := &upstreamStub{
			data: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			refresh: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"access":"new-access"}`))
			},
		}
		srv := stub.server(t)
		c := New(srv.URL, srv.Client(), seededStore(t, sid), nil)

		// --- Act ---
		resp, err := c.Do(ctx, sid, Request{Path: "/api/data/"})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected the retried 401 to be returned, got %d", resp.StatusCode)
		}
		if stub.refreshCalls.Load() != 1 || stub.dataCalls.Load() != 2 {
			t.Errorf("expected 1 refresh and 2 data calls, got %d and %d", stub.refreshCalls.Load(), stub.dataCalls.Load())
		}
	})

	t.Run("failed refresh clears the session and returns the original 401", func(t *testing.T) {
		// --- Arrange ---
		stub := &upstreamStub{
			data: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type","code":"token_not_valid"}`))
			},
			refresh: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Token is blacklisted"}`))
			},
		}
		srv := stub.server(t)
		store := seededStore(t, sid)
		c := New(srv.URL, srv.Client(), store, nil)

		// --- Act ---
		resp, err := c.Do(ctx, sid, Request{Path: "/api/data/"})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		if e := ParseAPIError(resp); e.Code != "token_not_valid" {
			t.Errorf("expected the original 401 body, got %s", resp.Body)
		}
		if stub.dataCalls.Load() != 1 {
			t.Errorf("expected no retry after failed refresh, got %d data calls", stub.dataCalls.Load())
		}
		if _, err := store.Get(ctx, sid); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected tokens and user to be cleared, got err=%v", err)
		}
	})

	t.Run("refresh transport failure keeps the session and reports the outage", func(t *testing.T) {
		// --- Arrange ---
		stub := &upstreamStub{
			data: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			refresh: func(w http.ResponseWriter, r *http.Request) {
				conn, _, err := w.(http.Hijacker).Hijack()
				if err != nil {
					t.Errorf("hijack: %v", err)
					return
				}
				_ = conn.Close()
			},
		}
		srv := stub.server(t)
		store := seededStore(t, sid)
		c := New(srv.URL, srv.Client(), store, nil)

		// --- Act ---
		resp, err := c.Do(ctx, sid, Request{Path: "/api/data/"})

		// --- Assert ---
		if !errors.Is(err, domain.ErrUpstreamUnavailable) || !errors.Is(err, domain.ErrRefreshFailed) {
			t.Fatalf("expected a wrapped upstream outage, got resp=%v err=%v", resp, err)
		}
		if stub.dataCalls.Load() != 1 {
			t.Errorf("expected no retry, got %d data calls", stub.dataCalls.Load())
		}
		tokens, gerr := store.Get(ctx, sid)
		if gerr != nil || tokens.Refresh != "refresh-1" {
			t.Errorf("expected tokens to survive, got %+v err=%v", tokens, gerr)
		}
	})

	t.Run("anonymous call is never refreshed", func(t *testing.T) {
		stub := &upstreamStub{
			data:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			refresh: func(w http.ResponseWriter, r *http.Request) {},
		}
		srv := stub.server(t)
		c := New(srv.URL, srv.Client(), NewMemoryTokenStore(), nil)

		resp, err := c.Do(ctx, "", Request{Path: "/api/data/"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusUnauthorized || stub.refreshCalls.Load() != 0 {
			t.Errorf("expected a plain 401 with no refresh, got %d with %d refreshes", resp.StatusCode, stub.refreshCalls.Load())
		}
	})

	t.Run("concurrent 401s of one session share a single refresh", func(t *testing.T) {
		// --- Arrange ---
		stub := &upstreamStub{
			data: func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") == "Bearer new-access" {
					w.WriteHeader(http.StatusOK)
					return
				}
				w.WriteHeader(http.StatusUnauthorized)
			},
			refresh: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(50 * time.Millisecond)
				_, _ = w.Write([]byte(`{"access":"new-access"}`))
			},
		}
		srv := stub.server(t)
		c := New(srv.URL, srv.Client(), seededStore(t, sid), nil)

		// --- Act ---
		var wg sync.WaitGroup
		codes := make([]int, 8)
		for i := range codes {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				resp, err := c.Do(ctx, sid, Request{Path: "/api/data/"})
				if err != nil {
					t.Errorf("call %d: %v", i, err)
					return
				}
				codes[i] = resp.StatusCode
			}(i)
		}
		wg.Wait()

		// --- Assert ---
		if got := stub.refreshCalls.Load(); got != 1 {
			t.Errorf("expected 1 upstream refresh, got %d", got)
		}
		for i, code := range codes {
			if code != http.StatusOK {
				t.Errorf("call %d: expected 200, got %d", i, code)
			}
		}
	})

	t.Run("network failure surfaces as ErrUpstreamUnavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c := New(url, nil, NewMemoryTokenStore(), nil)

		_, err := c.Do(ctx, "", Request{Path: "/api/data/"})
		if !errors.Is(err, domain.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
		}
	})
}

func TestClient_Login(t *testing.T) {
	ctx := context.Background()

	newServer := func(t *testing.T, status int, body string) *httptest.Server {
		t.Helper()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/auth/login/" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "" {
				t.Error("login must be unauthenticated")
			}
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("success stores both tokens and the user", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, `{"access":"a","refresh":"r","user":{"id":3,"email":"x@y.z","is_staff":true}}`)
		store := NewMemoryTokenStore()
		c := New(srv.URL, srv.Client(), store, nil)

		u, err := c.Login(ctx, "s", model.Credentials{Email: "x@y.z", Password: "pw"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if u.ID != 3 || !u.IsStaff {
			t.Errorf("unexpected user %+v", u)
		}
		tokens, err := store.Get(ctx, "s")
		if err != nil || tokens.Access != "a" || tokens.Refresh != "r" || tokens.User.ID != 3 {
			t.Errorf("unexpected stored tokens %+v (err=%v)", tokens, err)
		}
	})

	t.Run("unverified account is classified", func(t *testing.T) {
		srv := newServer(t, http.StatusForbidden, `{"detail":"Please verify your email first.","code":"unverified_account"}`)
		c := New(srv.URL, srv.Client(), NewMemoryTokenStore(), nil)

		_, err := c.Login(ctx, "s", model.Credentials{Email: "x@y.z", Password: "pw"})
		if !errors.Is(err, domain.ErrUnverifiedAccount) {
			t.Errorf("expected ErrUnverifiedAccount, got %v", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Detail != "Please verify your email first." {
			t.Errorf("expected the upstream detail to be kept, got %v", err)
		}
	})

	t.Run("bad credentials are classified", func(t *testing.T) {
		srv := newServer(t, http.StatusUnauthorized, `{"detail":"No active account found with the given credentials"}`)
		c := New(srv.URL, srv.Client(), NewMemoryTokenStore(), nil)

		_, err := c.Login(ctx, "s", model.Credentials{Email: "x@y.z", Password: "bad"})
		if !errors.Is(err, domain.ErrBadCredentials) {
			t.Errorf("expected ErrBadCredentials, got %v", err)
		}
	})
}

func TestParseAPIError_FieldErrors(t *testing.T) {
	resp := &Response{StatusCode: http.StatusBadRequest, Body: []byte(`{"email":["user with this email already exists."]}`)}

	e := ParseAPIError(resp)

	if e.Message() != "email: user with this email already exists." {
		t.Errorf("unexpected message %q", e.Message())
	}
	if !errors.Is(e, domain.ErrInvalidArgument) {
		t.Error("expected a 400 to match ErrInvalidArgument")
	}
}

func TestDecodeList_AcceptsPaginatedEnvelope(t *testing.T) {
	resp := &Response{StatusCode: http.StatusOK, Body: []byte(`{"count":1,"results":[{"id":42,"status":"pending","amount":"49.00"}]}`)}

	list, err := decodeList[*model.PendingPayment](resp)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(list) != 1 || list[0].ID != 42 || list[0].Amount.String() != "49" {
		t.Errorf("unexpected list %+v", list)
	}
}
