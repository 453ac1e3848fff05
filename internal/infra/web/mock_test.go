//go:build !integration

package web

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// --- Auth: Login caches the user for the session, like the api client does.

type mockAuth struct {
	usecase.AuthUseCase // Embed interface for forward compatibility
	mu                  sync.Mutex
	bySID               map[string]*model.User
	accounts            map[string]*model.User // by email
	LoginErr            error
	IPs                 []string // client ip seen by each Login
}

func newMockAuth(accounts ...*model.User) *mockAuth {
	m := &mockAuth{bySID: map[string]*model.User{}, accounts: map[string]*model.User{}}
	for _, u := range accounts {
		m.accounts[u.Email] = u
	}
	return m
}

func (m *mockAuth) Login(ctx context.Context, sid, ip string, creds model.Credentials) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IPs = append(m.IPs, ip)
	if m.LoginErr != nil {
		return nil, m.LoginErr
	}
	u, ok := m.accounts[creds.Email]
	if !ok {
		return nil, domain.ErrBadCredentials
	}
	m.bySID[sid] = u
	return u, nil
}

func (m *mockAuth) Logout(ctx context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bySID, sid)
	return nil
}

func (m *mockAuth) Me(ctx context.Context, sid string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.bySID[sid]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return u, nil
}

// --- Checkout

type mockCheckout struct {
	usecase.CheckoutUseCase
	SubmitState *model.CheckoutState
	SubmitErr   error
	Started     []model.OfferQuery
}

func (m *mockCheckout) Start(ctx context.Context, sid string, q model.OfferQuery) (*model.CheckoutState, error) {
	m.Started = append(m.Started, q)
	return &model.CheckoutState{Step: model.CheckoutSelectingContactMethod, Offer: &model.Offer{ID: 12}}, nil
}

func (m *mockCheckout) Submit(ctx context.Context, sid string) (*model.CheckoutState, error) {
	return m.SubmitState, m.SubmitErr
}

func (m *mockCheckout) ContactChannels() []model.ContactChannel {
	return []model.ContactChannel{{Type: model.ContactTelegram, ContactInfo: "@signals"}}
}

// --- Console

type mockConsole struct {
	usecase.ConsoleUseCase
	mu        sync.Mutex
	pending   map[int64]*model.PendingPayment
	ActionErr error
	Actors    []usecase.Actor
	// Unrefreshed applies actions but answers without a list.
	Unrefreshed bool
}

func newMockConsole(ids ...int64) *mockConsole {
	m := &mockConsole{pending: map[int64]*model.PendingPayment{}}
	for _, id := range ids {
		m.pending[id] = &model.PendingPayment{ID: id, Status: model.PaymentStatusPending, CreatedAt: time.Unix(id, 0)}
	}
	return m
}

func (m *mockConsole) List(ctx context.Context, sid string, status model.PaymentStatus) ([]*model.PendingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.PendingPayment{}
	for _, p := range m.pending {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockConsole) Cancel(ctx context.Context, sid string, actor usecase.Actor, id int64, filter model.PaymentStatus) ([]*model.PendingPayment, error) {
	if m.ActionErr != nil {
		return nil, m.ActionErr
	}
	m.mu.Lock()
	delete(m.pending, id)
	m.Actors = append(m.Actors, actor)
	m.mu.Unlock()
	if m.Unrefreshed {
		return nil, nil
	}
	return m.List(ctx, sid, filter)
}

func (m *mockConsole) Validate(ctx context.Context, sid string, actor usecase.Actor, id int64, filter model.PaymentStatus) ([]*model.PendingPayment, error) {
	return m.Cancel(ctx, sid, actor, id, filter)
}

func (m *mockConsole) BusyRows() []int64 { return []int64{} }

// --- Catalog

type mockCatalog struct {
	usecase.CatalogUseCase
	Offers []*model.Offer
}

func (m *mockCatalog) List(ctx context.Context, t model.OfferType) ([]*model.Offer, error) {
	return m.Offers, nil
}
