//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func intPtr(v int) *int { return &v }

// fixedClock returns a clock frozen at *t; tests move time by assigning to *t.
func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

// --- Mock OfferRepository

type MockOfferRepo struct {
	Offers []*model.Offer
	Err    error
	calls  int
}

func (m *MockOfferRepo) ListAll(ctx context.Context) ([]*model.Offer, error) {
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Offers, nil
}

func (m *MockOfferRepo) ListByType(ctx context.Context, t model.OfferType) ([]*model.Offer, error) {
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*model.Offer
	for _, o := range m.Offers {
		if o.OfferType == t {
			out = append(out, o)
		}
	}
	return out, nil
}

// --- In-memory CheckoutStateRepository

type memCheckoutStates struct {
	mu     sync.Mutex
	states map[string]model.CheckoutState
	saves  []model.CheckoutStep
	// HonorCtx makes Save fail on a cancelled context, like the Redis client does.
	HonorCtx bool
}

func newMemCheckoutStates() *memCheckoutStates {
	return &memCheckoutStates{states: map[string]model.CheckoutState{}}
}

func (m *memCheckoutStates) Get(ctx context.Context, sid string) (*model.CheckoutState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[sid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (m *memCheckoutStates) Save(ctx context.Context, sid string, st *model.CheckoutState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HonorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	m.states[sid] = *st
	m.saves = append(m.saves, st.Step)
	return nil
}

func (m *memCheckoutStates) Clear(ctx context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sid)
	return nil
}

// --- Mock PaymentAPI

type MockPaymentAPI struct {
	mu sync.Mutex

	CreateFunc    func(ctx context.Context, sid string, req model.PendingPaymentRequest) (*model.PendingPayment, error)
	DashboardFunc func(ctx context.Context, sid string) (*model.UserDashboard, error)
	ListFunc      func(ctx context.Context, sid string, status model.PaymentStatus) ([]*model.PendingPayment, error)
	ValidateFunc  func(ctx context.Context, sid string, id int64) (*model.PendingPayment, error)
	CancelFunc    func(ctx context.Context, sid string, id int64) (*model.PendingPayment, error)

	Created   []model.PendingPaymentRequest
	Validated []int64
	Cancelled []int64
	Listed    []model.PaymentStatus
}

func (m *MockPaymentAPI) CreatePendingPayment(ctx context.Context, sid string, req model.PendingPaymentRequest) (*model.PendingPayment, error) {
	m.mu.Lock()
	m.Created = append(m.Created, req)
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, sid, req)
	}
	return &model.PendingPayment{ID: 1, OfferID: req.Offer, Status: model.PaymentStatusPending}, nil
}

func (m *MockPaymentAPI) UserDashboard(ctx context.Context, sid string) (*model.UserDashboard, error) {
	if m.DashboardFunc != nil {
		return m.DashboardFunc(ctx, sid)
	}
	return &model.UserDashboard{}, nil
}

func (m *MockPaymentAPI) ListPendingPayments(ctx context.Context, sid string, status model.PaymentStatus) ([]*model.PendingPayment, error) {
	m.mu.Lock()
	m.Listed = append(m.Listed, status)
	m.mu.Unlock()
	if m.ListFunc != nil {
		return m.ListFunc(ctx, sid, status)
	}
	return nil, nil
}

func (m *MockPaymentAPI) ValidatePayment(ctx context.Context, sid string, id int64) (*model.PendingPayment, error) {
	m.mu.Lock()
	m.Validated = append(m.Validated, id)
	m.mu.Unlock()
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, sid, id)
	}
	return &model.PendingPayment{ID: id, Status: model.PaymentStatusConfirmed}, nil
}

func (m *MockPaymentAPI) CancelPayment(ctx context.Context, sid string, id int64) (*model.PendingPayment, error) {
	m.mu.Lock()
	m.Cancelled = append(m.Cancelled, id)
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, sid, id)
	}
	return &model.PendingPayment{ID: id, Status: model.PaymentStatusCancelled}, nil
}

func (m *MockPaymentAPI) AdminDashboard(ctx context.Context, sid string) (*model.AdminDashboard, error) {
	return &model.AdminDashboard{}, nil
}

func (m *MockPaymentAPI) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created)
}

// --- Mock AdminNotifier

type MockNotifier struct {
	mu      sync.Mutex
	Err     error
	Pending []*model.PendingPayment
	Digests [][]*model.PendingPayment
}

func (m *MockNotifier) NotifyPendingPayment(ctx context.Context, p *model.PendingPayment, offer *model.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pending = append(m.Pending, p)
	return m.Err
}

func (m *MockNotifier) NotifyPendingDigest(ctx context.Context, pending []*model.PendingPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Digests = append(m.Digests, pending)
	return m.Err
}

// --- Mock EventPublisher

type MockEvents struct {
	mu   sync.Mutex
	Err  error
	Keys []string
}

func (m *MockEvents) Publish(ctx context.Context, routingKey string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Keys = append(m.Keys, routingKey)
	return m.Err
}

func (m *MockEvents) Close() error { return nil }

// --- In-memory RowLocker

type memLocker struct {
	mu   sync.Mutex
	held map[string]string
	Err  error
}

func newMemLocker() *memLocker { return &memLocker{held: map[string]string{}} }

func (m *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if _, ok := m.held[key]; ok {
		return "", domain.ErrRowBusy
	}
	m.held[key] = "tok-" + key
	return m.held[key], nil
}

func (m *memLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// --- In-memory AdminActionRepository

type memAudit struct {
	mu      sync.Mutex
	actions []*model.AdminAction
}

func (m *memAudit) Save(ctx context.Context, tx repository.Tx, a *model.AdminAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.actions = append(m.actions, &cp)
	return nil
}

func (m *memAudit) ListByPayment(ctx context.Context, tx repository.Tx, id int64) ([]*model.AdminAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AdminAction
	for _, a := range m.actions {
		if a.PaymentID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAudit) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AdminAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.actions) {
		limit = len(m.actions)
	}
	return m.actions[len(m.actions)-limit:], nil
}

// --- Mock ContentAPI

type MockContentAPI struct {
	mu        sync.Mutex
	Payload   json.RawMessage
	Err       error
	Fetches   int
	Deleted   []int64
	CreateErr error
	// Started receives one value per fetch; Gate holds fetches until closed.
	// A held fetch honors ctx cancellation.
	Started chan struct{}
	Gate    chan struct{}
}

func (m *MockContentAPI) Homepage(ctx context.Context) (json.RawMessage, error) {
	m.mu.Lock()
	m.Fetches++
	payload, err := m.Payload, m.Err
	m.mu.Unlock()
	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (m *MockContentAPI) ListBlocks(ctx context.Context, sid, page string) ([]*model.ContentBlock, error) {
	return nil, nil
}

func (m *MockContentAPI) CreateBlock(ctx context.Context, sid string, b *model.ContentBlock) (*model.ContentBlock, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	cp := *b
	cp.ID = 7
	return &cp, nil
}

func (m *MockContentAPI) UpdateBlock(ctx context.Context, sid string, b *model.ContentBlock) (*model.ContentBlock, error) {
	cp := *b
	return &cp, nil
}

func (m *MockContentAPI) DeleteBlock(ctx context.Context, sid string, id int64) error {
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockContentAPI) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Fetches
}

// --- In-memory ContentCache

type memContentCache struct {
	mu          sync.Mutex
	content     *model.HomepageContent
	invalidated int
}

func (m *memContentCache) GetHomepage(ctx context.Context) (*model.HomepageContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.content == nil {
		return nil, domain.ErrNotFound
	}
	cp := *m.content
	return &cp, nil
}

func (m *memContentCache) SetHomepage(ctx context.Context, c *model.HomepageContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.content = &cp
	return nil
}

func (m *memContentCache) cached() *model.HomepageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content
}

func (m *memContentCache) InvalidateHomepage(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = nil
	m.invalidated++
	return nil
}

// --- In-memory WidgetLayoutRepository and TransactionManager

type memLayouts struct {
	mu      sync.Mutex
	store   map[string]*model.WidgetLayout
	upserts int
}

func newMemLayouts() *memLayouts { return &memLayouts{store: map[string]*model.WidgetLayout{}} }

func layoutKey(userID int64, surface string) string {
	return fmt.Sprintf("%d:%s", userID, surface)
}

func (m *memLayouts) Find(ctx context.Context, tx repository.Tx, userID int64, surface string) (*model.WidgetLayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[layoutKey(userID, surface)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLayouts) Upsert(ctx context.Context, tx repository.Tx, l *model.WidgetLayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.store[layoutKey(l.UserID, l.Surface)] = &cp
	m.upserts++
	return nil
}

func (m *memLayouts) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.WidgetLayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WidgetLayout
	for _, l := range m.store {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

type MockTxManager struct{ calls int }

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	return fn(ctx, struct{}{})
}

// --- Mock AuthAPI

type MockAuthAPI struct {
	mu        sync.Mutex
	Users     map[string]*model.User // by sid
	LoginFn   func(ctx context.Context, sid string, creds model.Credentials) (*model.User, error)
	RegErr    error
	Logins    int
	LoggedOut []string
}

func newMockAuthAPI() *MockAuthAPI { return &MockAuthAPI{Users: map[string]*model.User{}} }

func (m *MockAuthAPI) Login(ctx context.Context, sid string, creds model.Credentials) (*model.User, error) {
	m.mu.Lock()
	m.Logins++
	m.mu.Unlock()
	if m.LoginFn != nil {
		u, err := m.LoginFn(ctx, sid, creds)
		if err == nil {
			m.mu.Lock()
			m.Users[sid] = u
			m.mu.Unlock()
		}
		return u, err
	}
	u := &model.User{ID: 1, Email: creds.Email}
	m.mu.Lock()
	m.Users[sid] = u
	m.mu.Unlock()
	return u, nil
}

func (m *MockAuthAPI) Register(ctx context.Context, reg model.Registration) error { return m.RegErr }

func (m *MockAuthAPI) Logout(ctx context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Users, sid)
	m.LoggedOut = append(m.LoggedOut, sid)
	return nil
}

func (m *MockAuthAPI) CurrentUser(ctx context.Context, sid string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[sid]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return u, nil
}
