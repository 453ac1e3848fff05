package adapter

import (
	"context"
	"encoding/json"

	"signals-platform/internal/domain/model"
)

// The upstream REST API. Every call is made on behalf of a BFF session (sid)
// whose tokens are attached and refreshed by the implementation.

type AuthAPI interface {
	Login(ctx context.Context, sid string, creds model.Credentials) (*model.User, error)
	Register(ctx context.Context, reg model.Registration) error
	Logout(ctx context.Context, sid string) error
	CurrentUser(ctx context.Context, sid string) (*model.User, error)
}

type PaymentAPI interface {
	CreatePendingPayment(ctx context.Context, sid string, req model.PendingPaymentRequest) (*model.PendingPayment, error)
	UserDashboard(ctx context.Context, sid string) (*model.UserDashboard, error)

	ListPendingPayments(ctx context.Context, sid string, status model.PaymentStatus) ([]*model.PendingPayment, error)
	ValidatePayment(ctx context.Context, sid string, id int64) (*model.PendingPayment, error)
	CancelPayment(ctx context.Context, sid string, id int64) (*model.PendingPayment, error)
	AdminDashboard(ctx context.Context, sid string) (*model.AdminDashboard, error)
}

type ContentAPI interface {
	Homepage(ctx context.Context) (json.RawMessage, error)
	ListBlocks(ctx context.Context, sid string, page string) ([]*model.ContentBlock, error)
	CreateBlock(ctx context.Context, sid string, block *model.ContentBlock) (*model.ContentBlock, error)
	UpdateBlock(ctx context.Context, sid string, block *model.ContentBlock) (*model.ContentBlock, error)
	DeleteBlock(ctx context.Context, sid string, id int64) error
}
