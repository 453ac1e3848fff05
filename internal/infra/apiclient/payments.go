package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
)

var _ adapter.PaymentAPI = (*Client)(nil)

func (c *Client) CreatePendingPayment(ctx context.Context, sid string, req model.PendingPaymentRequest) (*model.PendingPayment, error) {
	var out model.PendingPayment
	err := c.call(ctx, sid, Request{Method: http.MethodPost, Path: "/api/payments/pending/", Body: req}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UserDashboard(ctx context.Context, sid string) (*model.UserDashboard, error) {
	var out model.UserDashboard
	if err := c.call(ctx, sid, Request{Path: "/api/payments/user/dashboard/"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListPendingPayments(ctx context.Context, sid string, status model.PaymentStatus) ([]*model.PendingPayment, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	resp, err := c.callList(ctx, sid, Request{Path: "/api/payments/admin/pending/", Query: q})
	if err != nil {
		return nil, err
	}
	return decodeList[*model.PendingPayment](resp)
}

func (c *Client) ValidatePayment(ctx context.Context, sid string, id int64) (*model.PendingPayment, error) {
	return c.adminAction(ctx, sid, id, "validate")
}

func (c *Client) CancelPayment(ctx context.Context, sid string, id int64) (*model.PendingPayment, error) {
	return c.adminAction(ctx, sid, id, "cancel")
}

func (c *Client) adminAction(ctx context.Context, sid string, id int64, action string) (*model.PendingPayment, error) {
	var out model.PendingPayment
	err := c.call(ctx, sid, Request{
		Method:   http.MethodPost,
		Path:     "/api/payments/admin/pending/" + strconv.FormatInt(id, 10) + "/" + action + "/",
		Endpoint: "/api/payments/admin/pending/{id}/" + action + "/",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminDashboard(ctx context.Context, sid string) (*model.AdminDashboard, error) {
	var out model.AdminDashboard
	if err := c.call(ctx, sid, Request{Path: "/api/payments/admin/dashboard/"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
