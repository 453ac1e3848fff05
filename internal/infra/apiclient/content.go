package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
)

var _ adapter.ContentAPI = (*Client)(nil)

// Homepage is public; the payload is passed through untouched.
func (c *Client) Homepage(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.callList(ctx, "", Request{Path: "/api/content/homepage/"})
	if err != nil {
		return nil, err
	}
	if !json.Valid(resp.Body) {
		return nil, &APIError{Status: resp.StatusCode, Detail: "homepage payload is not JSON", Body: resp.Body}
	}
	return json.RawMessage(resp.Body), nil
}

func (c *Client) ListBlocks(ctx context.Context, sid string, page string) ([]*model.ContentBlock, error) {
	q := url.Values{}
	if page != "" {
		q.Set("page", page)
	}
	resp, err := c.callList(ctx, sid, Request{Path: "/api/content/blocks/", Query: q})
	if err != nil {
		return nil, err
	}
	return decodeList[*model.ContentBlock](resp)
}

func (c *Client) CreateBlock(ctx context.Context, sid string, block *model.ContentBlock) (*model.ContentBlock, error) {
	var out model.ContentBlock
	if err := c.call(ctx, sid, Request{Method: http.MethodPost, Path: "/api/content/blocks/", Body: block}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBlock(ctx context.Context, sid string, block *model.ContentBlock) (*model.ContentBlock, error) {
	var out model.ContentBlock
	err := c.call(ctx, sid, Request{
		Method:   http.MethodPut,
		Path:     blockPath(block.ID),
		Body:     block,
		Endpoint: "/api/content/blocks/{id}/",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBlock(ctx context.Context, sid string, id int64) error {
	return c.call(ctx, sid, Request{
		Method:   http.MethodDelete,
		Path:     blockPath(id),
		Endpoint: "/api/content/blocks/{id}/",
	}, nil)
}

func blockPath(id int64) string {
	return "/api/content/blocks/" + strconv.FormatInt(id, 10) + "/"
}
