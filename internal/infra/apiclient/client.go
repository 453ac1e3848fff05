package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
	"signals-platform/internal/infra/logging"
	"signals-platform/internal/infra/metrics"
)

const refreshPath = "/api/auth/token/refresh/"

// Request describes one upstream call. Path is relative to the configured base URL.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Body     any    // JSON-encoded when non-nil
	Endpoint string // metrics label, defaults to Path
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}

// Client talks to the upstream REST API on behalf of BFF sessions.
// Do attaches the session's access token and performs at most one silent
// refresh and one retry when the upstream answers 401.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  repository.TokenStore
	log     *zerolog.Logger

	refreshes singleflight.Group
}

func New(baseURL string, httpClient *http.Client, tokens repository.TokenStore, logger *zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = logging.Silent()
	}
	l := logger.With().Str("component", "apiclient").Logger()
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
		log:     &l,
	}
}

// Do performs an authorized fetch for session sid. An empty sid sends the request anonymously.
//
// On a 401 with a refresh token available it exchanges the refresh token once and
// retries the request once. If the refresh is rejected the session's tokens and
// cached user are cleared and the original 401 response is returned.
func (c *Client) Do(ctx context.Context, sid string, req Request) (*Response, error) {
	var tokens *model.Tokens
	if sid != "" {
		t, err := c.tokens.Get(ctx, sid)
		switch {
		case err == nil:
			tokens = t
		case errors.Is(err, domain.ErrNotFound):
		default:
			return nil, fmt.Errorf("load session tokens: %w", err)
		}
	}

	access := ""
	if tokens != nil {
		access = tokens.Access
	}
	resp, err := c.send(ctx, req, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || tokens == nil || tokens.Refresh == "" {
		return resp, nil
	}

	fresh, err := c.refresh(ctx, sid, access)
	if err != nil {
		logging.With(ctx, c.log).Info().Err(err).Str("path", req.Path).Msg("silent refresh failed")
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			return nil, err
		}
		return resp, nil
	}
	return c.send(ctx, req, fresh)
}

// refresh collapses concurrent refreshes of the same stale access token into a single upstream call.
func (c *Client) refresh(ctx context.Context, sid, stale string) (string, error) {
	v, err, _ := c.refreshes.Do(sid+"|"+stale, func() (any, error) {
		cur, err := c.tokens.Get(ctx, sid)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrRefreshFailed, err)
		}
		if cur.Access != "" && cur.Access != stale {
			// another request already refreshed this session
			return cur.Access, nil
		}
		fresh, err := c.exchangeRefresh(ctx, sid, cur)
		metrics.IncTokenRefresh(err)
		return fresh, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) exchangeRefresh(ctx context.Context, sid string, cur *model.Tokens) (string, error) {
	resp, err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   refreshPath,
		Body:   map[string]string{"refresh": cur.Refresh},
	}, "")
	if err != nil {
		// transport failure: keep the tokens, the refresh token may still be good
		return "", fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}
	if !resp.OK() {
		if cerr := c.tokens.Clear(ctx, sid); cerr != nil {
			logging.With(ctx, c.log).Error().Err(cerr).Msg("failed to clear session tokens")
		}
		return "", fmt.Errorf("%w: refresh answered %d", domain.ErrRefreshFailed, resp.StatusCode)
	}

	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := resp.Decode(&out); err != nil || out.Access == "" {
		if cerr := c.tokens.Clear(ctx, sid); cerr != nil {
			logging.With(ctx, c.log).Error().Err(cerr).Msg("failed to clear session tokens")
		}
		return "", fmt.Errorf("%w: refresh response carried no access token", domain.ErrRefreshFailed)
	}

	if out.Refresh != "" {
		// rotated refresh token
		err = c.tokens.Set(ctx, sid, &model.Tokens{Access: out.Access, Refresh: out.Refresh, User: cur.User})
	} else {
		err = c.tokens.SetAccess(ctx, sid, out.Access)
	}
	if err != nil {
		return "", fmt.Errorf("%w: store access token: %v", domain.ErrRefreshFailed, err)
	}
	return out.Access, nil
}

func (c *Client) send(ctx context.Context, req Request, access string) (*Response, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	hreq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	hreq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		hreq.Header.Set("Authorization", "Bearer "+access)
	}
	if id := logging.TraceID(ctx); id != "" {
		hreq.Header.Set("X-Request-ID", id)
	}

	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = req.Path
	}
	start := time.Now()
	hresp, err := c.http.Do(hreq)
	if err != nil {
		metrics.ObserveUpstream(endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamUnavailable, method, req.Path, err)
	}
	defer hresp.Body.Close()

	b, err := io.ReadAll(hresp.Body)
	if err != nil {
		metrics.ObserveUpstream(endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrUpstreamUnavailable, req.Path, err)
	}
	metrics.ObserveUpstream(endpoint, hresp.StatusCode, time.Since(start))

	return &Response{StatusCode: hresp.StatusCode, Header: hresp.Header, Body: b}, nil
}

// call runs an authorized fetch and decodes a 2xx body into out; any other status becomes an *APIError.
func (c *Client) call(ctx context.Context, sid string, req Request, out any) error {
	resp, err := c.Do(ctx, sid, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return ParseAPIError(resp)
	}
	return resp.Decode(out)
}

// decodeList accepts both a bare JSON array and a paginated {"results": [...]} envelope.
func decodeList[T any](resp *Response) ([]T, error) {
	trimmed := bytes.TrimSpace(resp.Body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var out []T
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode upstream list: %w", err)
		}
		return out, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decode upstream page: %w", err)
	}
	return page.Results, nil
}

func (c *Client) callList(ctx context.Context, sid string, req Request) (*Response, error) {
	resp, err := c.Do(ctx, sid, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, ParseAPIError(resp)
	}
	return resp, nil
}
