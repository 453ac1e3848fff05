package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"signals-platform/internal/domain"
)

// APIError is a non-2xx upstream answer. Detail carries the upstream message verbatim.
type APIError struct {
	Status int
	Detail string
	Code   string
	Fields map[string][]string
	Body   []byte
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("upstream %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("upstream %d", e.Status)
}

// Is lets callers match upstream answers against the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case domain.ErrForbidden:
		return e.Status == http.StatusForbidden
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case domain.ErrInvalidArgument:
		return e.Status == http.StatusBadRequest
	}
	return false
}

// Message is the best user-facing text: detail, else the first field error.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(e.Fields[k]) == 0 {
			continue
		}
		if k == "non_field_errors" {
			return e.Fields[k][0]
		}
		return k + ": " + e.Fields[k][0]
	}
	return http.StatusText(e.Status)
}

// ParseAPIError understands the usual REST framework bodies:
// {"detail": "...", "code": "..."}, {"error": "..."} and {"field": ["..."]}.
func ParseAPIError(resp *Response) *APIError {
	e := &APIError{Status: resp.StatusCode, Body: resp.Body}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		e.Detail = strings.TrimSpace(string(resp.Body))
		if len(e.Detail) > 200 || strings.HasPrefix(e.Detail, "<") {
			e.Detail = ""
		}
		return e
	}
	for k, v := range raw {
		switch k {
		case "detail", "error", "message":
			var s string
			if json.Unmarshal(v, &s) == nil && e.Detail == "" {
				e.Detail = s
			}
		case "code":
			_ = json.Unmarshal(v, &e.Code)
		default:
			if msgs := fieldMessages(v); len(msgs) > 0 {
				if e.Fields == nil {
					e.Fields = map[string][]string{}
				}
				e.Fields[k] = msgs
			}
		}
	}
	return e
}

func fieldMessages(v json.RawMessage) []string {
	var list []string
	if json.Unmarshal(v, &list) == nil {
		return list
	}
	var one string
	if json.Unmarshal(v, &one) == nil && one != "" {
		return []string{one}
	}
	return nil
}

type AuthErrorCategory string

const (
	AuthErrUnverifiedAccount AuthErrorCategory = "unverified_account"
	AuthErrBadCredentials    AuthErrorCategory = "bad_credentials"
	AuthErrNetwork           AuthErrorCategory = "network"
	AuthErrUnknown           AuthErrorCategory = "unknown"
)

var unverifiedCodes = map[string]bool{
	"unverified_account":   true,
	"account_not_verified": true,
	"email_not_verified":   true,
	"user_inactive":        true,
}

// ClassifyAuthError maps a login failure to the category shown to the user.
func ClassifyAuthError(err error) AuthErrorCategory {
	if err == nil {
		return ""
	}
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		return AuthErrNetwork
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return AuthErrUnknown
	}
	if unverifiedCodes[strings.ToLower(apiErr.Code)] {
		return AuthErrUnverifiedAccount
	}
	msg := strings.ToLower(apiErr.Message())
	if strings.Contains(msg, "not verified") || strings.Contains(msg, "unverified") || strings.Contains(msg, "verify your email") {
		return AuthErrUnverifiedAccount
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusBadRequest:
		return AuthErrBadCredentials
	}
	return AuthErrUnknown
}

// DomainError returns the sentinel matching a login failure category.
func (c AuthErrorCategory) DomainError() error {
	switch c {
	case AuthErrUnverifiedAccount:
		return domain.ErrUnverifiedAccount
	case AuthErrBadCredentials:
		return domain.ErrBadCredentials
	case AuthErrNetwork:
		return domain.ErrUpstreamUnavailable
	}
	return domain.ErrOperationFailed
}
