package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"signals-platform/internal/domain"
	"signals-platform/internal/infra/apiclient"
	"signals-platform/internal/usecase"
)

// Toast is the error body every endpoint returns; the UI renders it as is.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

const destructive = "destructive"

var genericToast = Toast{Title: "Something went wrong", Description: "Please try again in a moment.", Variant: destructive}

type errorMapping struct {
	err    error
	status int
	title  string
	desc   string
}

// First match wins; order matters where sentinels wrap each other.
var errorMappings = []errorMapping{
	{usecase.ErrTooManyAttempts, http.StatusTooManyRequests, "Too many attempts", "Please wait a few minutes before trying again."},
	{domain.ErrUnverifiedAccount, http.StatusForbidden, "Account not verified", "Check your inbox for the confirmation link before signing in."},
	{domain.ErrBadCredentials, http.StatusUnauthorized, "Login failed", "Incorrect email or password."},
	{domain.ErrUpstreamUnavailable, http.StatusBadGateway, "Service unavailable", "We could not reach the server. Please try again."},
	{domain.ErrRefreshFailed, http.StatusUnauthorized, "Session expired", "Please sign in again."},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "Sign in required", "Please sign in to continue."},
	{domain.ErrForbidden, http.StatusForbidden, "Not allowed", "You do not have access to this action."},
	{domain.ErrNoOfferSelected, http.StatusBadRequest, "No offer selected", "Choose an offer to continue."},
	{domain.ErrNoContactMethod, http.StatusBadRequest, "Contact method required", "Choose how we should reach you."},
	{domain.ErrUnknownContactMethod, http.StatusBadRequest, "Unknown contact method", "Choose one of the listed contact methods."},
	{domain.ErrEmptyContactInfo, http.StatusBadRequest, "Contact information required", "Tell us where to reach you on the selected channel."},
	{domain.ErrUnknownMetadataKey, http.StatusBadRequest, "Invalid offer details", ""},
	{domain.ErrCheckoutNotStarted, http.StatusConflict, "No checkout in progress", "Choose an offer to start."},
	{domain.ErrCheckoutAlreadyFinish, http.StatusConflict, "Request already sent", "Start a new checkout to buy another offer."},
	{domain.ErrCheckoutInvalidState, http.StatusConflict, "Submission in progress", "Please wait for the current submission to finish."},
	{domain.ErrRowBusy, http.StatusConflict, "Action in progress", "This payment is already being updated."},
	{domain.ErrOfferNotFound, http.StatusNotFound, "Offer not found", "The selected offer is no longer available."},
	{domain.ErrUnknownWidgetSurface, http.StatusNotFound, "Unknown dashboard", ""},
	{domain.ErrNotFound, http.StatusNotFound, "Not found", ""},
	{domain.ErrInvalidArgument, http.StatusBadRequest, "Invalid request", ""},
}

// toastFor maps an error to its status and toast. Upstream 4xx details are passed verbatim.
func toastFor(err error) (int, Toast) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, Toast{Title: "Request timed out", Description: "Please try again.", Variant: destructive}
	}
	var apiErr *apiclient.APIError
	hasAPI := errors.As(err, &apiErr)

	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		t := Toast{Title: m.title, Description: m.desc, Variant: destructive}
		if hasAPI && apiErr.Status < http.StatusInternalServerError {
			t.Description = apiErr.Message()
		}
		if t.Description == "" {
			t.Description = err.Error()
		}
		return m.status, t
	}
	if hasAPI && apiErr.Status >= http.StatusBadRequest && apiErr.Status < http.StatusInternalServerError {
		return apiErr.Status, Toast{Title: "Request failed", Description: apiErr.Message(), Variant: destructive}
	}
	return http.StatusInternalServerError, genericToast
}

func writeToast(w http.ResponseWriter, status int, t Toast) {
	writeJSON(w, status, t)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
