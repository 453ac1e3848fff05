package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Session / upstream
	ErrUnauthorized         = errors.New("not authenticated")
	ErrForbidden            = errors.New("not allowed")
	ErrRefreshFailed        = errors.New("session refresh failed")
	ErrUpstreamUnavailable  = errors.New("upstream api unavailable")
	ErrUnverifiedAccount    = errors.New("account is not verified")
	ErrBadCredentials       = errors.New("invalid email or password")
	ErrInvalidExecContext   = errors.New("invalid execution context")
	ErrOperationFailed      = errors.New("operation failed")
	ErrReadDatabaseRow      = errors.New("failed to read database row")
	ErrUnknownMetadataKey   = errors.New("unknown metadata key")
	ErrUnknownWidgetSurface = errors.New("unknown widget surface")

	// Checkout
	ErrOfferNotFound         = errors.New("offer not found")
	ErrNoOfferSelected       = errors.New("no offer selected")
	ErrNoContactMethod       = errors.New("no contact method selected")
	ErrUnknownContactMethod  = errors.New("unknown contact method")
	ErrEmptyContactInfo      = errors.New("contact info is required")
	ErrCheckoutNotStarted    = errors.New("checkout not started")
	ErrCheckoutInvalidState  = errors.New("checkout cannot do that in its current state")
	ErrCheckoutAlreadyFinish = errors.New("checkout already completed")

	// Admin console
	ErrRowBusy = errors.New("an action is already running for this payment")
)
