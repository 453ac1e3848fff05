package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/domain/ports/repository"
	"signals-platform/internal/infra/logging"
	"signals-platform/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

const EventPendingPaymentCreated = "payment.pending.created"

// CheckoutUseCase drives one session through
// selecting-offer -> selecting-contact-method -> submitting -> success | error.
// error keeps the offer, method and contact info; Submit may be called again.
type CheckoutUseCase interface {
	Current(ctx context.Context, sid string) (*model.CheckoutState, error)
	Start(ctx context.Context, sid string, q model.OfferQuery) (*model.CheckoutState, error)
	SelectContactMethod(ctx context.Context, sid string, m model.ContactMethod) (*model.CheckoutState, error)
	SetContactInfo(ctx context.Context, sid string, info string) (*model.CheckoutState, error)
	// Submit returns the resulting state together with any error, so a failed
	// submission still hands back the preserved selection.
	Submit(ctx context.Context, sid string) (*model.CheckoutState, error)
	Reset(ctx context.Context, sid string) error
	ContactChannels() []model.ContactChannel
}

type CheckoutOptions struct {
	Channels []model.ContactChannel
	Guidance string
	// LockTTL bounds how long a submission holds the per-session lock.
	LockTTL time.Duration
	Dev     bool
}

type checkoutUC struct {
	catalog  CatalogUseCase
	states   repository.CheckoutStateRepository
	payments adapter.PaymentAPI
	notifier adapter.AdminNotifier
	events   adapter.EventPublisher
	locker   repository.RowLocker
	opts     CheckoutOptions
	clock    Clock
	log      *zerolog.Logger
}

func NewCheckoutUseCase(
	catalog CatalogUseCase,
	states repository.CheckoutStateRepository,
	payments adapter.PaymentAPI,
	notifier adapter.AdminNotifier,
	events adapter.EventPublisher,
	locker repository.RowLocker,
	opts CheckoutOptions,
	clock Clock,
	logger *zerolog.Logger,
) *checkoutUC {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	l := logger.With().Str("component", "checkout").Logger()
	return &checkoutUC{
		catalog:  catalog,
		states:   states,
		payments: payments,
		notifier: notifier,
		events:   events,
		locker:   locker,
		opts:     opts,
		clock:    clock,
		log:      &l,
	}
}

func (uc *checkoutUC) ContactChannels() []model.ContactChannel {
	return append([]model.ContactChannel(nil), uc.opts.Channels...)
}

func (uc *checkoutUC) Current(ctx context.Context, sid string) (*model.CheckoutState, error) {
	st, err := uc.states.Get(ctx, sid)
	if errors.Is(err, domain.ErrNotFound) {
		return &model.CheckoutState{Step: model.CheckoutSelectingOffer, UpdatedAt: uc.clock.now()}, nil
	}
	return st, err
}

// Start resolves the offer and replaces whatever checkout the session had, unless one is being submitted.
func (uc *checkoutUC) Start(ctx context.Context, sid string, q model.OfferQuery) (*model.CheckoutState, error) {
	if prev, err := uc.states.Get(ctx, sid); err == nil && uc.inFlight(prev) {
		return nil, domain.ErrCheckoutInvalidState
	}
	offer, err := uc.catalog.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	st := &model.CheckoutState{
		Step:      model.CheckoutSelectingContactMethod,
		Offer:     offer,
		UpdatedAt: uc.clock.now(),
	}
	if err := uc.states.Save(ctx, sid, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (uc *checkoutUC) SelectContactMethod(ctx context.Context, sid string, m model.ContactMethod) (*model.CheckoutState, error) {
	if !uc.knownMethod(m) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownContactMethod, m)
	}
	return uc.edit(ctx, sid, func(st *model.CheckoutState) {
		st.ContactMethod = m
	})
}

func (uc *checkoutUC) SetContactInfo(ctx context.Context, sid string, info string) (*model.CheckoutState, error) {
	return uc.edit(ctx, sid, func(st *model.CheckoutState) {
		st.ContactInfo = strings.TrimSpace(info)
	})
}

// edit applies a form change. Editing after an error returns the checkout to the form step.
func (uc *checkoutUC) edit(ctx context.Context, sid string, apply func(*model.CheckoutState)) (*model.CheckoutState, error) {
	st, err := uc.editable(ctx, sid)
	if err != nil {
		return nil, err
	}
	apply(st)
	st.Step = model.CheckoutSelectingContactMethod
	st.LastError = ""
	st.UpdatedAt = uc.clock.now()
	if err := uc.states.Save(ctx, sid, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (uc *checkoutUC) editable(ctx context.Context, sid string) (*model.CheckoutState, error) {
	st, err := uc.states.Get(ctx, sid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrCheckoutNotStarted
	}
	if err != nil {
		return nil, err
	}
	switch st.Step {
	case model.CheckoutSuccess:
		return nil, domain.ErrCheckoutAlreadyFinish
	case model.CheckoutSubmitting:
		if uc.inFlight(st) {
			return nil, domain.ErrCheckoutInvalidState
		}
		// the submitting request died without recording an outcome
		st.Step = model.CheckoutError
		st.LastError = errSubmitInterrupted
	case model.CheckoutSelectingOffer:
		return nil, domain.ErrNoOfferSelected
	}
	return st, nil
}

const errSubmitInterrupted = "submission interrupted, please check your payments before retrying"

// inFlight reports whether st is a submission that may still be running.
// A submitting state older than the submit lock TTL is left over from a dead request.
func (uc *checkoutUC) inFlight(st *model.CheckoutState) bool {
	return st.Step == model.CheckoutSubmitting && uc.clock.now().Sub(st.UpdatedAt) < uc.opts.LockTTL
}

func (uc *checkoutUC) knownMethod(m model.ContactMethod) bool {
	if !m.Valid() {
		return false
	}
	if len(uc.opts.Channels) == 0 {
		return true
	}
	for _, ch := range uc.opts.Channels {
		if ch.Type == m {
			return true
		}
	}
	return false
}

// validate runs every check that must pass before the upstream is contacted.
func (uc *checkoutUC) validate(st *model.CheckoutState) error {
	if st.Offer.IsZero() {
		return domain.ErrNoOfferSelected
	}
	if st.ContactMethod == "" {
		return domain.ErrNoContactMethod
	}
	if !uc.knownMethod(st.ContactMethod) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownContactMethod, st.ContactMethod)
	}
	if strings.TrimSpace(st.ContactInfo) == "" {
		return domain.ErrEmptyContactInfo
	}
	return nil
}

func (uc *checkoutUC) Submit(ctx context.Context, sid string) (*model.CheckoutState, error) {
	defer logging.TraceDuration(uc.log, "CheckoutUseCase.Submit")()
	log := logging.With(ctx, uc.log)

	st, err := uc.editable(ctx, sid)
	if err != nil {
		return nil, err
	}
	if err := uc.validate(st); err != nil {
		metrics.IncCheckoutSubmission("rejected")
		return st, err
	}

	if uc.locker != nil {
		key := "checkout:submit:" + sid
		token, err := uc.locker.TryLock(ctx, key, uc.opts.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrRowBusy) {
				return st, domain.ErrCheckoutInvalidState
			}
			log.Warn().Err(err).Msg("checkout lock unavailable, continuing without it")
		} else {
			defer func() {
				if err := uc.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("checkout unlock failed")
				}
			}()
		}
	}

	prior := *st
	st.Step = model.CheckoutSubmitting
	st.UpdatedAt = uc.clock.now()
	if err := uc.states.Save(ctx, sid, st); err != nil {
		return &prior, err
	}

	offer := st.Offer
	req := model.PendingPaymentRequest{
		Offer:         offer.ID,
		ContactMethod: st.ContactMethod,
		ContactInfo:   strings.TrimSpace(st.ContactInfo),
		Amount:        model.FormatAmount(offer.Price),
		Currency:      offer.Currency,
	}
	payment, err := uc.payments.CreatePendingPayment(ctx, sid, req)
	if err != nil {
		metrics.IncCheckoutSubmission("error")
		log.Warn().Err(err).Int64("offer_id", offer.ID).Msg("pending payment creation failed")
		st.Step = model.CheckoutError
		st.LastError = err.Error()
		st.UpdatedAt = uc.clock.now()
		if serr := uc.states.Save(context.WithoutCancel(ctx), sid, st); serr != nil {
			log.Error().Err(serr).Msg("failed to persist checkout error state")
		}
		return st, err
	}

	metrics.IncCheckoutSubmission("ok")
	metrics.AddPendingAmount(offer.Currency, offer.Price)

	st.Step = model.CheckoutSuccess
	st.LastError = ""
	st.UpdatedAt = uc.clock.now()
	st.Summary = &model.CheckoutSummary{
		PaymentID:     payment.ID,
		OfferName:     offer.Name,
		Amount:        req.Amount,
		Currency:      req.Currency,
		ContactMethod: req.ContactMethod,
		ContactInfo:   req.ContactInfo,
		Guidance:      uc.opts.Guidance,
	}
	if err := uc.states.Save(context.WithoutCancel(ctx), sid, st); err != nil {
		// the payment exists upstream; report success anyway
		log.Error().Err(err).Int64("payment_id", payment.ID).Msg("failed to persist checkout success state")
	}

	log.Info().
		Int64("payment_id", payment.ID).
		Int64("offer_id", offer.ID).
		Str("contact_method", string(req.ContactMethod)).
		Str("contact_info", logging.Redact(req.ContactInfo, uc.opts.Dev)).
		Msg("pending payment created")

	uc.announce(ctx, payment, offer, req)
	return st, nil
}

// announce tells admins and the bus about a new pending payment. Failures never fail the checkout.
func (uc *checkoutUC) announce(ctx context.Context, payment *model.PendingPayment, offer *model.Offer, req model.PendingPaymentRequest) {
	log := logging.With(ctx, uc.log)
	full := *payment
	if full.OfferID == 0 {
		full.OfferID = offer.ID
	}
	if full.OfferName == "" {
		full.OfferName = offer.Name
	}
	if full.ContactMethod == "" {
		full.ContactMethod = req.ContactMethod
		full.ContactInfo = req.ContactInfo
	}
	if full.Amount.IsZero() {
		full.Amount = offer.Price
		full.Currency = req.Currency
	}
	if full.Status == "" {
		full.Status = model.PaymentStatusPending
	}

	if uc.notifier != nil {
		err := uc.notifier.NotifyPendingPayment(ctx, &full, offer)
		metrics.IncAdminNotification("pending_payment", err)
		if err != nil {
			log.Warn().Err(err).Int64("payment_id", full.ID).Msg("admin notification failed")
		}
	}
	if uc.events != nil {
		err := uc.events.Publish(ctx, EventPendingPaymentCreated, &full)
		metrics.IncEventPublished(EventPendingPaymentCreated, err)
		if err != nil {
			log.Warn().Err(err).Int64("payment_id", full.ID).Msg("event publish failed")
		}
	}
}

func (uc *checkoutUC) Reset(ctx context.Context, sid string) error {
	st, err := uc.states.Get(ctx, sid)
	if err == nil && uc.inFlight(st) {
		return domain.ErrCheckoutInvalidState
	}
	return uc.states.Clear(ctx, sid)
}
