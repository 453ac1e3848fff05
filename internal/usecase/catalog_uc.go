package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"signals-platform/internal/domain"
	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
)

// Compile-time check
var _ CatalogUseCase = (*catalogUC)(nil)

// CatalogUseCase is the read-only offer catalog.
type CatalogUseCase interface {
	// List returns the active offers, optionally restricted to one type.
	List(ctx context.Context, t model.OfferType) ([]*model.Offer, error)
	Get(ctx context.Context, id int64) (*model.Offer, error)
	// Resolve picks the offer a checkout starts from.
	Resolve(ctx context.Context, q model.OfferQuery) (*model.Offer, error)
}

type catalogUC struct {
	offers repository.OfferRepository
	strict bool
	log    *zerolog.Logger
}

// NewCatalogUseCase builds the catalog. With strictMatch an unmatched plan name is an
// error instead of falling back to the first offer of the type.
func NewCatalogUseCase(offers repository.OfferRepository, strictMatch bool, logger *zerolog.Logger) *catalogUC {
	l := logger.With().Str("component", "catalog").Logger()
	return &catalogUC{offers: offers, strict: strictMatch, log: &l}
}

func (uc *catalogUC) List(ctx context.Context, t model.OfferType) ([]*model.Offer, error) {
	var (
		all []*model.Offer
		err error
	)
	if t == "" {
		all, err = uc.offers.ListAll(ctx)
	} else {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: offer type %q", domain.ErrInvalidArgument, t)
		}
		all, err = uc.offers.ListByType(ctx, t)
	}
	if err != nil {
		return nil, err
	}
	return uc.publishable(all), nil
}

// publishable keeps active offers and strips metadata keys their type does not recognize.
func (uc *catalogUC) publishable(all []*model.Offer) []*model.Offer {
	out := make([]*model.Offer, 0, len(all))
	for _, o := range all {
		if o == nil || !o.IsActive {
			continue
		}
		cp := *o
		clean, dropped := o.Metadata.Sanitize(o.OfferType)
		if len(dropped) > 0 {
			uc.log.Debug().Int64("offer_id", o.ID).Strs("keys", dropped).Msg("dropped unrecognized offer metadata")
		}
		cp.Metadata = clean
		out = append(out, &cp)
	}
	return out
}

func (uc *catalogUC) Get(ctx context.Context, id int64) (*model.Offer, error) {
	all, err := uc.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, o := range all {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", domain.ErrOfferNotFound, id)
}

// Resolve matches by id when one is given. Otherwise it looks at the offers of q.Type in
// catalog order: an exact case-insensitive name match wins, then the first name containing
// q.PlanName, then (unless strict) the first offer of the type.
func (uc *catalogUC) Resolve(ctx context.Context, q model.OfferQuery) (*model.Offer, error) {
	if q.ID != 0 {
		return uc.Get(ctx, q.ID)
	}
	if q.Type == "" {
		return nil, domain.ErrNoOfferSelected
	}
	candidates, err := uc.List(ctx, q.Type)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no %s offers", domain.ErrOfferNotFound, q.Type)
	}

	name := strings.TrimSpace(q.PlanName)
	if name == "" {
		return candidates[0], nil
	}
	for _, o := range candidates {
		if strings.EqualFold(strings.TrimSpace(o.Name), name) {
			return o, nil
		}
	}
	for _, o := range candidates {
		if o.MatchesName(name) {
			return o, nil
		}
	}
	if uc.strict {
		return nil, fmt.Errorf("%w: no %s offer named %q", domain.ErrOfferNotFound, q.Type, name)
	}
	uc.log.Info().Str("type", string(q.Type)).Str("plan", name).Int64("fallback_offer_id", candidates[0].ID).
		Msg("plan name matched no offer, using first offer of type")
	return candidates[0], nil
}
