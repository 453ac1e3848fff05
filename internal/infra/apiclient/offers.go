package apiclient

import (
	"context"
	"net/url"

	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/repository"
)

var _ repository.OfferRepository = (*OfferSource)(nil)

// OfferSource exposes the public offer endpoints as an OfferRepository.
type OfferSource struct {
	c *Client
}

func NewOfferSource(c *Client) *OfferSource { return &OfferSource{c: c} }

func (s *OfferSource) ListAll(ctx context.Context) ([]*model.Offer, error) {
	resp, err := s.c.callList(ctx, "", Request{Path: "/api/offers/"})
	if err != nil {
		return nil, err
	}
	return decodeList[*model.Offer](resp)
}

func (s *OfferSource) ListByType(ctx context.Context, t model.OfferType) ([]*model.Offer, error) {
	resp, err := s.c.callList(ctx, "", Request{
		Path:     "/api/offers/type/" + url.PathEscape(string(t)) + "/",
		Endpoint: "/api/offers/type/{type}/",
	})
	if err != nil {
		return nil, err
	}
	return decodeList[*model.Offer](resp)
}
