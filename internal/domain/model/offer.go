package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"signals-platform/internal/domain"
)

type OfferType string

const (
	OfferTypeSubscription OfferType = "subscription"
	OfferTypeFormation    OfferType = "formation" // training course
	OfferTypeAccount      OfferType = "account"   // account management
	OfferTypeSignal       OfferType = "signal"
)

func (t OfferType) Valid() bool {
	switch t {
	case OfferTypeSubscription, OfferTypeFormation, OfferTypeAccount, OfferTypeSignal:
		return true
	}
	return false
}

// Offer is a purchasable product listed by the upstream catalog.
// Offers are created by administrators and are read-only for end users.
type Offer struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	OfferType    OfferType       `json:"offer_type"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	DurationDays *int            `json:"duration_days"` // nil means unlimited access
	Metadata     OfferMetadata   `json:"metadata"`
	ColorTheme   string          `json:"color_theme,omitempty"`
	IsActive     bool            `json:"is_active"`
}

func (o *Offer) IsZero() bool { return o == nil || o.ID == 0 }

func (o *Offer) IsUnlimited() bool { return o.DurationDays == nil }

// AccessLabel describes how long the offer grants access.
func (o *Offer) AccessLabel() string {
	if o.IsUnlimited() {
		return "Unlimited access"
	}
	if *o.DurationDays == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", *o.DurationDays)
}

// OfferMetadata holds the per-type feature callouts shown next to an offer.
type OfferMetadata map[string]string

var recognizedMetadataKeys = map[OfferType][]string{
	OfferTypeFormation:    {"duration", "lessons", "students", "rating"},
	OfferTypeSignal:       {"signals_per_day", "pairs", "support"},
	OfferTypeAccount:      {"max_capital", "reports", "strategy"},
	OfferTypeSubscription: {"features", "support"},
}

// RecognizedMetadataKeys returns the metadata keys an offer of type t may carry.
func RecognizedMetadataKeys(t OfferType) []string {
	return append([]string(nil), recognizedMetadataKeys[t]...)
}

// Validate reports the first key that is not recognized for t.
func (m OfferMetadata) Validate(t OfferType) error {
	if _, dropped := m.Sanitize(t); len(dropped) > 0 {
		return fmt.Errorf("%w: %s (offer type %s)", domain.ErrUnknownMetadataKey, dropped[0], t)
	}
	return nil
}

// Sanitize returns a copy of m restricted to the keys recognized for t,
// along with the sorted list of keys it dropped.
func (m OfferMetadata) Sanitize(t OfferType) (OfferMetadata, []string) {
	allowed := map[string]struct{}{}
	for _, k := range recognizedMetadataKeys[t] {
		allowed[k] = struct{}{}
	}
	out := OfferMetadata{}
	var dropped []string
	for k, v := range m {
		if _, ok := allowed[k]; ok {
			out[k] = v
			continue
		}
		dropped = append(dropped, k)
	}
	sort.Strings(dropped)
	return out, dropped
}

// UnmarshalJSON accepts scalar values of any JSON type and keeps them as strings.
func (m *OfferMetadata) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = nil
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("offer metadata: %w", err)
	}
	out := make(OfferMetadata, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case float64, bool:
			out[k] = fmt.Sprint(val)
		default:
			enc, err := json.Marshal(val)
			if err != nil {
				return fmt.Errorf("offer metadata %q: %w", k, err)
			}
			out[k] = string(enc)
		}
	}
	*m = out
	return nil
}

// MatchesName reports whether the offer name contains q, case-insensitively.
func (o *Offer) MatchesName(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return false
	}
	return strings.Contains(strings.ToLower(o.Name), q)
}
