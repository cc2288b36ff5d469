package cart

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/leafmarket-checkout/internal/money"
)

// ListingType classifies a cart line into a pricing bucket.
type ListingType string

const (
	SinglePlant   ListingType = "single_plant"
	Wholesale     ListingType = "wholesale"
	GrowersChoice ListingType = "growers_choice"
)

// Origin is the country a plant ships from.
type Origin string

const (
	OriginPH Origin = "PH"
	OriginTH Origin = "TH"
	OriginID Origin = "ID"
)

// WholesaleBatchSize is the number of plants a single wholesale unit represents.
const WholesaleBatchSize = 10

// LineItem is one purchasable unit in a checkout snapshot.
type LineItem struct {
	ListingID       string           `json:"listingId" validate:"required"`
	ListingType     ListingType      `json:"listingType" validate:"required,oneof=single_plant wholesale growers_choice"`
	UnitPrice       money.Money      `json:"unitPriceCents" validate:"gte=0,lte=100000000"`
	Quantity        int              `json:"quantity" validate:"gte=1,lte=10000"`
	DiscountAmount  *money.Money     `json:"discountAmountCents,omitempty" validate:"omitempty,gte=0,lte=100000000"`
	DiscountPercent *decimal.Decimal `json:"discountPercent,omitempty" validate:"-"`
	Origin          Origin           `json:"countryOfOrigin" validate:"omitempty,oneof=PH TH ID"`
	HasAirCargo     bool             `json:"hasAirCargo"`
}

// EffectivePrice returns the per-unit price after the line level discount.
func (it LineItem) EffectivePrice() money.Money {
	switch {
	case it.DiscountAmount != nil:
		return money.SubFloor(it.UnitPrice, *it.DiscountAmount)
	case it.DiscountPercent != nil:
		return money.SubFloor(it.UnitPrice, money.ApplyPercent(it.UnitPrice, *it.DiscountPercent))
	default:
		return it.UnitPrice
	}
}

// Subtotal returns the discounted line total. A percent discount is applied to the whole
// line and rounded once, so it can differ from EffectivePrice times Quantity.
func (it LineItem) Subtotal() money.Money {
	if it.Quantity <= 0 {
		return 0
	}
	if it.DiscountAmount == nil && it.DiscountPercent != nil {
		return money.PercentOff(it.OriginalCost(), *it.DiscountPercent)
	}
	return it.EffectivePrice() * money.Money(it.Quantity)
}

// OriginalCost returns the undiscounted line total.
func (it LineItem) OriginalCost() money.Money {
	if it.Quantity <= 0 || it.UnitPrice <= 0 {
		return 0
	}
	return it.UnitPrice * money.Money(it.Quantity)
}
