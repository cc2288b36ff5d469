package shipping

import (
	"github.com/noah-isme/leafmarket-checkout/internal/cart"
	"github.com/noah-isme/leafmarket-checkout/internal/money"
)

// RateTable is the externally supplied shipping fee schedule. All amounts are cents.
type RateTable struct {
	UPSBase                   money.Money                 `json:"upsBase"`
	UPSPerUnit                money.Money                 `json:"upsPerUnit"`
	UPSIncludedUnits          int                         `json:"upsIncludedUnits"`
	UPSNextDayBase            money.Money                 `json:"upsNextDayBase"`
	UPSNextDayPerUnit         money.Money                 `json:"upsNextDayPerUnit"`
	AirBaseCargo              money.Money                 `json:"airBaseCargo"`
	WholesaleAirCargoPerUnit  money.Money                 `json:"wholesaleAirCargoPerUnit"`
	WholesaleAirCargoByOrigin map[cart.Origin]money.Money `json:"wholesaleAirCargoByOrigin,omitempty"`
}

// Costs is the shipping part of an order summary.
type Costs struct {
	BaseUPSShipping         money.Money `json:"baseUpsShipping"`
	UPSNextDayUpgradeCost   money.Money `json:"upsNextDayUpgradeCost"`
	AirBaseCargo            money.Money `json:"airBaseCargo"`
	WholesaleAirCargo       money.Money `json:"wholesaleAirCargo"`
	ShippingCreditsDiscount money.Money `json:"shippingCreditsDiscount"`
	FinalShippingCost       money.Money `json:"finalShippingCost"`
}

// Gross returns the shipping total before credits.
func (c Costs) Gross() money.Money {
	return c.BaseUPSShipping + c.UPSNextDayUpgradeCost + c.AirBaseCargo + c.WholesaleAirCargo
}

// Calculate prices shipping for an aggregated cart. shippingCredit is the credit already
// resolved by the discount engine; zero when not applied.
func Calculate(b cart.Breakdown, table RateTable, upsNextDay bool, shippingCredit money.Money) Costs {
	var c Costs
	if b.Empty() {
		return c
	}
	units := b.ParcelUnits()
	extra := units - table.UPSIncludedUnits
	if extra < 0 {
		extra = 0
	}
	c.BaseUPSShipping = nonNegative(table.UPSBase) + nonNegative(table.UPSPerUnit)*money.Money(extra)
	if upsNextDay {
		c.UPSNextDayUpgradeCost = nonNegative(table.UPSNextDayBase) + nonNegative(table.UPSNextDayPerUnit)*money.Money(units)
	}
	if b.AirCargoEligible {
		c.AirBaseCargo = nonNegative(table.AirBaseCargo)
	}
	for origin, qty := range b.WholesaleByOrigin {
		c.WholesaleAirCargo += table.wholesaleRate(origin) * money.Money(qty)
	}
	c.ShippingCreditsDiscount = nonNegative(shippingCredit)
	c.FinalShippingCost = money.SubFloor(c.Gross(), c.ShippingCreditsDiscount)
	return c
}

func (t RateTable) wholesaleRate(origin cart.Origin) money.Money {
	if rate, ok := t.WholesaleAirCargoByOrigin[origin]; ok {
		return nonNegative(rate)
	}
	return nonNegative(t.WholesaleAirCargoPerUnit)
}

func nonNegative(m money.Money) money.Money {
	if m < 0 {
		return 0
	}
	return m
}

// Policy holds the shipping credit eligibility rule.
type Policy struct {
	CreditMinSubtotal money.Money
	CreditMinQuantity int
	CreditAmount      money.Money
}

// DefaultPolicy mirrors the marketplace rule: $150 off shipping from $500 and 15 plants.
func DefaultPolicy() Policy {
	return Policy{CreditMinSubtotal: 500 * money.Dollar, CreditMinQuantity: 15, CreditAmount: 150 * money.Dollar}
}

// Eligible reports whether a cart qualifies for the shipping credit.
func (p Policy) Eligible(subtotal money.Money, totalQuantity int) bool {
	if p.CreditAmount <= 0 {
		return false
	}
	return subtotal >= p.CreditMinSubtotal && totalQuantity >= p.CreditMinQuantity
}
