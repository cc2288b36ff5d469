package shipping

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leafmarket-checkout/internal/cart"
	"github.com/noah-isme/leafmarket-checkout/internal/money"
)

func testTable() RateTable {
	return RateTable{
		UPSBase:                  5000,
		UPSPerUnit:               500,
		UPSIncludedUnits:         1,
		UPSNextDayBase:           6000,
		UPSNextDayPerUnit:        0,
		AirBaseCargo:             15000,
		WholesaleAirCargoPerUnit: 5000,
		WholesaleAirCargoByOrigin: map[cart.Origin]money.Money{
			cart.OriginTH: 7000,
		},
	}
}

func TestCalculateSinglePlantsOnly(t *testing.T) {
	b := cart.Aggregate([]cart.LineItem{
		{ListingID: "a", ListingType: cart.SinglePlant, UnitPrice: 2000, Quantity: 3, HasAirCargo: true},
	})
	c := Calculate(b, testTable(), false, 0)
	require.Equal(t, money.Money(6000), c.BaseUPSShipping)
	require.Zero(t, c.UPSNextDayUpgradeCost)
	require.Equal(t, money.Money(15000), c.AirBaseCargo)
	require.Zero(t, c.WholesaleAirCargo)
	require.Equal(t, money.Money(21000), c.FinalShippingCost)
}

func TestCalculateNextDayAndWholesale(t *testing.T) {
	b := cart.Aggregate([]cart.LineItem{
		{ListingID: "a", ListingType: cart.GrowersChoice, UnitPrice: 2000, Quantity: 1},
		{ListingID: "w1", ListingType: cart.Wholesale, UnitPrice: 10000, Quantity: 2, Origin: cart.OriginPH},
		{ListingID: "w2", ListingType: cart.Wholesale, UnitPrice: 10000, Quantity: 1, Origin: cart.OriginTH},
	})
	c := Calculate(b, testTable(), true, 0)
	require.Equal(t, money.Money(5000), c.BaseUPSShipping)
	require.Equal(t, money.Money(6000), c.UPSNextDayUpgradeCost)
	require.Zero(t, c.AirBaseCargo, "no air cargo flag on the parcel line")
	require.Equal(t, money.Money(2*5000+7000), c.WholesaleAirCargo)
	require.Equal(t, c.Gross(), c.FinalShippingCost)
}

func TestCalculateShippingCreditFloorsAtZero(t *testing.T) {
	b := cart.Aggregate([]cart.LineItem{
		{ListingID: "a", ListingType: cart.SinglePlant, UnitPrice: 2000, Quantity: 1},
	})
	c := Calculate(b, testTable(), false, 15000)
	require.Equal(t, money.Money(5000), c.Gross())
	require.Equal(t, money.Money(15000), c.ShippingCreditsDiscount)
	require.Zero(t, c.FinalShippingCost)
}

func TestCalculateEmptyCart(t *testing.T) {
	c := Calculate(cart.Breakdown{}, testTable(), true, 15000)
	require.Equal(t, Costs{}, c)
}

func TestPolicyEligible(t *testing.T) {
	p := DefaultPolicy()
	require.True(t, p.Eligible(52000, 16))
	require.True(t, p.Eligible(50000, 15))
	require.False(t, p.Eligible(49999, 20))
	require.False(t, p.Eligible(90000, 14))
	require.False(t, Policy{CreditMinSubtotal: 0, CreditMinQuantity: 0}.Eligible(100, 1))
}
