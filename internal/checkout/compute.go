package checkout

import (
	"fmt"

	"github.com/noah-isme/leafmarket-checkout/internal/cart"
	"github.com/noah-isme/leafmarket-checkout/internal/discount"
	"github.com/noah-isme/leafmarket-checkout/internal/flight"
	"github.com/noah-isme/leafmarket-checkout/internal/money"
	"github.com/noah-isme/leafmarket-checkout/internal/shipping"
)

// CodeState is the outcome of the last promo code application.
type CodeState struct {
	Code      string
	Discount  money.Money
	Pending   bool
	Invalid   error
	LookupErr error
}

// FlightState is the resolver snapshot a summary is computed from.
type FlightState struct {
	Selected   string
	HasOptions bool
	State      flight.State
	Locked     bool
	Notice     string
}

// State is everything a summary depends on. Compute never mutates it.
type State struct {
	Breakdown    cart.Breakdown
	Balances     Balances
	Toggles      Toggles
	Flight       FlightState
	Rates        *shipping.RateTable
	RatesLoading bool
	RatesErr     error
	LockLoading  bool
	LockErr      error
	Code         *CodeState
}

// Compute assembles the order summary for st. It is deterministic: equal states produce
// equal summaries.
func Compute(st State, p Policy) Summary {
	b := st.Breakdown
	eligible := p.Shipping.Eligible(b.Subtotal, b.Quantities.Total)

	var codeDiscount money.Money
	if st.Code != nil && !st.Code.Pending && st.Code.Invalid == nil && st.Code.LookupErr == nil {
		codeDiscount = st.Code.Discount
	}
	stack := discount.Stack(discount.StackInput{
		Subtotal:               b.Subtotal,
		CodeDiscount:           codeDiscount,
		LeafPointsEnabled:      st.Toggles.LeafPoints,
		LeafPointsBalance:      st.Balances.LeafPoints,
		PlantCreditsEnabled:    st.Toggles.PlantCredits,
		PlantCreditsBalance:    st.Balances.PlantCredits,
		ShippingCreditEnabled:  st.Toggles.ShippingCredits,
		ShippingCreditEligible: eligible,
		ShippingCreditAmount:   p.Shipping.CreditAmount,
	})

	ratesKnown := st.Rates != nil && st.RatesErr == nil && !st.RatesLoading
	var costs shipping.Costs
	if ratesKnown {
		costs = shipping.Calculate(b, *st.Rates, st.Toggles.UPSNextDay, stack.ShippingCreditsDiscount)
	}
	finalTotal := stack.PlantTotal + costs.FinalShippingCost

	sum := Summary{
		QuantityBreakdown: QuantityBreakdown{
			SinglePlant:     b.Quantities.SinglePlant,
			Wholesale:       b.Quantities.Wholesale,
			WholesalePlants: b.WholesalePlants(),
			GrowersChoice:   b.Quantities.GrowersChoice,
			Total:           b.Quantities.Total,
		},
		Subtotal:                b.Subtotal,
		TotalOriginalCost:       b.TotalOriginalCost,
		Discount:                b.Discount,
		CodeDiscount:            stack.CodeDiscount,
		BaseUPSShipping:         costs.BaseUPSShipping,
		UPSNextDayUpgradeCost:   costs.UPSNextDayUpgradeCost,
		AirBaseCargo:            costs.AirBaseCargo,
		WholesaleAirCargo:       costs.WholesaleAirCargo,
		ShippingCreditsDiscount: costs.ShippingCreditsDiscount,
		ShippingCreditsEligible: eligible,
		FinalShippingCost:       costs.FinalShippingCost,
		LeafPointsApplied:       stack.LeafPointsApplied,
		PlantCreditsApplied:     stack.PlantCreditsApplied,
		CreditsApplied:          stack.CreditsApplied,
		FinalTotal:              finalTotal,
		DisplayTotal:            finalTotal,
		SelectedFlight:          st.Flight.Selected,
		FlightState:             st.Flight.State.String(),
		FlightLocked:            st.Flight.Locked,
		FlightNotice:            st.Flight.Notice,
		Toggles:                 st.Toggles,
		Reasons:                 []Reason{},
	}
	if finalTotal < p.MinimumOrderTotal {
		sum.DisplayTotal = 0
	}
	sum.DisplayTotalFormatted = money.FormatUSD(sum.DisplayTotal)

	block := func(code, msg string) {
		sum.Reasons = append(sum.Reasons, Reason{Code: code, Message: msg, Blocking: true})
	}
	if b.Empty() {
		block(ReasonEmptyCart, "Your cart is empty.")
	}
	if st.Flight.Selected == "" {
		if st.Flight.HasOptions {
			block(ReasonFlightRequired, "Select a flight date to continue.")
		} else {
			block(ReasonFlightRequired, "No flight dates are available right now.")
		}
	}
	if st.RatesErr != nil {
		block(ReasonRateLookupFailed, "Shipping rates could not be loaded. Please retry.")
	}
	if st.LockErr != nil {
		block(ReasonOrderStatusLookupFail, "We could not check your existing orders. Please retry.")
	}
	pending := st.LockLoading
	if !b.Empty() && (st.RatesLoading || (st.Rates == nil && st.RatesErr == nil)) {
		pending = true
	}
	if st.Code != nil && st.Code.Pending {
		pending = true
	}
	if pending {
		sum.Loading = true
		block(ReasonLoading, "Calculating your total.")
	}
	if !b.Empty() && ratesKnown && finalTotal < p.MinimumOrderTotal {
		block(ReasonMinimumOrderNotMet, fmt.Sprintf("Orders must total at least %s.", money.FormatUSD(p.MinimumOrderTotal)))
	}

	if st.Code != nil {
		sum.Code = codeStatus(*st.Code, stack.CodeDiscount)
		switch {
		case st.Code.Invalid != nil:
			sum.Reasons = append(sum.Reasons, Reason{Code: ReasonDiscountCodeInvalid, Message: sum.Code.Message})
		case st.Code.LookupErr != nil:
			sum.Reasons = append(sum.Reasons, Reason{Code: ReasonDiscountLookupFailed, Message: sum.Code.Message})
		}
	}

	for _, r := range sum.Reasons {
		if r.Blocking {
			sum.CheckoutDisabled = true
			break
		}
	}
	return sum
}

func codeStatus(cs CodeState, applied money.Money) *CodeStatus {
	status := &CodeStatus{Code: cs.Code, Pending: cs.Pending}
	switch {
	case cs.Pending:
	case cs.Invalid != nil:
		status.Message = fmt.Sprintf("Code %s can't be applied.", cs.Code)
	case cs.LookupErr != nil:
		status.Message = "We couldn't check this code right now. Please try again."
	default:
		status.Applied = applied > 0
	}
	return status
}
