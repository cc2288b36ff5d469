package discount

import "github.com/noah-isme/leafmarket-checkout/internal/money"

// StackInput carries everything the stacking engine needs.
type StackInput struct {
	Subtotal               money.Money
	CodeDiscount           money.Money
	LeafPointsEnabled      bool
	LeafPointsBalance      money.Money
	PlantCreditsEnabled    bool
	PlantCreditsBalance    money.Money
	ShippingCreditEnabled  bool
	ShippingCreditEligible bool
	ShippingCreditAmount   money.Money
}

// StackResult is the amount each instrument contributed.
type StackResult struct {
	CodeDiscount            money.Money `json:"codeDiscount"`
	LeafPointsApplied       money.Money `json:"leafPointsApplied"`
	PlantCreditsApplied     money.Money `json:"plantCreditsApplied"`
	CreditsApplied          money.Money `json:"creditsApplied"`
	ShippingCreditsDiscount money.Money `json:"shippingCreditsDiscount"`
	PlantTotal              money.Money `json:"plantTotal"`
}

// Stack applies reductions in the fixed order code, leaf points, plant credits, shipping
// credits. Each step only sees what the previous steps left, so the plant portion never
// goes below zero. Shipping credits are resolved here but reduce shipping, not plants.
func Stack(in StackInput) StackResult {
	var out StackResult
	remaining := nonNegative(in.Subtotal)

	out.CodeDiscount = money.Min(nonNegative(in.CodeDiscount), remaining)
	remaining -= out.CodeDiscount

	if in.LeafPointsEnabled {
		out.LeafPointsApplied = money.Min(nonNegative(in.LeafPointsBalance), remaining)
		remaining -= out.LeafPointsApplied
	}
	if in.PlantCreditsEnabled {
		out.PlantCreditsApplied = money.Min(nonNegative(in.PlantCreditsBalance), remaining)
		remaining -= out.PlantCreditsApplied
	}
	out.CreditsApplied = out.LeafPointsApplied + out.PlantCreditsApplied
	out.PlantTotal = remaining

	if in.ShippingCreditEnabled && in.ShippingCreditEligible {
		out.ShippingCreditsDiscount = nonNegative(in.ShippingCreditAmount)
	}
	return out
}

func nonNegative(m money.Money) money.Money {
	if m < 0 {
		return 0
	}
	return m
}
