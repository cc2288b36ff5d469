package cart

import "github.com/noah-isme/leafmarket-checkout/internal/money"

// Bucket holds the totals for one listing type.
type Bucket struct {
	Quantity     int         `json:"quantity"`
	Subtotal     money.Money `json:"subtotal"`
	OriginalCost money.Money `json:"originalCost"`
}

// Quantities is the per listing type unit count.
type Quantities struct {
	SinglePlant   int `json:"singlePlant"`
	Wholesale     int `json:"wholesale"`
	GrowersChoice int `json:"growersChoice"`
	Total         int `json:"total"`
}

// Breakdown is the aggregated view of a cart used by the pricing engine.
type Breakdown struct {
	Quantities        Quantities
	SinglePlant       Bucket
	Wholesale         Bucket
	GrowersChoice     Bucket
	Subtotal          money.Money
	TotalOriginalCost money.Money
	Discount          money.Money
	// AirCargoEligible is set when any single plant or grower's choice line flies air cargo.
	AirCargoEligible  bool
	WholesaleByOrigin map[Origin]int
}

// Aggregate groups validated line items into listing type buckets.
func Aggregate(items []LineItem) Breakdown {
	var b Breakdown
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		var bucket *Bucket
		switch it.ListingType {
		case SinglePlant:
			bucket = &b.SinglePlant
		case Wholesale:
			bucket = &b.Wholesale
		case GrowersChoice:
			bucket = &b.GrowersChoice
		default:
			continue
		}
		sub := it.Subtotal()
		orig := it.OriginalCost()
		bucket.Quantity += it.Quantity
		bucket.Subtotal += sub
		bucket.OriginalCost += orig
		b.Subtotal += sub
		b.TotalOriginalCost += orig

		if it.ListingType == Wholesale {
			if b.WholesaleByOrigin == nil {
				b.WholesaleByOrigin = make(map[Origin]int)
			}
			b.WholesaleByOrigin[it.Origin] += it.Quantity
		} else if it.HasAirCargo {
			b.AirCargoEligible = true
		}
	}
	b.Quantities = Quantities{
		SinglePlant:   b.SinglePlant.Quantity,
		Wholesale:     b.Wholesale.Quantity,
		GrowersChoice: b.GrowersChoice.Quantity,
		Total:         b.SinglePlant.Quantity + b.Wholesale.Quantity + b.GrowersChoice.Quantity,
	}
	b.Discount = money.SubFloor(b.TotalOriginalCost, b.Subtotal)
	return b
}

// Empty reports whether the cart contributed no units.
func (b Breakdown) Empty() bool {
	return b.Quantities.Total == 0
}

// ParcelUnits is the single plant plus grower's choice unit count that drives UPS pricing.
func (b Breakdown) ParcelUnits() int {
	return b.Quantities.SinglePlant + b.Quantities.GrowersChoice
}

// WholesalePlants returns the plant count shown for wholesale batches.
func (b Breakdown) WholesalePlants() int {
	return b.Quantities.Wholesale * WholesaleBatchSize
}
