package checkout

import (
	"errors"

	"github.com/noah-isme/leafmarket-checkout/internal/cart"
	"github.com/noah-isme/leafmarket-checkout/internal/discount"
	"github.com/noah-isme/leafmarket-checkout/internal/flight"
	"github.com/noah-isme/leafmarket-checkout/internal/money"
	"github.com/noah-isme/leafmarket-checkout/internal/shipping"
)

var (
	// ErrEmptyCart blocks checkout for a cart without units.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrFlightSelectionRequired blocks checkout until a flight is selected or locked.
	ErrFlightSelectionRequired = errors.New("checkout: flight selection required")
	// ErrRateLookup blocks checkout while the shipping rate table is unavailable.
	ErrRateLookup = shipping.ErrRateLookup
	// ErrOrderStatusLookup blocks checkout while the active order check is failing.
	ErrOrderStatusLookup = errors.New("checkout: order status lookup failed")
	// ErrMinimumOrderNotMet blocks checkout when the true total is under the minimum.
	ErrMinimumOrderNotMet = errors.New("checkout: minimum order not met")
	// ErrDiscountCodeInvalid is reported for rejected promo codes. It never blocks checkout.
	ErrDiscountCodeInvalid = discount.ErrCodeInvalid
	// ErrPending blocks checkout while an async lookup has not resolved.
	ErrPending = errors.New("checkout: pricing still loading")
	// ErrSuperseded is returned by async operations whose result was discarded because a
	// newer request of the same kind was issued in the meantime.
	ErrSuperseded = errors.New("checkout: result superseded by a newer request")
)

// Reason codes attached to a summary.
const (
	ReasonEmptyCart             = "EMPTY_CART"
	ReasonFlightRequired        = "FLIGHT_SELECTION_REQUIRED"
	ReasonRateLookupFailed      = "RATE_LOOKUP_FAILED"
	ReasonOrderStatusLookupFail = "ORDER_STATUS_LOOKUP_FAILED"
	ReasonMinimumOrderNotMet    = "MINIMUM_ORDER_NOT_MET"
	ReasonLoading               = "LOADING"
	ReasonDiscountCodeInvalid   = "DISCOUNT_CODE_INVALID"
	ReasonDiscountLookupFailed  = "DISCOUNT_CODE_LOOKUP_FAILED"
)

var reasonErrors = map[string]error{
	ReasonEmptyCart:             ErrEmptyCart,
	ReasonFlightRequired:        ErrFlightSelectionRequired,
	ReasonRateLookupFailed:      ErrRateLookup,
	ReasonOrderStatusLookupFail: ErrOrderStatusLookup,
	ReasonMinimumOrderNotMet:    ErrMinimumOrderNotMet,
	ReasonLoading:               ErrPending,
	ReasonDiscountCodeInvalid:   ErrDiscountCodeInvalid,
}

// Reason explains why checkout is disabled or what the buyer should know about the quote.
type Reason struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

// Input is the configuration supplied when a checkout session starts.
type Input struct {
	BuyerID           string          `json:"-"`
	CartItems         []cart.LineItem `json:"cartItems"`
	FlightDateOptions []flight.Option `json:"flightDateOptions"`
	LockedFlightKey   string          `json:"lockedFlightKey,omitempty"`
	// JoinerReceiverFlightDate accepts a date string, time.Time or their pointers.
	JoinerReceiverFlightDate any                 `json:"joinerReceiverFlightDate,omitempty"`
	LeafPointsBalance        money.Money         `json:"leafPointsBalanceCents"`
	PlantCreditsBalance      money.Money         `json:"plantCreditsBalanceCents"`
	ShippingRateTable        *shipping.RateTable `json:"shippingRateTable,omitempty"`
}

// Toggles are the buyer-controlled credit switches.
type Toggles struct {
	UPSNextDay      bool `json:"upsNextDayEnabled"`
	LeafPoints      bool `json:"leafPointsEnabled"`
	PlantCredits    bool `json:"plantCreditsEnabled"`
	ShippingCredits bool `json:"shippingCreditsEnabled"`
}

// Policy holds the marketplace thresholds applied to every quote.
type Policy struct {
	Shipping          shipping.Policy
	MinimumOrderTotal money.Money
}

// DefaultPolicy returns the $1.00 minimum order and the default shipping credit rule.
func DefaultPolicy() Policy {
	return Policy{Shipping: shipping.DefaultPolicy(), MinimumOrderTotal: money.Dollar}
}

// QuantityBreakdown is the per listing type unit count.
type QuantityBreakdown struct {
	SinglePlant     int `json:"singlePlant"`
	Wholesale       int `json:"wholesale"`
	WholesalePlants int `json:"wholesalePlants"`
	GrowersChoice   int `json:"growersChoice"`
	Total           int `json:"total"`
}

// CodeStatus reports the state of the promo code the buyer applied.
type CodeStatus struct {
	Code    string `json:"code"`
	Applied bool   `json:"applied"`
	Pending bool   `json:"pending,omitempty"`
	Message string `json:"message,omitempty"`
}

// Summary is the immutable pricing breakdown of a checkout session. FinalTotal is the amount
// sent to payment; DisplayTotal is what the buyer sees.
type Summary struct {
	QuantityBreakdown       QuantityBreakdown `json:"quantityBreakdown"`
	Subtotal                money.Money       `json:"subtotal"`
	TotalOriginalCost       money.Money       `json:"totalOriginalCost"`
	Discount                money.Money       `json:"discount"`
	CodeDiscount            money.Money       `json:"codeDiscount"`
	BaseUPSShipping         money.Money       `json:"baseUpsShipping"`
	UPSNextDayUpgradeCost   money.Money       `json:"upsNextDayUpgradeCost"`
	AirBaseCargo            money.Money       `json:"airBaseCargo"`
	WholesaleAirCargo       money.Money       `json:"wholesaleAirCargo"`
	ShippingCreditsDiscount money.Money       `json:"shippingCreditsDiscount"`
	ShippingCreditsEligible bool              `json:"shippingCreditsEligible"`
	FinalShippingCost       money.Money       `json:"finalShippingCost"`
	LeafPointsApplied       money.Money       `json:"leafPointsApplied"`
	PlantCreditsApplied     money.Money       `json:"plantCreditsApplied"`
	CreditsApplied          money.Money       `json:"creditsApplied"`
	FinalTotal              money.Money       `json:"finalTotal"`
	DisplayTotal            money.Money       `json:"displayTotal"`
	DisplayTotalFormatted   string            `json:"displayTotalFormatted"`
	SelectedFlight          string            `json:"selectedFlightDate,omitempty"`
	FlightState             string            `json:"flightState"`
	FlightLocked            bool              `json:"flightLocked"`
	FlightNotice            string            `json:"flightNotice,omitempty"`
	Toggles                 Toggles           `json:"toggles"`
	Code                    *CodeStatus       `json:"discountCode,omitempty"`
	Loading                 bool              `json:"loading"`
	CheckoutDisabled        bool              `json:"checkoutDisabled"`
	Reasons                 []Reason          `json:"reasons"`
}

// Err joins the taxonomy errors behind the summary's reasons, blocking or not.
// It returns nil for a quote that can proceed without notices.
func (s Summary) Err() error {
	var errs []error
	for _, r := range s.Reasons {
		if err, ok := reasonErrors[r.Code]; ok {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReasonCodes lists the codes of the attached reasons in order.
func (s Summary) ReasonCodes() []string {
	codes := make([]string, 0, len(s.Reasons))
	for _, r := range s.Reasons {
		codes = append(codes, r.Code)
	}
	return codes
}
