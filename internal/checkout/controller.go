package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/leafmarket-checkout/internal/cart"
	"github.com/noah-isme/leafmarket-checkout/internal/discount"
	"github.com/noah-isme/leafmarket-checkout/internal/flight"
	"github.com/noah-isme/leafmarket-checkout/internal/money"
	"github.com/noah-isme/leafmarket-checkout/internal/obs"
	"github.com/noah-isme/leafmarket-checkout/internal/shipping"
)

var tracer = otel.Tracer("checkout")

// Balances is the server-side snapshot of the buyer's plant-cost credits.
type Balances struct {
	LeafPoints   money.Money `json:"leafPoints"`
	PlantCredits money.Money `json:"plantCredits"`
}

// BalanceProvider loads a buyer's credit balances once per session.
type BalanceProvider interface {
	Balances(ctx context.Context, buyerID string) (Balances, error)
}

// CodeEvaluator previews a promo code against a plant subtotal.
type CodeEvaluator interface {
	Preview(ctx context.Context, code string, subtotal money.Money) (discount.Preview, error)
}

// Deps are the collaborators a Controller calls out to. Any of them may be nil when the
// session never needs the corresponding lookup.
type Deps struct {
	Rates  shipping.RateSource
	Orders flight.OrderStatusProvider
	Codes  CodeEvaluator
	Policy Policy
	Logger zerolog.Logger
}

// Controller owns one checkout session. Every mutation recomputes the full summary.
// Async lookups run without holding the lock; each kind carries a generation counter and a
// result is dropped when a newer request of that kind started after it.
type Controller struct {
	mu       sync.Mutex
	deps     Deps
	buyerID  string
	bd       cart.Breakdown
	balances Balances
	toggles  Toggles
	resolver *flight.Resolver

	rates        *shipping.RateTable
	ratesLoading bool
	ratesErr     error
	lockLoading  bool
	lockErr      error
	code         *CodeState

	rateGen uint64
	lockGen uint64
	codeGen uint64

	summary Summary
}

// NewController starts a session from in. The cart snapshot is aggregated once and never
// re-read. A joiner receiver date locks the flight before any own-order lock is considered.
func NewController(in Input, deps Deps) *Controller {
	if deps.Policy == (Policy{}) {
		deps.Policy = DefaultPolicy()
	}
	c := &Controller{
		deps:     deps,
		buyerID:  in.BuyerID,
		bd:       cart.Aggregate(in.CartItems),
		balances: Balances{LeafPoints: in.LeafPointsBalance, PlantCredits: in.PlantCreditsBalance},
		resolver: flight.NewResolver(in.FlightDateOptions, flight.KeyFromAny(in.JoinerReceiverFlightDate)),
	}
	if in.LockedFlightKey != "" {
		c.resolver.ApplyOwnLock(in.LockedFlightKey)
	}
	if in.ShippingRateTable != nil {
		table := *in.ShippingRateTable
		c.rates = &table
	}
	c.recomputeLocked()
	return c
}

// Summary returns the last computed summary.
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// Breakdown returns the aggregated cart.
func (c *Controller) Breakdown() cart.Breakdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bd
}

// SetToggles replaces all credit toggles at once.
func (c *Controller) SetToggles(t Toggles) Summary {
	return c.mutate(func() { c.toggles = t })
}

// ToggleUpsNextDay flips the next-day UPS upgrade.
func (c *Controller) ToggleUpsNextDay() Summary {
	return c.mutate(func() { c.toggles.UPSNextDay = !c.toggles.UPSNextDay })
}

// ToggleLeafPoints flips leaf point redemption.
func (c *Controller) ToggleLeafPoints() Summary {
	return c.mutate(func() { c.toggles.LeafPoints = !c.toggles.LeafPoints })
}

// TogglePlantCredits flips plant credit redemption.
func (c *Controller) TogglePlantCredits() Summary {
	return c.mutate(func() { c.toggles.PlantCredits = !c.toggles.PlantCredits })
}

// ToggleShippingCredits flips the shipping credit. It only has an effect when eligible.
func (c *Controller) ToggleShippingCredits() Summary {
	return c.mutate(func() { c.toggles.ShippingCredits = !c.toggles.ShippingCredits })
}

// SelectFlight taps a flight option by iso date or label. Taps are no-ops while locked.
func (c *Controller) SelectFlight(input string) Summary {
	return c.mutate(func() { c.resolver.Select(input) })
}

// ClearDiscountCode removes the applied code and discards any in-flight application.
func (c *Controller) ClearDiscountCode() Summary {
	return c.mutate(func() {
		c.codeGen++
		c.code = nil
	})
}

// RefreshRates loads the shipping rate table. While the lookup is pending the summary is
// marked loading; a failure keeps checkout disabled until a later refresh succeeds.
// Without a rate source a session that has no table is treated as a failed lookup.
func (c *Controller) RefreshRates(ctx context.Context) error {
	if c.deps.Rates == nil {
		err := fmt.Errorf("%w: no rate source configured", ErrRateLookup)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.rates == nil {
			c.rateGen++
			c.ratesLoading = false
			c.ratesErr = err
			c.recomputeLocked()
		}
		return err
	}
	ctx, span := tracer.Start(ctx, "checkout.refresh_rates")
	defer span.End()

	c.mu.Lock()
	c.rateGen++
	gen := c.rateGen
	c.ratesLoading = true
	c.recomputeLocked()
	c.mu.Unlock()

	table, err := c.deps.Rates.RateTable(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.rateGen {
		c.discarded("rates", gen, c.rateGen)
		return ErrSuperseded
	}
	c.ratesLoading = false
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate lookup failed")
		c.ratesErr = err
		c.rates = nil
		c.recomputeLocked()
		c.deps.Logger.Warn().Err(err).Str("buyer_id", c.buyerID).Msg("checkout_rate_lookup_failed")
		if !errors.Is(err, ErrRateLookup) {
			err = fmt.Errorf("%w: %w", ErrRateLookup, err)
		}
		return err
	}
	c.ratesErr = nil
	c.rates = &table
	c.recomputeLocked()
	return nil
}

// RefreshOrderLock checks whether the buyer already has an order ready to fly and locks the
// flight selection to it. Joiner sessions skip the lookup.
func (c *Controller) RefreshOrderLock(ctx context.Context) error {
	c.mu.Lock()
	if c.resolver.State() == flight.LockedJoiner {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	if c.deps.Orders == nil || c.buyerID == "" {
		return nil
	}
	ctx, span := tracer.Start(ctx, "checkout.refresh_order_lock")
	defer span.End()

	c.mu.Lock()
	c.lockGen++
	gen := c.lockGen
	c.lockLoading = true
	c.recomputeLocked()
	c.mu.Unlock()

	order, found, err := c.deps.Orders.ActiveOrder(ctx, c.buyerID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.lockGen {
		c.discarded("order_lock", gen, c.lockGen)
		return ErrSuperseded
	}
	c.lockLoading = false
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order status lookup failed")
		c.lockErr = err
		c.recomputeLocked()
		c.deps.Logger.Warn().Err(err).Str("buyer_id", c.buyerID).Msg("checkout_order_status_failed")
		return fmt.Errorf("%w: %w", ErrOrderStatusLookup, err)
	}
	c.lockErr = nil
	if found {
		span.SetAttributes(attribute.String("checkout.locked_flight", order.FlightDate))
		c.resolver.ApplyOwnLock(order.FlightDate)
	} else {
		c.resolver.ApplyOwnLock("")
	}
	c.recomputeLocked()
	return nil
}

// ApplyDiscountCode evaluates code against the plant subtotal. A rejected code applies no
// discount and returns an error wrapping ErrDiscountCodeInvalid; checkout stays enabled.
func (c *Controller) ApplyDiscountCode(ctx context.Context, code string) error {
	normalized := discount.NormalizeCode(code)
	ctx, span := tracer.Start(ctx, "checkout.apply_discount_code")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.discount_code", normalized))

	c.mu.Lock()
	c.codeGen++
	gen := c.codeGen
	subtotal := c.bd.Subtotal
	c.code = &CodeState{Code: normalized, Pending: true}
	c.recomputeLocked()
	c.mu.Unlock()

	var (
		preview discount.Preview
		err     error
	)
	if c.deps.Codes == nil {
		err = errors.New("discount codes unavailable")
	} else {
		preview, err = c.deps.Codes.Preview(ctx, normalized, subtotal)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.codeGen {
		c.discarded("discount_code", gen, c.codeGen)
		return ErrSuperseded
	}
	state := &CodeState{Code: normalized}
	switch {
	case errors.Is(err, discount.ErrCodeInvalid):
		state.Invalid = err
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "discount code lookup failed")
		state.LookupErr = err
		c.deps.Logger.Warn().Err(err).Str("code", normalized).Msg("checkout_discount_lookup_failed")
	default:
		state.Discount = preview.Discount
	}
	c.code = state
	c.recomputeLocked()
	return err
}

func (c *Controller) mutate(fn func()) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
	c.recomputeLocked()
	return c.summary
}

func (c *Controller) recomputeLocked() {
	c.summary = Compute(c.stateLocked(), c.deps.Policy)
}

func (c *Controller) stateLocked() State {
	selected, _ := c.resolver.Selected()
	st := State{
		Breakdown: c.bd,
		Balances:  c.balances,
		Toggles:   c.toggles,
		Flight: FlightState{
			Selected:   selected,
			HasOptions: len(c.resolver.Options()) > 0,
			State:      c.resolver.State(),
			Locked:     c.resolver.Locked(),
			Notice:     c.resolver.Notice(),
		},
		Rates:        c.rates,
		RatesLoading: c.ratesLoading,
		RatesErr:     c.ratesErr,
		LockLoading:  c.lockLoading,
		LockErr:      c.lockErr,
	}
	if c.code != nil {
		code := *c.code
		st.Code = &code
	}
	return st
}

func (c *Controller) discarded(lookup string, gen, current uint64) {
	obs.ObserveStaleResponse(lookup)
	c.deps.Logger.Debug().
		Str("lookup", lookup).
		Uint64("generation", gen).
		Uint64("current", current).
		Msg("checkout_stale_response_discarded")
}
