package checkout

import (
	"context"
	"sync"

	"github.com/noah-isme/leafmarket-checkout/internal/cart"
	"github.com/noah-isme/leafmarket-checkout/internal/discount"
	"github.com/noah-isme/leafmarket-checkout/internal/flight"
	"github.com/noah-isme/leafmarket-checkout/internal/money"
	"github.com/noah-isme/leafmarket-checkout/internal/shipping"
)

func testRateTable() shipping.RateTable {
	return shipping.RateTable{
		UPSBase:                  5_000,
		UPSPerUnit:               500,
		UPSIncludedUnits:         4,
		UPSNextDayBase:           3_000,
		UPSNextDayPerUnit:        200,
		AirBaseCargo:             10_000,
		WholesaleAirCargoPerUnit: 1_500,
	}
}

func testOptions() []flight.Option {
	return []flight.Option{
		{ISO: "2024-03-15", Label: "Mar 15, 2024", CutoffDateLabel: "Mar 12"},
		{ISO: "2024-03-22", Label: "Mar 22, 2024", CutoffDateLabel: "Mar 19"},
	}
}

func singlePlants(qty int, unit money.Money) []cart.LineItem {
	return []cart.LineItem{{
		ListingID:   "lst-1",
		ListingType: cart.SinglePlant,
		UnitPrice:   unit,
		Quantity:    qty,
		Origin:      cart.OriginTH,
		HasAirCargo: true,
	}}
}

// readyController builds a session with static rates and a selected flight.
func readyController(in Input, deps Deps) *Controller {
	if in.FlightDateOptions == nil {
		in.FlightDateOptions = testOptions()
	}
	if in.ShippingRateTable == nil && deps.Rates == nil {
		table := testRateTable()
		in.ShippingRateTable = &table
	}
	c := NewController(in, deps)
	c.SelectFlight("2024-03-15")
	return c
}

type rateReply struct {
	table shipping.RateTable
	err   error
}

// scriptedRates blocks every lookup until the test replies to it.
type scriptedRates struct {
	mu      sync.Mutex
	replies []chan rateReply
	started chan int
}

func newScriptedRates() *scriptedRates {
	return &scriptedRates{started: make(chan int, 8)}
}

func (s *scriptedRates) RateTable(ctx context.Context) (shipping.RateTable, error) {
	ch := make(chan rateReply, 1)
	s.mu.Lock()
	s.replies = append(s.replies, ch)
	idx := len(s.replies) - 1
	s.mu.Unlock()
	s.started <- idx
	select {
	case r := <-ch:
		return r.table, r.err
	case <-ctx.Done():
		return shipping.RateTable{}, ctx.Err()
	}
}

func (s *scriptedRates) reply(idx int, r rateReply) {
	s.mu.Lock()
	ch := s.replies[idx]
	s.mu.Unlock()
	ch <- r
}

type orderReply struct {
	order flight.ActiveOrder
	found bool
	err   error
}

type scriptedOrders struct {
	mu      sync.Mutex
	replies []chan orderReply
	started chan int
	buyers  []string
}

func newScriptedOrders() *scriptedOrders {
	return &scriptedOrders{started: make(chan int, 8)}
}

func (s *scriptedOrders) ActiveOrder(ctx context.Context, buyerID string) (flight.ActiveOrder, bool, error) {
	ch := make(chan orderReply, 1)
	s.mu.Lock()
	s.replies = append(s.replies, ch)
	s.buyers = append(s.buyers, buyerID)
	idx := len(s.replies) - 1
	s.mu.Unlock()
	s.started <- idx
	r := <-ch
	return r.order, r.found, r.err
}

func (s *scriptedOrders) reply(idx int, r orderReply) {
	s.mu.Lock()
	ch := s.replies[idx]
	s.mu.Unlock()
	ch <- r
}

func (s *scriptedOrders) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

type staticOrders struct {
	reply orderReply
}

func (s staticOrders) ActiveOrder(context.Context, string) (flight.ActiveOrder, bool, error) {
	return s.reply.order, s.reply.found, s.reply.err
}

type memoryCodes struct {
	rules map[string]discount.Rule
	err   error
}

func (m memoryCodes) GetRule(_ context.Context, code string) (discount.Rule, error) {
	if m.err != nil {
		return discount.Rule{}, m.err
	}
	rule, ok := m.rules[code]
	if !ok {
		return discount.Rule{}, discount.ErrCodeNotFound
	}
	return rule, nil
}

type codeReply struct {
	preview discount.Preview
	err     error
}

type scriptedCodes struct {
	started chan string
	replies chan codeReply
}

func (s *scriptedCodes) Preview(_ context.Context, code string, _ money.Money) (discount.Preview, error) {
	s.started <- code
	r := <-s.replies
	return r.preview, r.err
}

func hasReason(sum Summary, code string) bool {
	for _, r := range sum.Reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}

type failingRates struct {
	err error
}

func (f failingRates) RateTable(context.Context) (shipping.RateTable, error) {
	return shipping.RateTable{}, f.err
}
