package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/iterator"

	"github.com/noah-isme/leafmarket-checkout/internal/flight"
)

const (
	ordersCollection = "orders"
	// StatusReadyToFly marks an order whose flight is committed.
	StatusReadyToFly = "Ready to Fly"
)

// OrderStatusStore finds a buyer's committed order. It satisfies flight.OrderStatusProvider.
type OrderStatusStore struct {
	Provider *Provider
}

// ActiveOrder returns the buyer's Ready to Fly order, if any.
func (s OrderStatusStore) ActiveOrder(ctx context.Context, buyerID string) (flight.ActiveOrder, bool, error) {
	if s.Provider == nil {
		return flight.ActiveOrder{}, false, errors.New("order status store not configured")
	}
	if strings.TrimSpace(buyerID) == "" {
		return flight.ActiveOrder{}, false, errors.New("buyer id is required")
	}
	client, err := s.Provider.Client(ctx)
	if err != nil {
		return flight.ActiveOrder{}, false, err
	}
	iter := client.Collection(ordersCollection).
		Where("buyerUid", "==", buyerID).
		Where("status", "==", StatusReadyToFly).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return flight.ActiveOrder{}, false, nil
	}
	if err != nil {
		return flight.ActiveOrder{}, false, fmt.Errorf("query active order: %w", err)
	}
	order := decodeOrder(snap.Ref.ID, snap.Data())
	if order.FlightDate == "" {
		return flight.ActiveOrder{}, false, fmt.Errorf("order %s has no flight date", order.ID)
	}
	return order, true, nil
}

// decodeOrder reads the fields checkout needs from an order document. The flight date is
// stored either as a timestamp or as display text depending on the writer.
func decodeOrder(id string, data map[string]any) flight.ActiveOrder {
	order := flight.ActiveOrder{ID: id}
	if status, ok := data["status"].(string); ok {
		order.Status = status
	}
	for _, field := range []string{"flightDate", "flightDateFormatted"} {
		if key := flight.KeyFromAny(data[field]); key != "" {
			order.FlightDate = key
			break
		}
	}
	return order
}
