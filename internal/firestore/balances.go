package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/noah-isme/leafmarket-checkout/internal/checkout"
	"github.com/noah-isme/leafmarket-checkout/internal/money"
)

const buyersCollection = "buyer"

// BalanceStore reads leaf point and plant credit balances from the buyer document.
// It satisfies checkout.BalanceProvider.
type BalanceStore struct {
	Provider *Provider
}

// Balances returns the buyer's balances; a missing document means no credits.
func (s BalanceStore) Balances(ctx context.Context, buyerID string) (checkout.Balances, error) {
	if s.Provider == nil {
		return checkout.Balances{}, errors.New("balance store not configured")
	}
	if strings.TrimSpace(buyerID) == "" {
		return checkout.Balances{}, errors.New("buyer id is required")
	}
	client, err := s.Provider.Client(ctx)
	if err != nil {
		return checkout.Balances{}, err
	}
	snap, err := client.Collection(buyersCollection).Doc(buyerID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return checkout.Balances{}, nil
	}
	if err != nil {
		return checkout.Balances{}, fmt.Errorf("get buyer balances: %w", err)
	}
	return decodeBalances(snap.Data()), nil
}

func decodeBalances(data map[string]any) checkout.Balances {
	return checkout.Balances{
		LeafPoints:   dollars(data["leafPoints"]),
		PlantCredits: dollars(data["plantCredits"]),
	}
}

// dollars converts a Firestore number holding a USD amount to cents. Negative or
// non-numeric values count as zero.
func dollars(v any) money.Money {
	var m money.Money
	switch n := v.(type) {
	case int64:
		m = n * money.Dollar
	case float64:
		m = money.FromFloat(n)
	}
	if m < 0 {
		return 0
	}
	return m
}
