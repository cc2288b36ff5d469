package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/noah-isme/leafmarket-checkout/internal/obs"
)

// ErrRateLookup is returned when the rate table cannot be obtained. Callers must keep
// checkout disabled rather than treat shipping as free.
var ErrRateLookup = errors.New("shipping rate lookup failed")

// RateSource supplies the current rate table.
type RateSource interface {
	RateTable(ctx context.Context) (RateTable, error)
}

// StaticSource serves a fixed rate table, usually built from configuration.
type StaticSource struct {
	Table RateTable
}

// RateTable returns the configured table.
func (s StaticSource) RateTable(context.Context) (RateTable, error) {
	return s.Table, nil
}

// Doer executes outbound HTTP requests; resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPSource fetches the rate table from the marketplace backend.
type HTTPSource struct {
	BaseURL string
	HTTP    Doer
}

type rateTableEnvelope struct {
	Data *RateTable `json:"data"`
}

// RateTable performs GET {BaseURL}/shipping/rate-table.
func (s HTTPSource) RateTable(ctx context.Context) (RateTable, error) {
	table, err := s.fetch(ctx)
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.ObserveRateLookup("http", result)
	return table, err
}

func (s HTTPSource) fetch(ctx context.Context) (RateTable, error) {
	if s.HTTP == nil || strings.TrimSpace(s.BaseURL) == "" {
		return RateTable{}, fmt.Errorf("%w: source not configured", ErrRateLookup)
	}
	url := strings.TrimRight(s.BaseURL, "/") + "/shipping/rate-table"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RateTable{}, fmt.Errorf("%w: %w", ErrRateLookup, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		return RateTable{}, fmt.Errorf("%w: %w", ErrRateLookup, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return RateTable{}, fmt.Errorf("%w: unexpected status %d", ErrRateLookup, resp.StatusCode)
	}
	var env rateTableEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return RateTable{}, fmt.Errorf("%w: decode: %w", ErrRateLookup, err)
	}
	if env.Data == nil {
		return RateTable{}, fmt.Errorf("%w: empty payload", ErrRateLookup)
	}
	if err := env.Data.Validate(); err != nil {
		return RateTable{}, fmt.Errorf("%w: %w", ErrRateLookup, err)
	}
	return *env.Data, nil
}

// Validate rejects tables carrying negative fees.
func (t RateTable) Validate() error {
	fees := map[string]int64{
		"upsBase":                  t.UPSBase,
		"upsPerUnit":               t.UPSPerUnit,
		"upsNextDayBase":           t.UPSNextDayBase,
		"upsNextDayPerUnit":        t.UPSNextDayPerUnit,
		"airBaseCargo":             t.AirBaseCargo,
		"wholesaleAirCargoPerUnit": t.WholesaleAirCargoPerUnit,
	}
	for name, fee := range fees {
		if fee < 0 {
			return fmt.Errorf("rate table: %s is negative", name)
		}
	}
	for origin, fee := range t.WholesaleAirCargoByOrigin {
		if fee < 0 {
			return fmt.Errorf("rate table: wholesale rate for %s is negative", origin)
		}
	}
	if t.UPSIncludedUnits < 0 {
		return errors.New("rate table: upsIncludedUnits is negative")
	}
	return nil
}
