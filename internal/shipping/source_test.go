package shipping_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leafmarket-checkout/internal/cart"
	"github.com/noah-isme/leafmarket-checkout/internal/resilience"
	"github.com/noah-isme/leafmarket-checkout/internal/shipping"
)

const rateTableJSON = `{"data":{"upsBase":5000,"upsPerUnit":500,"upsIncludedUnits":1,"upsNextDayBase":6000,"airBaseCargo":15000,"wholesaleAirCargoPerUnit":5000,"wholesaleAirCargoByOrigin":{"TH":7000}}}`

func newHTTPSource(t *testing.T, handler http.HandlerFunc) shipping.HTTPSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return shipping.HTTPSource{
		BaseURL: srv.URL,
		HTTP: resilience.HTTPClient{
			Client:      srv.Client(),
			MaxAttempts: 2,
			BaseBackoff: time.Millisecond,
		},
	}
}

func TestHTTPSourceDecodesTable(t *testing.T) {
	src := newHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/shipping/rate-table", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(rateTableJSON))
	})
	table, err := src.RateTable(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(5000), table.UPSBase)
	require.Equal(t, 1, table.UPSIncludedUnits)
	require.Equal(t, int64(7000), table.WholesaleAirCargoByOrigin[cart.OriginTH])
}

func TestHTTPSourceServerErrorIsLookupFailure(t *testing.T) {
	var calls atomic.Int32
	src := newHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := src.RateTable(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, shipping.ErrRateLookup))
	require.Equal(t, int32(2), calls.Load(), "5xx responses are retried")
}

func TestHTTPSourceRejectsNegativeFees(t *testing.T) {
	src := newHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"upsBase":-1}}`))
	})
	_, err := src.RateTable(context.Background())
	require.ErrorIs(t, err, shipping.ErrRateLookup)
}

func TestHTTPSourceNotConfigured(t *testing.T) {
	_, err := shipping.HTTPSource{}.RateTable(context.Background())
	require.ErrorIs(t, err, shipping.ErrRateLookup)
}

type countingSource struct {
	calls atomic.Int32
	table shipping.RateTable
	err   error
}

func (c *countingSource) RateTable(context.Context) (shipping.RateTable, error) {
	c.calls.Add(1)
	return c.table, c.err
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedSourceServesFromCache(t *testing.T) {
	mr, client := newRedis(t)
	upstream := &countingSource{table: shipping.RateTable{UPSBase: 4200, AirBaseCargo: 9900}}
	src := &shipping.CachedSource{
		Upstream: upstream,
		Cache:    shipping.NewCache(client, time.Minute),
		Key:      "test:rates",
		Logger:   zerolog.Nop(),
	}
	ctx := context.Background()

	first, err := src.RateTable(ctx)
	require.NoError(t, err)
	second, err := src.RateTable(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), upstream.calls.Load())
	require.True(t, mr.Exists("test:rates"))

	mr.FastForward(2 * time.Minute)
	_, err = src.RateTable(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), upstream.calls.Load())
}

func TestCachedSourcePropagatesUpstreamFailure(t *testing.T) {
	_, client := newRedis(t)
	upstream := &countingSource{err: shipping.ErrRateLookup}
	src := &shipping.CachedSource{Upstream: upstream, Cache: shipping.NewCache(client, time.Minute), Logger: zerolog.Nop()}
	_, err := src.RateTable(context.Background())
	require.ErrorIs(t, err, shipping.ErrRateLookup)
}

func TestCachedSourceSurvivesRedisOutage(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()
	upstream := &countingSource{table: shipping.RateTable{UPSBase: 100}}
	src := &shipping.CachedSource{Upstream: upstream, Cache: shipping.NewCache(client, time.Minute), Logger: zerolog.Nop()}
	table, err := src.RateTable(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(100), table.UPSBase)
}

func TestRefreshHandlerReloadsCache(t *testing.T) {
	mr, client := newRedis(t)
	upstream := &countingSource{table: shipping.RateTable{UPSBase: 100}}
	src := &shipping.CachedSource{Upstream: upstream, Cache: shipping.NewCache(client, time.Minute), Key: "rates", Logger: zerolog.Nop()}
	handler := shipping.RefreshHandler{Source: src, Logger: zerolog.Nop()}

	require.NoError(t, handler.ProcessTask(context.Background(), shipping.NewRefreshTask()))
	require.True(t, mr.Exists("rates"))

	upstream.table.UPSBase = 200
	require.NoError(t, handler.ProcessTask(context.Background(), shipping.NewRefreshTask()))
	table, err := src.RateTable(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(200), table.UPSBase)
	require.Equal(t, int32(2), upstream.calls.Load())
}

func TestRefreshHandlerRequiresSource(t *testing.T) {
	err := shipping.RefreshHandler{}.ProcessTask(context.Background(), shipping.NewRefreshTask())
	require.Error(t, err)
}
