package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/leafmarket-checkout/internal/common"
)

// Config describes the limiter thresholds.
type Config struct {
	Window time.Duration
	Max    int64
	Prefix string
}

// NewLimiter builds a fixed window limiter. A nil client keeps counters in process memory.
func NewLimiter(client *redis.Client, cfg Config) (*limiter.Limiter, error) {
	rate := limiter.Rate{Period: cfg.Window, Limit: cfg.Max}
	opts := limiter.StoreOptions{Prefix: cfg.Prefix}
	if opts.Prefix == "" {
		opts.Prefix = "checkout:ratelimit"
	}
	if client == nil {
		return limiter.New(memory.NewStoreWithOptions(opts), rate), nil
	}
	store, err := limiterredis.NewStoreWithOptions(client, opts)
	if err != nil {
		return nil, err
	}
	return limiter.New(store, rate), nil
}

// Getter is the subset of *limiter.Limiter the middleware needs.
type Getter interface {
	Get(ctx context.Context, key string) (limiter.Context, error)
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter Getter
	Key     func(*http.Request) string
	OnError func(error)
}

// Middleware fails open when the store is unavailable.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		keyFn := h.Key
		if keyFn == nil {
			keyFn = BuyerOrIP
		}
		lctx, err := h.Limiter.Get(r.Context(), keyFn(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := time.Until(time.Unix(lctx.Reset, 0)).Seconds()
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(int(retryAfter)))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BuyerOrIP keys authenticated requests by buyer and anonymous ones by client address.
func BuyerOrIP(r *http.Request) string {
	if id, ok := common.BuyerID(r.Context()); ok {
		return "buyer:" + id
	}
	return "ip:" + common.ClientIP(r)
}
