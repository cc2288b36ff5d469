package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/leafmarket-checkout/internal/discount"
)

// RowQuerier is the subset of pgxpool.Pool used by the repositories.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const getDiscountCode = `
SELECT code, kind, value_cents, percent_bps, min_spend_cents,
       usage_limit, used_count, valid_from, valid_to, active
FROM discount_codes
WHERE code = $1`

// DiscountCodes loads promo code rules from Postgres. It satisfies discount.Store.
type DiscountCodes struct {
	DB RowQuerier
}

// GetRule returns the rule for an already-normalized code.
func (r DiscountCodes) GetRule(ctx context.Context, code string) (discount.Rule, error) {
	if r.DB == nil {
		return discount.Rule{}, errors.New("discount code store not configured")
	}
	var (
		rule       discount.Rule
		usageLimit *int32
		validFrom  *time.Time
		validTo    *time.Time
	)
	err := r.DB.QueryRow(ctx, getDiscountCode, code).Scan(
		&rule.Code,
		&rule.Kind,
		&rule.Value,
		&rule.PercentBps,
		&rule.MinSpend,
		&usageLimit,
		&rule.UsedCount,
		&validFrom,
		&validTo,
		&rule.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.Rule{}, discount.ErrCodeNotFound
		}
		return discount.Rule{}, fmt.Errorf("get discount code: %w", err)
	}
	rule.UsageLimit = usageLimit
	rule.ValidFrom = validFrom
	rule.ValidTo = validTo
	return rule, nil
}

// Execer is the subset of pgxpool.Pool used for writes.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const upsertDiscountCode = `
INSERT INTO discount_codes (code, kind, value_cents, percent_bps, min_spend_cents,
                            usage_limit, valid_from, valid_to, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (code) DO UPDATE SET
    kind = EXCLUDED.kind,
    value_cents = EXCLUDED.value_cents,
    percent_bps = EXCLUDED.percent_bps,
    min_spend_cents = EXCLUDED.min_spend_cents,
    usage_limit = EXCLUDED.usage_limit,
    valid_from = EXCLUDED.valid_from,
    valid_to = EXCLUDED.valid_to,
    active = EXCLUDED.active,
    updated_at = now()`

// SaveRule inserts or replaces a rule, keeping its used count.
func SaveRule(ctx context.Context, db Execer, rule discount.Rule) error {
	code := discount.NormalizeCode(rule.Code)
	if code == "" {
		return errors.New("save discount code: code is required")
	}
	kind := strings.ToLower(strings.TrimSpace(rule.Kind))
	if kind != discount.KindPercent && kind != discount.KindFixed {
		return fmt.Errorf("save discount code %s: unknown kind %q", code, rule.Kind)
	}
	_, err := db.Exec(ctx, upsertDiscountCode,
		code, kind, rule.Value, rule.PercentBps, rule.MinSpend,
		rule.UsageLimit, rule.ValidFrom, rule.ValidTo, rule.Active,
	)
	if err != nil {
		return fmt.Errorf("save discount code %s: %w", code, err)
	}
	return nil
}
