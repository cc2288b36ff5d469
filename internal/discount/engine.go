package discount

import (
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/leafmarket-checkout/internal/money"
)

var (
	// ErrCodeInvalid is the umbrella error for any code that cannot be applied.
	ErrCodeInvalid = errors.New("discount code invalid")
	// ErrCodeNotFound is returned when no code matches.
	ErrCodeNotFound = errors.New("discount code not found")
	// ErrCodeInactive is returned for codes switched off by an administrator.
	ErrCodeInactive = errors.New("discount code inactive")
	// ErrCodeNotStarted is returned before the code's validity window opens.
	ErrCodeNotStarted = errors.New("discount code not yet active")
	// ErrCodeExpired is returned once the validity window has closed.
	ErrCodeExpired = errors.New("discount code expired")
	// ErrUsageLimitReached indicates the code has exhausted its global quota.
	ErrUsageLimitReached = errors.New("discount code usage limit reached")
	// ErrMinimumSpendUnmet indicates the plant subtotal is below the code requirement.
	ErrMinimumSpendUnmet = errors.New("discount code minimum spend not met")
)

const (
	KindPercent = "percent"
	KindFixed   = "fixed"
)

// Rule captures the runtime constraints of a promo code.
type Rule struct {
	Code       string
	Kind       string
	Value      money.Money
	PercentBps int32
	MinSpend   money.Money
	UsageLimit *int32
	UsedCount  int32
	ValidFrom  *time.Time
	ValidTo    *time.Time
	Active     bool
}

// Validate ensures the rule can be applied at the provided instant and subtotal.
func (r Rule) Validate(now time.Time, subtotal money.Money) error {
	if !r.Active {
		return ErrCodeInactive
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrCodeNotStarted
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrCodeExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if subtotal < r.MinSpend {
		return ErrMinimumSpendUnmet
	}
	return nil
}

// Compute determines the code discount against the plant subtotal.
func Compute(subtotal money.Money, r Rule) money.Money {
	if subtotal <= 0 {
		return 0
	}
	discount := r.Value
	if strings.EqualFold(r.Kind, KindPercent) {
		if r.PercentBps <= 0 {
			return 0
		}
		// round half-up on cents
		discount = (subtotal*money.Money(r.PercentBps) + 5000) / 10000
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// NormalizeCode trims and upper-cases a buyer-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
