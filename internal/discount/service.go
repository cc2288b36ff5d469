package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/leafmarket-checkout/internal/money"
)

// Store loads promo code rules. Implementations return ErrCodeNotFound for unknown codes.
type Store interface {
	GetRule(ctx context.Context, code string) (Rule, error)
}

// Preview describes the outcome of evaluating a code without consuming it.
type Preview struct {
	Code     string      `json:"code"`
	Discount money.Money `json:"discount"`
}

// Service evaluates promo codes against a checkout subtotal.
type Service struct {
	Store Store
	Now   func() time.Time
}

// Preview performs a dry-run evaluation. Rejections wrap ErrCodeInvalid together with the
// specific reason; store failures are returned unwrapped so callers can tell them apart.
func (s *Service) Preview(ctx context.Context, code string, subtotal money.Money) (Preview, error) {
	if s == nil || s.Store == nil {
		return Preview{}, errors.New("discount service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Preview{}, fmt.Errorf("%w: code is required", ErrCodeInvalid)
	}
	rule, err := s.Store.GetRule(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return Preview{}, fmt.Errorf("%w: %w", ErrCodeInvalid, ErrCodeNotFound)
		}
		return Preview{}, err
	}
	if err := rule.Validate(s.now(), subtotal); err != nil {
		return Preview{}, fmt.Errorf("%w: %w", ErrCodeInvalid, err)
	}
	discount := Compute(subtotal, rule)
	if discount <= 0 {
		return Preview{}, fmt.Errorf("%w: code yields no discount", ErrCodeInvalid)
	}
	return Preview{Code: normalized, Discount: discount}, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
