package cart

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned when a line item fails validation.
var ErrInvalidInput = errors.New("invalid input")

var (
	validateOnce sync.Once
	validate     *validator.Validate
	maxPercent   = decimal.NewFromInt(100)
)

func lineValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(lineItemRules, LineItem{})
	})
	return validate
}

func lineItemRules(sl validator.StructLevel) {
	it := sl.Current().Interface().(LineItem)
	if it.DiscountAmount != nil && it.DiscountPercent != nil {
		sl.ReportError(it.DiscountPercent, "DiscountPercent", "discountPercent", "excluded_with", "DiscountAmount")
	}
	if it.DiscountPercent != nil && (it.DiscountPercent.IsNegative() || it.DiscountPercent.GreaterThan(maxPercent)) {
		sl.ReportError(it.DiscountPercent, "DiscountPercent", "discountPercent", "percent", "0-100")
	}
}

// Validate rejects malformed line items before they reach the pricing engine.
func Validate(items []LineItem) error {
	v := lineValidator()
	var problems []string
	for i := range items {
		err := v.Struct(items[i])
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("items[%d].%s: %s", i, fe.Field(), fe.Tag()))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), ErrInvalidInput)
	}
	return nil
}
