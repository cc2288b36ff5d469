package money

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a US dollar amount stored in cents.
type Money = int64

// Cents per dollar.
const Dollar Money = 100

var hundred = decimal.NewFromInt(100)

// FromDecimal converts a dollar amount into cents rounding half-up.
func FromDecimal(d decimal.Decimal) Money {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromFloat converts a collaborator supplied float dollar amount into cents.
func FromFloat(f float64) Money {
	return FromDecimal(decimal.NewFromFloat(f))
}

// ParseUSD parses a dollar string such as "12.50" or "$1,200" into cents.
func ParseUSD(s string) (Money, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, err
	}
	return FromDecimal(d), nil
}

// ToDecimal returns the dollar value of m.
func ToDecimal(m Money) decimal.Decimal {
	return decimal.New(m, -2)
}

// ApplyPercent returns percent% of amount, rounded half-up to the cent.
func ApplyPercent(amount Money, percent decimal.Decimal) Money {
	if amount <= 0 || !percent.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(percent).Div(hundred).Round(0).IntPart()
}

// PercentOff returns amount reduced by percent%, rounded half-up to the cent.
func PercentOff(amount Money, percent decimal.Decimal) Money {
	if amount <= 0 {
		return 0
	}
	if !percent.IsPositive() {
		return amount
	}
	if percent.GreaterThanOrEqual(hundred) {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(hundred.Sub(percent)).Div(hundred).Round(0).IntPart()
}

// SubFloor subtracts b from a without going below zero.
func SubFloor(a, b Money) Money {
	if b >= a {
		return 0
	}
	return a - b
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Money) Money {
	if a > b {
		return a
	}
	return b
}

// FormatUSD renders m as "$1,234.56".
func FormatUSD(m Money) string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	whole := strconv.FormatInt(m/Dollar, 10)
	cents := m % Dollar
	var b strings.Builder
	b.WriteString(sign)
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	if cents < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(cents, 10))
	return b.String()
}
