package discount

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputePercent(t *testing.T) {
	rule := Rule{Kind: KindPercent, PercentBps: 2000}
	require.EqualValues(t, 1_200, Compute(6_000, rule))
}

func TestComputePercentRoundsHalfUp(t *testing.T) {
	// 12.5% of $0.99 is 12.375 cents
	rule := Rule{Kind: KindPercent, PercentBps: 1250}
	require.EqualValues(t, 12, Compute(99, rule))
	// 15% of $0.10 is 1.5 cents
	rule.PercentBps = 1500
	require.EqualValues(t, 2, Compute(10, rule))
}

func TestComputeFixedClampsToSubtotal(t *testing.T) {
	rule := Rule{Kind: KindFixed, Value: 5_000}
	require.EqualValues(t, 3_000, Compute(3_000, rule))
	require.Zero(t, Compute(0, rule))
}

func TestRuleValidate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	limit := int32(5)

	cases := map[string]struct {
		rule Rule
		want error
	}{
		"active":         {rule: Rule{Active: true}},
		"inactive":       {rule: Rule{}, want: ErrCodeInactive},
		"not started":    {rule: Rule{Active: true, ValidFrom: &future}, want: ErrCodeNotStarted},
		"expired":        {rule: Rule{Active: true, ValidTo: &past}, want: ErrCodeExpired},
		"quota used":     {rule: Rule{Active: true, UsageLimit: &limit, UsedCount: 5}, want: ErrUsageLimitReached},
		"min spend":      {rule: Rule{Active: true, MinSpend: 10_000}, want: ErrMinimumSpendUnmet},
		"inside window":  {rule: Rule{Active: true, ValidFrom: &past, ValidTo: &future}},
		"quota headroom": {rule: Rule{Active: true, UsageLimit: &limit, UsedCount: 4}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.rule.Validate(now, 6_000)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}
