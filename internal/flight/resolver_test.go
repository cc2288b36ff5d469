package flight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleOptions() []Option {
	return []Option{
		{ISO: "2024-03-08", Label: "Mar 8, 2024", CutoffDateLabel: "Mar 4"},
		{ISO: "2024-03-15", Label: "Mar 15, 2024", CutoffDateLabel: "Mar 11"},
		{ISO: "2024-03-22", Label: "Fri, Mar 22", CutoffDateLabel: "Mar 18"},
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"2024-03-15":                "2024-03-15",
		" 2024-03-15 ":              "2024-03-15",
		"2024-03-15T00:00:00Z":      "2024-03-15",
		"2024-03-15T20:00:00-08:00": "2024-03-16",
		"Mar 15, 2024":              "2024-03-15",
		"March 15, 2024":            "2024-03-15",
		"Fri, Mar 15, 2024":         "2024-03-15",
		"03/15/2024":                "2024-03-15",
		"Fri,  Mar 22":              "fri, mar 22",
		"":                          "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeKey(in), in)
	}
}

func TestKeyFromAny(t *testing.T) {
	ts := time.Date(2024, 3, 15, 6, 30, 0, 0, time.UTC)
	require.Equal(t, "2024-03-15", KeyFromAny(ts))
	require.Equal(t, "2024-03-15", KeyFromAny(&ts))
	require.Equal(t, "2024-03-15", KeyFromAny("Mar 15, 2024"))
	require.Equal(t, "", KeyFromAny(nil))
	require.Equal(t, "", KeyFromAny(42))
	require.Equal(t, "", KeyFromAny(time.Time{}))
}

func TestSelectByLabelOrISO(t *testing.T) {
	r := NewResolver(sampleOptions(), "")
	require.Equal(t, Unselected, r.State())
	_, ok := r.Selected()
	require.False(t, ok)

	require.True(t, r.Select("Mar 15, 2024"))
	key, ok := r.Selected()
	require.True(t, ok)
	require.Equal(t, "2024-03-15", key)

	require.False(t, r.Select("2024-03-15"), "same option is not a change")
	require.True(t, r.Select("fri, mar 22"))
	key, _ = r.Selected()
	require.Equal(t, "2024-03-22", key)

	require.False(t, r.Select("2024-04-01"), "unknown option ignored")
	key, _ = r.Selected()
	require.Equal(t, "2024-03-22", key)
}

func TestOwnLockOverridesSelection(t *testing.T) {
	r := NewResolver(sampleOptions(), "")
	r.Select("2024-03-08")

	r.ApplyOwnLock("Mar 15, 2024")
	require.Equal(t, LockedOwn, r.State())
	require.True(t, r.Locked())
	require.False(t, r.Select("2024-03-22"))
	key, ok := r.Selected()
	require.True(t, ok)
	require.Equal(t, "2024-03-15", key)
	require.Contains(t, r.Notice(), "Mar 15, 2024")

	r.ApplyOwnLock("")
	require.Equal(t, Unselected, r.State())
	require.Empty(t, r.Notice())
	require.True(t, r.Select("2024-03-22"))
}

func TestOwnLockOutsideOfferedOptions(t *testing.T) {
	r := NewResolver(sampleOptions(), "")
	r.ApplyOwnLock("2024-05-03T00:00:00Z")
	key, ok := r.Selected()
	require.True(t, ok)
	require.Equal(t, "2024-05-03", key)
	require.Contains(t, r.Notice(), "2024-05-03")
}

func TestJoinerLockTakesPrecedence(t *testing.T) {
	r := NewResolver(sampleOptions(), "2024-03-15")
	require.Equal(t, LockedJoiner, r.State())

	r.ApplyOwnLock("2024-03-08")
	require.Equal(t, LockedJoiner, r.State())

	for _, opt := range sampleOptions() {
		require.False(t, r.Select(opt.ISO))
		key, ok := r.Selected()
		require.True(t, ok)
		require.Equal(t, "2024-03-15", key)
	}
	r.ApplyOwnLock("")
	require.Equal(t, LockedJoiner, r.State())
	require.Contains(t, r.Notice(), "receiver")
}

func TestNoOptionsMeansNoSelection(t *testing.T) {
	r := NewResolver(nil, "")
	require.False(t, r.Select("2024-03-15"))
	_, ok := r.Selected()
	require.False(t, ok)
}
