package split

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gitlab.com/flik/groupledger/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireShares(t *testing.T, want map[string]string, got map[string]decimal.Decimal) {
	t.Helper()
	require.Len(t, got, len(want))
	for id, amount := range want {
		require.Contains(t, got, id)
		require.Equal(t, amount, got[id].StringFixed(2), "share of %s", id)
	}
}

func TestComputeShares(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		amount       string
		participants []string
		mode         models.SplitMode
		weights      map[string]decimal.Decimal
		want         map[string]string
	}{
		{
			name:         "equal even",
			amount:       "30.00",
			participants: []string{"a", "b", "c"},
			mode:         models.SplitEqual,
			want:         map[string]string{"a": "10.00", "b": "10.00", "c": "10.00"},
		},
		{
			name:         "equal remainder to first",
			amount:       "100.00",
			participants: []string{"a", "b", "c"},
			mode:         models.SplitEqual,
			want:         map[string]string{"a": "33.34", "b": "33.33", "c": "33.33"},
		},
		{
			name:         "equal single participant",
			amount:       "7.20",
			participants: []string{"b"},
			mode:         models.SplitEqual,
			want:         map[string]string{"b": "7.20"},
		},
		{
			name:         "equal ignores weights",
			amount:       "10",
			participants: []string{"a", "b"},
			mode:         models.SplitEqual,
			weights:      map[string]decimal.Decimal{"a": d("9")},
			want:         map[string]string{"a": "5.00", "b": "5.00"},
		},
		{
			name:         "percentage exact",
			amount:       "100.00",
			participants: []string{"a", "b", "c"},
			mode:         models.SplitPercentage,
			weights:      map[string]decimal.Decimal{"a": d("33.33"), "b": d("33.33"), "c": d("33.34")},
			want:         map[string]string{"a": "33.33", "b": "33.33", "c": "33.34"},
		},
		{
			name:         "percentage within tolerance",
			amount:       "200.00",
			participants: []string{"a", "b"},
			mode:         models.SplitPercentage,
			weights:      map[string]decimal.Decimal{"a": d("50"), "b": d("49.99")},
			want:         map[string]string{"a": "100.02", "b": "99.98"},
		},
		{
			name:         "shares weighted",
			amount:       "90.00",
			participants: []string{"a", "b"},
			mode:         models.SplitShares,
			weights:      map[string]decimal.Decimal{"a": d("1"), "b": d("2")},
			want:         map[string]string{"a": "30.00", "b": "60.00"},
		},
		{
			name:         "shares residual to largest weight",
			amount:       "10.00",
			participants: []string{"a", "b", "c"},
			mode:         models.SplitShares,
			weights:      map[string]decimal.Decimal{"a": d("1"), "b": d("1"), "c": d("1")},
			want:         map[string]string{"a": "3.34", "b": "3.33", "c": "3.33"},
		},
		{
			name:         "shares zero weight owes nothing",
			amount:       "10.00",
			participants: []string{"a", "b", "c"},
			mode:         models.SplitShares,
			weights:      map[string]decimal.Decimal{"a": d("0"), "b": d("1"), "c": d("2")},
			want:         map[string]string{"a": "0.00", "b": "3.33", "c": "6.67"},
		},
		{
			name:         "shares ignores non participants",
			amount:       "12",
			participants: []string{"a", "b"},
			mode:         models.SplitShares,
			weights:      map[string]decimal.Decimal{"a": d("1"), "b": d("1"), "z": d("5")},
			want:         map[string]string{"a": "6.00", "b": "6.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			amount := d(tt.amount)
			got, err := ComputeShares(amount, tt.participants, tt.mode, tt.weights)
			require.NoError(t, err)
			requireShares(t, tt.want, got)

			sum := decimal.Zero
			for _, v := range got {
				sum = sum.Add(v)
			}
			require.True(t, sum.Equal(amount), "shares sum to %s, want %s", sum, amount)
		})
	}
}

func TestComputeSharesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		amount       string
		participants []string
		mode         models.SplitMode
		weights      map[string]decimal.Decimal
	}{
		{name: "no participants", amount: "10", mode: models.SplitEqual},
		{name: "duplicate participant", amount: "10", participants: []string{"a", "a"}, mode: models.SplitEqual},
		{name: "zero amount", amount: "0", participants: []string{"a"}, mode: models.SplitEqual},
		{name: "unknown mode", amount: "10", participants: []string{"a"}, mode: "ratio"},
		{
			name:         "zero weight sum",
			amount:       "50.00",
			participants: []string{"a", "b"},
			mode:         models.SplitShares,
			weights:      map[string]decimal.Decimal{"a": d("0"), "b": d("0")},
		},
		{
			name:         "missing weight",
			amount:       "50.00",
			participants: []string{"a", "b"},
			mode:         models.SplitShares,
			weights:      map[string]decimal.Decimal{"a": d("1")},
		},
		{
			name:         "negative weight",
			amount:       "50.00",
			participants: []string{"a", "b"},
			mode:         models.SplitShares,
			weights:      map[string]decimal.Decimal{"a": d("3"), "b": d("-1")},
		},
		{
			name:         "percentages under",
			amount:       "50.00",
			participants: []string{"a", "b"},
			mode:         models.SplitPercentage,
			weights:      map[string]decimal.Decimal{"a": d("50"), "b": d("49.98")},
		},
		{
			name:         "percentages over",
			amount:       "50.00",
			participants: []string{"a", "b"},
			mode:         models.SplitPercentage,
			weights:      map[string]decimal.Decimal{"a": d("60"), "b": d("50")},
		},
		{
			name:         "missing percentage",
			amount:       "50.00",
			participants: []string{"a", "b"},
			mode:         models.SplitPercentage,
			weights:      map[string]decimal.Decimal{"a": d("100")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ComputeShares(d(tt.amount), tt.participants, tt.mode, tt.weights)
			require.ErrorIs(t, err, ErrInvalidSplit)
			require.Nil(t, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]models.SplitMode{
		"equal":        models.SplitEqual,
		"Shares":       models.SplitShares,
		" PERCENTAGE ": models.SplitPercentage,
	} {
		got, err := ParseMode(input)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseMode("custom")
	require.ErrorIs(t, err, ErrInvalidSplit)
}

func drawParticipants(t *rapid.T) []string {
	n := rapid.IntRange(1, 8).Draw(t, "participants")
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%d", i)
	}
	return ids
}

func drawAmount(t *rapid.T) decimal.Decimal {
	return decimal.New(rapid.Int64Range(1, 10_000_000).Draw(t, "cents"), -2)
}

func requireComplete(t *rapid.T, amount decimal.Decimal, participants []string, shares map[string]decimal.Decimal) {
	require.Len(t, shares, len(participants))
	sum := decimal.Zero
	for _, p := range participants {
		share, ok := shares[p]
		require.True(t, ok, "missing share for %s", p)
		require.False(t, share.IsNegative(), "negative share for %s: %s", p, share)
		sum = sum.Add(share)
	}
	require.True(t, sum.Equal(amount), "shares sum to %s, want %s", sum, amount)
}

func TestComputeSharesCompleteness(t *testing.T) {
	t.Parallel()

	t.Run("equal", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(t *rapid.T) {
			amount := drawAmount(t)
			participants := drawParticipants(t)

			shares, err := ComputeShares(amount, participants, models.SplitEqual, nil)
			require.NoError(t, err)
			requireComplete(t, amount, participants, shares)
		})
	})

	t.Run("shares", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(t *rapid.T) {
			amount := drawAmount(t)
			participants := drawParticipants(t)
			weights := make(map[string]decimal.Decimal, len(participants))
			for i, p := range participants {
				lo := int64(0)
				if i == len(participants)-1 {
					lo = 1
				}
				weights[p] = decimal.NewFromInt(rapid.Int64Range(lo, 50).Draw(t, "weight"))
			}

			shares, err := ComputeShares(amount, participants, models.SplitShares, weights)
			require.NoError(t, err)
			requireComplete(t, amount, participants, shares)
		})
	})

	t.Run("percentage", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(t *rapid.T) {
			amount := drawAmount(t)
			participants := drawParticipants(t)

			// Split 100.00% into basis points so the percentages sum to exactly 100.
			remaining := int64(10_000)
			weights := make(map[string]decimal.Decimal, len(participants))
			for i, p := range participants {
				bp := remaining
				if i < len(participants)-1 {
					bp = rapid.Int64Range(0, remaining).Draw(t, "basis points")
				}
				remaining -= bp
				weights[p] = decimal.New(bp, -2)
			}

			shares, err := ComputeShares(amount, participants, models.SplitPercentage, weights)
			require.NoError(t, err)
			requireComplete(t, amount, participants, shares)
		})
	})
}
