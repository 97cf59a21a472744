// Package split divides an expense amount among participants.
package split

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"gitlab.com/flik/groupledger/internal/models"
	"gitlab.com/flik/groupledger/internal/money"
)

// ErrInvalidSplit is returned when shares cannot be computed from the given input.
var ErrInvalidSplit = errors.New("invalid split")

// PercentTolerance is how far percentages may sum away from 100.
var PercentTolerance = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// ParseMode parses a split mode name, ignoring case.
func ParseMode(s string) (models.SplitMode, error) {
	mode := models.SplitMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.Valid() {
		return "", fmt.Errorf("%w: unknown split mode %q", ErrInvalidSplit, s)
	}
	return mode, nil
}

// ComputeShares returns the amount each participant owes.
//
// The result has exactly one entry per participant and its values sum to
// amount. Weights are only read for shares and percentage splits; entries for
// non-participants are ignored.
func ComputeShares(
	amount decimal.Decimal,
	participants []string,
	mode models.SplitMode,
	weights map[string]decimal.Decimal,
) (map[string]decimal.Decimal, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidSplit)
	}
	if err := checkParticipants(participants); err != nil {
		return nil, err
	}

	switch mode {
	case models.SplitEqual:
		return equal(amount, participants), nil
	case models.SplitShares:
		w, total, err := participantWeights(participants, weights)
		if err != nil {
			return nil, err
		}
		if !total.IsPositive() {
			return nil, fmt.Errorf("%w: sum of weights must be positive", ErrInvalidSplit)
		}
		return proportional(amount, participants, w, total), nil
	case models.SplitPercentage:
		w, total, err := participantWeights(participants, weights)
		if err != nil {
			return nil, err
		}
		if total.Sub(hundred).Abs().GreaterThan(PercentTolerance) {
			return nil, fmt.Errorf("%w: percentages sum to %s, want 100", ErrInvalidSplit, total.String())
		}
		return proportional(amount, participants, w, hundred), nil
	default:
		return nil, fmt.Errorf("%w: unknown split mode %q", ErrInvalidSplit, mode)
	}
}

func checkParticipants(participants []string) error {
	if len(participants) == 0 {
		return fmt.Errorf("%w: no participants", ErrInvalidSplit)
	}
	seen := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		if _, ok := seen[p]; ok {
			return fmt.Errorf("%w: duplicate participant %q", ErrInvalidSplit, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

func participantWeights(participants []string, weights map[string]decimal.Decimal) ([]decimal.Decimal, decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(participants))
	total := decimal.Zero
	for i, p := range participants {
		w, ok := weights[p]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: missing weight for participant %q", ErrInvalidSplit, p)
		}
		if w.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("%w: negative weight for participant %q", ErrInvalidSplit, p)
		}
		out[i] = w
		total = total.Add(w)
	}
	return out, total, nil
}

// equal truncates every share to cents and gives the remainder to the first participant.
func equal(amount decimal.Decimal, participants []string) map[string]decimal.Decimal {
	n := decimal.NewFromInt(int64(len(participants)))
	each := amount.Div(n).Truncate(money.Places)

	shares := make(map[string]decimal.Decimal, len(participants))
	for _, p := range participants {
		shares[p] = each
	}
	first := participants[0]
	shares[first] = shares[first].Add(amount.Sub(each.Mul(n)))
	return shares
}

// proportional computes amount*w/denominator per participant truncated to cents.
// The residual goes to the first participant with the largest weight.
func proportional(amount decimal.Decimal, participants []string, w []decimal.Decimal, denominator decimal.Decimal) map[string]decimal.Decimal {
	shares := make(map[string]decimal.Decimal, len(participants))
	assigned := decimal.Zero
	largest := 0
	for i, p := range participants {
		owed := amount.Mul(w[i]).Div(denominator).Truncate(money.Places)
		shares[p] = owed
		assigned = assigned.Add(owed)
		if w[i].GreaterThan(w[largest]) {
			largest = i
		}
	}
	p := participants[largest]
	shares[p] = shares[p].Add(amount.Sub(assigned))
	return shares
}
