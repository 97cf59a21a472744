// Package money provides parsing, formatting and rounding of monetary amounts.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places amounts are kept at.
const Places int32 = 2

// ErrInvalidAmount is returned when user input is not a positive amount.
var ErrInvalidAmount = errors.New("invalid amount")

// amountRegex matches amounts like "5", "5.50", "7,20".
var amountRegex = regexp.MustCompile(`^\d+(?:[.,]\d{1,2})?$`)

// Cent is the smallest representable amount.
var Cent = decimal.New(1, -Places)

// ParseAmount parses user input such as "7,20" or "15.00" into a positive amount.
// A comma is accepted as the decimal separator.
func ParseAmount(input string) (decimal.Decimal, error) {
	input = strings.TrimSpace(input)
	if !amountRegex.MatchString(input) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(input, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	return amount, nil
}

// Round rounds an amount to Places decimal places.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Places)
}

// Format renders an amount with its currency code, e.g. "7.20 EUR".
func Format(amount decimal.Decimal, currency string) string {
	if currency == "" {
		return amount.StringFixed(Places)
	}
	return amount.StringFixed(Places) + " " + currency
}

// FormatSigned renders a balance with an explicit plus sign for positive values.
func FormatSigned(amount decimal.Decimal, currency string) string {
	if amount.IsPositive() {
		return "+" + Format(amount, currency)
	}
	return Format(amount, currency)
}

// Sum adds up amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	if len(amounts) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(amounts[0], amounts[1:]...)
}
