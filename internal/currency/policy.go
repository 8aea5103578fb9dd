// Package currency holds the per-currency rules for charging through Stripe:
// minimum chargeable amounts and conversion between display amounts and the
// provider's smallest-unit integers.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Base is the currency used when a request does not name one.
const Base = "aed"

var hundred = decimal.NewFromInt(100)

// minimums are display-unit floors enforced before any provider call.
var minimums = map[string]decimal.Decimal{
	"aed": decimal.NewFromInt(2),
	"usd": decimal.RequireFromString("0.50"),
	"eur": decimal.RequireFromString("0.50"),
	"gbp": decimal.RequireFromString("0.30"),
	"jpy": decimal.NewFromInt(50),
	"cad": decimal.RequireFromString("0.50"),
	"aud": decimal.RequireFromString("0.50"),
}

var defaultMinimum = decimal.RequireFromString("0.01")

// zeroDecimal currencies are sent to the provider without the ×100 scaling.
// AED is billed in whole units by this service.
var zeroDecimal = map[string]struct{}{
	"jpy": {}, "clp": {}, "ugx": {}, "xaf": {}, "xof": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "vnd": {}, "vuv": {}, "xpf": {}, "aed": {},
}

// Normalize lower-cases and trims a currency code.
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Resolve normalizes code, falling back to fallback (and then Base) when empty.
func Resolve(code, fallback string) string {
	if c := Normalize(code); c != "" {
		return c
	}
	if c := Normalize(fallback); c != "" {
		return c
	}
	return Base
}

// Display returns the upper-case form used in responses and messages.
func Display(code string) string {
	return strings.ToUpper(Normalize(code))
}

// MinimumAmount returns the smallest chargeable display amount for code.
// Unlisted currencies get a floor of 0.01.
func MinimumAmount(code string) decimal.Decimal {
	if m, ok := minimums[Normalize(code)]; ok {
		return m
	}
	return defaultMinimum
}

// IsZeroDecimal reports whether code is charged in whole units.
func IsZeroDecimal(code string) bool {
	_, ok := zeroDecimal[Normalize(code)]
	return ok
}

// Decimals is the number of display decimals code carries: 0 for zero-decimal
// currencies, 2 otherwise.
func Decimals(code string) int32 {
	if IsZeroDecimal(code) {
		return 0
	}
	return 2
}

// HasValidPrecision reports whether amount fits the minor unit of code, so that
// ToSmallestUnit does not round it.
func HasValidPrecision(amount decimal.Decimal, code string) bool {
	return amount.Equal(amount.Truncate(Decimals(code)))
}

// Format renders amount with the decimals of code, e.g. "0.50" for usd and "2" for aed.
func Format(amount decimal.Decimal, code string) string {
	return amount.StringFixed(Decimals(code))
}

// ToSmallestUnit converts a display amount to the integer the provider expects.
// Halves round away from zero.
func ToSmallestUnit(amount decimal.Decimal, code string) int64 {
	if IsZeroDecimal(code) {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromSmallestUnit is the inverse of ToSmallestUnit.
func FromSmallestUnit(units int64, code string) decimal.Decimal {
	d := decimal.NewFromInt(units)
	if IsZeroDecimal(code) {
		return d
	}
	return d.Div(hundred)
}

// MeetsMinimum reports whether amount is at or above the currency floor.
func MeetsMinimum(amount decimal.Decimal, code string) bool {
	return amount.GreaterThanOrEqual(MinimumAmount(code))
}
