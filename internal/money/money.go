package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Side labels which column of a journal line an amount belongs to.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// BaseScale is the fractional-digit count of the base currency.
const BaseScale int32 = 2

// GuardDigits is the extra precision carried through intermediate
// arithmetic before rounding at a persistence boundary.
const GuardDigits int32 = 4

// ErrUnknownCurrency indicates the ISO 4217 code could not be resolved.
var ErrUnknownCurrency = errors.New("money: unknown currency code")

// overrides allows deployments to pin a scale for specific currencies.
var overrides = map[string]int32{}

// SetScaleOverride pins the scale used for a currency code. Intended to be
// called once during configuration, before any posting traffic.
func SetScaleOverride(code string, scale int32) {
	overrides[code] = scale
}

// Scale returns the fractional-digit count for an ISO 4217 currency code.
func Scale(code string) (int32, error) {
	if s, ok := overrides[code]; ok {
		return s, nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale), nil
}

// Round applies banker's rounding at the given scale. Used at every
// persistence boundary.
func Round(d decimal.Decimal, scale int32) decimal.Decimal {
	return d.RoundBank(scale)
}

// RoundBase rounds to the base-currency scale.
func RoundBase(d decimal.Decimal) decimal.Decimal {
	return Round(d, BaseScale)
}

// Epsilon is the balance tolerance: one hundredth of the smallest
// currency unit at the given scale.
func Epsilon(scale int32) decimal.Decimal {
	return decimal.New(1, -(scale + 2))
}

// WithinEpsilon reports whether a and b agree to within the tolerance for
// the given scale.
func WithinEpsilon(a, b decimal.Decimal, scale int32) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon(scale))
}

// Convert multiplies a foreign amount by an exchange rate and rounds to
// the base-currency scale. Intermediate precision keeps the guard digits.
func Convert(foreign, rate decimal.Decimal) decimal.Decimal {
	return RoundBase(foreign.Mul(rate).Round(BaseScale + GuardDigits))
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}
