// Package money implements exact-integer minor-unit currency arithmetic.
//
// Amounts are always non-negative integers expressed in a currency's
// smallest indivisible unit (e.g. cents for USD). There is no floating
// point anywhere in this package.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors returned by this package.
var (
	ErrInvalidAmount    = errors.New("money: amount must be non-negative")
	ErrNotPositive      = errors.New("money: amount must be strictly positive")
	ErrArithmeticError  = errors.New("money: arithmetic overflow")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrUnknownCurrency  = errors.New("money: unknown currency code")
	ErrTooManyDecimals  = errors.New("money: more fractional digits than currency scale")
)

// Currency is an ISO-4217-style three-letter currency code.
type Currency struct {
	code string
}

var currencyScales = map[string]int{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"JPY": 0,
	"KWD": 3,
}

// NewCurrency validates and normalizes a currency code.
func NewCurrency(raw string) (Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if _, ok := currencyScales[code]; !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, raw)
	}
	return Currency{code: code}, nil
}

// String returns the normalized ISO code.
func (c Currency) String() string { return c.code }

// Scale returns the number of minor-unit decimal digits for this currency.
func (c Currency) Scale() int { return currencyScales[c.code] }

// Equal reports whether two currencies are the same code.
func (c Currency) Equal(other Currency) bool { return c.code == other.code }

// Amount is a non-negative integer quantity of a currency's minor unit.
type Amount struct {
	minorUnits int64
}

// Zero is the zero amount.
var Zero = Amount{}

// NewAmount validates a raw minor-unit integer, rejecting negatives.
func NewAmount(minorUnits int64) (Amount, error) {
	if minorUnits < 0 {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{minorUnits: minorUnits}, nil
}

// NewPositiveAmount validates a raw minor-unit integer, requiring > 0.
func NewPositiveAmount(minorUnits int64) (Amount, error) {
	if minorUnits <= 0 {
		return Amount{}, ErrNotPositive
	}
	return Amount{minorUnits: minorUnits}, nil
}

// ParseDecimal normalizes a decimal string ("12.34") into minor units for
// the given currency's declared scale. Inputs with more fractional digits
// than the scale fail.
func ParseDecimal(currency Currency, raw string) (Amount, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Amount{}, ErrInvalidAmount
	}
	negative := strings.HasPrefix(trimmed, "-")
	if negative {
		return Amount{}, ErrInvalidAmount
	}
	whole, frac, hasFrac := strings.Cut(trimmed, ".")
	if hasFrac && len(frac) > currency.Scale() {
		return Amount{}, ErrTooManyDecimals
	}
	frac = frac + strings.Repeat("0", currency.Scale()-len(frac))
	combined := whole + frac
	if combined == "" {
		combined = "0"
	}
	value, err := strconv.ParseInt(combined, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return NewAmount(value)
}

// Int64 returns the raw minor-unit integer value.
func (a Amount) Int64() int64 { return a.minorUnits }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.minorUnits == 0 }

// Add returns a+b, failing on overflow.
func Add(a, b Amount) (Amount, error) {
	sum := a.minorUnits + b.minorUnits
	if sum < a.minorUnits || sum < b.minorUnits {
		return Amount{}, ErrArithmeticError
	}
	return Amount{minorUnits: sum}, nil
}

// Sub returns a-b, failing if the result would be negative or on overflow.
func Sub(a, b Amount) (Amount, error) {
	if b.minorUnits > a.minorUnits {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{minorUnits: a.minorUnits - b.minorUnits}, nil
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func Compare(a, b Amount) int {
	switch {
	case a.minorUnits < b.minorUnits:
		return -1
	case a.minorUnits > b.minorUnits:
		return 1
	default:
		return 0
	}
}

// GreaterOrEqual reports whether a >= b.
func GreaterOrEqual(a, b Amount) bool { return a.minorUnits >= b.minorUnits }

// String renders the raw minor-unit integer; no currency scale is applied.
func (a Amount) String() string {
	return strconv.FormatInt(a.minorUnits, 10)
}

// RequireSameCurrency fails with ErrCurrencyMismatch unless both
// currencies are identical.
func RequireSameCurrency(a, b Currency) error {
	if !a.Equal(b) {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a, b)
	}
	return nil
}
