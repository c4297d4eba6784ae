// Package core provides money parsing and handling utilities.
//
// Amounts are decimal values (no fixed minor unit: the tracker records
// currencies such as MMK that are usually entered without cents). They are
// stored as bare JSON numbers so persisted blobs stay plain JSON arrays.
package core

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is a non-negative decimal amount.
type Money struct {
	decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney creates Money from an integer number of units.
func NewMoney(units int64) Money {
	return Money{Decimal: decimal.NewFromInt(units)}
}

// MoneyFromFloat converts a float amount, coercing NaN and infinities to zero.
func MoneyFromFloat(f float64) Money {
	return Money{Decimal: decimal.NewFromFloat(Finite(f))}
}

// MustParseMoney parses s or panics. Intended for tests and constants.
func MustParseMoney(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseAmount converts a user-entered decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, rejects
// signs, empty input and zero. At most two fractional digits are kept, with
// half-up rounding on the third.
//
// Examples:
//
//	ParseAmount("95000")  -> 95000, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	m := Money{Decimal: d.Round(2)}
	if !m.IsPositive() {
		return Zero, ErrInvalidAmount
	}
	return m, nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{Decimal: m.Decimal.Sub(o.Decimal)}
}

// Equal reports whether m and o represent the same amount.
func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// Float64 returns the amount as a finite float for display and ratios.
func (m Money) Float64() float64 {
	f, _ := m.Decimal.Float64()
	return Finite(f)
}

// Ratio returns m / of, defined as 0 when of is zero.
func (m Money) Ratio(of Money) decimal.Decimal {
	if of.IsZero() {
		return decimal.Zero
	}
	return m.Decimal.Div(of.Decimal)
}

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	return m.Decimal.UnmarshalJSON(data)
}

// Finite coerces NaN and infinities to zero so derived figures never
// propagate non-finite values.
func Finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
