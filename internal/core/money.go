// Package core holds the reconciliation domain: money, statuses, the status
// policy, snapshots and the result label vocabulary.
//
// This file contains the Money value type. Amounts are stored and summed as
// integer cents; decimal.Decimal is used only at the edges (parsing, display
// and JSON).
package core

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a non-negative currency amount in cents.
type Money struct {
	Cents int64
}

// Zero is the zero amount.
var Zero = Money{}

// Cents builds a Money value from cents.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// ParseMoney parses a decimal amount such as "150" or "12.50".
// Amounts with more than two fractional digits are rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts a decimal to Money.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, d)
	}
	scaled := d.Shift(2)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Money{}, fmt.Errorf("%w: sub-cent precision %s", ErrInvalidAmount, d)
	}
	return Money{Cents: scaled.IntPart()}, nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// SubFloor subtracts o and clamps the result at zero.
func (m Money) SubFloor(o Money) Money {
	if o.Cents >= m.Cents {
		return Zero
	}
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) LessOrEqual(o Money) bool {
	return m.Cents <= o.Cents
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// String formats the amount with exactly two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
