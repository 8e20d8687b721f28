// Package core provides money parsing and handling utilities.
//
// Amounts are integer cents everywhere inside the module; decimal text only
// exists at the JSON boundary.
package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyFromDecimal converts d to cents. Values with more than two decimal
// places are rejected instead of rounded.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if !d.Equal(d.Truncate(2)) {
		return Money{}, fmt.Errorf("%w: more than two decimal places in %s", ErrInvalidAmount, d.String())
	}
	cents := d.Shift(2)
	if !cents.IsInteger() || cents.Abs().GreaterThan(decimal.NewFromInt(1<<62)) {
		return Money{}, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	return Money{Cents: cents.IntPart()}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Split divides m into n shares of m/n cents truncated toward zero. The
// remainder goes to the last share so the shares always sum to m.
func (m Money) Split(n int) ([]Money, error) {
	if n < 1 {
		return nil, NewValidationError("denominator", "must be at least 1")
	}
	share := m.Cents / int64(n)
	rem := m.Cents % int64(n)
	out := make([]Money, n)
	for i := range out {
		out[i] = Money{Cents: share}
	}
	out[n-1].Cents += rem
	return out, nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string ("12.34").
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		data = []byte(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
