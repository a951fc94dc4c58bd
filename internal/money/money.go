// Package money provides the fixed two-decimal currency type used by the
// ledger. Direction of a debt is always carried by the debtor/creditor pair,
// never by the sign of an amount.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for every amount.
const Scale = 2

// Money is an exact decimal amount rounded to Scale places. All arithmetic
// uses banker's rounding, so repeated proportional splits stay within one
// minor unit of the exact result.
type Money struct {
	amount decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

// New builds a Money from a decimal value, rounding to Scale.
func New(d decimal.Decimal) Money {
	return Money{amount: d.RoundBank(Scale)}
}

// FromString parses a decimal string such as "123.45".
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return New(d), nil
}

// MustParse parses a decimal string and panics on failure. Test helper.
func MustParse(s string) Money {
	m, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromInt builds a Money from a whole unit count.
func FromInt(v int64) Money {
	return Money{amount: decimal.NewFromInt(v)}
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{amount: m.amount.Add(o.amount)}
}

// Sub returns m - o. The result may be negative; callers decide whether
// that means "nothing left to allocate" or an error.
func (m Money) Sub(o Money) Money {
	return Money{amount: m.amount.Sub(o.amount)}
}

// MulDiv returns m * num / den rounded to Scale, used for proportional
// splits. den must be non-zero.
func (m Money) MulDiv(num, den decimal.Decimal) Money {
	return New(m.amount.Mul(num).Div(den))
}

// Percent returns pct percent of m, rounded to Scale.
func (m Money) Percent(pct decimal.Decimal) Money {
	return New(m.amount.Mul(pct).Div(decimal.NewFromInt(100)))
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a.amount.LessThan(b.amount) {
		return a
	}
	return b
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsZero reports whether m == 0.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Cmp compares m and o, returning -1, 0 or 1.
func (m Money) Cmp(o Money) int {
	return m.amount.Cmp(o.amount)
}

// Equal reports whether the two amounts are numerically equal.
func (m Money) Equal(o Money) bool {
	return m.amount.Equal(o.amount)
}

// LessThanOrEqual reports whether m <= o.
func (m Money) LessThanOrEqual(o Money) bool {
	return m.amount.LessThanOrEqual(o.amount)
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// String renders the amount with exactly Scale decimal places.
func (m Money) String() string {
	return m.amount.StringFixed(Scale)
}

// MarshalJSON encodes the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare decimal numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = New(d)
	return nil
}

// Value implements driver.Valuer so amounts land in NUMERIC columns.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("money: scan: %w", err)
	}
	*m = New(d)
	return nil
}
