/*
Package rewards converts purchase amounts into loyalty points.

PURPOSE:
  The points engine earns points 1:1 with the purchase amount by default.
  Rate keeps that conversion in one place so it can be configured
  (POINTS_RATE) without touching the saga.

PRECISION:
  Rates are decimal.Decimal so "0.1" or "1.5" are exact. Points are
  whole numbers: fractional results are truncated toward zero.

EXAMPLE:
  rate, _ := rewards.ParseRate("1.5")
  rate.Points(10) // 15
  rate.Points(3)  // 4 (4.5 truncated)

SEE ALSO:
  - loyalty/saga.go: Uses Rate when completing a transaction
  - config/config.go: Reads POINTS_RATE
*/
package rewards

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidRate is returned for zero or negative rates.
var ErrInvalidRate = errors.New("points rate must be positive")

// Rate is points earned per unit of purchase amount.
type Rate struct {
	value decimal.Decimal
}

// OneToOne is the default rate: one point per unit spent.
var OneToOne = Rate{value: decimal.NewFromInt(1)}

// NewRate validates and wraps a decimal rate.
func NewRate(v decimal.Decimal) (Rate, error) {
	if !v.IsPositive() {
		return Rate{}, fmt.Errorf("%w: %s", ErrInvalidRate, v)
	}
	return Rate{value: v}, nil
}

// ParseRate parses a rate such as "1", "0.5" or "2.25".
func ParseRate(s string) (Rate, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Rate{}, fmt.Errorf("parse points rate %q: %w", s, err)
	}
	return NewRate(v)
}

// Points converts an amount into whole points.
func (r Rate) Points(amount int64) int64 {
	if r.value.IsZero() {
		return amount
	}
	return decimal.NewFromInt(amount).Mul(r.value).Truncate(0).IntPart()
}

// IsOneToOne reports whether points always equal the amount.
func (r Rate) IsOneToOne() bool {
	return r.value.IsZero() || r.value.Equal(decimal.NewFromInt(1))
}

func (r Rate) String() string {
	if r.value.IsZero() {
		return "1"
	}
	return r.value.String()
}
