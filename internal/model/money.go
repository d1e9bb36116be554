package model

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the fixed number of decimal places carried by every monetary
// amount that flows into a ledger entry, policy decision, or pricing
// snapshot. Floating point is never used for these values; decimal.Decimal
// backs every Money instance.
const MoneyScale = 2

// Bps represents a rate in basis points (1/100th of a percent) as an exact
// integer. All discount, margin, and cap percentages are expressed in bps
// rather than floating-point fractions.
type Bps int64

// BpsDenominator is the number of bps that make up 100%.
const BpsDenominator = 10000

// Money is a fixed-point monetary amount, always rounded to MoneyScale
// decimal places with banker's rounding (round-half-to-even) at every stage
// that reduces scale.
type Money struct {
	d decimal.Decimal
}

// ZeroMoney returns a Money value of 0.
func ZeroMoney() Money {
	return Money{d: decimal.Zero}
}

// MoneyFromString parses a decimal string into a Money value, rounding to
// MoneyScale using banker's rounding.
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{d: d.RoundBank(MoneyScale)}, nil
}

// MoneyFromDecimal wraps an existing decimal.Decimal, rounding to MoneyScale.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d: d.RoundBank(MoneyScale)}
}

// MoneyFromCents builds a Money value from an integer number of minor units
// (cents), avoiding any floating-point conversion.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -MoneyScale)}
}

// Decimal returns the underlying decimal.Decimal.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Add returns m+other, rounded to MoneyScale with banker's rounding.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d).RoundBank(MoneyScale)}
}

// Sub returns m-other, rounded to MoneyScale with banker's rounding.
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d).RoundBank(MoneyScale)}
}

// MulBps multiplies m by a bps rate (rate/BpsDenominator), rounding the
// result to MoneyScale with banker's rounding.
func (m Money) MulBps(rate Bps) Money {
	factor := decimal.NewFromInt(int64(rate)).Div(decimal.NewFromInt(BpsDenominator))
	return Money{d: m.d.Mul(factor).RoundBank(MoneyScale)}
}

// MulInt multiplies m by an integer quantity, rounding to MoneyScale.
func (m Money) MulInt(qty int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty))).RoundBank(MoneyScale)}
}

// Cmp compares m to other: -1, 0, or 1.
func (m Money) Cmp(other Money) int { return m.d.Cmp(other.d) }

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool { return m.d.IsZero() }

// IsNegative reports whether m is strictly less than zero.
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// String renders m with exactly MoneyScale decimal places.
func (m Money) String() string {
	return m.d.StringFixed(MoneyScale)
}

// MarshalJSON renders Money as a fixed-scale decimal string so that
// canonicalization and cross-language comparison are unambiguous.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON parses a fixed-scale decimal string into Money.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := MoneyFromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// SumMoney sums a sequence of Money values in the given (already canonical)
// order, rounding once at the end with banker's rounding. Summation order
// matters for reproducibility: callers must pass values in canonical line
// order.
func SumMoney(values []Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v.d)
	}
	return Money{d: total.RoundBank(MoneyScale)}
}
