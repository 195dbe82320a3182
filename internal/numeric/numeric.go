// Package numeric pins the decimal arithmetic used across the simulator.
//
// All pipeline math runs on shopspring decimals with a fixed working
// precision and truncation (round toward zero) for every inexact operation.
// Binary floating point never enters the pipeline.
package numeric

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits carried through inexact
// operations. Combined with the integral part this comfortably exceeds the
// 40 significant digits the swap math requires.
const Precision = 40

// Common errors
var (
	ErrDivisionByZero = errors.New("numeric: division by zero")
	ErrNegativeRoot   = errors.New("numeric: square root of negative value")
	ErrOverflow       = errors.New("numeric: value out of range")
)

func init() {
	// Guard rail for any stray d1.Div(d2) call that bypasses Div.
	decimal.DivisionPrecision = Precision
}

// Div divides a by b, truncated to Precision fractional digits.
// Division by zero fails with ErrDivisionByZero.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Decimal{}, ErrDivisionByZero
	}
	// QuoRem truncates the quotient toward zero at exactly Precision digits;
	// the remainder is dropped.
	q, _ := a.QuoRem(b, Precision)
	return q, nil
}

// MustDiv divides a by b and panics on a zero divisor. Reserved for callers
// that have already established b != 0.
func MustDiv(a, b decimal.Decimal) decimal.Decimal {
	q, err := Div(a, b)
	if err != nil {
		panic(err)
	}
	return q
}

// Sqrt returns the square root of d truncated to Precision fractional digits.
// Negative input fails with ErrNegativeRoot.
//
// The computation goes through big.Int.Sqrt on the value scaled by
// 10^(2*Precision), which floors exactly: no iteration, no float seed, and
// identical results on every platform.
func Sqrt(d decimal.Decimal) (decimal.Decimal, error) {
	if d.Sign() < 0 {
		return decimal.Decimal{}, ErrNegativeRoot
	}
	if d.IsZero() {
		return decimal.Zero, nil
	}
	scaled := d.Shift(2 * Precision).Truncate(0).BigInt()
	root := new(big.Int).Sqrt(scaled)
	return decimal.NewFromBigInt(root, -Precision), nil
}

// PowInt raises base to an integer exponent by squaring. Negative exponents
// invert the result at working precision; base zero with a negative exponent
// fails with ErrDivisionByZero.
func PowInt(base decimal.Decimal, exp int64) (decimal.Decimal, error) {
	if exp == 0 {
		return decimal.NewFromInt(1), nil
	}
	neg := exp < 0
	if neg {
		exp = -exp
	}
	result := decimal.NewFromInt(1)
	sq := base
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(sq).Truncate(Precision)
		}
		exp >>= 1
		if exp > 0 {
			sq = sq.Mul(sq).Truncate(Precision)
		}
	}
	if neg {
		return Div(decimal.NewFromInt(1), result)
	}
	return result, nil
}

// Ln returns the natural logarithm of d at working precision.
// Non-positive input fails with ErrNegativeRoot.
func Ln(d decimal.Decimal) (decimal.Decimal, error) {
	if d.Sign() <= 0 {
		return decimal.Decimal{}, ErrNegativeRoot
	}
	v, err := d.Ln(Precision)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v, nil
}

// Min returns the smaller of a and b under decimal total order.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b under decimal total order.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
