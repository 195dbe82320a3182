// Package domain contains the AMM swap math for the swap context.
package domain

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/solkite/triarb/internal/numeric"
)

// q64 is 2^64, the denominator of Q64.64 sqrt prices.
var q64 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64), 0)

// tickBase is the CLMM tick base: price = 1.0001^tick.
var tickBase = decimal.RequireFromString("1.0001")

// SqrtPriceX64ToPrice converts a Q64.64 sqrt price to a price:
// price = (sqrt_price_x64 / 2^64)^2.
func SqrtPriceX64ToPrice(sqrtPriceX64 *big.Int) (decimal.Decimal, error) {
	if sqrtPriceX64 == nil || sqrtPriceX64.Sign() <= 0 {
		return decimal.Decimal{}, numeric.ErrNegativeRoot
	}
	sp, err := numeric.Div(decimal.NewFromBigInt(sqrtPriceX64, 0), q64)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return sp.Mul(sp).Truncate(numeric.Precision), nil
}

// PriceToSqrtPriceX64 converts a price to Q64.64: sqrt(price) * 2^64.
func PriceToSqrtPriceX64(price decimal.Decimal) (*big.Int, error) {
	root, err := numeric.Sqrt(price)
	if err != nil {
		return nil, err
	}
	return root.Mul(q64).Truncate(0).BigInt(), nil
}

// TickToPrice returns 1.0001^tick.
func TickToPrice(tick int32) (decimal.Decimal, error) {
	return numeric.PowInt(tickBase, int64(tick))
}

// PriceToTick returns floor(ln(price) / ln(1.0001)).
func PriceToTick(price decimal.Decimal) (int32, error) {
	lnPrice, err := numeric.Ln(price)
	if err != nil {
		return 0, err
	}
	lnBase, err := numeric.Ln(tickBase)
	if err != nil {
		return 0, err
	}
	q, err := numeric.Div(lnPrice, lnBase)
	if err != nil {
		return 0, err
	}
	tick := q.Floor()
	// Truncated logarithms can land a hair below an exact tick boundary;
	// nudge up when the next tick's price still does not exceed the input.
	next, err := TickToPrice(int32(tick.IntPart()) + 1)
	if err == nil && next.LessThanOrEqual(price) {
		tick = tick.Add(decimal.NewFromInt(1))
	}
	return int32(tick.IntPart()), nil
}

// BinStepFromBps converts a DLMM bin step in basis points to a fraction.
func BinStepFromBps(bps uint16) decimal.Decimal {
	return decimal.New(int64(bps), -4)
}

// BinIDToPrice returns (1 + bin_step)^bin_id.
func BinIDToPrice(binID int32, stepBps uint16) (decimal.Decimal, error) {
	base := decimal.NewFromInt(1).Add(BinStepFromBps(stepBps))
	return numeric.PowInt(base, int64(binID))
}

// PriceToBinID returns floor(ln(price) / ln(1 + bin_step)).
func PriceToBinID(price decimal.Decimal, stepBps uint16) (int32, error) {
	lnPrice, err := numeric.Ln(price)
	if err != nil {
		return 0, err
	}
	base := decimal.NewFromInt(1).Add(BinStepFromBps(stepBps))
	lnBase, err := numeric.Ln(base)
	if err != nil {
		return 0, err
	}
	q, err := numeric.Div(lnPrice, lnBase)
	if err != nil {
		return 0, err
	}
	id := q.Floor()
	next, err := BinIDToPrice(int32(id.IntPart())+1, stepBps)
	if err == nil && next.LessThanOrEqual(price) {
		id = id.Add(decimal.NewFromInt(1))
	}
	return int32(id.IntPart()), nil
}
