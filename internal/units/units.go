// Package units converts between atomic token amounts and human decimals.
//
// Atomic amounts are non-negative integers in a token's smallest unit,
// carried as *big.Int exactly as they appear on chain. Human amounts are
// decimals scaled by 10^decimals. The floor at the human->atomic boundary is
// the conservative direction: rounding can destroy value but never create it.
package units

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNegativeAtomic = errors.New("units: negative amount cannot become atomic")
	ErrPrecisionLoss  = errors.New("units: conversion would lose integral precision")
)

// AtomicToHuman converts an atomic amount to a human decimal, exactly.
func AtomicToHuman(atomic *big.Int, decimals uint8) decimal.Decimal {
	if atomic == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(new(big.Int).Set(atomic), -int32(decimals))
}

// HumanToAtomic converts a human decimal to an atomic amount via
// floor(h * 10^decimals). Negative input fails with ErrNegativeAtomic.
func HumanToAtomic(h decimal.Decimal, decimals uint8) (*big.Int, error) {
	if h.IsNegative() {
		return nil, ErrNegativeAtomic
	}
	scaled := h.Shift(int32(decimals)).Truncate(0)
	return scaled.BigInt(), nil
}

// AtomicFromUint64 wraps a raw uint64 balance as an atomic amount.
func AtomicFromUint64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// ParseAtomic parses a base-10 integer string as an atomic amount.
// Fractional, signed, or non-numeric strings are rejected.
func ParseAtomic(s string) (*big.Int, bool) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
