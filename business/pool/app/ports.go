// Package app contains application services and port definitions for the pool context.
package app

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/solkite/triarb/business/pool/domain"
)

// PoolSource loads raw pool descriptions from wherever they are cached.
type PoolSource interface {
	// Load returns the raw records. Individual malformed records are the
	// normalizer's problem; Load fails only when the source itself is broken.
	Load(ctx context.Context) ([]domain.RawPool, error)
}

// ReserveOracle reads live vault balances. Implementations must be safe for
// concurrent use by a bounded number of callers.
type ReserveOracle interface {
	// FetchVaultBalances resolves each address to its atomic balance.
	// Addresses without a decodable balance are absent from the result map.
	FetchVaultBalances(ctx context.Context, addresses []string) (map[string]*big.Int, error)
}

// Quote is an externally computed swap quote for a single leg.
type Quote struct {
	DyAtomic       *big.Int
	OutDecimals    uint8
	FeePaidHuman   decimal.Decimal
	MidPrice       decimal.Decimal
	ExecPrice      decimal.Decimal
	PriceImpactPct decimal.Decimal
}

// PoolStateDelta carries refreshed pool state from an external quoter.
type PoolStateDelta struct {
	XReserve     *big.Int
	YReserve     *big.Int
	SqrtPriceX64 *big.Int
	Liquidity    *big.Int
	TickCurrent  int32
}

// SwapQuoter quotes swaps the reserve math cannot handle, primarily
// concentrated-liquidity legs that cross tick boundaries. Optional: a nil
// quoter means such legs are skipped.
type SwapQuoter interface {
	Quote(ctx context.Context, poolID string, inMint, outMint domain.Mint, dxAtomic *big.Int) (*Quote, error)
	FetchPoolState(ctx context.Context, poolID string) (*PoolStateDelta, error)
}
