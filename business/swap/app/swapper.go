// Package app contains the swap contract layer: amount propagation and
// analytical cost attribution, with strictly separated semantics.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	poolapp "github.com/solkite/triarb/business/pool/app"
	pooldomain "github.com/solkite/triarb/business/pool/domain"
	swapdomain "github.com/solkite/triarb/business/swap/domain"
	"github.com/solkite/triarb/internal/numeric"
	"github.com/solkite/triarb/internal/units"
)

// Common errors
var (
	ErrMintMismatch    = errors.New("swap: mint does not belong to pool")
	ErrMissingReserves = errors.New("swap: pool reserves not populated")
	ErrNeedsQuoter     = errors.New("swap: leg requires an external quoter")
	ErrZeroOutput      = errors.New("swap: swap produced zero output")
)

// LegSource records which machinery produced a leg result.
type LegSource string

const (
	SourceMath   LegSource = "math"
	SourceOracle LegSource = "oracle"
	SourceQuoter LegSource = "quoter"
)

// LegResult is the outcome of one simulated swap.
//
// DyAtomic is ground truth for propagation: it is already net of fee and
// slippage, floored into the output token's atomic unit. Subsequent legs
// must not re-apply any cost to it.
type LegResult struct {
	PoolID         string
	InMint         pooldomain.Mint
	OutMint        pooldomain.Mint
	DxAtomic       *big.Int
	DyAtomic       *big.Int
	DxHuman        decimal.Decimal
	DyHuman        decimal.Decimal
	FeePaidInHuman decimal.Decimal
	MidPrice       decimal.Decimal
	ExecPrice      decimal.Decimal
	PriceImpactPct decimal.Decimal
	Source         LegSource
}

// CostBreakdown is the analytical cost of a leg versus an infinitesimal
// mid-price execution, denominated in the leg's output token.
//
// Ranking only. It must never be subtracted from DyAtomic: the propagated
// amount already reflects both components, and doing so double-counts.
type CostBreakdown struct {
	FeeCostOutHuman      decimal.Decimal
	SlippageCostOutHuman decimal.Decimal
	TotalCostOutHuman    decimal.Decimal
}

// Swapper quotes single legs against canonical pools.
type Swapper struct {
	quoter poolapp.SwapQuoter // optional; nil quotes concentrated pools with the single-tick kernel
}

// NewSwapper creates a Swapper. quoter may be nil.
func NewSwapper(quoter poolapp.SwapQuoter) *Swapper {
	return &Swapper{quoter: quoter}
}

// HasQuoter reports whether concentrated legs can be delegated.
func (s *Swapper) HasQuoter() bool {
	return s.quoter != nil
}

// ProcessSwap simulates swapping dxAtomic of inMint for outMint on the pool.
func (s *Swapper) ProcessSwap(ctx context.Context, pool *pooldomain.Pool, dxAtomic *big.Int, inMint, outMint pooldomain.Mint) (*LegResult, error) {
	forward, decIn, decOut, err := resolveDirection(pool, inMint, outMint)
	if err != nil {
		return nil, err
	}

	if pool.Kind.IsConcentrated() && s.quoter != nil {
		return s.delegate(ctx, pool, dxAtomic, inMint, outMint, decIn)
	}

	dxHuman := units.AtomicToHuman(dxAtomic, decIn)
	kr, err := s.quoteKernel(pool, dxHuman, forward, decIn, decOut)
	if err != nil {
		return nil, err
	}
	if kr.CrossedTickBoundary {
		// Reserve-only math cannot see past the tick boundary; guessing
		// would quote against liquidity that is not there.
		return nil, fmt.Errorf("%w: %s", ErrNeedsQuoter, pool.ID)
	}

	dyAtomic, err := units.HumanToAtomic(kr.DyHuman, decOut)
	if err != nil {
		return nil, err
	}
	if dyAtomic.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrZeroOutput, pool.ID)
	}

	return &LegResult{
		PoolID:         pool.ID,
		InMint:         inMint,
		OutMint:        outMint,
		DxAtomic:       new(big.Int).Set(dxAtomic),
		DyAtomic:       dyAtomic,
		DxHuman:        dxHuman,
		DyHuman:        kr.DyHuman,
		FeePaidInHuman: kr.FeePaidHuman,
		MidPrice:       kr.MidPrice,
		ExecPrice:      kr.ExecPrice,
		PriceImpactPct: kr.PriceImpactPct,
		Source:         SourceMath,
	}, nil
}

// AnalyticalCost attributes what the trader gave up versus an
// infinitesimal-size execution at the mid price:
//
//	ideal_out = dx * mid
//	fee_cost  = dx * fee * mid
//	slippage  = max(0, ideal_out - fee_cost - dy)
func (s *Swapper) AnalyticalCost(ctx context.Context, pool *pooldomain.Pool, dxAtomic *big.Int, inMint, outMint pooldomain.Mint) (*CostBreakdown, error) {
	leg, err := s.ProcessSwap(ctx, pool, dxAtomic, inMint, outMint)
	if err != nil {
		return nil, err
	}
	return CostFromLeg(leg, pool.FeeFraction), nil
}

// CostFromLeg derives the cost breakdown from an already simulated leg.
// Splitting it out lets the cycle engine price each leg exactly once.
func CostFromLeg(leg *LegResult, feeFraction decimal.Decimal) *CostBreakdown {
	idealOut := leg.DxHuman.Mul(leg.MidPrice).Truncate(numeric.Precision)
	feeCost := leg.DxHuman.Mul(feeFraction).Mul(leg.MidPrice).Truncate(numeric.Precision)
	slippage := numeric.Max(decimal.Zero, idealOut.Sub(feeCost).Sub(leg.DyHuman))

	return &CostBreakdown{
		FeeCostOutHuman:      feeCost,
		SlippageCostOutHuman: slippage,
		TotalCostOutHuman:    feeCost.Add(slippage),
	}
}

func resolveDirection(pool *pooldomain.Pool, inMint, outMint pooldomain.Mint) (forward bool, decIn, decOut uint8, err error) {
	switch {
	case inMint == pool.MintX && outMint == pool.MintY:
		return true, pool.DecimalsX, pool.DecimalsY, nil
	case inMint == pool.MintY && outMint == pool.MintX:
		return false, pool.DecimalsY, pool.DecimalsX, nil
	default:
		return false, 0, 0, fmt.Errorf("%w: %s -> %s on %s", ErrMintMismatch, inMint.Short(), outMint.Short(), pool.ID)
	}
}

func (s *Swapper) quoteKernel(pool *pooldomain.Pool, dxHuman decimal.Decimal, forward bool, decIn, decOut uint8) (*swapdomain.KernelResult, error) {
	switch pool.Kind {
	case pooldomain.KindClmm, pooldomain.KindWhirlpool:
		if pool.Clmm == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingReserves, pool.ID)
		}
		return swapdomain.ClmmQuote(pool.Clmm.SqrtPriceX64, pool.Clmm.Liquidity, dxHuman, pool.FeeFraction, forward, decIn, decOut)

	case pooldomain.KindDlmm:
		if !pool.HasReserves() {
			return nil, fmt.Errorf("%w: %s", ErrMissingReserves, pool.ID)
		}
		if pool.Dlmm != nil {
			outReserve := units.AtomicToHuman(pool.YReserve, pool.DecimalsY)
			if !forward {
				outReserve = units.AtomicToHuman(pool.XReserve, pool.DecimalsX)
			}
			return swapdomain.DlmmQuoteSingleBin(pool.Dlmm.ActiveBinID, pool.Dlmm.BinStepBps, outReserve, dxHuman, pool.FeeFraction, forward, decIn, decOut)
		}
		// No bin state cached: the aggregate reserves still support the
		// constant-product closed form as the conservative approximation.
		fallthrough

	default:
		if !pool.HasReserves() {
			return nil, fmt.Errorf("%w: %s", ErrMissingReserves, pool.ID)
		}
		x := units.AtomicToHuman(pool.XReserve, pool.DecimalsX)
		y := units.AtomicToHuman(pool.YReserve, pool.DecimalsY)
		if !forward {
			x, y = y, x
		}
		return swapdomain.CpmmQuote(x, y, dxHuman, pool.FeeFraction)
	}
}

func (s *Swapper) delegate(ctx context.Context, pool *pooldomain.Pool, dxAtomic *big.Int, inMint, outMint pooldomain.Mint, decIn uint8) (*LegResult, error) {
	quote, err := s.quoter.Quote(ctx, pool.ID, inMint, outMint, dxAtomic)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNeedsQuoter, pool.ID, err)
	}
	if quote == nil || quote.DyAtomic == nil || quote.DyAtomic.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrZeroOutput, pool.ID)
	}

	dxHuman := units.AtomicToHuman(dxAtomic, decIn)
	dyHuman := units.AtomicToHuman(quote.DyAtomic, quote.OutDecimals)

	leg := &LegResult{
		PoolID:         pool.ID,
		InMint:         inMint,
		OutMint:        outMint,
		DxAtomic:       new(big.Int).Set(dxAtomic),
		DyAtomic:       new(big.Int).Set(quote.DyAtomic),
		DxHuman:        dxHuman,
		DyHuman:        dyHuman,
		FeePaidInHuman: quote.FeePaidHuman,
		MidPrice:       quote.MidPrice,
		ExecPrice:      quote.ExecPrice,
		PriceImpactPct: quote.PriceImpactPct,
		Source:         SourceQuoter,
	}
	if leg.ExecPrice.IsZero() && dxHuman.Sign() > 0 {
		leg.ExecPrice = numeric.MustDiv(dyHuman, dxHuman)
	}
	if leg.MidPrice.IsZero() {
		leg.MidPrice = leg.ExecPrice
	}
	return leg, nil
}
