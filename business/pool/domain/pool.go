package domain

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrSameMint          = errors.New("pool: mint_x equals mint_y")
	ErrDecimalsRange     = errors.New("pool: decimals outside [0, 18]")
	ErrFeeRange          = errors.New("pool: fee fraction outside [0, 1)")
	ErrNonPositiveAmount = errors.New("pool: reserve must be strictly positive")
)

// Kind is the AMM family a pool belongs to.
type Kind string

const (
	// KindCpmm is a constant-product pool (x*y=k).
	KindCpmm Kind = "cpmm"
	// KindClmm is a concentrated-liquidity pool.
	KindClmm Kind = "clmm"
	// KindDlmm is a discrete-bin liquidity pool.
	KindDlmm Kind = "dlmm"
	// KindWhirlpool is Orca's concentrated-liquidity dialect.
	KindWhirlpool Kind = "whirlpool"
)

// IsConcentrated reports whether the pool quotes from sqrt-price state.
func (k Kind) IsConcentrated() bool {
	return k == KindClmm || k == KindWhirlpool
}

// ReserveSource records where a pool's reserves came from.
type ReserveSource string

const (
	SourceVault  ReserveSource = "vault"
	SourceCache  ReserveSource = "cache"
	SourceQuoter ReserveSource = "quoter"
	SourceNone   ReserveSource = "none"
)

// ClmmState is the sqrt-price state a concentrated pool quotes from.
type ClmmState struct {
	SqrtPriceX64 *big.Int // Q64.64 fixed point, atomic-ratio terms
	Liquidity    *big.Int
	TickCurrent  int32
	TickSpacing  uint16
}

// DlmmState is the active-bin state a discrete-bin pool quotes from.
type DlmmState struct {
	ActiveBinID int32
	BinStepBps  uint16
}

// Pool is the canonical, math-ready pool record. Immutable after
// normalization: enrichment produces a new record via Clone.
type Pool struct {
	ID   string // base58 pool address, key in every index
	Dex  string // lower-case source tag ("raydium", "orca", "meteora", "unknown")
	Kind Kind

	MintX     Mint
	MintY     Mint
	DecimalsX uint8
	DecimalsY uint8
	SymbolX   string // display only
	SymbolY   string // display only

	FeeFraction decimal.Decimal // additive per-swap fee on input, in [0, 1)

	// Reserves in atomic units; nil until enrichment completes.
	// XReserve holds MintX, YReserve holds MintY.
	XReserve *big.Int
	YReserve *big.Int

	Clmm *ClmmState // required for clmm/whirlpool
	Dlmm *DlmmState // required for dlmm bin math

	// Vault token-account addresses a ReserveOracle can read. Distinct from
	// reserves: these are addresses, never balances.
	VaultXAddr string
	VaultYAddr string

	TVL       decimal.Decimal
	Volume24h decimal.Decimal

	ReserveSource    ReserveSource
	ReserveTimestamp time.Time
}

// Validate checks the canonical pool invariants.
func (p *Pool) Validate() error {
	if p.MintX == p.MintY {
		return fmt.Errorf("%w: %s", ErrSameMint, p.MintX.Short())
	}
	if p.DecimalsX > 18 || p.DecimalsY > 18 {
		return fmt.Errorf("%w: x=%d y=%d", ErrDecimalsRange, p.DecimalsX, p.DecimalsY)
	}
	if p.FeeFraction.IsNegative() || p.FeeFraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s", ErrFeeRange, p.FeeFraction)
	}
	if p.Kind == KindCpmm || p.Kind == KindDlmm {
		if p.XReserve != nil && p.XReserve.Sign() <= 0 {
			return fmt.Errorf("%w: x_reserve", ErrNonPositiveAmount)
		}
		if p.YReserve != nil && p.YReserve.Sign() <= 0 {
			return fmt.Errorf("%w: y_reserve", ErrNonPositiveAmount)
		}
	}
	return nil
}

// HasMint reports whether m is one of the pool's two mints.
func (p *Pool) HasMint(m Mint) bool {
	return p.MintX == m || p.MintY == m
}

// OtherMint returns the counterpart of m in the pair, or the zero Mint when
// m is not in the pool.
func (p *Pool) OtherMint(m Mint) Mint {
	switch m {
	case p.MintX:
		return p.MintY
	case p.MintY:
		return p.MintX
	default:
		return ""
	}
}

// HasReserves reports whether both cached reserves are populated.
func (p *Pool) HasReserves() bool {
	return p.XReserve != nil && p.YReserve != nil
}

// MathReady reports whether the pool can be quoted without external help:
// CPMM/DLMM need both reserves; concentrated pools need sqrt-price state.
func (p *Pool) MathReady() bool {
	if p.Kind.IsConcentrated() {
		return p.Clmm != nil && p.Clmm.SqrtPriceX64 != nil && p.Clmm.SqrtPriceX64.Sign() > 0 &&
			p.Clmm.Liquidity != nil && p.Clmm.Liquidity.Sign() > 0
	}
	return p.HasReserves() && p.XReserve.Sign() > 0 && p.YReserve.Sign() > 0
}

// Pair returns the display pair, e.g. "SOL/USDC".
func (p *Pool) Pair() string {
	x, y := p.SymbolX, p.SymbolY
	if x == "" {
		x = p.MintX.Short()
	}
	if y == "" {
		y = p.MintY.Short()
	}
	return x + "/" + y
}

// Clone returns a deep copy. Enrichment mutates the copy, never the input.
func (p *Pool) Clone() *Pool {
	clone := *p
	if p.XReserve != nil {
		clone.XReserve = new(big.Int).Set(p.XReserve)
	}
	if p.YReserve != nil {
		clone.YReserve = new(big.Int).Set(p.YReserve)
	}
	if p.Clmm != nil {
		state := *p.Clmm
		if p.Clmm.SqrtPriceX64 != nil {
			state.SqrtPriceX64 = new(big.Int).Set(p.Clmm.SqrtPriceX64)
		}
		if p.Clmm.Liquidity != nil {
			state.Liquidity = new(big.Int).Set(p.Clmm.Liquidity)
		}
		clone.Clmm = &state
	}
	if p.Dlmm != nil {
		state := *p.Dlmm
		clone.Dlmm = &state
	}
	return &clone
}
