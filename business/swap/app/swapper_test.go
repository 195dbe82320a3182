package app

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	poolapp "github.com/solkite/triarb/business/pool/app"
	pooldomain "github.com/solkite/triarb/business/pool/domain"
	"github.com/solkite/triarb/internal/units"
)

const (
	mintETH = pooldomain.Mint("7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs")

	poolID1 = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"
	poolID2 = "HLmqeL62xR1QoZ1HKKbXRrdN1p3phKpxRMb2VVopvBBz"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// cpmmPool builds a SOL/USDC constant-product pool with human reserves.
func cpmmPool(id string, solReserve, usdcReserve int64, fee string) *pooldomain.Pool {
	return &pooldomain.Pool{
		ID:          id,
		Dex:         "raydium",
		Kind:        pooldomain.KindCpmm,
		MintX:       pooldomain.WSOL,
		MintY:       pooldomain.USDC,
		DecimalsX:   9,
		DecimalsY:   6,
		SymbolX:     "SOL",
		SymbolY:     "USDC",
		FeeFraction: d(fee),
		XReserve:    new(big.Int).Mul(big.NewInt(solReserve), big.NewInt(1_000_000_000)),
		YReserve:    new(big.Int).Mul(big.NewInt(usdcReserve), big.NewInt(1_000_000)),
	}
}

func TestProcessSwapForward(t *testing.T) {
	swapper := NewSwapper(nil)
	pool := cpmmPool(poolID1, 1000, 50_000, "0.0025")

	// 10 SOL in.
	leg, err := swapper.ProcessSwap(context.Background(), pool, big.NewInt(10_000_000_000), pooldomain.WSOL, pooldomain.USDC)
	if err != nil {
		t.Fatalf("ProcessSwap error: %v", err)
	}

	if !leg.DxHuman.Equal(d("10")) {
		t.Errorf("DxHuman = %s, want 10", leg.DxHuman)
	}
	if !leg.MidPrice.Equal(d("50")) {
		t.Errorf("MidPrice = %s, want 50", leg.MidPrice)
	}
	if leg.Source != SourceMath {
		t.Errorf("Source = %s, want math", leg.Source)
	}

	// Floor law: dy_atomic == floor(dy_human * 10^6), never above.
	wantAtomic, err := units.HumanToAtomic(leg.DyHuman, 6)
	if err != nil {
		t.Fatalf("HumanToAtomic error: %v", err)
	}
	if leg.DyAtomic.Cmp(wantAtomic) != 0 {
		t.Errorf("DyAtomic = %s, want floored %s", leg.DyAtomic, wantAtomic)
	}
	if units.AtomicToHuman(leg.DyAtomic, 6).GreaterThan(leg.DyHuman) {
		t.Error("atomic output exceeds the human quote")
	}
}

func TestProcessSwapReverseOrientsReserves(t *testing.T) {
	swapper := NewSwapper(nil)
	pool := cpmmPool(poolID1, 1000, 50_000, "0")

	// 500 USDC in; mid price must be SOL-per-USDC = 1/50.
	leg, err := swapper.ProcessSwap(context.Background(), pool, big.NewInt(500_000_000), pooldomain.USDC, pooldomain.WSOL)
	if err != nil {
		t.Fatalf("ProcessSwap error: %v", err)
	}
	if !leg.MidPrice.Equal(d("0.02")) {
		t.Errorf("MidPrice = %s, want 0.02", leg.MidPrice)
	}
	if leg.DyHuman.GreaterThanOrEqual(d("10")) {
		t.Errorf("DyHuman = %s, want < 10 SOL for 500 USDC", leg.DyHuman)
	}
}

func TestProcessSwapRoundTripIsLossy(t *testing.T) {
	// Swapping forward and back can never mint value.
	swapper := NewSwapper(nil)
	pool := cpmmPool(poolID1, 1000, 2000, "0.0025")
	dx := big.NewInt(10_000_000_000) // 10 SOL

	fwd, err := swapper.ProcessSwap(context.Background(), pool, dx, pooldomain.WSOL, pooldomain.USDC)
	if err != nil {
		t.Fatalf("forward swap error: %v", err)
	}
	back, err := swapper.ProcessSwap(context.Background(), pool, fwd.DyAtomic, pooldomain.USDC, pooldomain.WSOL)
	if err != nil {
		t.Fatalf("reverse swap error: %v", err)
	}

	if back.DyAtomic.Cmp(dx) > 0 {
		t.Errorf("round trip gained value: in %s out %s", dx, back.DyAtomic)
	}
}

func TestProcessSwapMintMismatch(t *testing.T) {
	swapper := NewSwapper(nil)
	pool := cpmmPool(poolID1, 1000, 2000, "0.0025")

	_, err := swapper.ProcessSwap(context.Background(), pool, big.NewInt(1000), mintETH, pooldomain.USDC)
	if !errors.Is(err, ErrMintMismatch) {
		t.Errorf("error = %v, want ErrMintMismatch", err)
	}

	// Same mint on both sides is a mismatch too.
	_, err = swapper.ProcessSwap(context.Background(), pool, big.NewInt(1000), pooldomain.WSOL, pooldomain.WSOL)
	if !errors.Is(err, ErrMintMismatch) {
		t.Errorf("error = %v, want ErrMintMismatch", err)
	}
}

func TestProcessSwapMissingReserves(t *testing.T) {
	swapper := NewSwapper(nil)
	pool := cpmmPool(poolID1, 1000, 2000, "0.0025")
	pool.XReserve = nil

	_, err := swapper.ProcessSwap(context.Background(), pool, big.NewInt(1000), pooldomain.WSOL, pooldomain.USDC)
	if !errors.Is(err, ErrMissingReserves) {
		t.Errorf("error = %v, want ErrMissingReserves", err)
	}
}

func TestProcessSwapZeroOutput(t *testing.T) {
	swapper := NewSwapper(nil)
	pool := cpmmPool(poolID1, 1000, 2000, "0.0025")

	// One lamport in floors to zero USDC out.
	_, err := swapper.ProcessSwap(context.Background(), pool, big.NewInt(1), pooldomain.WSOL, pooldomain.USDC)
	if !errors.Is(err, ErrZeroOutput) {
		t.Errorf("error = %v, want ErrZeroOutput", err)
	}
}

func TestProcessSwapClmmNeedsQuoter(t *testing.T) {
	swapper := NewSwapper(nil)
	pool := &pooldomain.Pool{
		ID:          poolID2,
		Dex:         "orca",
		Kind:        pooldomain.KindWhirlpool,
		MintX:       pooldomain.WSOL,
		MintY:       pooldomain.USDC,
		DecimalsX:   9,
		DecimalsY:   6,
		FeeFraction: d("0.003"),
		Clmm: &pooldomain.ClmmState{
			SqrtPriceX64: new(big.Int).Lsh(big.NewInt(1), 64),
			Liquidity:    big.NewInt(1_000_000_000),
		},
	}

	// Input large against liquidity: the single-tick approximation bails
	// out instead of quoting across the boundary.
	_, err := swapper.ProcessSwap(context.Background(), pool, big.NewInt(10_000_000_000), pooldomain.WSOL, pooldomain.USDC)
	if !errors.Is(err, ErrNeedsQuoter) {
		t.Errorf("error = %v, want ErrNeedsQuoter", err)
	}
}

type fixedQuoter struct {
	quote *poolapp.Quote
}

func (q *fixedQuoter) Quote(ctx context.Context, poolID string, in, out pooldomain.Mint, dx *big.Int) (*poolapp.Quote, error) {
	return q.quote, nil
}

func (q *fixedQuoter) FetchPoolState(ctx context.Context, poolID string) (*poolapp.PoolStateDelta, error) {
	return nil, errors.New("not implemented")
}

func TestProcessSwapDelegatesClmmToQuoter(t *testing.T) {
	quoter := &fixedQuoter{quote: &poolapp.Quote{
		DyAtomic:    big.NewInt(49_850_000),
		OutDecimals: 6,
		MidPrice:    d("50"),
	}}
	swapper := NewSwapper(quoter)

	pool := &pooldomain.Pool{
		ID:          poolID2,
		Dex:         "orca",
		Kind:        pooldomain.KindWhirlpool,
		MintX:       pooldomain.WSOL,
		MintY:       pooldomain.USDC,
		DecimalsX:   9,
		DecimalsY:   6,
		FeeFraction: d("0.003"),
	}

	leg, err := swapper.ProcessSwap(context.Background(), pool, big.NewInt(1_000_000_000), pooldomain.WSOL, pooldomain.USDC)
	if err != nil {
		t.Fatalf("ProcessSwap error: %v", err)
	}
	if leg.Source != SourceQuoter {
		t.Errorf("Source = %s, want quoter", leg.Source)
	}
	if leg.DyAtomic.Int64() != 49_850_000 {
		t.Errorf("DyAtomic = %s, want 49850000", leg.DyAtomic)
	}
	if !leg.DyHuman.Equal(d("49.85")) {
		t.Errorf("DyHuman = %s, want 49.85", leg.DyHuman)
	}
}

func TestProcessSwapDlmmSingleBin(t *testing.T) {
	swapper := NewSwapper(nil)
	pool := cpmmPool(poolID1, 1000, 50_000, "0.002")
	pool.Dex = "meteora"
	pool.Kind = pooldomain.KindDlmm
	// Bin id 0 at any step gives atomic price 1 (one atomic USDC per
	// lamport). The 50,000 USDC out-side reserve is far above the output,
	// so the reserve cap does not bind here.
	pool.Dlmm = &pooldomain.DlmmState{ActiveBinID: 0, BinStepBps: 20}

	leg, err := swapper.ProcessSwap(context.Background(), pool, big.NewInt(1_000_000_000), pooldomain.WSOL, pooldomain.USDC)
	if err != nil {
		t.Fatalf("ProcessSwap error: %v", err)
	}
	// Atomic bin price 1 scaled by 10^(9-6): 1000 USDC per SOL, minus the
	// 0.2% fee.
	if !leg.DyHuman.Equal(d("998")) {
		t.Errorf("DyHuman = %s, want 998", leg.DyHuman)
	}
}

func TestAnalyticalCostSplitsFeeAndSlippage(t *testing.T) {
	swapper := NewSwapper(nil)
	pool := cpmmPool(poolID1, 1000, 50_000, "0.0025")
	dx := big.NewInt(10_000_000_000) // 10 SOL

	cost, err := swapper.AnalyticalCost(context.Background(), pool, dx, pooldomain.WSOL, pooldomain.USDC)
	if err != nil {
		t.Fatalf("AnalyticalCost error: %v", err)
	}

	// fee cost = 10 * 0.0025 * 50 = 1.25 USDC
	if want := d("1.25"); !cost.FeeCostOutHuman.Equal(want) {
		t.Errorf("FeeCostOutHuman = %s, want %s", cost.FeeCostOutHuman, want)
	}
	if cost.SlippageCostOutHuman.Sign() <= 0 {
		t.Error("slippage cost should be positive for a 1% trade")
	}
	if !cost.TotalCostOutHuman.Equal(cost.FeeCostOutHuman.Add(cost.SlippageCostOutHuman)) {
		t.Error("total cost must equal fee + slippage")
	}

	// The analytical identity: ideal_out - total_cost == dy.
	leg, err := swapper.ProcessSwap(context.Background(), pool, dx, pooldomain.WSOL, pooldomain.USDC)
	if err != nil {
		t.Fatalf("ProcessSwap error: %v", err)
	}
	ideal := leg.DxHuman.Mul(leg.MidPrice)
	if !ideal.Sub(cost.TotalCostOutHuman).Equal(leg.DyHuman) {
		t.Errorf("ideal - cost = %s, want dy %s", ideal.Sub(cost.TotalCostOutHuman), leg.DyHuman)
	}
}
