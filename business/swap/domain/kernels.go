package domain

import (
	"errors"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/solkite/triarb/internal/numeric"
)

// Common errors
var (
	ErrNonPositiveReserve = errors.New("swap: reserves must be strictly positive")
	ErrNonPositiveInput   = errors.New("swap: input amount must be strictly positive")
	ErrBadFee             = errors.New("swap: fee fraction outside [0, 1)")
	ErrNoLiquidity        = errors.New("swap: pool has no liquidity")
	ErrNoBins             = errors.New("swap: no bins to walk")
)

// KernelResult is a kernel quote in human units.
//
// DyHuman is already net of fee and slippage. MidPrice is out-per-in at the
// pre-trade state; ExecPrice is out-per-in observed for the full trade;
// PriceImpactPct isolates slippage by pricing against the fee-reduced input.
type KernelResult struct {
	DyHuman        decimal.Decimal
	FeePaidHuman   decimal.Decimal // in input-token human units
	MidPrice       decimal.Decimal
	ExecPrice      decimal.Decimal
	PriceImpactPct decimal.Decimal

	// CrossedTickBoundary is set by the CLMM kernel when the single-tick
	// approximation is no longer trustworthy. Callers that need accuracy
	// must delegate such quotes to an external quoter.
	CrossedTickBoundary bool
}

func checkSwapInputs(dxHuman, feeFraction decimal.Decimal) error {
	if dxHuman.Sign() <= 0 {
		return ErrNonPositiveInput
	}
	if feeFraction.IsNegative() || feeFraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ErrBadFee
	}
	return nil
}

// impactPct computes |mid - dy/dxAfterFee| / mid * 100. Dividing by the
// fee-reduced input strips the fee drag, so fee and slippage stay separate
// and the cost attribution never counts either twice.
func impactPct(mid, dyHuman, dxAfterFee decimal.Decimal) (decimal.Decimal, error) {
	grossExec, err := numeric.Div(dyHuman, dxAfterFee)
	if err != nil {
		return decimal.Decimal{}, err
	}
	dev := mid.Sub(grossExec).Abs()
	frac, err := numeric.Div(dev, mid)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return frac.Mul(decimal.NewFromInt(100)).Truncate(numeric.Precision), nil
}

// CpmmQuote evaluates a constant-product swap in human units.
//
//	fee_paid     = dx * fee
//	dy           = y * (dx - fee_paid) / (x + (dx - fee_paid))
func CpmmQuote(xHuman, yHuman, dxHuman, feeFraction decimal.Decimal) (*KernelResult, error) {
	if xHuman.Sign() <= 0 || yHuman.Sign() <= 0 {
		return nil, ErrNonPositiveReserve
	}
	if err := checkSwapInputs(dxHuman, feeFraction); err != nil {
		return nil, err
	}

	feePaid := dxHuman.Mul(feeFraction).Truncate(numeric.Precision)
	dxAfterFee := dxHuman.Sub(feePaid)

	dyHuman, err := numeric.Div(yHuman.Mul(dxAfterFee), xHuman.Add(dxAfterFee))
	if err != nil {
		return nil, err
	}

	midPrice, err := numeric.Div(yHuman, xHuman)
	if err != nil {
		return nil, err
	}
	execPrice, err := numeric.Div(dyHuman, dxHuman)
	if err != nil {
		return nil, err
	}
	impact, err := impactPct(midPrice, dyHuman, dxAfterFee)
	if err != nil {
		return nil, err
	}

	return &KernelResult{
		DyHuman:        dyHuman,
		FeePaidHuman:   feePaid,
		MidPrice:       midPrice,
		ExecPrice:      execPrice,
		PriceImpactPct: impact,
	}, nil
}

// halfTickSqrtShift is the relative sqrt-price move that corresponds to a
// half-tick price move: sqrt(1.0001^0.5) - 1, rounded. Beyond this the
// single-tick approximation must not be trusted.
var halfTickSqrtShift = decimal.RequireFromString("0.000025")

// ClmmQuote evaluates a concentrated-liquidity swap under the single-tick
// approximation: liquidity is assumed constant across the price move.
//
// sqrtPriceX64 and liquidity are in atomic-ratio terms, as stored on chain.
// forward means the input token is x (price falls); otherwise the input is
// y (price rises). decIn/decOut are the input and output token decimals.
func ClmmQuote(sqrtPriceX64, liquidity *big.Int, dxHuman, feeFraction decimal.Decimal, forward bool, decIn, decOut uint8) (*KernelResult, error) {
	if sqrtPriceX64 == nil || sqrtPriceX64.Sign() <= 0 || liquidity == nil || liquidity.Sign() <= 0 {
		return nil, ErrNoLiquidity
	}
	if err := checkSwapInputs(dxHuman, feeFraction); err != nil {
		return nil, err
	}

	sp, err := numeric.Div(decimal.NewFromBigInt(sqrtPriceX64, 0), q64)
	if err != nil {
		return nil, err
	}
	liq := decimal.NewFromBigInt(liquidity, 0)

	feePaid := dxHuman.Mul(feeFraction).Truncate(numeric.Precision)
	dxAfterFee := dxHuman.Sub(feePaid)
	dxAfterAtomic := dxAfterFee.Shift(int32(decIn))

	var spNext decimal.Decimal
	var dyAtomic decimal.Decimal
	if forward {
		// Selling x: 1/sqrtP' = 1/sqrtP + dx/L  =>  sqrtP' = L*sqrtP / (L + dx*sqrtP)
		spNext, err = numeric.Div(liq.Mul(sp), liq.Add(dxAfterAtomic.Mul(sp)))
		if err != nil {
			return nil, err
		}
		dyAtomic = liq.Mul(sp.Sub(spNext)).Truncate(numeric.Precision)
	} else {
		// Selling y: sqrtP' = sqrtP + dy/L
		shift, derr := numeric.Div(dxAfterAtomic, liq)
		if derr != nil {
			return nil, derr
		}
		spNext = sp.Add(shift)
		invSp, derr := numeric.Div(decimal.NewFromInt(1), sp)
		if derr != nil {
			return nil, derr
		}
		invSpNext, derr := numeric.Div(decimal.NewFromInt(1), spNext)
		if derr != nil {
			return nil, derr
		}
		dyAtomic = liq.Mul(invSp.Sub(invSpNext)).Truncate(numeric.Precision)
	}

	dyHuman := dyAtomic.Shift(-int32(decOut))

	// Spot price in atomic terms, oriented out-per-in, then rescaled to
	// human terms: out_h/in_h = P_atomic * 10^(decIn-decOut).
	priceAtomic := sp.Mul(sp).Truncate(numeric.Precision)
	if !forward {
		priceAtomic, err = numeric.Div(decimal.NewFromInt(1), priceAtomic)
		if err != nil {
			return nil, err
		}
	}
	midPrice := priceAtomic.Shift(int32(decIn) - int32(decOut))

	execPrice, err := numeric.Div(dyHuman, dxHuman)
	if err != nil {
		return nil, err
	}
	impact, err := impactPct(midPrice, dyHuman, dxAfterFee)
	if err != nil {
		return nil, err
	}

	// Relative sqrt-price shift beyond half a tick means the move would
	// have walked into neighbouring ticks where liquidity differs.
	shiftFrac, err := numeric.Div(spNext.Sub(sp).Abs(), sp)
	if err != nil {
		return nil, err
	}

	return &KernelResult{
		DyHuman:             dyHuman,
		FeePaidHuman:        feePaid,
		MidPrice:            midPrice,
		ExecPrice:           execPrice,
		PriceImpactPct:      impact,
		CrossedTickBoundary: shiftFrac.GreaterThanOrEqual(halfTickSqrtShift),
	}, nil
}

// Bin is one DLMM price bin with its human-unit reserves.
type Bin struct {
	ID       int32
	XReserve decimal.Decimal
	YReserve decimal.Decimal
}

// DlmmQuoteSingleBin converts the whole input at the active-bin price,
// capped at the out-side reserve available in the bin.
func DlmmQuoteSingleBin(activeBinID int32, stepBps uint16, outReserveHuman, dxHuman, feeFraction decimal.Decimal, forward bool, decIn, decOut uint8) (*KernelResult, error) {
	if outReserveHuman.Sign() <= 0 {
		return nil, ErrNonPositiveReserve
	}
	if err := checkSwapInputs(dxHuman, feeFraction); err != nil {
		return nil, err
	}

	price, err := binPriceHuman(activeBinID, stepBps, forward, decIn, decOut)
	if err != nil {
		return nil, err
	}

	feePaid := dxHuman.Mul(feeFraction).Truncate(numeric.Precision)
	dxAfterFee := dxHuman.Sub(feePaid)

	dyHuman := numeric.Min(dxAfterFee.Mul(price).Truncate(numeric.Precision), outReserveHuman)

	execPrice, err := numeric.Div(dyHuman, dxHuman)
	if err != nil {
		return nil, err
	}
	impact, err := impactPct(price, dyHuman, dxAfterFee)
	if err != nil {
		return nil, err
	}

	return &KernelResult{
		DyHuman:        dyHuman,
		FeePaidHuman:   feePaid,
		MidPrice:       price,
		ExecPrice:      execPrice,
		PriceImpactPct: impact,
	}, nil
}

// DlmmQuoteWalk walks the given bins in price order, consuming each bin's
// out-side reserve at that bin's constant price. The fee is taken on the
// full input up front. Any input left after the last bin simply produces no
// further output.
//
// The mid price used for impact is the first walked bin's price at entry,
// not the liquidity-weighted average some implementations report.
func DlmmQuoteWalk(bins []Bin, stepBps uint16, dxHuman, feeFraction decimal.Decimal, forward bool, decIn, decOut uint8) (*KernelResult, error) {
	if len(bins) == 0 {
		return nil, ErrNoBins
	}
	if err := checkSwapInputs(dxHuman, feeFraction); err != nil {
		return nil, err
	}

	// Price grows with bin id, so walking by id walks by price. Selling x
	// wants the richest price for y first (descending); selling y the
	// cheapest x first (ascending).
	sorted := make([]Bin, len(bins))
	copy(sorted, bins)
	sort.Slice(sorted, func(i, j int) bool {
		if forward {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].ID < sorted[j].ID
	})

	feePaid := dxHuman.Mul(feeFraction).Truncate(numeric.Precision)
	remaining := dxHuman.Sub(feePaid)

	var midPrice decimal.Decimal
	dyHuman := decimal.Zero

	for _, bin := range sorted {
		if remaining.Sign() <= 0 {
			break
		}
		price, err := binPriceHuman(bin.ID, stepBps, forward, decIn, decOut)
		if err != nil {
			return nil, err
		}
		if midPrice.IsZero() {
			midPrice = price
		}

		available := bin.YReserve
		if !forward {
			available = bin.XReserve
		}
		if available.Sign() <= 0 {
			continue
		}

		theoretical := remaining.Mul(price).Truncate(numeric.Precision)
		if theoretical.LessThanOrEqual(available) {
			dyHuman = dyHuman.Add(theoretical)
			remaining = decimal.Zero
			break
		}

		// Bin exhausted: consume what is there, carry the rest onward.
		usedIn, err := numeric.Div(available, price)
		if err != nil {
			return nil, err
		}
		dyHuman = dyHuman.Add(available)
		remaining = remaining.Sub(usedIn)
	}

	if midPrice.IsZero() {
		return nil, ErrNoBins
	}

	dxAfterFee := dxHuman.Sub(feePaid)
	execPrice, err := numeric.Div(dyHuman, dxHuman)
	if err != nil {
		return nil, err
	}
	impact, err := impactPct(midPrice, dyHuman, dxAfterFee)
	if err != nil {
		return nil, err
	}

	return &KernelResult{
		DyHuman:        dyHuman,
		FeePaidHuman:   feePaid,
		MidPrice:       midPrice,
		ExecPrice:      execPrice,
		PriceImpactPct: impact,
	}, nil
}

// binPriceHuman returns the bin's price oriented out-per-in in human units.
func binPriceHuman(binID int32, stepBps uint16, forward bool, decIn, decOut uint8) (decimal.Decimal, error) {
	atomic, err := BinIDToPrice(binID, stepBps)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !forward {
		atomic, err = numeric.Div(decimal.NewFromInt(1), atomic)
		if err != nil {
			return decimal.Decimal{}, err
		}
	}
	return atomic.Shift(int32(decIn) - int32(decOut)), nil
}
