package domain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/solkite/triarb/internal/numeric"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCpmmQuoteBasicSwap(t *testing.T) {
	// Pool {x=1000, y=2000, fee=0.0025}, dx=10.
	res, err := CpmmQuote(d("1000"), d("2000"), d("10"), d("0.0025"))
	if err != nil {
		t.Fatalf("CpmmQuote error: %v", err)
	}

	// fee = 10 * 0.0025 = 0.025, dx' = 9.975, dy = 2000*9.975/1009.975
	if want := d("0.025"); !res.FeePaidHuman.Equal(want) {
		t.Errorf("FeePaidHuman = %s, want %s", res.FeePaidHuman, want)
	}
	wantDy := numeric.MustDiv(d("19950"), d("1009.975"))
	if !res.DyHuman.Equal(wantDy) {
		t.Errorf("DyHuman = %s, want %s", res.DyHuman, wantDy)
	}
	if got := res.DyHuman.Truncate(6); !got.Equal(d("19.752964")) {
		t.Errorf("DyHuman truncated = %s, want 19.752964", got)
	}

	if want := d("2"); !res.MidPrice.Equal(want) {
		t.Errorf("MidPrice = %s, want %s", res.MidPrice, want)
	}
	wantExec := numeric.MustDiv(res.DyHuman, d("10"))
	if !res.ExecPrice.Equal(wantExec) {
		t.Errorf("ExecPrice = %s, want %s", res.ExecPrice, wantExec)
	}

	// impact = |2 - dy/9.975| / 2 * 100
	wantImpact := numeric.MustDiv(d("2").Sub(numeric.MustDiv(res.DyHuman, d("9.975"))).Abs(), d("2")).
		Mul(d("100")).Truncate(numeric.Precision)
	if !res.PriceImpactPct.Equal(wantImpact) {
		t.Errorf("PriceImpactPct = %s, want %s", res.PriceImpactPct, wantImpact)
	}
	if res.PriceImpactPct.Sign() <= 0 {
		t.Error("PriceImpactPct should be positive for a non-trivial trade")
	}
}

func TestCpmmQuoteNeverDrainsOutputSide(t *testing.T) {
	tests := []struct {
		name string
		x, y string
		dx   string
	}{
		{"tiny_trade", "1000", "2000", "0.000001"},
		{"whale_trade", "1000", "2000", "1000000"},
		{"lopsided_pool", "1", "1000000000", "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := CpmmQuote(d(tt.x), d(tt.y), d(tt.dx), d("0.003"))
			if err != nil {
				t.Fatalf("CpmmQuote error: %v", err)
			}
			if res.DyHuman.Sign() <= 0 {
				t.Errorf("DyHuman = %s, want > 0", res.DyHuman)
			}
			if res.DyHuman.GreaterThanOrEqual(d(tt.y)) {
				t.Errorf("DyHuman = %s drains y reserve %s", res.DyHuman, tt.y)
			}
		})
	}
}

func TestCpmmQuoteRejectsBadInputs(t *testing.T) {
	one := decimal.NewFromInt(1)

	if _, err := CpmmQuote(decimal.Zero, one, one, decimal.Zero); !errors.Is(err, ErrNonPositiveReserve) {
		t.Errorf("zero x reserve error = %v, want ErrNonPositiveReserve", err)
	}
	if _, err := CpmmQuote(one, one, decimal.Zero, decimal.Zero); !errors.Is(err, ErrNonPositiveInput) {
		t.Errorf("zero dx error = %v, want ErrNonPositiveInput", err)
	}
	if _, err := CpmmQuote(one, one, one, one); !errors.Is(err, ErrBadFee) {
		t.Errorf("fee=1 error = %v, want ErrBadFee", err)
	}
}

func TestClmmQuoteSingleTick(t *testing.T) {
	// sqrtPriceX64 = 2^64 means atomic price 1; equal decimals keep human
	// price 1 as well.
	sqrtPrice := new(big.Int).Lsh(big.NewInt(1), 64)
	liquidity := big.NewInt(1_000_000_000_000)

	res, err := ClmmQuote(sqrtPrice, liquidity, d("1"), decimal.Zero, true, 6, 6)
	if err != nil {
		t.Fatalf("ClmmQuote error: %v", err)
	}

	if !res.MidPrice.Equal(d("1")) {
		t.Errorf("MidPrice = %s, want 1", res.MidPrice)
	}
	// dy = L*(sp - sp') with sp'=L/(L+dx_atomic): just under the input.
	if res.DyHuman.GreaterThanOrEqual(d("1")) || res.DyHuman.LessThan(d("0.999998")) {
		t.Errorf("DyHuman = %s, want just under 1", res.DyHuman)
	}
	if res.CrossedTickBoundary {
		t.Error("small trade should not cross a tick boundary")
	}
}

func TestClmmQuoteFlagsTickBoundary(t *testing.T) {
	sqrtPrice := new(big.Int).Lsh(big.NewInt(1), 64)
	liquidity := big.NewInt(1_000_000_000_000)

	// dx_atomic/liquidity = 1e-4, four times the half-tick sqrt shift.
	res, err := ClmmQuote(sqrtPrice, liquidity, d("100"), decimal.Zero, true, 6, 6)
	if err != nil {
		t.Fatalf("ClmmQuote error: %v", err)
	}
	if !res.CrossedTickBoundary {
		t.Error("large trade should flag a tick boundary crossing")
	}
}

func TestClmmQuoteReverseDirection(t *testing.T) {
	// Atomic price 4 (sqrt 2). Selling y: mid out-per-in is 1/4.
	sqrtPrice := new(big.Int).Lsh(big.NewInt(2), 64)
	liquidity := big.NewInt(1_000_000_000_000)

	res, err := ClmmQuote(sqrtPrice, liquidity, d("1"), decimal.Zero, false, 6, 6)
	if err != nil {
		t.Fatalf("ClmmQuote error: %v", err)
	}
	if !res.MidPrice.Equal(d("0.25")) {
		t.Errorf("MidPrice = %s, want 0.25", res.MidPrice)
	}
	if res.DyHuman.GreaterThan(d("0.25")) {
		t.Errorf("DyHuman = %s, cannot beat the mid price", res.DyHuman)
	}
}

func TestClmmQuoteRejectsMissingState(t *testing.T) {
	if _, err := ClmmQuote(nil, big.NewInt(1), d("1"), decimal.Zero, true, 6, 6); !errors.Is(err, ErrNoLiquidity) {
		t.Errorf("nil sqrt price error = %v, want ErrNoLiquidity", err)
	}
	if _, err := ClmmQuote(big.NewInt(0), big.NewInt(1), d("1"), decimal.Zero, true, 6, 6); !errors.Is(err, ErrNoLiquidity) {
		t.Errorf("zero sqrt price error = %v, want ErrNoLiquidity", err)
	}
}

func TestDlmmQuoteSingleBin(t *testing.T) {
	// Active bin 0 at step 100 bps: price (1.01)^0 = 1.
	res, err := DlmmQuoteSingleBin(0, 100, d("100"), d("10"), d("0.002"), true, 6, 6)
	if err != nil {
		t.Fatalf("DlmmQuoteSingleBin error: %v", err)
	}

	// fee = 0.02, dy = 9.98 * 1
	if want := d("9.98"); !res.DyHuman.Equal(want) {
		t.Errorf("DyHuman = %s, want %s", res.DyHuman, want)
	}
	if !res.MidPrice.Equal(d("1")) {
		t.Errorf("MidPrice = %s, want 1", res.MidPrice)
	}
}

func TestDlmmQuoteSingleBinCapsAtReserve(t *testing.T) {
	res, err := DlmmQuoteSingleBin(0, 100, d("5"), d("10"), decimal.Zero, true, 6, 6)
	if err != nil {
		t.Fatalf("DlmmQuoteSingleBin error: %v", err)
	}
	if !res.DyHuman.Equal(d("5")) {
		t.Errorf("DyHuman = %s, want capped at 5", res.DyHuman)
	}
}

func TestDlmmQuoteWalk(t *testing.T) {
	// Forward walk consumes the highest-price bin first.
	bins := []Bin{
		{ID: -1, XReserve: d("100"), YReserve: d("10")},
		{ID: 0, XReserve: d("100"), YReserve: d("5")},
	}

	res, err := DlmmQuoteWalk(bins, 100, d("10"), decimal.Zero, true, 6, 6)
	if err != nil {
		t.Fatalf("DlmmQuoteWalk error: %v", err)
	}

	// Bin 0 (price 1) yields its full 5 for 5 in; the remaining 5 converts
	// at bin -1's price 1/1.01, with the kernel's truncation.
	price := numeric.MustDiv(d("1"), d("1.01"))
	carry := d("5").Mul(price).Truncate(numeric.Precision)
	want := d("5").Add(carry)
	if !res.DyHuman.Equal(want) {
		t.Errorf("DyHuman = %s, want %s", res.DyHuman, want)
	}
	// Mid price is the first walked bin's price at entry.
	if !res.MidPrice.Equal(d("1")) {
		t.Errorf("MidPrice = %s, want 1", res.MidPrice)
	}
}

func TestDlmmQuoteWalkRunsDry(t *testing.T) {
	bins := []Bin{{ID: 0, XReserve: d("1"), YReserve: d("1")}}

	res, err := DlmmQuoteWalk(bins, 100, d("100"), decimal.Zero, true, 6, 6)
	if err != nil {
		t.Fatalf("DlmmQuoteWalk error: %v", err)
	}
	// Only the single bin's reserve comes out, the rest of the input is
	// simply not converted.
	if !res.DyHuman.Equal(d("1")) {
		t.Errorf("DyHuman = %s, want 1", res.DyHuman)
	}
}

func TestDlmmQuoteWalkNoBins(t *testing.T) {
	if _, err := DlmmQuoteWalk(nil, 100, d("1"), decimal.Zero, true, 6, 6); !errors.Is(err, ErrNoBins) {
		t.Errorf("no bins error = %v, want ErrNoBins", err)
	}
}
