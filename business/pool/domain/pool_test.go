package domain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const (
	addrPool  = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"
	addrVault = "DQyrAcCrDXQ7NeoqGgDCZwBvWDcYmFCjSb9JtteuvPpz"
)

func TestIsBase58Address(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"pool_address", addrPool, true},
		{"vault_address", addrVault, true},
		{"wsol_mint", string(WSOL), true},
		{"usdc_mint", string(USDC), true},
		{"too_short", "abc", false},
		{"empty", "", false},
		{"integer_amount", "123456789", false},
		{"invalid_chars", strings.Repeat("0", 40), false}, // 0 not in base58 alphabet
		{"too_long", strings.Repeat("1", 45), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBase58Address(tt.in); got != tt.want {
				t.Errorf("IsBase58Address(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMintShort(t *testing.T) {
	if got := WSOL.Short(); got != "So11..1112" {
		t.Errorf("Short() = %s", got)
	}
	if got := Mint("abc").Short(); got != "abc" {
		t.Errorf("Short() = %s", got)
	}
}

func validPool() *Pool {
	return &Pool{
		ID:          addrPool,
		Dex:         "raydium",
		Kind:        KindCpmm,
		MintX:       WSOL,
		MintY:       USDC,
		DecimalsX:   9,
		DecimalsY:   6,
		FeeFraction: decimal.RequireFromString("0.0025"),
		XReserve:    big.NewInt(1_000_000),
		YReserve:    big.NewInt(50_000_000),
	}
}

func TestPoolValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Pool)
		ok   bool
	}{
		{"valid", func(p *Pool) {}, true},
		{"same_mint", func(p *Pool) { p.MintY = p.MintX }, false},
		{"decimals_too_big", func(p *Pool) { p.DecimalsX = 19 }, false},
		{"negative_fee", func(p *Pool) { p.FeeFraction = decimal.RequireFromString("-0.1") }, false},
		{"fee_of_one", func(p *Pool) { p.FeeFraction = decimal.NewFromInt(1) }, false},
		{"zero_reserve", func(p *Pool) { p.XReserve = big.NewInt(0) }, false},
		{"absent_reserves_ok", func(p *Pool) { p.XReserve, p.YReserve = nil, nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPool()
			tt.mut(p)
			err := p.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestPoolMintHelpers(t *testing.T) {
	p := validPool()

	if !p.HasMint(WSOL) || !p.HasMint(USDC) {
		t.Error("HasMint should accept both pool mints")
	}
	if p.HasMint(Mint("other")) {
		t.Error("HasMint accepted a foreign mint")
	}
	if got := p.OtherMint(WSOL); got != USDC {
		t.Errorf("OtherMint(WSOL) = %s", got.Short())
	}
	if got := p.OtherMint(Mint("other")); got != "" {
		t.Errorf("OtherMint(foreign) = %s, want zero", got.Short())
	}
}

func TestPoolMathReady(t *testing.T) {
	p := validPool()
	if !p.MathReady() {
		t.Error("CPMM pool with reserves should be math-ready")
	}

	p.XReserve = nil
	if p.MathReady() {
		t.Error("CPMM pool without reserves is not math-ready")
	}

	clmm := validPool()
	clmm.Kind = KindWhirlpool
	clmm.XReserve, clmm.YReserve = nil, nil
	if clmm.MathReady() {
		t.Error("concentrated pool without state is not math-ready")
	}
	clmm.Clmm = &ClmmState{
		SqrtPriceX64: new(big.Int).Lsh(big.NewInt(1), 64),
		Liquidity:    big.NewInt(1000),
	}
	if !clmm.MathReady() {
		t.Error("concentrated pool with sqrt-price state should be math-ready")
	}
}

func TestPoolCloneIsDeep(t *testing.T) {
	p := validPool()
	p.Clmm = &ClmmState{SqrtPriceX64: big.NewInt(42), Liquidity: big.NewInt(7)}

	c := p.Clone()
	c.XReserve.SetInt64(999)
	c.Clmm.SqrtPriceX64.SetInt64(999)

	if p.XReserve.Int64() != 1_000_000 {
		t.Error("clone shares XReserve with original")
	}
	if p.Clmm.SqrtPriceX64.Int64() != 42 {
		t.Error("clone shares Clmm state with original")
	}
}

func TestRawPoolProbes(t *testing.T) {
	raw := RawPool{
		"address":  addrPool,
		"fee":      "0.25",
		"decimals": float64(6),
		"reserve":  "123456789",
		"vaultish": addrVault,
	}

	if s, ok := raw.Str("missing", "address"); !ok || s != addrPool {
		t.Errorf("Str = %q, %v", s, ok)
	}
	if f, ok := raw.Float("fee"); !ok || f != 0.25 {
		t.Errorf("Float = %v, %v", f, ok)
	}
	if i, ok := raw.Int("decimals"); !ok || i != 6 {
		t.Errorf("Int = %d, %v", i, ok)
	}
	if v, ok := raw.BigInt("reserve"); !ok || v.Int64() != 123456789 {
		t.Errorf("BigInt = %v, %v", v, ok)
	}
	// Base58-shaped values never parse as amounts.
	if _, ok := raw.BigInt("vaultish"); ok {
		t.Error("BigInt accepted a base58-shaped value")
	}
}
