package app

import (
	"context"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/solkite/triarb/business/pool/domain"
	"github.com/solkite/triarb/internal/apperror"
	"github.com/solkite/triarb/internal/logger"
	"github.com/solkite/triarb/internal/metrics"
)

// Field name probe lists, highest priority first. Sources disagree on
// nearly every name; the order encodes which spelling wins when several
// are present.
var (
	addressKeys = []string{"pool_id", "poolId", "id", "address", "pool_address", "poolAddress", "amm_id", "ammId", "pubkey"}
	dexKeys     = []string{"dex", "source", "amm", "protocol", "platform"}
	kindKeys    = []string{"kind", "type", "pool_type", "poolType", "program", "name"}

	mintXKeys = []string{"mint_x", "mintX", "mint_a", "mintA", "token_x_mint", "tokenXMint"}
	mintYKeys = []string{"mint_y", "mintY", "mint_b", "mintB", "token_y_mint", "tokenYMint"}
	baseKeys  = []string{"base_mint", "baseMint", "token_base"}
	quoteKeys = []string{"quote_mint", "quoteMint", "token_quote"}

	decimalsXKeys    = []string{"decimals_x", "decimalsX", "decimal_x", "mint_x_decimals", "token_x_decimals"}
	decimalsYKeys    = []string{"decimals_y", "decimalsY", "decimal_y", "mint_y_decimals", "token_y_decimals"}
	decimalsBaseKeys = []string{"base_decimals", "baseDecimals", "base_decimal"}
	decimalsQuotKeys = []string{"quote_decimals", "quoteDecimals", "quote_decimal"}

	symbolXKeys = []string{"symbol_x", "symbolX", "token_x_symbol", "base_symbol", "baseSymbol"}
	symbolYKeys = []string{"symbol_y", "symbolY", "token_y_symbol", "quote_symbol", "quoteSymbol"}

	// Reserve fields are AMBIGUOUS: depending on the source these hold vault
	// addresses or balances. Classification is by value shape, never by name.
	reserveXKeys = []string{"reserve_x_amount", "reserve_x", "reserveX", "x_reserve", "token_x_amount", "tokenXAmount"}
	reserveYKeys = []string{"reserve_y_amount", "reserve_y", "reserveY", "y_reserve", "token_y_amount", "tokenYAmount"}
	reserveBKeys = []string{"base_reserve_amount", "base_reserve", "baseReserve", "base_amount"}
	reserveQKeys = []string{"quote_reserve_amount", "quote_reserve", "quoteReserve", "quote_amount"}

	vaultXKeys = []string{"vault_x", "vaultX", "x_vault", "token_x_vault", "tokenXVault"}
	vaultYKeys = []string{"vault_y", "vaultY", "y_vault", "token_y_vault", "tokenYVault"}
	vaultBKeys = []string{"base_vault", "baseVault"}
	vaultQKeys = []string{"quote_vault", "quoteVault"}

	feeFractionKeys = []string{"fee_fraction", "feeFraction", "fee_rate", "feeRate", "fee", "trade_fee", "fee_pct", "fee_percent"}
	meteoraFeeKeys  = []string{"base_fee_percentage", "baseFeePercentage"}

	sqrtPriceKeys   = []string{"sqrt_price_x64", "sqrtPriceX64", "sqrt_price", "sqrtPrice"}
	liquidityKeys   = []string{"liquidity", "liquidity_x64", "active_liquidity"}
	tickCurrentKeys = []string{"tick_current", "tickCurrent", "tick_current_index", "tickCurrentIndex", "current_tick"}
	tickSpacingKeys = []string{"tick_spacing", "tickSpacing"}

	activeBinKeys = []string{"active_bin_id", "activeBinId", "active_id", "activeId"}
	binStepKeys   = []string{"bin_step_bps", "bin_step", "binStep"}

	tvlKeys    = []string{"tvl", "tvl_usd", "tvlUSD", "liquidity_usd", "liquidityUSD"}
	volumeKeys = []string{"volume_24h", "volume24h", "v24hUSD", "volume_usd_24h"}
)

// NormalizerConfig holds the pre-filter thresholds.
type NormalizerConfig struct {
	MinTVL      decimal.Decimal
	MinVolume24 decimal.Decimal
}

// Normalizer converts raw pool descriptions into canonical records.
type Normalizer struct {
	config NormalizerConfig
	log    *logger.Logger
	meters *metrics.Metrics
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(config NormalizerConfig, log *logger.Logger, meters *metrics.Metrics) *Normalizer {
	return &Normalizer{
		config: config,
		log:    log,
		meters: meters,
	}
}

// NormalizeAll converts every raw record, dropping individual bad records
// without halting the batch. Rejections are logged and counted per code.
func (n *Normalizer) NormalizeAll(ctx context.Context, raws []domain.RawPool) []*domain.Pool {
	pools := make([]*domain.Pool, 0, len(raws))
	for _, raw := range raws {
		pool, err := n.Normalize(raw)
		if err != nil {
			code := apperror.CodeOf(err)
			n.meters.PoolsRejected.WithLabelValues(string(code)).Inc()
			n.log.Debug(ctx, "pool rejected", "code", code, "error", err)
			continue
		}
		if pool == nil {
			// Filtered, not broken.
			continue
		}
		n.meters.PoolsNormalized.Inc()
		pools = append(pools, pool)
	}
	return pools
}

// Normalize converts one raw record into a canonical pool. A nil pool with
// nil error means the record was filtered by the TVL/volume thresholds.
func (n *Normalizer) Normalize(raw domain.RawPool) (*domain.Pool, error) {
	id, err := extractAddress(raw)
	if err != nil {
		return nil, err
	}

	dex := extractDex(raw)
	kind := detectKind(raw, dex)

	mintX, mintY, swapped, err := extractMints(raw)
	if err != nil {
		return nil, err
	}

	pool := &domain.Pool{
		ID:    id,
		Dex:   dex,
		Kind:  kind,
		MintX: mintX,
		MintY: mintY,
	}

	pool.DecimalsX, pool.DecimalsY, err = extractDecimals(raw, mintX, mintY, swapped)
	if err != nil {
		return nil, err
	}

	pool.SymbolX, _ = raw.Str(symbolXKeys...)
	pool.SymbolY, _ = raw.Str(symbolYKeys...)
	if swapped {
		pool.SymbolX, pool.SymbolY = pool.SymbolY, pool.SymbolX
	}

	if err := extractReserves(raw, pool, swapped); err != nil {
		return nil, err
	}

	pool.FeeFraction = extractFee(raw)
	extractClmmState(raw, pool)
	extractDlmmState(raw, pool)

	if tvl, ok := raw.Float(tvlKeys...); ok {
		pool.TVL = decimal.NewFromFloat(tvl)
	}
	if vol, ok := raw.Float(volumeKeys...); ok {
		pool.Volume24h = decimal.NewFromFloat(vol)
	}

	if pool.TVL.LessThan(n.config.MinTVL) || pool.Volume24h.LessThan(n.config.MinVolume24) {
		return nil, nil
	}

	pool.ReserveSource = domain.SourceNone
	if err := pool.Validate(); err != nil {
		return nil, apperror.Wrap(apperror.CodeInvariantViolated, pool.ID, err)
	}
	return pool, nil
}

func extractAddress(raw domain.RawPool) (string, error) {
	s, ok := raw.Str(addressKeys...)
	if !ok {
		return "", apperror.New(apperror.CodeMissingAddress)
	}
	if !domain.IsBase58Address(s) {
		return "", apperror.New(apperror.CodeInvalidAddress, apperror.WithContext(s))
	}
	return s, nil
}

func extractDex(raw domain.RawPool) string {
	s, ok := raw.Str(dexKeys...)
	if !ok {
		return "unknown"
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// detectKind applies the substring rules in priority order, then the by-dex
// fallback. CPMM is the final fallback: wrong is better than dropped here,
// the math will reject pools that lack the state their kind needs.
func detectKind(raw domain.RawPool, dex string) domain.Kind {
	blob := raw.Blob(kindKeys...)
	switch {
	case strings.Contains(blob, "whirlpool"):
		return domain.KindWhirlpool
	case strings.Contains(blob, "dlmm"), strings.Contains(blob, "bin"):
		return domain.KindDlmm
	case strings.Contains(blob, "clmm"), strings.Contains(blob, "concentrated"):
		return domain.KindClmm
	case strings.Contains(blob, "cpmm"), strings.Contains(blob, "amm"), strings.Contains(blob, "constant"):
		return domain.KindCpmm
	}

	switch dex {
	case "orca":
		return domain.KindWhirlpool
	case "meteora":
		return domain.KindDlmm
	case "raydium":
		return domain.KindCpmm
	}
	return domain.KindCpmm
}

// extractMints returns the ordered mint pair plus whether base/quote order
// was flipped relative to the explicit x/y order. When swapped is true,
// base-convention side fields belong to mint Y.
func extractMints(raw domain.RawPool) (domain.Mint, domain.Mint, bool, error) {
	mx, okX := raw.Str(mintXKeys...)
	my, okY := raw.Str(mintYKeys...)
	base, okB := raw.Str(baseKeys...)
	quote, okQ := raw.Str(quoteKeys...)

	swapped := false
	if okX && okY {
		if okB && base == my {
			swapped = true
		}
	} else if okB && okQ {
		mx, my = base, quote
	} else {
		return "", "", false, apperror.New(apperror.CodeMissingMint)
	}

	if !domain.IsBase58Address(mx) {
		return "", "", false, apperror.New(apperror.CodeMissingMint, apperror.WithContext("mint_x: "+mx))
	}
	if !domain.IsBase58Address(my) {
		return "", "", false, apperror.New(apperror.CodeMissingMint, apperror.WithContext("mint_y: "+my))
	}
	return domain.Mint(mx), domain.Mint(my), swapped, nil
}

func extractDecimals(raw domain.RawPool, mintX, mintY domain.Mint, swapped bool) (uint8, uint8, error) {
	resolve := func(mint domain.Mint, primary, secondary []string, fallback uint8) (uint8, error) {
		// Well-known mints override whatever the record claims.
		switch mint {
		case domain.WSOL:
			return 9, nil
		case domain.USDC:
			return 6, nil
		}
		if d, ok := raw.Int(primary...); ok {
			if d < 0 || d > 18 {
				return 0, apperror.New(apperror.CodeDecimalsOutOfRange)
			}
			return uint8(d), nil
		}
		if d, ok := raw.Int(secondary...); ok {
			if d < 0 || d > 18 {
				return 0, apperror.New(apperror.CodeDecimalsOutOfRange)
			}
			return uint8(d), nil
		}
		return fallback, nil
	}

	baseSide, quoteSide := decimalsBaseKeys, decimalsQuotKeys
	if swapped {
		baseSide, quoteSide = quoteSide, baseSide
	}

	dx, err := resolve(mintX, decimalsXKeys, baseSide, 9)
	if err != nil {
		return 0, 0, err
	}
	dy, err := resolve(mintY, decimalsYKeys, quoteSide, 6)
	if err != nil {
		return 0, 0, err
	}
	return dx, dy, nil
}

// extractReserves classifies reserve-ish fields into balances and vault
// addresses. The rule is strict: a base58-shaped value is a vault address no
// matter which field it arrived under. A 32-byte key misread as an integer
// balance is a ~10^30 reserve, and every cycle through it becomes a fake
// 10^20x profit.
func extractReserves(raw domain.RawPool, pool *domain.Pool, swapped bool) error {
	xReserve, xQuote := reserveXKeys, reserveYKeys
	xVault, yVault := vaultXKeys, vaultYKeys
	bReserve, qReserve := reserveBKeys, reserveQKeys
	bVault, qVault := vaultBKeys, vaultQKeys
	if swapped {
		bReserve, qReserve = qReserve, bReserve
		bVault, qVault = qVault, bVault
	}

	var err error
	pool.XReserve, pool.VaultXAddr, err = classifySide(raw, append(xReserve, bReserve...), append(xVault, bVault...))
	if err != nil {
		return err
	}
	pool.YReserve, pool.VaultYAddr, err = classifySide(raw, append(xQuote, qReserve...), append(yVault, qVault...))
	return err
}

func classifySide(raw domain.RawPool, reserveKeys, vaultKeys []string) (*big.Int, string, error) {
	var amount *big.Int
	var vault string

	// Explicit vault fields: address or nothing.
	if s, ok := raw.Str(vaultKeys...); ok {
		if domain.IsBase58Address(s) {
			vault = s
		}
	}

	for _, k := range reserveKeys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		if isStr && domain.IsBase58Shaped(s) {
			if domain.IsBase58Address(s) {
				if _, intLike := new(big.Int).SetString(s, 10); intLike {
					// Decodes to a 32-byte key and parses as an integer:
					// nothing distinguishes address from balance.
					return nil, "", apperror.New(apperror.CodeAmbiguousReserve, apperror.WithContext(k))
				}
				if vault == "" {
					vault = s
				}
			}
			// Base58-shaped but not an address: unusable either way.
			continue
		}
		if amount == nil {
			if a, ok := raw.BigInt(k); ok {
				amount = a
			}
		}
	}
	return amount, vault, nil
}

var defaultFee = decimal.NewFromFloat(0.003)

// extractFee normalizes the fee into a fraction in [0, 1).
func extractFee(raw domain.RawPool) decimal.Decimal {
	if v, ok := raw.Float(feeFractionKeys...); ok && v >= 0 {
		f := decimal.NewFromFloat(v)
		switch {
		case v > 0 && v < 0.1:
			return f // already a fraction
		case v >= 0.1 && v <= 100:
			return f.Div(decimal.NewFromInt(100)) // percent
		}
	}
	// Meteora publishes base_fee_percentage in basis points.
	if v, ok := raw.Float(meteoraFeeKeys...); ok && v >= 0 && v < 10_000 {
		return decimal.NewFromFloat(v).Div(decimal.NewFromInt(10_000))
	}
	return defaultFee
}

func extractClmmState(raw domain.RawPool, pool *domain.Pool) {
	sqrtPrice, okS := raw.BigInt(sqrtPriceKeys...)
	liquidity, okL := raw.BigInt(liquidityKeys...)
	if !okS || !okL {
		return
	}
	state := &domain.ClmmState{
		SqrtPriceX64: sqrtPrice,
		Liquidity:    liquidity,
	}
	if t, ok := raw.Int(tickCurrentKeys...); ok {
		state.TickCurrent = int32(t)
	}
	if t, ok := raw.Int(tickSpacingKeys...); ok && t > 0 {
		state.TickSpacing = uint16(t)
	}
	pool.Clmm = state
}

func extractDlmmState(raw domain.RawPool, pool *domain.Pool) {
	bin, okB := raw.Int(activeBinKeys...)
	step, okS := raw.Int(binStepKeys...)
	if !okB || !okS || step <= 0 {
		return
	}
	pool.Dlmm = &domain.DlmmState{
		ActiveBinID: int32(bin),
		BinStepBps:  uint16(step),
	}
}
