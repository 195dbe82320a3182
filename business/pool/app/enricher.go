package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solkite/triarb/business/pool/domain"
	"github.com/solkite/triarb/internal/apm"
	"github.com/solkite/triarb/internal/apperror"
	"github.com/solkite/triarb/internal/logger"
	"github.com/solkite/triarb/internal/metrics"
)

// EnricherConfig bounds the enrichment fan-out.
type EnricherConfig struct {
	Concurrency  int // concurrent oracle batches, default 16
	MaxBatchSize int // addresses per oracle call, default 100
}

// Enricher populates pool reserves from the best available source:
// live vault balances first, then cached amounts, then quoter state.
type Enricher struct {
	oracle ReserveOracle
	quoter SwapQuoter
	config EnricherConfig
	log    *logger.Logger
	meters *metrics.Metrics
	tracer apm.Tracer
	now    func() time.Time
}

// NewEnricher creates an Enricher. oracle and quoter may be nil; the
// corresponding sources are then skipped.
func NewEnricher(oracle ReserveOracle, quoter SwapQuoter, config EnricherConfig, log *logger.Logger, meters *metrics.Metrics) *Enricher {
	if config.Concurrency <= 0 {
		config.Concurrency = 16
	}
	if config.MaxBatchSize <= 0 || config.MaxBatchSize > 100 {
		config.MaxBatchSize = 100
	}
	return &Enricher{
		oracle: oracle,
		quoter: quoter,
		config: config,
		log:    log,
		meters: meters,
		tracer: apm.NewTracer("pool.enricher"),
		now:    time.Now,
	}
}

// EnrichAll returns new pool records with reserves populated where possible.
// Inputs are never mutated. Pools that end up with no reserve source are
// still returned (marked SourceNone) so the caller can count them; the
// math-ready filter is a separate step.
func (e *Enricher) EnrichAll(ctx context.Context, pools []*domain.Pool) []*domain.Pool {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "enrich_all")
	defer span.End()

	balances := e.fetchAllVaultBalances(ctx, pools)

	enriched := make([]*domain.Pool, len(pools))
	for i, p := range pools {
		enriched[i] = e.enrichOne(ctx, p, balances)
		e.meters.ReserveSource.WithLabelValues(string(enriched[i].ReserveSource)).Inc()
	}
	return enriched
}

// fetchAllVaultBalances batches every vault address across the pool set and
// reads them through the oracle with bounded concurrency.
func (e *Enricher) fetchAllVaultBalances(ctx context.Context, pools []*domain.Pool) map[string]*big.Int {
	out := make(map[string]*big.Int)
	if e.oracle == nil {
		return out
	}

	seen := make(map[string]struct{})
	var addresses []string
	for _, p := range pools {
		for _, addr := range []string{p.VaultXAddr, p.VaultYAddr} {
			if addr == "" {
				continue
			}
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			addresses = append(addresses, addr)
		}
	}
	if len(addresses) == 0 {
		return out
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for start := 0; start < len(addresses); start += e.config.MaxBatchSize {
		end := min(start+e.config.MaxBatchSize, len(addresses))
		batch := addresses[start:end]

		g.Go(func() error {
			bctx, span := e.tracer.StartSpanFromContext(gctx, "oracle_batch")
			defer span.End()
			e.meters.OracleBatches.Inc()
			fetched, err := e.oracle.FetchVaultBalances(bctx, batch)
			if err != nil {
				// A failed batch degrades the affected pools to the next
				// source; it never fails the run.
				e.log.Warn(gctx, "vault balance batch failed", "size", len(batch), "error", err)
				e.meters.ErrorsByKind.WithLabelValues(string(codeForOracleErr(err))).Inc()
				return nil
			}
			mu.Lock()
			for addr, bal := range fetched {
				out[addr] = bal
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	e.meters.OracleMissing.Add(float64(len(addresses) - len(out)))
	return out
}

func (e *Enricher) enrichOne(ctx context.Context, p *domain.Pool, balances map[string]*big.Int) *domain.Pool {
	pool := p.Clone()

	// Vault addresses were cached independently of mint order on some
	// sources. When the cached amounts contradict the straight assignment,
	// realign vault_x with mint_x before adopting live balances.
	alignVaults(pool, balances)

	bx, okX := balances[pool.VaultXAddr]
	by, okY := balances[pool.VaultYAddr]
	if okX && okY && bx.Sign() > 0 && by.Sign() > 0 {
		pool.XReserve = new(big.Int).Set(bx)
		pool.YReserve = new(big.Int).Set(by)
		pool.ReserveSource = domain.SourceVault
		pool.ReserveTimestamp = e.now()
		return pool
	}

	if pool.HasReserves() {
		pool.ReserveSource = domain.SourceCache
		pool.ReserveTimestamp = e.now()
		return pool
	}

	if e.quoter != nil {
		if delta, err := e.quoter.FetchPoolState(ctx, pool.ID); err == nil && delta != nil {
			applyStateDelta(pool, delta)
			pool.ReserveSource = domain.SourceQuoter
			pool.ReserveTimestamp = e.now()
			return pool
		} else if err != nil {
			e.log.Debug(ctx, "quoter state fetch failed", "pool", pool.ID, "error", err)
		}
	}

	// Concentrated pools can still quote from their normalized sqrt-price
	// state even when no reserve source resolved.
	if pool.Kind.IsConcentrated() && pool.MathReady() {
		pool.ReserveSource = domain.SourceCache
		pool.ReserveTimestamp = e.now()
		return pool
	}

	pool.ReserveSource = domain.SourceNone
	e.meters.ErrorsByKind.WithLabelValues(string(apperror.CodeNoReserveSource)).Inc()
	return pool
}

// alignVaults swaps the vault addresses when the cached reserve amounts say
// the vaults were recorded in the opposite order of the mints. The cached
// amounts are authoritative for orientation: x_reserve holds mint_x by
// construction (C3).
func alignVaults(pool *domain.Pool, balances map[string]*big.Int) {
	if pool.VaultXAddr == "" || pool.VaultYAddr == "" || !pool.HasReserves() {
		return
	}
	bx, okX := balances[pool.VaultXAddr]
	by, okY := balances[pool.VaultYAddr]
	if !okX || !okY {
		return
	}
	straight := new(big.Int).Add(absDiff(pool.XReserve, bx), absDiff(pool.YReserve, by))
	crossed := new(big.Int).Add(absDiff(pool.XReserve, by), absDiff(pool.YReserve, bx))
	if crossed.Cmp(straight) < 0 {
		pool.VaultXAddr, pool.VaultYAddr = pool.VaultYAddr, pool.VaultXAddr
	}
}

func absDiff(a, b *big.Int) *big.Int {
	return new(big.Int).Abs(new(big.Int).Sub(a, b))
}

func applyStateDelta(pool *domain.Pool, delta *PoolStateDelta) {
	if delta.XReserve != nil {
		pool.XReserve = delta.XReserve
	}
	if delta.YReserve != nil {
		pool.YReserve = delta.YReserve
	}
	if delta.SqrtPriceX64 != nil {
		if pool.Clmm == nil {
			pool.Clmm = &domain.ClmmState{}
		}
		pool.Clmm.SqrtPriceX64 = delta.SqrtPriceX64
		pool.Clmm.TickCurrent = delta.TickCurrent
		if delta.Liquidity != nil {
			pool.Clmm.Liquidity = delta.Liquidity
		}
	}
}

// MathReadyPools filters to pools the swap layer can actually quote.
// Concentrated pools without local state survive only when a quoter is
// bound, since their legs will be delegated.
func MathReadyPools(pools []*domain.Pool, hasQuoter bool) []*domain.Pool {
	ready := make([]*domain.Pool, 0, len(pools))
	for _, p := range pools {
		if p.MathReady() {
			ready = append(ready, p)
			continue
		}
		if p.Kind.IsConcentrated() && hasQuoter {
			ready = append(ready, p)
		}
	}
	return ready
}

func codeForOracleErr(err error) apperror.Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.CodeOracleTimeout
	}
	return apperror.CodeOracleDecodeFailure
}
