package app

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/solkite/triarb/business/cycle/domain"
	pooldomain "github.com/solkite/triarb/business/pool/domain"
	swapapp "github.com/solkite/triarb/business/swap/app"
	"github.com/solkite/triarb/internal/apm"
	"github.com/solkite/triarb/internal/apperror"
	"github.com/solkite/triarb/internal/logger"
	"github.com/solkite/triarb/internal/metrics"
	"github.com/solkite/triarb/internal/numeric"
	"github.com/solkite/triarb/internal/units"
)

// Discard reasons for the stats summary.
const (
	discardLegFailed  = "leg_failed"
	discardBoundsHigh = "above_max_profit"
	discardBoundsLow  = "below_max_loss"
)

// EngineConfig holds the cycle search parameters.
type EngineConfig struct {
	StartToken          pooldomain.Mint
	PivotToken          pooldomain.Mint
	InputAtomic         *big.Int
	ThresholdPct        decimal.Decimal
	MaxProfitPct        decimal.Decimal
	MaxLossPct          decimal.Decimal
	MaxPoolsPerLeg      int
	MaxRoutes           int
	MedianOutlierFactor decimal.Decimal
	Workers             int // parallel candidate-B workers; <=1 means serial
}

// Engine enumerates and ranks three-pool cycles.
type Engine struct {
	swapper *swapapp.Swapper
	config  EngineConfig
	log     *logger.Logger
	meters  *metrics.Metrics
	tracer  apm.Tracer
}

// NewEngine creates an Engine, rejecting configurations that would make the
// ranking meaningless.
func NewEngine(swapper *swapapp.Swapper, config EngineConfig, log *logger.Logger, meters *metrics.Metrics) (*Engine, error) {
	if config.ThresholdPct.IsNegative() {
		return nil, apperror.New(apperror.CodeInvalidThreshold, apperror.WithContext(config.ThresholdPct.String()))
	}
	if config.MaxProfitPct.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("max_profit_pct"))
	}
	if config.MaxLossPct.Sign() <= 0 || config.MaxLossPct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("max_loss_pct"))
	}
	if config.InputAtomic == nil || config.InputAtomic.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("input_atomic"))
	}
	if config.StartToken == config.PivotToken || config.StartToken.IsZero() || config.PivotToken.IsZero() {
		return nil, apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("start/pivot tokens"))
	}
	if config.MaxPoolsPerLeg <= 0 {
		config.MaxPoolsPerLeg = 6
	}
	if config.MaxRoutes <= 0 {
		config.MaxRoutes = 200
	}
	if config.MedianOutlierFactor.LessThan(decimal.NewFromInt(1)) {
		config.MedianOutlierFactor = decimal.NewFromInt(2)
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Engine{
		swapper: swapper,
		config:  config,
		log:     log,
		meters:  meters,
		tracer:  apm.NewTracer("cycle.engine"),
	}, nil
}

// Search enumerates A -> B -> C -> A cycles over the given math-ready pools
// and returns them ranked by net return. Cancellation returns whatever was
// collected so far, still ranked and truncated.
func (e *Engine) Search(ctx context.Context, pools []*pooldomain.Pool) (*SearchReport, error) {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "cycle_search")
	defer span.End()

	started := time.Now()
	stats := domain.NewStats()
	stats.PoolsConsidered = len(pools)

	filtered, removed := filterAnchorOutliers(pools, e.config.StartToken, e.config.PivotToken, e.config.MedianOutlierFactor)
	stats.PoolsFiltered = removed
	if removed > 0 {
		e.log.Info(ctx, "anchor outlier pools removed", "count", removed)
	}

	index := domain.BuildPairIndex(filtered)
	span.SetAttributes(attribute.Int("pools.indexed", index.Size()))

	intermediates := e.candidateIntermediates(index)
	stats.Intermediates = len(intermediates)

	var (
		mu     sync.Mutex
		cycles []*domain.Cycle
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for _, b := range intermediates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			local, localStats := e.searchIntermediate(gctx, index, b)
			mu.Lock()
			cycles = append(cycles, local...)
			mergeStats(stats, localStats)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		stats.Cancelled = true
	}

	rankCycles(cycles)
	if len(cycles) > e.config.MaxRoutes {
		cycles = cycles[:e.config.MaxRoutes]
	}

	stats.CyclesEmitted = len(cycles)
	for _, c := range cycles {
		if c.Passes {
			stats.CyclesPassing++
		}
	}
	stats.Duration = time.Since(started)

	e.meters.CyclesEmitted.Add(float64(stats.CyclesEmitted))
	e.meters.CyclesPassing.Add(float64(stats.CyclesPassing))
	e.meters.ObservePhase("search", stats.Duration)

	return &SearchReport{Cycles: cycles, Stats: stats}, nil
}

// candidateIntermediates returns every token B with both an A<->B and a
// B<->C edge, provided the A<->C closing edge exists at all.
func (e *Engine) candidateIntermediates(index *domain.PairIndex) []pooldomain.Mint {
	a, c := e.config.StartToken, e.config.PivotToken
	if len(index.PoolsFor(c, a)) == 0 || len(index.PoolsFor(a, c)) == 0 {
		return nil
	}

	fromC := make(map[pooldomain.Mint]struct{})
	for _, m := range index.Neighbors(c) {
		fromC[m] = struct{}{}
	}

	var out []pooldomain.Mint
	for _, b := range index.Neighbors(a) {
		if b == a || b == c {
			continue
		}
		if _, ok := fromC[b]; ok {
			out = append(out, b)
		}
	}
	return out
}

// searchIntermediate simulates every pool triple for one intermediate B.
func (e *Engine) searchIntermediate(ctx context.Context, index *domain.PairIndex, b pooldomain.Mint) ([]*domain.Cycle, *domain.Stats) {
	a, c := e.config.StartToken, e.config.PivotToken
	stats := domain.NewStats()

	legAB := capPools(index.PoolsFor(a, b), e.config.MaxPoolsPerLeg)
	legBC := capPools(index.PoolsFor(b, c), e.config.MaxPoolsPerLeg)
	legCA := capPools(index.PoolsFor(c, a), e.config.MaxPoolsPerLeg)

	var cycles []*domain.Cycle
	for _, p1 := range legAB {
		for _, p2 := range legBC {
			for _, p3 := range legCA {
				if ctx.Err() != nil {
					return cycles, stats
				}
				stats.TriplesSimulated++
				e.meters.TriplesSimulated.Inc()

				cycle, reason, err := e.simulateTriple(ctx, p1, p2, p3)
				if err != nil {
					stats.TriplesDiscarded[discardLegFailed]++
					stats.ErrorsByKind[string(codeForLegError(err))]++
					e.meters.TriplesDiscarded.WithLabelValues(discardLegFailed).Inc()
					continue
				}
				if reason != "" {
					stats.TriplesDiscarded[reason]++
					e.meters.TriplesDiscarded.WithLabelValues(reason).Inc()
					continue
				}
				cycles = append(cycles, cycle)
			}
		}
	}
	return cycles, stats
}

// simulateTriple runs the three legs with strict atomic propagation and
// attributes analytical costs back into the starting token.
func (e *Engine) simulateTriple(ctx context.Context, p1, p2, p3 *pooldomain.Pool) (*domain.Cycle, string, error) {
	a, b, c := e.config.StartToken, p1.OtherMint(e.config.StartToken), e.config.PivotToken

	leg1, err := e.swapper.ProcessSwap(ctx, p1, e.config.InputAtomic, a, b)
	if err != nil {
		return nil, "", err
	}
	leg2, err := e.swapper.ProcessSwap(ctx, p2, leg1.DyAtomic, b, c)
	if err != nil {
		return nil, "", err
	}
	leg3, err := e.swapper.ProcessSwap(ctx, p3, leg2.DyAtomic, c, a)
	if err != nil {
		return nil, "", err
	}

	input := e.config.InputAtomic
	output := leg3.DyAtomic

	diff := decimal.NewFromBigInt(new(big.Int).Sub(output, input), 0)
	rawPct := numeric.MustDiv(diff.Mul(decimal.NewFromInt(100)), decimal.NewFromBigInt(input, 0))

	if rawPct.GreaterThan(e.config.MaxProfitPct) {
		return nil, discardBoundsHigh, nil
	}
	if rawPct.LessThan(e.config.MaxLossPct.Neg()) {
		return nil, discardBoundsLow, nil
	}

	// Leg costs are denominated in each leg's output token; chain the later
	// legs' mid prices to land every cost in the starting token.
	cost1 := swapapp.CostFromLeg(leg1, p1.FeeFraction)
	cost2 := swapapp.CostFromLeg(leg2, p2.FeeFraction)
	cost3 := swapapp.CostFromLeg(leg3, p3.FeeFraction)

	costA := cost3.TotalCostOutHuman.
		Add(cost2.TotalCostOutHuman.Mul(leg3.MidPrice)).
		Add(cost1.TotalCostOutHuman.Mul(leg2.MidPrice).Mul(leg3.MidPrice)).
		Truncate(numeric.Precision)

	inputHuman := units.AtomicToHuman(input, legInDecimals(p1, a))
	costPct := numeric.MustDiv(costA.Mul(decimal.NewFromInt(100)), inputHuman)
	netPct := rawPct.Sub(costPct)

	return &domain.Cycle{
		Legs:             [3]*swapapp.LegResult{leg1, leg2, leg3},
		InputAtomic:      new(big.Int).Set(input),
		OutputAtomic:     new(big.Int).Set(output),
		RawProfitPct:     rawPct,
		NetAfterCostsPct: netPct,
		Passes:           netPct.GreaterThanOrEqual(e.config.ThresholdPct),
	}, "", nil
}

func legInDecimals(p *pooldomain.Pool, in pooldomain.Mint) uint8 {
	if p.MintX == in {
		return p.DecimalsX
	}
	return p.DecimalsY
}

func capPools(pools []*pooldomain.Pool, k int) []*pooldomain.Pool {
	if len(pools) <= k {
		return pools
	}
	return pools[:k]
}

// rankCycles sorts by net return descending, breaking ties by the
// concatenated pool ids so identical inputs always rank identically.
func rankCycles(cycles []*domain.Cycle) {
	sort.Slice(cycles, func(i, j int) bool {
		if !cycles[i].NetAfterCostsPct.Equal(cycles[j].NetAfterCostsPct) {
			return cycles[i].NetAfterCostsPct.GreaterThan(cycles[j].NetAfterCostsPct)
		}
		return cycles[i].Key() < cycles[j].Key()
	})
}

func mergeStats(dst, src *domain.Stats) {
	dst.TriplesSimulated += src.TriplesSimulated
	for k, v := range src.TriplesDiscarded {
		dst.TriplesDiscarded[k] += v
	}
	for k, v := range src.ErrorsByKind {
		dst.ErrorsByKind[k] += v
	}
}

// codeForLegError buckets a leg failure into the error taxonomy.
func codeForLegError(err error) apperror.Code {
	switch {
	case errors.Is(err, swapapp.ErrMintMismatch):
		return apperror.CodeMintMismatch
	case errors.Is(err, swapapp.ErrMissingReserves):
		return apperror.CodeMissingReserves
	case errors.Is(err, swapapp.ErrNeedsQuoter):
		return apperror.CodeNeedsQuoter
	case errors.Is(err, swapapp.ErrZeroOutput):
		return apperror.CodeZeroOutput
	case errors.Is(err, numeric.ErrDivisionByZero):
		return apperror.CodeDivisionByZero
	case errors.Is(err, numeric.ErrNegativeRoot):
		return apperror.CodeNegativeRoot
	case errors.Is(err, numeric.ErrOverflow):
		return apperror.CodeOverflow
	case errors.Is(err, units.ErrNegativeAtomic):
		return apperror.CodeNegativeAtomic
	case errors.Is(err, units.ErrPrecisionLoss):
		return apperror.CodePrecisionLoss
	default:
		return apperror.CodeOf(err)
	}
}
