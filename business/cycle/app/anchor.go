package app

import (
	"sort"

	"github.com/shopspring/decimal"

	pooldomain "github.com/solkite/triarb/business/pool/domain"
	"github.com/solkite/triarb/internal/numeric"
	"github.com/solkite/triarb/internal/units"
)

// impliedAnchorPrice returns the pool's implied pivot-per-start price from
// its cached reserves, oriented so start is the base. Pools without both
// reserves cannot be judged and return false.
func impliedAnchorPrice(p *pooldomain.Pool, start, pivot pooldomain.Mint) (decimal.Decimal, bool) {
	if !p.HasReserves() || p.XReserve.Sign() <= 0 || p.YReserve.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	humanX := units.AtomicToHuman(p.XReserve, p.DecimalsX)
	humanY := units.AtomicToHuman(p.YReserve, p.DecimalsY)

	switch {
	case p.MintX == start && p.MintY == pivot:
		price, err := numeric.Div(humanY, humanX)
		return price, err == nil
	case p.MintX == pivot && p.MintY == start:
		price, err := numeric.Div(humanX, humanY)
		return price, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// filterAnchorOutliers removes start/pivot pools whose implied price strays
// beyond [median/factor, median*factor]. Mint-misaligned cached reserves on
// the anchor pair otherwise dominate the result set with fake 10^3-10^6%
// opportunities.
func filterAnchorOutliers(pools []*pooldomain.Pool, start, pivot pooldomain.Mint, factor decimal.Decimal) (kept []*pooldomain.Pool, removed int) {
	type anchor struct {
		pool  *pooldomain.Pool
		price decimal.Decimal
	}
	var anchors []anchor
	for _, p := range pools {
		if price, ok := impliedAnchorPrice(p, start, pivot); ok {
			anchors = append(anchors, anchor{p, price})
		}
	}
	if len(anchors) == 0 {
		return pools, 0
	}

	prices := make([]decimal.Decimal, len(anchors))
	for i, a := range anchors {
		prices[i] = a.price
	}
	median := medianOf(prices)
	if median.Sign() <= 0 {
		return pools, 0
	}

	low := numeric.MustDiv(median, factor)
	high := median.Mul(factor)

	outliers := make(map[string]struct{})
	for _, a := range anchors {
		if a.price.LessThan(low) || a.price.GreaterThan(high) {
			outliers[a.pool.ID] = struct{}{}
		}
	}
	if len(outliers) == 0 {
		return pools, 0
	}

	kept = make([]*pooldomain.Pool, 0, len(pools))
	for _, p := range pools {
		if _, bad := outliers[p.ID]; bad {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	return kept, removed
}

// medianOf returns the median price; for an even count, the mean of the two
// middle values.
func medianOf(prices []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return numeric.MustDiv(sorted[n/2-1].Add(sorted[n/2]), decimal.NewFromInt(2))
}
