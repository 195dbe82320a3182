package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	swapapp "github.com/solkite/triarb/business/swap/app"
)

// Cycle is a fully simulated three-pool round trip A -> B -> C -> A.
type Cycle struct {
	Legs [3]*swapapp.LegResult

	InputAtomic  *big.Int
	OutputAtomic *big.Int

	// RawProfitPct is 100 * (output - input) / input on atomic amounts.
	RawProfitPct decimal.Decimal

	// NetAfterCostsPct subtracts the analytical per-leg costs, converted
	// into the starting token. Conservative by construction: the propagated
	// output already paid those costs once.
	NetAfterCostsPct decimal.Decimal

	Passes bool
}

// Key is the concatenation of the three pool ids, the deterministic
// tiebreaker for ranking.
func (c *Cycle) Key() string {
	return c.Legs[0].PoolID + c.Legs[1].PoolID + c.Legs[2].PoolID
}

// Route returns a display form of the cycle's path.
func (c *Cycle) Route() string {
	return c.Legs[0].InMint.Short() + " > " + c.Legs[1].InMint.Short() + " > " + c.Legs[2].InMint.Short() + " > " + c.Legs[0].InMint.Short()
}

// Stats summarizes a search run: what was seen, what was dropped, and why.
type Stats struct {
	PoolsConsidered  int
	PoolsFiltered    int // removed by the median anchor filter
	Intermediates    int
	TriplesSimulated int64
	TriplesDiscarded map[string]int64 // reason -> count
	ErrorsByKind     map[string]int64 // error code -> count
	CyclesEmitted    int
	CyclesPassing    int
	Cancelled        bool
	Duration         time.Duration
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{
		TriplesDiscarded: make(map[string]int64),
		ErrorsByKind:     make(map[string]int64),
	}
}
