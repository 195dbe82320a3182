package infra

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/solkite/triarb/business/pool/app"
	"github.com/solkite/triarb/business/pool/domain"
)

// StaticQuoter is a table-backed SwapQuoter for tests and offline runs.
// Quotes are keyed by (pool, in-mint, out-mint); amounts are ignored, which
// is fine for the fixed-notional simulations it serves.
type StaticQuoter struct {
	mu     sync.RWMutex
	quotes map[string]*app.Quote
	states map[string]*app.PoolStateDelta
}

// NewStaticQuoter creates an empty StaticQuoter.
func NewStaticQuoter() *StaticQuoter {
	return &StaticQuoter{
		quotes: make(map[string]*app.Quote),
		states: make(map[string]*app.PoolStateDelta),
	}
}

// SetQuote registers the quote returned for a (pool, in, out) leg.
func (q *StaticQuoter) SetQuote(poolID string, inMint, outMint domain.Mint, quote *app.Quote) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.quotes[quoteKey(poolID, inMint, outMint)] = quote
}

// SetPoolState registers the state delta returned for a pool.
func (q *StaticQuoter) SetPoolState(poolID string, delta *app.PoolStateDelta) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.states[poolID] = delta
}

// Quote implements app.SwapQuoter.
func (q *StaticQuoter) Quote(ctx context.Context, poolID string, inMint, outMint domain.Mint, dxAtomic *big.Int) (*app.Quote, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	quote, ok := q.quotes[quoteKey(poolID, inMint, outMint)]
	if !ok {
		return nil, fmt.Errorf("static quoter: no quote for %s %s->%s", poolID, inMint.Short(), outMint.Short())
	}
	return quote, nil
}

// FetchPoolState implements app.SwapQuoter.
func (q *StaticQuoter) FetchPoolState(ctx context.Context, poolID string) (*app.PoolStateDelta, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	delta, ok := q.states[poolID]
	if !ok {
		return nil, fmt.Errorf("static quoter: no state for %s", poolID)
	}
	return delta, nil
}

func quoteKey(poolID string, inMint, outMint domain.Mint) string {
	return poolID + "|" + string(inMint) + "|" + string(outMint)
}
