// Package domain contains the core domain types for the cycle context.
package domain

import (
	"sort"

	pooldomain "github.com/solkite/triarb/business/pool/domain"
)

// pairKey is an ordered mint pair.
type pairKey struct {
	in  pooldomain.Mint
	out pooldomain.Mint
}

// PairIndex maps ordered mint pairs to the pools where that pair trades.
// Every pool contributes both orientations. Built once per search and
// read-only afterwards; lookups are deterministic (pools sorted by id).
type PairIndex struct {
	edges map[pairKey][]*pooldomain.Pool
	byID  map[string]*pooldomain.Pool
}

// BuildPairIndex indexes the given pools by ordered mint pair.
func BuildPairIndex(pools []*pooldomain.Pool) *PairIndex {
	idx := &PairIndex{
		edges: make(map[pairKey][]*pooldomain.Pool),
		byID:  make(map[string]*pooldomain.Pool, len(pools)),
	}
	for _, p := range pools {
		if _, dup := idx.byID[p.ID]; dup {
			continue
		}
		idx.byID[p.ID] = p
		idx.edges[pairKey{p.MintX, p.MintY}] = append(idx.edges[pairKey{p.MintX, p.MintY}], p)
		idx.edges[pairKey{p.MintY, p.MintX}] = append(idx.edges[pairKey{p.MintY, p.MintX}], p)
	}
	for k := range idx.edges {
		sort.Slice(idx.edges[k], func(i, j int) bool {
			return idx.edges[k][i].ID < idx.edges[k][j].ID
		})
	}
	return idx
}

// PoolsFor returns the pools trading the ordered pair (in, out), sorted by
// pool id. The returned slice must not be mutated.
func (idx *PairIndex) PoolsFor(in, out pooldomain.Mint) []*pooldomain.Pool {
	return idx.edges[pairKey{in, out}]
}

// Get returns a pool by id.
func (idx *PairIndex) Get(id string) (*pooldomain.Pool, bool) {
	p, ok := idx.byID[id]
	return p, ok
}

// Neighbors returns every mint directly tradeable against m, sorted.
func (idx *PairIndex) Neighbors(m pooldomain.Mint) []pooldomain.Mint {
	seen := make(map[pooldomain.Mint]struct{})
	for k := range idx.edges {
		if k.in == m {
			seen[k.out] = struct{}{}
		}
	}
	out := make([]pooldomain.Mint, 0, len(seen))
	for mint := range seen {
		out = append(out, mint)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Size returns the number of indexed pools.
func (idx *PairIndex) Size() int {
	return len(idx.byID)
}
