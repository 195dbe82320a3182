package domain

import (
	"math/big"
	"testing"

	pooldomain "github.com/solkite/triarb/business/pool/domain"
)

const mintETH = pooldomain.Mint("7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs")

func pool(id string, x, y pooldomain.Mint) *pooldomain.Pool {
	return &pooldomain.Pool{
		ID:       id,
		Kind:     pooldomain.KindCpmm,
		MintX:    x,
		MintY:    y,
		XReserve: big.NewInt(1),
		YReserve: big.NewInt(1),
	}
}

func TestPairIndexBothOrientations(t *testing.T) {
	idx := BuildPairIndex([]*pooldomain.Pool{
		pool("p1", pooldomain.WSOL, pooldomain.USDC),
	})

	if got := idx.PoolsFor(pooldomain.WSOL, pooldomain.USDC); len(got) != 1 {
		t.Errorf("forward orientation: %d pools, want 1", len(got))
	}
	if got := idx.PoolsFor(pooldomain.USDC, pooldomain.WSOL); len(got) != 1 {
		t.Errorf("reverse orientation: %d pools, want 1", len(got))
	}
	if got := idx.PoolsFor(pooldomain.WSOL, mintETH); len(got) != 0 {
		t.Errorf("absent pair: %d pools, want 0", len(got))
	}
}

func TestPairIndexDeterministicOrder(t *testing.T) {
	idx := BuildPairIndex([]*pooldomain.Pool{
		pool("zzz", pooldomain.WSOL, pooldomain.USDC),
		pool("aaa", pooldomain.WSOL, pooldomain.USDC),
		pool("mmm", pooldomain.WSOL, pooldomain.USDC),
	})

	got := idx.PoolsFor(pooldomain.WSOL, pooldomain.USDC)
	if len(got) != 3 || got[0].ID != "aaa" || got[1].ID != "mmm" || got[2].ID != "zzz" {
		t.Errorf("pools not sorted by id: %v", ids(got))
	}
}

func TestPairIndexDeduplicates(t *testing.T) {
	p := pool("dup", pooldomain.WSOL, pooldomain.USDC)
	idx := BuildPairIndex([]*pooldomain.Pool{p, p})

	if idx.Size() != 1 {
		t.Errorf("Size = %d, want 1", idx.Size())
	}
}

func TestPairIndexNeighbors(t *testing.T) {
	idx := BuildPairIndex([]*pooldomain.Pool{
		pool("p1", pooldomain.WSOL, pooldomain.USDC),
		pool("p2", pooldomain.WSOL, mintETH),
	})

	got := idx.Neighbors(pooldomain.WSOL)
	if len(got) != 2 {
		t.Fatalf("Neighbors = %v, want 2 mints", got)
	}
	// Sorted by mint string.
	if got[0] > got[1] {
		t.Errorf("neighbors not sorted: %v", got)
	}
}

func ids(pools []*pooldomain.Pool) []string {
	out := make([]string, len(pools))
	for i, p := range pools {
		out[i] = p.ID
	}
	return out
}
