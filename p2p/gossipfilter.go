// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// gossipFilter is a node-wide probabilistic "have I relayed this already"
// check, complementing each Peer's exact knownBlocks/knownTxs caches: the
// per-peer caches stop echoing a message back to the peer that sent it,
// while this filter stops the relay loop itself from re-broadcasting the
// same hash to the rest of the mesh once it's already gone out. A false
// positive only costs a skipped (redundant) rebroadcast, never an accepted
// double-spend, so the probabilistic filter is an acceptable trade for
// the O(1) memory footprint the exact alternative (a growing hash set)
// would not have.
package p2p

import (
	"encoding/binary"
	"hash"
	"sync"

	"github.com/steakknife/bloomfilter"

	"github.com/qwertycoin-project/qwc-node/crypto"
)

// relayFilterCapacity and relayFilterFalsePositive size the filter for a
// few hours of block/tx gossip before it needs rotating.
const (
	relayFilterCapacity      = 200_000
	relayFilterFalsePositive = 1e-5
)

// hashKeyHasher adapts a crypto.Hash to the hash.Hash64 interface
// bloomfilter.Filter.Add/Contains expect.
type hashKeyHasher struct {
	sum uint64
}

func newHashKeyHasher(h crypto.Hash) *hashKeyHasher {
	return &hashKeyHasher{sum: binary.LittleEndian.Uint64(h[:8])}
}

func (h *hashKeyHasher) Sum64() uint64               { return h.sum }
func (h *hashKeyHasher) Write(p []byte) (int, error) { return len(p), nil }
func (h *hashKeyHasher) Sum(b []byte) []byte         { return b }
func (h *hashKeyHasher) Reset()                      {}
func (h *hashKeyHasher) Size() int                   { return 8 }
func (h *hashKeyHasher) BlockSize() int              { return 8 }

var _ hash.Hash64 = (*hashKeyHasher)(nil)

// gossipFilter guards a single active bloom filter: once
// relayFilterCapacity hashes have been added to it, a fresh filter takes
// over and the old one is dropped, rather than letting one filter's
// false-positive rate grow forever.
type gossipFilter struct {
	mu     sync.Mutex
	active *bloomfilter.Filter
	seen   uint64
}

func newGossipFilter() *gossipFilter {
	f, err := bloomfilter.NewOptimal(relayFilterCapacity, relayFilterFalsePositive)
	if err != nil {
		// Only returns an error for a non-positive capacity or
		// probability, neither of which the constants above are.
		panic(err)
	}
	return &gossipFilter{active: f}
}

// MarkAndCheck reports whether hash was already marked relayed, and marks
// it as relayed either way.
func (g *gossipFilter) MarkAndCheck(h crypto.Hash) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	hasher := newHashKeyHasher(h)
	if g.active.Contains(hasher) {
		return true
	}
	g.active.Add(hasher)
	g.seen++
	if g.seen >= relayFilterCapacity {
		fresh, err := bloomfilter.NewOptimal(relayFilterCapacity, relayFilterFalsePositive)
		if err == nil {
			g.active = fresh
			g.seen = 0
		}
	}
	return false
}
