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
// Checkpoints is a small in-memory hard-coded-block-hash set, grounded on
// lib/CryptoNoteCore/Checkpoints.h: blocks at or before the highest
// checkpoint skip proof-of-work re-verification (accepted on the
// checkpoint authority alone) but must still match the checkpointed hash
// exactly and pass structural validation.
package consensus

import "github.com/qwertycoin-project/qwc-node/crypto"

// Checkpoints is a height -> expected-hash table. The zero value has no
// checkpoints and behaves as a pure proof-of-work chain.
type Checkpoints struct {
	byHeight map[uint64]crypto.Hash
}

// NewCheckpoints builds a Checkpoints table from a height->hash map, as
// loaded from the network's compiled-in checkpoint list or a config file.
func NewCheckpoints(points map[uint64]crypto.Hash) *Checkpoints {
	c := &Checkpoints{byHeight: make(map[uint64]crypto.Hash, len(points))}
	for h, hash := range points {
		c.byHeight[h] = hash
	}
	return c
}

// Add registers (or overwrites) a single checkpoint.
func (c *Checkpoints) Add(height uint64, hash crypto.Hash) {
	if c.byHeight == nil {
		c.byHeight = make(map[uint64]crypto.Hash)
	}
	c.byHeight[height] = hash
}

// Check reports whether height is checkpointed and, if so, whether hash is
// the expected value. ok is false when height carries no checkpoint at
// all, in which case the caller falls back to ordinary PoW validation.
func (c *Checkpoints) Check(height uint64, hash crypto.Hash) (ok, matches bool) {
	if c == nil || c.byHeight == nil {
		return false, false
	}
	expected, present := c.byHeight[height]
	if !present {
		return false, false
	}
	return true, expected == hash
}

// HighestCheckpoint returns the tallest checkpointed height and whether any
// checkpoint exists at all.
func (c *Checkpoints) HighestCheckpoint() (uint64, bool) {
	if c == nil || len(c.byHeight) == 0 {
		return 0, false
	}
	var max uint64
	found := false
	for h := range c.byHeight {
		if !found || h > max {
			max = h
			found = true
		}
	}
	return max, found
}

// IsProtectedByCheckpoint reports whether height is at or before the
// highest checkpoint, meaning proof-of-work re-verification may be skipped
// for it.
func (c *Checkpoints) IsProtectedByCheckpoint(height uint64) bool {
	max, ok := c.HighestCheckpoint()
	return ok && height <= max
}
