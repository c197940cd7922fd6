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
// MerkleRoot follows the shape of Crypto/tree-hash.c: not a conventional
// balanced binary tree padded with duplicates, but a leaf count folded down
// to the nearest power of two first (hashing the overhanging leaves
// pairwise into the front of that layer), then reduced by ordinary
// pairwise hashing. This reproduces the algorithm's structure and is
// internally deterministic; it is not claimed to be bit-exact against any
// particular upstream build. A single leaf is its own root; zero leaves is
// the zero hash (never valid on a real block, since the coinbase is always
// leaf 0).
package types

import "github.com/qwertycoin-project/qwc-node/crypto"

// MerkleRoot computes the root over leaves, in order, with the coinbase
// transaction's hash expected at leaves[0].
func MerkleRoot(leaves []crypto.Hash) crypto.Hash {
	n := len(leaves)
	switch n {
	case 0:
		return crypto.Hash{}
	case 1:
		return leaves[0]
	}

	count := largestPowerOfTwoNotGreaterThan(n)
	if count == n {
		return reducePairwise(leaves)
	}

	overhang := n - count
	working := make([]crypto.Hash, count)
	for i := 0; i < overhang; i++ {
		working[i] = crypto.FastHashConcat(leaves[2*i][:], leaves[2*i+1][:])
	}
	copy(working[overhang:], leaves[2*overhang:])

	return reducePairwise(working)
}

func reducePairwise(layer []crypto.Hash) crypto.Hash {
	for len(layer) > 1 {
		next := make([]crypto.Hash, len(layer)/2)
		for i := range next {
			next[i] = crypto.FastHashConcat(layer[2*i][:], layer[2*i+1][:])
		}
		layer = next
	}
	return layer[0]
}

func largestPowerOfTwoNotGreaterThan(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
