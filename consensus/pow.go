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
// CheckHash reproduces check_hash from lib/Crypto/Hash.h: the long-hash,
// read as a little-endian 256-bit integer, times the target difficulty
// must not exceed 2^256. Using big.Int rather than the reference's 64-bit
// limb multiplication trades a little performance for a trivially-correct
// implementation.
package consensus

import "math/big"

var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// CheckHash reports whether hash (interpreted little-endian) satisfies the
// given integer difficulty: hash * difficulty <= 2^256.
func CheckHash(hash [32]byte, difficulty int64) bool {
	if difficulty <= 0 {
		return false
	}
	reversed := make([]byte, 32)
	for i := range hash {
		reversed[31-i] = hash[i]
	}
	h := new(big.Int).SetBytes(reversed)
	product := new(big.Int).Mul(h, big.NewInt(difficulty))
	return product.Cmp(two256) <= 0
}
