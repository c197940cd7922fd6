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
// FastHash is cn_fast_hash (Crypto/CryptoOps.c): plain Keccak-256 over the
// input, used everywhere a cheap, non-PoW digest is needed (transaction and
// block ids, merkle tree nodes, signature challenges). The slow,
// memory-hard variant lives in longhash.go.
package crypto

import "golang.org/x/crypto/sha3"

// FastHash returns Keccak-256(data).
func FastHash(data []byte) Hash {
	return Hash(sha3.Sum256(data))
}

// FastHashConcat hashes the concatenation of its arguments without an
// intermediate allocation per call site.
func FastHashConcat(parts ...[]byte) Hash {
	h := sha3.New256()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
