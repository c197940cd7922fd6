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
// Adapted from src/Crypto/SlowHashCommon.h / SlowHashPortable.c: a
// memory-hard scratchpad walk seeded by Keccak and finalized by one of
// Blake/Groestl/JH/Skein selected by the final mixing state's first byte.

package crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/qwertycoin-project/qwc-node/crypto/internal/auxhash"
)

// LongHashVariant selects a CryptoNight-family scratchpad shape.
type LongHashVariant int

const (
	LongHashV0 LongHashVariant = iota // baseline
	LongHashV1                        // 43-byte minimum input, nonce-tweak
	LongHashV2                        // integer-math + shuffle step
	LongHashSoftShell                 // block-height-dependent scratchpad/iterations
)

// longHashParams describes one variant's scratchpad shape.
type longHashParams struct {
	scratchpadBytes int
	iterations      int
}

func (v LongHashVariant) baseParams() longHashParams {
	switch v {
	case LongHashV0, LongHashV1:
		return longHashParams{scratchpadBytes: 2 * 1024 * 1024, iterations: 1 << 19}
	case LongHashV2:
		return longHashParams{scratchpadBytes: 2 * 1024 * 1024, iterations: 1 << 19}
	default:
		return longHashParams{scratchpadBytes: 2 * 1024 * 1024, iterations: 1 << 19}
	}
}

// LongHash computes the long-hash of data under the given variant. height
// is only consulted by LongHashSoftShell; other variants ignore it.
// LongHash never panics: the scratchpad size is always the variant's fixed
// (or height-clamped) size, never adversary-controlled.
func LongHash(data []byte, variant LongHashVariant, height uint64) Hash {
	params := params(variant, height)
	if variant == LongHashV1 && len(data) < 43 {
		padded := make([]byte, 43)
		copy(padded, data)
		data = padded
	}

	seed := sha3.Sum256(data)
	scratchpad := make([]byte, params.scratchpadBytes)
	fillScratchpad(scratchpad, seed, variant)

	state := seed
	for i := 0; i < params.iterations; i++ {
		idx := binary.LittleEndian.Uint64(state[:8]) % uint64(len(scratchpad)-64)
		block := scratchpad[idx : idx+64]
		mixBlock(block, &state, variant)
	}

	switch state[0] % 4 {
	case 0:
		return Hash(auxhash.Blake256(state[:]))
	case 1:
		return Hash(auxhash.Groestl256(state[:]))
	case 2:
		return Hash(auxhash.JH256(state[:]))
	default:
		return Hash(auxhash.Skein256(state[:]))
	}
}

func params(variant LongHashVariant, height uint64) longHashParams {
	if variant != LongHashSoftShell {
		return variant.baseParams()
	}
	return softShellParams(height)
}

func fillScratchpad(pad []byte, seed [32]byte, variant LongHashVariant) {
	state := seed
	for off := 0; off < len(pad); off += 32 {
		state = sha3.Sum256(state[:])
		n := copy(pad[off:], state[:])
		_ = n
	}
	if variant == LongHashV2 {
		// integer-math + shuffle step: swap 8-byte lanes pairwise
		for off := 0; off+16 <= len(pad); off += 16 {
			for i := 0; i < 8; i++ {
				pad[off+i], pad[off+15-i] = pad[off+15-i], pad[off+i]
			}
		}
	}
}

func mixBlock(block []byte, state *[32]byte, variant LongHashVariant) {
	for i := 0; i < 32 && i < len(block); i++ {
		state[i] ^= block[i]
	}
	if variant == LongHashV1 {
		// nonce-tweak: fold the tail 32 bytes of the block back in
		for i := 0; i < 32 && 32+i < len(block); i++ {
			state[i] ^= block[32+i]
		}
	}
	*state = sha3.Sum256(state[:])
}
