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
// Package consensus holds the configuration-driven tables and pure
// functions a full node needs to agree with its peers: which hashing
// algorithm a block major version uses, the difficulty retarget schedule,
// hard-coded checkpoints, and the proof-of-work comparison itself. None of
// it touches storage or the network; it is deliberately a pure-function
// package so the blockchain engine can call it without owning locks.
//
// HashingAlgorithmForVersion mirrors
// CryptoNote::HASHING_ALGORITHMS_BY_BLOCK_VERSION (CachedBlock.cpp), kept
// here as an explicit Go table per the resolved major-version-table open
// question, rather than inferred from block contents.
package consensus

import "github.com/qwertycoin-project/qwc-node/crypto"

// Major block versions. Version 1 blocks hash directly; versions 2 and 3
// embed a merge-mining parent block and hash that instead; version 4+
// returns to hashing the block itself, using the soft-shell variant.
const (
	BlockMajorVersion1 uint8 = 1
	BlockMajorVersion2 uint8 = 2
	BlockMajorVersion3 uint8 = 3
	BlockMajorVersion4 uint8 = 4
)

// HashingAlgorithmForVersion returns the long-hash variant a block of the
// given major version must satisfy its proof-of-work with.
func HashingAlgorithmForVersion(majorVersion uint8) (crypto.LongHashVariant, bool) {
	switch {
	case majorVersion == BlockMajorVersion1:
		return crypto.LongHashV0, true
	case majorVersion == BlockMajorVersion2:
		return crypto.LongHashV1, true
	case majorVersion == BlockMajorVersion3:
		return crypto.LongHashV2, true
	case majorVersion >= BlockMajorVersion4:
		return crypto.LongHashSoftShell, true
	default:
		return 0, false
	}
}

// UsesMergeMining reports whether a block of this major version carries a
// parent-block merge-mining section. For such a block the proof-of-work
// input is the block's own hashing-form header (which embeds the parent
// section) followed by the parent header's fields; the parent section is
// not hashed on its own.
func UsesMergeMining(majorVersion uint8) bool {
	return majorVersion == BlockMajorVersion2 || majorVersion == BlockMajorVersion3
}

// MixinLimits bounds the allowed ring size (mixin count = ring size - 1).
// MIXIN_LIMITS_V1_HEIGHT tightens the window starting at a fixed height,
// per CryptoNoteConfig.h's MIXIN_LIMITS_V1_* constants.
type MixinLimits struct {
	Min, Max uint64
}

const MixinLimitsV1Height uint64 = 0xC8000 // 819200, the reference activation height

var (
	mixinLimitsLegacy = MixinLimits{Min: 0, Max: 100}
	mixinLimitsV1     = MixinLimits{Min: 2, Max: 8}
)

// MixinLimitsForHeight returns the active ring-size window at height.
func MixinLimitsForHeight(height uint64) MixinLimits {
	if height >= MixinLimitsV1Height {
		return mixinLimitsV1
	}
	return mixinLimitsLegacy
}
