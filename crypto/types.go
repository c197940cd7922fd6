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
// This file is adapted from the data-model primitives CryptoNote keeps in
// Crypto/Hash.h and Crypto/CryptoOps.h: fixed-width hashes, keys and key
// images, each a plain [32]byte so equality and map-keying stay structural.

// Package crypto implements the CryptoNote cryptographic primitives: key
// derivation, key images, ring signatures, and the long-hash family used for
// proof-of-work.
package crypto

import (
	"encoding/hex"
	"fmt"
)

const HashSize = 32

// Hash is a 32-byte digest. Byte-exact equality makes it directly usable as
// a map key.
type Hash [HashSize]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the all-zero hash (used as a sentinel, e.g.
// "no previous block" before genesis).
func (h Hash) IsZero() bool { return h == Hash{} }

// PublicKey is a Curve25519-derived public key.
type PublicKey [32]byte

func (p PublicKey) String() string { return hex.EncodeToString(p[:]) }

// SecretKey is a Curve25519-derived secret scalar. Deriving PublicKey from
// SecretKey is one-way; see PublicFromSecret.
type SecretKey [32]byte

func (s SecretKey) String() string { return "<secret>" }

// KeyImage is the deterministic per-output fingerprint that makes
// double-spend detection possible without revealing which output is spent.
type KeyImage [32]byte

func (k KeyImage) String() string { return hex.EncodeToString(k[:]) }

// Signature is a single ring-member's (c, r) Schnorr-style signature share.
type Signature struct {
	C [32]byte
	R [32]byte
}

// KeyDerivation is the Diffie-Hellman-style shared secret produced by
// keyDerivation(txPubKey, viewSecret).
type KeyDerivation [32]byte

// ErrInvalidPoint is returned when a supposed curve point does not decode.
var ErrInvalidPoint = fmt.Errorf("crypto: invalid curve point")
