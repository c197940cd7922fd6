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
// Adapted from lib/Crypto/CryptoOps.h's generate_key_derivation,
// derive_public_key and generate_key_image.

package crypto

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/qwertycoin-project/qwc-node/crypto/internal/edwards25519"
)

// GenerateKeyPair returns a fresh (secret, public) pair, public = secret*G.
func GenerateKeyPair() (SecretKey, PublicKey, error) {
	var sk SecretKey
	if _, err := rand.Read(sk[:]); err != nil {
		return SecretKey{}, PublicKey{}, err
	}
	scalar := edwards25519.ScalarFromBytes(sk)
	reduced := SecretKey(edwards25519.ScalarToBytes(scalar))
	return reduced, PublicFromSecret(reduced), nil
}

// PublicFromSecret computes public = secret*G. This is a one-way function:
// recovering secret from public requires solving the discrete log.
func PublicFromSecret(secret SecretKey) PublicKey {
	s := edwards25519.ScalarFromBytes(secret)
	p := edwards25519.ScalarBaseMult(s)
	return PublicKey(p.Bytes())
}

// KeyDerivationFrom computes keyDerivation(txPubKey, viewSecret): the
// Diffie-Hellman-style shared secret 8*viewSecret*txPubKey. Fails only if
// txPubKey does not decode to a valid curve point.
func KeyDerivationFrom(txPubKey PublicKey, viewSecret SecretKey) (KeyDerivation, error) {
	point, ok := edwards25519.FromBytes([32]byte(txPubKey))
	if !ok {
		return KeyDerivation{}, ErrInvalidPoint
	}
	scalar := edwards25519.ScalarFromBytes(viewSecret)
	shared := edwards25519.ScalarMult(scalar, point)
	// clear the cofactor, matching generate_key_derivation's geScalarmult
	// by 8 of the low-order subgroup component.
	shared = edwards25519.ScalarMult(big.NewInt(8), shared)
	return KeyDerivation(shared.Bytes()), nil
}

// derivationToScalar computes Hs(derivation || varint(outputIndex)), the
// per-output scalar used by both deriveOutputKey and key-image generation.
func derivationToScalar(derivation KeyDerivation, outputIndex uint64) *big.Int {
	buf := append([]byte{}, derivation[:]...)
	buf = appendVarint(buf, outputIndex)
	digest := sha3.Sum256(buf)
	return edwards25519.ScalarFromBytes(digest)
}

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// DeriveOutputKey computes expectedPubKey for output i: a viewer owns
// output i of a transaction iff expectedPubKey == outputs[i].target.key.
func DeriveOutputKey(derivation KeyDerivation, outputIndex uint64, baseSpendKey PublicKey) (PublicKey, error) {
	base, ok := edwards25519.FromBytes([32]byte(baseSpendKey))
	if !ok {
		return PublicKey{}, ErrInvalidPoint
	}
	scalar := derivationToScalar(derivation, outputIndex)
	scaled := edwards25519.ScalarBaseMult(scalar)
	sum := edwards25519.Add(base, scaled)
	return PublicKey(sum.Bytes()), nil
}

// DeriveSpendSecret computes the one-time secret key for output i, used by
// the owner of baseSpendSecret when actually spending the output.
func DeriveSpendSecret(derivation KeyDerivation, outputIndex uint64, baseSpendSecret SecretKey) SecretKey {
	scalar := derivationToScalar(derivation, outputIndex)
	base := edwards25519.ScalarFromBytes(baseSpendSecret)
	sum := new(big.Int).Add(base, scalar)
	sum.Mod(sum, edwards25519.L)
	return SecretKey(edwards25519.ScalarToBytes(sum))
}

// GenerateKeyImage computes keyImage = spendSecret * Hp(spendPublic), the
// one-to-one fingerprint that guarantees at-most-one spend per output.
func GenerateKeyImage(spendPublic PublicKey, spendSecret SecretKey) KeyImage {
	hp := edwards25519.HashToPoint(sha3.Sum256(spendPublic[:]))
	scalar := edwards25519.ScalarFromBytes(spendSecret)
	image := edwards25519.ScalarMult(scalar, hp)
	return KeyImage(image.Bytes())
}
