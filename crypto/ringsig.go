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
// Adapted from generate_ring_signature / check_ring_signature in
// lib/Crypto/CryptoOps.h's surrounding Crypto.cpp (not included in the
// retrieval pack verbatim, but its shape is fully determined by
// CryptoOps.h's ge_dsm_precomp / ge_double_scalarmult primitives).

package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/qwertycoin-project/qwc-node/crypto/internal/edwards25519"
)

var ErrRingSizeMismatch = errors.New("crypto: ring size does not match signature count")

// randomScalar returns a uniformly random scalar mod L.
func randomScalar() *big.Int {
	var buf [32]byte
	_, _ = rand.Read(buf[:])
	return edwards25519.ScalarFromBytes(buf)
}

// GenerateRingSignature proves that the signer knows the secret key for
// ring[secretIndex], without revealing which member, and binds the
// signature to prefixHash and the shared keyImage (one-to-one with the
// spent output's secret key, so a double-spend reuses the same image).
func GenerateRingSignature(
	prefixHash Hash,
	image KeyImage,
	ring []PublicKey,
	secretIndex int,
	secret SecretKey,
) ([]Signature, error) {
	if secretIndex < 0 || secretIndex >= len(ring) {
		return nil, errors.New("crypto: secretIndex out of range")
	}
	imagePoint, ok := edwards25519.FromBytes([32]byte(image))
	if !ok {
		return nil, ErrInvalidPoint
	}

	n := len(ring)
	cs := make([]*big.Int, n)
	rs := make([]*big.Int, n)
	Ls := make([]*edwards25519.Point, n)
	Rs := make([]*edwards25519.Point, n)

	var k *big.Int
	sum := big.NewInt(0)

	for i := 0; i < n; i++ {
		pub, ok := edwards25519.FromBytes([32]byte(ring[i]))
		if !ok {
			return nil, ErrInvalidPoint
		}
		hp := edwards25519.HashToPoint(sha3.Sum256(ring[i][:]))

		if i == secretIndex {
			k = randomScalar()
			Ls[i] = edwards25519.ScalarBaseMult(k)
			Rs[i] = edwards25519.ScalarMult(k, hp)
			continue
		}

		ci := randomScalar()
		ri := randomScalar()
		cs[i] = ci
		rs[i] = ri
		Ls[i] = edwards25519.Add(edwards25519.ScalarMult(ci, pub), edwards25519.ScalarBaseMult(ri))
		Rs[i] = edwards25519.Add(edwards25519.ScalarMult(ci, imagePoint), edwards25519.ScalarMult(ri, hp))
		sum.Add(sum, ci)
	}

	challenge := ringChallenge(prefixHash, Ls, Rs)
	cj := new(big.Int).Sub(challenge, sum)
	cj.Mod(cj, edwards25519.L)
	rj := new(big.Int).Sub(k, new(big.Int).Mul(cj, edwards25519.ScalarFromBytes(secret)))
	rj.Mod(rj, edwards25519.L)
	cs[secretIndex] = cj
	rs[secretIndex] = rj

	out := make([]Signature, n)
	for i := 0; i < n; i++ {
		out[i] = Signature{C: edwards25519.ScalarToBytes(cs[i]), R: edwards25519.ScalarToBytes(rs[i])}
	}
	return out, nil
}

// VerifyRingSignature reports whether sig proves knowledge of the secret
// key for one (unrevealed) member of ring, bound to prefixHash and image.
// It never panics: malformed rings, keys or signatures simply return false.
func VerifyRingSignature(prefixHash Hash, image KeyImage, ring []PublicKey, sig []Signature) bool {
	if len(ring) == 0 || len(ring) != len(sig) {
		return false
	}
	imagePoint, ok := edwards25519.FromBytes([32]byte(image))
	if !ok {
		return false
	}

	n := len(ring)
	Ls := make([]*edwards25519.Point, n)
	Rs := make([]*edwards25519.Point, n)
	sum := big.NewInt(0)

	for i := 0; i < n; i++ {
		pub, ok := edwards25519.FromBytes([32]byte(ring[i]))
		if !ok {
			return false
		}
		hp := edwards25519.HashToPoint(sha3.Sum256(ring[i][:]))

		c := edwards25519.ScalarFromBytes(sig[i].C)
		r := edwards25519.ScalarFromBytes(sig[i].R)

		Ls[i] = edwards25519.Add(edwards25519.ScalarMult(c, pub), edwards25519.ScalarBaseMult(r))
		Rs[i] = edwards25519.Add(edwards25519.ScalarMult(c, imagePoint), edwards25519.ScalarMult(r, hp))
		sum.Add(sum, c)
	}

	challenge := ringChallenge(prefixHash, Ls, Rs)
	sum.Mod(sum, edwards25519.L)
	return sum.Cmp(challenge) == 0
}

func ringChallenge(prefixHash Hash, Ls, Rs []*edwards25519.Point) *big.Int {
	buf := append([]byte{}, prefixHash[:]...)
	for i := range Ls {
		lb := Ls[i].Bytes()
		rb := Rs[i].Bytes()
		buf = append(buf, lb[:]...)
		buf = append(buf, rb[:]...)
	}
	digest := sha3.Sum256(buf)
	return edwards25519.ScalarFromBytes(digest)
}
