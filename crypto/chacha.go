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
// Adapted from lib/Crypto/Chacha8.h: a password-derived ChaCha key used to
// encrypt the optional message carried in a transaction's extra field. The
// original hashes the password with CnSlowHashV0; this port uses the
// transaction-side shared secret (a KeyDerivation) in its place and the
// real golang.org/x/crypto/chacha20 cipher instead of a hand-rolled stream.

package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/sha3"
)

const ChaChaIVSize = chacha20.NonceSize

// ChaChaKeyFromSecret derives a 32-byte ChaCha20 key from a shared secret,
// mirroring generateChacha8Key's "hash the secret material" shape.
func ChaChaKeyFromSecret(secret KeyDerivation) [chacha20.KeySize]byte {
	return sha3.Sum256(secret[:])
}

// RandomChaChaIV returns a fresh random nonce for EncryptExtraMessage.
func RandomChaChaIV() ([ChaChaIVSize]byte, error) {
	var iv [ChaChaIVSize]byte
	_, err := rand.Read(iv[:])
	return iv, err
}

// EncryptExtraMessage encrypts plaintext (an advisory message embedded in a
// transaction's extra field) under key/iv. The result is the same length as
// plaintext; ChaCha20 is a stream cipher so encryption and decryption are
// the same operation.
func EncryptExtraMessage(key [chacha20.KeySize]byte, iv [ChaChaIVSize]byte, plaintext []byte) ([]byte, error) {
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], iv[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plaintext))
	cipher.XORKeyStream(out, plaintext)
	return out, nil
}

// DecryptExtraMessage is EncryptExtraMessage's inverse.
func DecryptExtraMessage(key [chacha20.KeySize]byte, iv [ChaChaIVSize]byte, ciphertext []byte) ([]byte, error) {
	return EncryptExtraMessage(key, iv, ciphertext)
}
