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
// TransactionInput/TransactionOutput are tagged sum types per Design Note
// "variant inputs/outputs": exhaustive switches over Tag(), unknown tags
// rejected explicitly rather than silently. Transaction is composed from a
// TransactionPrefix value plus an optional signatures slice (Design Note
// "inheritance hierarchies" -> composition), so hashing the prefix alone is
// a trivial, pure function of that value. Adapted from CryptoNote.h's
// TransactionInput/TransactionOutput variant and
// CryptoNoteBasicImpl.cpp's prefix/full-transaction split.
package types

import "github.com/qwertycoin-project/qwc-node/crypto"

// InputTag identifies which variant a TransactionInput holds.
type InputTag byte

const (
	InputCoinbase InputTag = iota
	InputKey
	InputMultisig
)

// TransactionInput is a tagged union over {Coinbase, Key, Multisig}.
type TransactionInput interface {
	Tag() InputTag
}

// CoinbaseInput is only valid in position 0 of a coinbase transaction;
// BlockIndex must equal the height of the block that contains it.
type CoinbaseInput struct {
	BlockIndex uint32
}

func (CoinbaseInput) Tag() InputTag { return InputCoinbase }

// KeyInput spends a ring of decoy+real outputs, identified by
// OutputIndexes (varint-delta-encoded absolute indexes in the
// wire form; callers work with absolute indexes here).
type KeyInput struct {
	Amount          uint64
	OutputIndexes   []uint64
	KeyImage        crypto.KeyImage
}

func (KeyInput) Tag() InputTag { return InputKey }

// MultisigInput spends a single multisig output requiring SignatureCount
// of the output's keys.
type MultisigInput struct {
	Amount         uint64
	SignatureCount uint32
	OutputIndex    uint64
}

func (MultisigInput) Tag() InputTag { return InputMultisig }

// OutputTargetTag identifies which variant a TransactionOutput's target
// holds.
type OutputTargetTag byte

const (
	TargetKey OutputTargetTag = iota
	TargetMultisig
)

// OutputTarget is a tagged union over {Key, Multisig}.
type OutputTarget interface {
	Tag() OutputTargetTag
}

// KeyOutputTarget pays a single one-time public key.
type KeyOutputTarget struct {
	Key crypto.PublicKey
}

func (KeyOutputTarget) Tag() OutputTargetTag { return TargetKey }

// MultisigOutputTarget pays a set of keys, Required of which must sign to
// spend it.
type MultisigOutputTarget struct {
	Keys     []crypto.PublicKey
	Required uint32
}

func (MultisigOutputTarget) Tag() OutputTargetTag { return TargetMultisig }

// TransactionOutput is a single payment; Amount must be nonzero and the
// target's key(s) must decode to valid curve points.
type TransactionOutput struct {
	Amount uint64
	Target OutputTarget
}

// TransactionPrefix is the part of a transaction the hash-of-prefix
// covers: everything except the ring signatures.
type TransactionPrefix struct {
	Version    uint8
	UnlockTime uint64
	Inputs     []TransactionInput
	Outputs    []TransactionOutput
	Extra      []byte
}

// Transaction composes a TransactionPrefix with its ring signatures, one
// slice of Signature per Key/Multisig input (coinbase inputs carry none).
type Transaction struct {
	Prefix     TransactionPrefix
	Signatures [][]crypto.Signature
}

// IsCoinbase reports whether tx is a block's base transaction: exactly one
// input, which must be a CoinbaseInput.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Prefix.Inputs) == 1 && tx.Prefix.Inputs[0].Tag() == InputCoinbase
}

// SumOutputs returns Σoutputs, the total amount paid out; the sum is not
// checked for overflow.
func (tx *Transaction) SumOutputs() uint64 {
	var sum uint64
	for _, o := range tx.Prefix.Outputs {
		sum += o.Amount
	}
	return sum
}

// SumInputs returns Σinputs for the transaction's Key/Multisig inputs
// (coinbase inputs carry no amount of their own; the reward is implicit).
func (tx *Transaction) SumInputs() uint64 {
	var sum uint64
	for _, in := range tx.Prefix.Inputs {
		switch v := in.(type) {
		case KeyInput:
			sum += v.Amount
		case MultisigInput:
			sum += v.Amount
		}
	}
	return sum
}

// KeyImages returns every key image referenced by tx's Key inputs, in
// input order.
func (tx *Transaction) KeyImages() []crypto.KeyImage {
	images := make([]crypto.KeyImage, 0, len(tx.Prefix.Inputs))
	for _, in := range tx.Prefix.Inputs {
		if k, ok := in.(KeyInput); ok {
			images = append(images, k.KeyImage)
		}
	}
	return images
}

// HasDuplicateKeyImages reports whether two inputs of tx share a key image;
// a well-formed transaction never does.
func (tx *Transaction) HasDuplicateKeyImages() bool {
	seen := make(map[crypto.KeyImage]struct{}, len(tx.Prefix.Inputs))
	for _, img := range tx.KeyImages() {
		if _, ok := seen[img]; ok {
			return true
		}
		seen[img] = struct{}{}
	}
	return false
}
