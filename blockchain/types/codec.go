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
// A self-describing binary codec: fixed-width fields (hashes, keys) are
// written verbatim, variable arrays carry a varint length prefix, and
// variants carry a one-byte tag. Adapted from
// Serialization/CryptoNoteSerialization.h / SerializationTools.h, using
// io.Writer/io.Reader the way the teacher's own ser/rlp package is used
// (blockchain/types reached for it throughout), rather than a from-scratch
// reflection-based encoder.
package types

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/qwertycoin-project/qwc-node/crypto"
)

var ErrMalformed = errors.New("types: malformed encoding")

type Writer struct{ buf bytes.Buffer }

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteVarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

func (w *Writer) WriteByte(b byte) { w.buf.WriteByte(b) }

func (w *Writer) WriteFixed(b []byte) { w.buf.Write(b) }

func (w *Writer) WriteBytes(b []byte) {
	w.WriteVarint(uint64(len(b)))
	w.buf.Write(b)
}

type Reader struct {
	r   *bytes.Reader
	err error
}

func NewReader(b []byte) *Reader { return &Reader{r: bytes.NewReader(b)} }

func (r *Reader) Err() error { return r.err }

func (r *Reader) fail() {
	if r.err == nil {
		r.err = ErrMalformed
	}
}

func (r *Reader) ReadVarint() uint64 {
	v, err := binary.ReadUvarint(r.r)
	if err != nil {
		r.fail()
		return 0
	}
	return v
}

func (r *Reader) ReadByte() byte {
	b, err := r.r.ReadByte()
	if err != nil {
		r.fail()
		return 0
	}
	return b
}

func (r *Reader) ReadFixed(n int) []byte {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.fail()
		return nil
	}
	return buf
}

func (r *Reader) ReadBytes() []byte {
	n := r.ReadVarint()
	if r.err != nil || n > uint64(r.r.Len()) {
		r.fail()
		return nil
	}
	if n == 0 {
		return nil
	}
	return r.ReadFixed(int(n))
}

func (r *Reader) Remaining() int { return r.r.Len() }

// EncodePrefix writes the canonical binary form of p (the bytes whose hash
// is PrefixHash in block.go).
func EncodePrefix(w *Writer, p *TransactionPrefix) {
	w.WriteVarint(uint64(p.Version))
	w.WriteVarint(p.UnlockTime)
	w.WriteVarint(uint64(len(p.Inputs)))
	for _, in := range p.Inputs {
		encodeInput(w, in)
	}
	w.WriteVarint(uint64(len(p.Outputs)))
	for _, out := range p.Outputs {
		encodeOutput(w, out)
	}
	w.WriteBytes(p.Extra)
}

func encodeInput(w *Writer, in TransactionInput) {
	w.WriteByte(byte(in.Tag()))
	switch v := in.(type) {
	case CoinbaseInput:
		w.WriteVarint(uint64(v.BlockIndex))
	case KeyInput:
		w.WriteVarint(v.Amount)
		w.WriteVarint(uint64(len(v.OutputIndexes)))
		prev := uint64(0)
		for _, idx := range v.OutputIndexes {
			w.WriteVarint(idx - prev) // relative offsets, as the wire format uses
			prev = idx
		}
		w.WriteFixed(v.KeyImage[:])
	case MultisigInput:
		w.WriteVarint(v.Amount)
		w.WriteVarint(uint64(v.SignatureCount))
		w.WriteVarint(v.OutputIndex)
	}
}

func decodeInput(r *Reader) TransactionInput {
	tag := InputTag(r.ReadByte())
	switch tag {
	case InputCoinbase:
		return CoinbaseInput{BlockIndex: uint32(r.ReadVarint())}
	case InputKey:
		amount := r.ReadVarint()
		count := r.ReadVarint()
		offsets := make([]uint64, count)
		running := uint64(0)
		for i := range offsets {
			running += r.ReadVarint()
			offsets[i] = running
		}
		var image crypto.KeyImage
		copy(image[:], r.ReadFixed(32))
		return KeyInput{Amount: amount, OutputIndexes: offsets, KeyImage: image}
	case InputMultisig:
		return MultisigInput{Amount: r.ReadVarint(), SignatureCount: uint32(r.ReadVarint()), OutputIndex: r.ReadVarint()}
	default:
		r.fail()
		return nil
	}
}

func encodeOutput(w *Writer, out TransactionOutput) {
	w.WriteVarint(out.Amount)
	w.WriteByte(byte(out.Target.Tag()))
	switch v := out.Target.(type) {
	case KeyOutputTarget:
		w.WriteFixed(v.Key[:])
	case MultisigOutputTarget:
		w.WriteVarint(uint64(len(v.Keys)))
		for _, k := range v.Keys {
			w.WriteFixed(k[:])
		}
		w.WriteVarint(uint64(v.Required))
	}
}

func decodeOutput(r *Reader) TransactionOutput {
	amount := r.ReadVarint()
	tag := OutputTargetTag(r.ReadByte())
	switch tag {
	case TargetKey:
		var k crypto.PublicKey
		copy(k[:], r.ReadFixed(32))
		return TransactionOutput{Amount: amount, Target: KeyOutputTarget{Key: k}}
	case TargetMultisig:
		n := r.ReadVarint()
		keys := make([]crypto.PublicKey, n)
		for i := range keys {
			copy(keys[i][:], r.ReadFixed(32))
		}
		required := uint32(r.ReadVarint())
		return TransactionOutput{Amount: amount, Target: MultisigOutputTarget{Keys: keys, Required: required}}
	default:
		r.fail()
		return TransactionOutput{}
	}
}

// DecodePrefix is EncodePrefix's inverse.
func DecodePrefix(r *Reader) TransactionPrefix {
	var p TransactionPrefix
	p.Version = uint8(r.ReadVarint())
	p.UnlockTime = r.ReadVarint()
	n := r.ReadVarint()
	p.Inputs = make([]TransactionInput, n)
	for i := range p.Inputs {
		p.Inputs[i] = decodeInput(r)
	}
	n = r.ReadVarint()
	p.Outputs = make([]TransactionOutput, n)
	for i := range p.Outputs {
		p.Outputs[i] = decodeOutput(r)
	}
	p.Extra = r.ReadBytes()
	return p
}

// EncodeTransaction writes prefix + ring signatures.
func EncodeTransaction(tx *Transaction) []byte {
	w := NewWriter()
	EncodePrefix(w, &tx.Prefix)
	w.WriteVarint(uint64(len(tx.Signatures)))
	for _, ringSigs := range tx.Signatures {
		w.WriteVarint(uint64(len(ringSigs)))
		for _, sig := range ringSigs {
			w.WriteFixed(sig.C[:])
			w.WriteFixed(sig.R[:])
		}
	}
	return w.Bytes()
}

// DecodeTransaction is EncodeTransaction's inverse.
func DecodeTransaction(data []byte) (*Transaction, error) {
	r := NewReader(data)
	prefix := DecodePrefix(r)
	tx := &Transaction{Prefix: prefix}
	n := r.ReadVarint()
	tx.Signatures = make([][]crypto.Signature, n)
	for i := range tx.Signatures {
		m := r.ReadVarint()
		sigs := make([]crypto.Signature, m)
		for j := range sigs {
			copy(sigs[j].C[:], r.ReadFixed(32))
			copy(sigs[j].R[:], r.ReadFixed(32))
		}
		tx.Signatures[i] = sigs
	}
	if r.Err() != nil {
		return nil, r.Err()
	}
	return tx, nil
}

// EncodePrefixBytes returns the canonical prefix encoding used for hashing.
func EncodePrefixBytes(p *TransactionPrefix) []byte {
	w := NewWriter()
	EncodePrefix(w, p)
	return w.Bytes()
}
