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
// BlockHeader/Block are adapted from CryptoNoteBasic.h and
// CachedBlock.h/.cpp: Block itself memoizes its two expensive derived
// values (the block's id and its merkle root) with sync.Once on first use,
// per Design Note "cached lazy fields", rather
// than recomputing them on every access or baking them into the struct at
// construction time.
package types

import (
	"sync"

	"github.com/qwertycoin-project/qwc-node/crypto"
)

// ParentBlock carries the merge-mining auxiliary header that major versions
// 2 and 3 embed: a foreign (or self-referential) parent block header whose
// own merkle branch commits to this block's hash, per CryptoNoteBasic.h's
// parent_block.
type ParentBlock struct {
	MajorVersion   uint8
	MinorVersion   uint8
	Timestamp      uint64
	PreviousHash   crypto.Hash
	Nonce          uint32
	// MerkleBranch authenticates this block's hash into the parent's
	// transaction tree; TransactionCount is the parent's leaf count, needed
	// to reproduce MerkleRoot's power-of-two folding.
	MerkleBranch     []crypto.Hash
	TransactionCount uint16
	BaseTransaction  Transaction
}

// BlockHeader is everything about a block except its transactions.
type BlockHeader struct {
	MajorVersion     uint8
	MinorVersion     uint8
	Timestamp        uint64
	PreviousBlockHash crypto.Hash
	Nonce            uint32

	// Parent is present only when MajorVersion names a merge-mining
	// capable hashing algorithm (consensus/params.go); nil otherwise.
	Parent *ParentBlock
}

// Block is a header plus the coinbase transaction and the hashes of the
// transactions it includes; full transaction bodies live in the pool or
// storage and are looked up by hash.
type Block struct {
	Header           BlockHeader
	BaseTransaction  Transaction
	TransactionHashes []crypto.Hash

	once       sync.Once
	cachedID   crypto.Hash
	cachedRoot crypto.Hash
}

// leafHashes returns [coinbaseHash, ...txHashes], the merkle leaves.
func (b *Block) leafHashes() []crypto.Hash {
	leaves := make([]crypto.Hash, 0, 1+len(b.TransactionHashes))
	leaves = append(leaves, FastHashTransaction(&b.BaseTransaction))
	leaves = append(leaves, b.TransactionHashes...)
	return leaves
}

// MerkleRoot returns the merkle root over the block's transactions,
// computed once and cached.
func (b *Block) MerkleRoot() crypto.Hash {
	b.compute()
	return b.cachedRoot
}

// ID returns the block's hash: FastHash of the header-for-hashing encoding
// with the merkle root and transaction count appended, following
// CachedBlock.cpp's getBlockHash. Computed once and cached.
func (b *Block) ID() crypto.Hash {
	b.compute()
	return b.cachedID
}

func (b *Block) compute() {
	b.once.Do(func() {
		b.cachedRoot = MerkleRoot(b.leafHashes())
		b.cachedID = crypto.FastHashConcat(
			EncodeHeaderForHashing(&b.Header),
			b.cachedRoot[:],
			encodeTxCount(len(b.TransactionHashes)+1),
		)
	})
}

// FastHashTransaction hashes tx's wire encoding (prefix + signatures) —
// this is the transaction id used as a merkle leaf and in wire responses.
func FastHashTransaction(tx *Transaction) crypto.Hash {
	return crypto.FastHash(EncodeTransaction(tx))
}

// PrefixHash hashes only the prefix — the value ring signatures sign over.
func PrefixHash(p *TransactionPrefix) crypto.Hash {
	return crypto.FastHash(EncodePrefixBytes(p))
}

func encodeTxCount(n int) []byte {
	w := NewWriter()
	w.WriteVarint(uint64(n))
	return w.Bytes()
}

// EncodeHeaderForHashing returns the header's hashing-form encoding: the
// parent-block section, when present, is encoded in its reduced
// merge-mining form (CachedBlock.cpp's getBlockHashingBinaryArray), never
// the full storage form that decodeHeaderForStorage/encodeHeaderForStorage
// use.
func EncodeHeaderForHashing(h *BlockHeader) []byte {
	w := NewWriter()
	w.WriteVarint(uint64(h.MajorVersion))
	w.WriteVarint(uint64(h.MinorVersion))
	w.WriteVarint(h.Timestamp)
	w.WriteFixed(h.PreviousBlockHash[:])
	if h.Parent != nil {
		// merge-mining hashing form commits to the parent's own hashable
		// fields plus its merkle branch, not the parent's full storage
		// encoding (which would include its base transaction verbatim).
		w.WriteVarint(uint64(h.Parent.MajorVersion))
		w.WriteVarint(uint64(h.Parent.MinorVersion))
		w.WriteVarint(h.Parent.Timestamp)
		w.WriteFixed(h.Parent.PreviousHash[:])
		var nonceBuf [4]byte
		nonceBuf[0] = byte(h.Parent.Nonce)
		nonceBuf[1] = byte(h.Parent.Nonce >> 8)
		nonceBuf[2] = byte(h.Parent.Nonce >> 16)
		nonceBuf[3] = byte(h.Parent.Nonce >> 24)
		w.WriteFixed(nonceBuf[:])
		w.WriteVarint(uint64(len(h.Parent.MerkleBranch)))
		for _, branch := range h.Parent.MerkleBranch {
			w.WriteFixed(branch[:])
		}
	} else {
		var nonceBuf [4]byte
		nonceBuf[0] = byte(h.Nonce)
		nonceBuf[1] = byte(h.Nonce >> 8)
		nonceBuf[2] = byte(h.Nonce >> 16)
		nonceBuf[3] = byte(h.Nonce >> 24)
		w.WriteFixed(nonceBuf[:])
	}
	return w.Bytes()
}

// EncodeBlockForStorage is the full on-disk/wire form: header (storage
// form, parent block included verbatim with its base transaction) plus the
// coinbase transaction and transaction hash list.
func EncodeBlockForStorage(b *Block) []byte {
	w := NewWriter()
	encodeHeaderForStorage(w, &b.Header)
	EncodePrefix(w, &b.BaseTransaction.Prefix) // coinbase carries no ring signatures
	w.WriteVarint(uint64(len(b.TransactionHashes)))
	for _, h := range b.TransactionHashes {
		w.WriteFixed(h[:])
	}
	return w.Bytes()
}

func encodeHeaderForStorage(w *Writer, h *BlockHeader) {
	w.WriteVarint(uint64(h.MajorVersion))
	w.WriteVarint(uint64(h.MinorVersion))
	w.WriteVarint(h.Timestamp)
	w.WriteFixed(h.PreviousBlockHash[:])
	var nonceBuf [4]byte
	nonceBuf[0] = byte(h.Nonce)
	nonceBuf[1] = byte(h.Nonce >> 8)
	nonceBuf[2] = byte(h.Nonce >> 16)
	nonceBuf[3] = byte(h.Nonce >> 24)
	w.WriteFixed(nonceBuf[:])
	hasParent := h.Parent != nil
	if hasParent {
		w.WriteByte(1)
		p := h.Parent
		w.WriteVarint(uint64(p.MajorVersion))
		w.WriteVarint(uint64(p.MinorVersion))
		w.WriteVarint(p.Timestamp)
		w.WriteFixed(p.PreviousHash[:])
		var pn [4]byte
		pn[0] = byte(p.Nonce)
		pn[1] = byte(p.Nonce >> 8)
		pn[2] = byte(p.Nonce >> 16)
		pn[3] = byte(p.Nonce >> 24)
		w.WriteFixed(pn[:])
		EncodePrefix(w, &p.BaseTransaction.Prefix)
		w.WriteVarint(uint64(len(p.MerkleBranch)))
		for _, branch := range p.MerkleBranch {
			w.WriteFixed(branch[:])
		}
		w.WriteVarint(uint64(p.TransactionCount))
	} else {
		w.WriteByte(0)
	}
}

// DecodeBlock is EncodeBlockForStorage's inverse.
func DecodeBlock(data []byte) (*Block, error) {
	r := NewReader(data)
	header := decodeHeaderForStorage(r)
	prefix := DecodePrefix(r)
	block := &Block{
		Header:          header,
		BaseTransaction: Transaction{Prefix: prefix},
	}
	n := r.ReadVarint()
	block.TransactionHashes = make([]crypto.Hash, n)
	for i := range block.TransactionHashes {
		copy(block.TransactionHashes[i][:], r.ReadFixed(32))
	}
	if r.Err() != nil {
		return nil, r.Err()
	}
	return block, nil
}

func decodeHeaderForStorage(r *Reader) BlockHeader {
	var h BlockHeader
	h.MajorVersion = uint8(r.ReadVarint())
	h.MinorVersion = uint8(r.ReadVarint())
	h.Timestamp = r.ReadVarint()
	copy(h.PreviousBlockHash[:], r.ReadFixed(32))
	nonceBytes := r.ReadFixed(4)
	if len(nonceBytes) == 4 {
		h.Nonce = uint32(nonceBytes[0]) | uint32(nonceBytes[1])<<8 | uint32(nonceBytes[2])<<16 | uint32(nonceBytes[3])<<24
	}
	if r.ReadByte() == 1 {
		p := &ParentBlock{}
		p.MajorVersion = uint8(r.ReadVarint())
		p.MinorVersion = uint8(r.ReadVarint())
		p.Timestamp = r.ReadVarint()
		copy(p.PreviousHash[:], r.ReadFixed(32))
		pn := r.ReadFixed(4)
		if len(pn) == 4 {
			p.Nonce = uint32(pn[0]) | uint32(pn[1])<<8 | uint32(pn[2])<<16 | uint32(pn[3])<<24
		}
		p.BaseTransaction = Transaction{Prefix: DecodePrefix(r)}
		branchLen := r.ReadVarint()
		p.MerkleBranch = make([]crypto.Hash, branchLen)
		for i := range p.MerkleBranch {
			copy(p.MerkleBranch[i][:], r.ReadFixed(32))
		}
		p.TransactionCount = uint16(r.ReadVarint())
		h.Parent = p
	}
	return h
}
