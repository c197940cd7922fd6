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
// Package storage defines the abstract append-only block store the
// blockchain engine is built against, following §4.2/§4.5: two concrete
// backends (storage/mmapstore, storage/sqlstore) satisfy BlockStore, and
// the engine itself never imports either directly.
package storage

import "github.com/qwertycoin-project/qwc-node/crypto"

// BlockStore is the durable record of the main chain: a flat, append-only
// sequence of encoded blocks indexed by height, plus a hash index. Both
// concrete backends guarantee that after a crash, GetBlockCount reflects
// only fully committed blocks.
type BlockStore interface {
	// PushBlock appends a new block at the current height. data is the
	// block's full storage-form encoding (blockchain/types.EncodeBlockForStorage).
	PushBlock(hash crypto.Hash, data []byte) error

	// PopBlock removes the block at the current top height, returning its
	// stored bytes.
	PopBlock() ([]byte, error)

	// GetBlockByIndex returns the stored bytes of the block at height, or
	// ok=false if height is out of range.
	GetBlockByIndex(height uint64) (data []byte, ok bool, err error)

	// GetBlockByHash looks up a block by its id via the hash index.
	GetBlockByHash(hash crypto.Hash) (data []byte, ok bool, err error)

	// GetBlockCount returns the number of committed blocks (genesis counts
	// as height 0, so this is the height of the tip plus one).
	GetBlockCount() (uint64, error)

	// Clear removes all stored blocks, returning the store to its initial
	// empty state.
	Clear() error

	// Close releases any underlying file handles or connections.
	Close() error
}
