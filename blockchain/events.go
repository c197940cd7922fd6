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

package blockchain

import "github.com/qwertycoin-project/qwc-node/crypto"

// BlockAdded is published whenever addBlock succeeds, whether the block
// landed on the main chain or an alternative one.
type BlockAdded struct {
	Hash   crypto.Hash
	Height uint64
	Main   bool
}

// ChainReorg is published after a successful reorganization: the main
// chain now runs through NewMainHashes from SplitHeight onward, and
// PoppedHashes (in pop order) are no longer on the main chain.
type ChainReorg struct {
	SplitHeight   uint64
	PoppedHashes  []crypto.Hash
	NewMainHashes []crypto.Hash
}
