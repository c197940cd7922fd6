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
// keyImageSet is the pool's aggregate validator state: the union of every
// key image referenced by a pool transaction, grounded on
// TransactionValidationState.cpp/h. Backed by gopkg.in/fatih/set.v0.
package txpool

import (
	set "gopkg.in/fatih/set.v0"

	"github.com/qwertycoin-project/qwc-node/crypto"
)

type keyImageSet struct {
	s *set.Set
}

func newKeyImageSet() *keyImageSet {
	return &keyImageSet{s: set.New()}
}

func keyImageKey(h crypto.KeyImage) string { return string(h[:]) }

// intersects reports whether any of images is already present.
func (k *keyImageSet) intersects(images []crypto.KeyImage) bool {
	for _, img := range images {
		if k.s.Has(keyImageKey(img)) {
			return true
		}
	}
	return false
}

func (k *keyImageSet) add(images []crypto.KeyImage) {
	for _, img := range images {
		k.s.Add(keyImageKey(img))
	}
}

func (k *keyImageSet) remove(images []crypto.KeyImage) {
	for _, img := range images {
		k.s.Remove(keyImageKey(img))
	}
}

func (k *keyImageSet) size() int {
	return k.s.Size()
}
