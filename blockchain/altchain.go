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
// AddBlock, popTopBlock and the alt-chain/reorg machinery. Alternative
// chains are never persisted (§4.2's storage contract only covers the main
// chain); they live entirely in altTracker and are rebuilt from nothing
// after a restart.
package blockchain

import (
	"go.uber.org/multierr"

	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/crypto"
)

// altChain is one alternative branch: an ordered list of blocks plus the
// main-chain height it split from.
type altChain struct {
	splitHeight uint64
	blocks      []*types.Block
	cumulative  []int64 // cumulative difficulty as of each block in this chain
}

func (a *altChain) tipDifficulty() int64 {
	if len(a.cumulative) == 0 {
		return 0
	}
	return a.cumulative[len(a.cumulative)-1]
}

type altTracker struct {
	chains map[crypto.Hash]*altChain // keyed by tip hash
	byHash map[crypto.Hash]*types.Block
}

func newAltTracker() *altTracker {
	return &altTracker{chains: make(map[crypto.Hash]*altChain), byHash: make(map[crypto.Hash]*types.Block)}
}

func (t *altTracker) blockByHash(hash crypto.Hash) (*types.Block, bool) {
	b, ok := t.byHash[hash]
	return b, ok
}

// extend finds an existing alt chain whose tip is parentHash, or starts a
// new single-block chain rooted at splitHeight if parentHash is a
// main-chain hash. Returns nil if parentHash is unknown entirely.
func (t *altTracker) extend(parentHash crypto.Hash, mainHashes []crypto.Hash, mainCumulative []int64, block *types.Block, blockDifficulty int64) *altChain {
	if existing, ok := t.chains[parentHash]; ok {
		delete(t.chains, parentHash)
		next := &altChain{
			splitHeight: existing.splitHeight,
			blocks:      append(append([]*types.Block{}, existing.blocks...), block),
			cumulative:  append(append([]int64{}, existing.cumulative...), existing.tipDifficulty()+blockDifficulty),
		}
		id := block.ID()
		t.chains[id] = next
		t.byHash[id] = block
		return next
	}

	for height, h := range mainHashes {
		if h == parentHash {
			next := &altChain{
				splitHeight: uint64(height) + 1,
				blocks:      []*types.Block{block},
				cumulative:  []int64{mainCumulative[height] + blockDifficulty},
			}
			id := block.ID()
			t.chains[id] = next
			t.byHash[id] = block
			return next
		}
	}
	return nil
}

func (t *altTracker) drop(tipHash crypto.Hash) {
	if chain, ok := t.chains[tipHash]; ok {
		for _, b := range chain.blocks {
			delete(t.byHash, b.ID())
		}
		delete(t.chains, tipHash)
	}
}

// AddBlock validates and appends rawBlock, following §4.2's addBlock
// contract.
func (bc *Blockchain) AddBlock(block *types.Block) (AddResult, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	id := block.ID()
	if _, ok := bc.blockCache.Get(id); ok {
		return AlreadyExists, nil
	}
	if _, ok, _ := bc.store.GetBlockByHash(id); ok {
		return AlreadyExists, nil
	}
	if _, ok := bc.alt.byHash[id]; ok {
		return AlreadyExists, nil
	}

	tip, tipErr := bc.tipLocked()
	isGenesis := tipErr != nil

	if !isGenesis && block.Header.PreviousBlockHash == tip.Hash {
		if err := bc.validateLocked(block, uint64(len(bc.mainHashes))); err != nil {
			return Rejected, err
		}
		if err := bc.appendMain(block, nil); err != nil {
			return Rejected, err
		}
		return AddedToMain, nil
	}

	// Not extending main: either genesis, or an alt-chain candidate.
	if isGenesis {
		if err := bc.appendMain(block, nil); err != nil {
			return Rejected, err
		}
		return AddedToMain, nil
	}

	diffVariant, err := bc.blockDifficulty(block)
	if err != nil {
		return Rejected, err
	}
	chain := bc.alt.extend(block.Header.PreviousBlockHash, bc.mainHashes, bc.cumulativeDiff, block, diffVariant)
	if chain == nil {
		return Rejected, errUnknownParent
	}
	bc.alt.byHash[id] = block

	if chain.tipDifficulty() > tip.CumulativeDifficulty {
		if err := bc.reorganize(chain); err != nil {
			return Rejected, err
		}
		return AddedToMain, nil
	}
	if bc.bus != nil {
		bc.bus.Publish(BlockAdded{Hash: id, Height: chain.splitHeight + uint64(len(chain.blocks)) - 1, Main: false})
	}
	return AddedToAlt, nil
}

var errUnknownParent = fmtErrorf("blockchain: block's parent is unknown")

func fmtErrorf(msg string) error { return simpleError(msg) }

type simpleError string

func (e simpleError) Error() string { return string(e) }

// appendMain commits block to the main chain (storage + in-memory
// indexes), removing any of its non-coinbase transactions from the pool.
func (bc *Blockchain) appendMain(block *types.Block, txs []*types.Transaction) error {
	data := types.EncodeBlockForStorage(block)
	id := block.ID()
	if err := bc.store.PushBlock(id, data); err != nil {
		return err
	}
	bc.mainHashes = append(bc.mainHashes, id)
	bc.timestamps = append(bc.timestamps, int64(block.Header.Timestamp))
	diff, _ := bc.blockDifficulty(block)
	prevCumulative := int64(0)
	if n := len(bc.cumulativeDiff); n > 0 {
		prevCumulative = bc.cumulativeDiff[n-1]
	}
	bc.cumulativeDiff = append(bc.cumulativeDiff, prevCumulative+diff)
	bc.median.Push(uint64(len(data)))
	bc.blockCache.Add(id, block)

	if bc.pool != nil {
		bc.pool.RemoveConfirmed(block.TransactionHashes)
	}
	if bc.bus != nil {
		bc.bus.Publish(BlockAdded{Hash: id, Height: uint64(len(bc.mainHashes) - 1), Main: true})
	}
	return nil
}

// PopTopBlock removes the current tip, restoring its transactions to the
// pool.
func (bc *Blockchain) PopTopBlock() (*types.Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.popTopLocked()
}

func (bc *Blockchain) popTopLocked() (*types.Block, error) {
	data, err := bc.store.PopBlock()
	if err != nil {
		return nil, err
	}
	block, err := types.DecodeBlock(data)
	if err != nil {
		return nil, err
	}
	n := len(bc.mainHashes) - 1
	bc.mainHashes = bc.mainHashes[:n]
	bc.timestamps = bc.timestamps[:n]
	bc.cumulativeDiff = bc.cumulativeDiff[:n]

	if bc.pool != nil {
		var restored []*types.Transaction
		for _, h := range block.TransactionHashes {
			if tx, ok := bc.pool.Lookup(h); ok {
				restored = append(restored, tx)
			}
		}
		bc.pool.Restore(restored)
	}
	return block, nil
}

// reorganize implements §4.2's reorg: pop back to the split height, apply
// the alt chain's blocks in order, and if any fails, restore the original
// main chain in full.
func (bc *Blockchain) reorganize(chain *altChain) error {
	splitHeight := chain.splitHeight
	var popped []crypto.Hash
	var poppedBlocks []*types.Block

	for uint64(len(bc.mainHashes)) > splitHeight {
		b, err := bc.popTopLocked()
		if err != nil {
			return bc.restoreAfterFailedReorg(poppedBlocks, 0, err)
		}
		popped = append(popped, b.ID())
		poppedBlocks = append(poppedBlocks, b)
	}

	var newMainHashes []crypto.Hash
	for _, b := range chain.blocks {
		if err := bc.validateLocked(b, uint64(len(bc.mainHashes))); err != nil {
			return bc.restoreAfterFailedReorg(poppedBlocks, len(newMainHashes), err)
		}
		if err := bc.appendMain(b, nil); err != nil {
			return bc.restoreAfterFailedReorg(poppedBlocks, len(newMainHashes), err)
		}
		newMainHashes = append(newMainHashes, b.ID())
	}

	tipID := chain.blocks[len(chain.blocks)-1].ID()
	bc.alt.drop(tipID)

	if bc.bus != nil {
		bc.bus.Publish(ChainReorg{SplitHeight: splitHeight, PoppedHashes: popped, NewMainHashes: newMainHashes})
	}
	return nil
}

// restoreAfterFailedReorg pops the applied alt-chain blocks that were
// already appended, then re-applies the blocks popped while attempting a
// reorg that ultimately failed, restoring the prior main chain in full
// (§4.2 reorg step (d)), and reports the original failure to the caller.
func (bc *Blockchain) restoreAfterFailedReorg(popped []*types.Block, applied int, cause error) error {
	var restoreErr error
	for i := 0; i < applied; i++ {
		if _, err := bc.popTopLocked(); err != nil {
			restoreErr = multierr.Append(restoreErr, err)
			break
		}
	}
	for i := len(popped) - 1; i >= 0; i-- {
		if err := bc.appendMain(popped[i], nil); err != nil {
			// the chain is left in whatever state it's in; this should
			// never happen since these blocks were valid moments ago.
			// Keep trying the rest of the stack rather than abandoning
			// the restore at the first failure, and report every block
			// that failed to re-append.
			restoreErr = multierr.Append(restoreErr, err)
		}
	}
	return multierr.Combine(errReorgFailed, cause, restoreErr)
}

var errReorgFailed = simpleError("blockchain: alternative chain failed validation, main chain restored")
