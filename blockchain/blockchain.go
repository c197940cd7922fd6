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
// Package blockchain is the engine: it owns the single authoritative main
// chain, validates and persists blocks, tracks alternative chains, and
// reorganizes when a heavier one appears. It does not call into the P2P
// layer; cross-component calls are through the narrow PoolAdapter
// interface, which is called while the engine's own lock is held, and the
// event bus.
package blockchain

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/consensus"
	"github.com/qwertycoin-project/qwc-node/crypto"
	"github.com/qwertycoin-project/qwc-node/internal/eventbus"
	"github.com/qwertycoin-project/qwc-node/log"
	"github.com/qwertycoin-project/qwc-node/storage"
)

var logger = log.NewModuleLogger(log.Blockchain)

// AddResult is the outcome of addBlock.
type AddResult int

const (
	AddedToMain AddResult = iota
	AddedToAlt
	AlreadyExists
	Rejected
)

func (r AddResult) String() string {
	switch r {
	case AddedToMain:
		return "AddedToMain"
	case AddedToAlt:
		return "AddedToAlt"
	case AlreadyExists:
		return "AlreadyExists"
	default:
		return "Rejected"
	}
}

// PoolAdapter is the narrow slice of the transaction pool the engine needs:
// removing transactions that just confirmed on-chain, and restoring
// transactions from a popped block during a reorg.
type PoolAdapter interface {
	RemoveConfirmed(hashes []crypto.Hash)
	Restore(txs []*types.Transaction)
	Lookup(hash crypto.Hash) (*types.Transaction, bool)
}

// ChainTip describes the current head of the main chain.
type ChainTip struct {
	Hash                 crypto.Hash
	Height               uint64
	CumulativeDifficulty int64
}

// Blockchain is the engine. All exported methods are safe for concurrent
// use; a single RWMutex serializes writers against readers, matching the
// "single authoritative tip" ownership rule.
type Blockchain struct {
	mu sync.RWMutex

	store       storage.BlockStore
	pool        PoolAdapter
	checkpoints *consensus.Checkpoints
	bus         *eventbus.Bus
	median      *MedianSizeTracker

	difficultyVariant consensus.DifficultyVariant

	mainHashes     []crypto.Hash // index = height
	timestamps     []int64
	cumulativeDiff []int64

	alt *altTracker

	blockCache *lru.Cache // crypto.Hash -> *types.Block
}

// Config bundles the engine's dependencies.
type Config struct {
	Store             storage.BlockStore
	Pool              PoolAdapter
	Checkpoints       *consensus.Checkpoints
	DifficultyVariant consensus.DifficultyVariant
	MedianWindow      int
}

// New constructs a Blockchain from cfg and genesis, bootstrapping storage
// if it is empty.
func New(cfg Config, genesis *types.Block) (*Blockchain, error) {
	cache, err := lru.New(4096)
	if err != nil {
		return nil, err
	}
	bc := &Blockchain{
		store:             cfg.Store,
		pool:              cfg.Pool,
		checkpoints:       cfg.Checkpoints,
		bus:               eventbus.New(),
		median:            NewMedianSizeTracker(maxInt(cfg.MedianWindow, 1)),
		difficultyVariant: cfg.DifficultyVariant,
		alt:               newAltTracker(),
		blockCache:        cache,
	}

	count, err := bc.store.GetBlockCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		if genesis == nil {
			return nil, fmt.Errorf("blockchain: empty store requires a genesis block")
		}
		if err := bc.appendMain(genesis, nil); err != nil {
			return nil, err
		}
		return bc, nil
	}

	if err := bc.reloadFromStore(count); err != nil {
		return nil, err
	}
	return bc, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// reloadFromStore reconciles in-memory indexes from the persisted main
// chain after a restart, per §4.2's storage crash-recovery guarantee:
// alt-chain state is never persisted and starts empty.
func (bc *Blockchain) reloadFromStore(count uint64) error {
	bc.mainHashes = make([]crypto.Hash, 0, count)
	bc.timestamps = make([]int64, 0, count)
	bc.cumulativeDiff = make([]int64, 0, count)

	var cumulative int64
	for h := uint64(0); h < count; h++ {
		data, ok, err := bc.store.GetBlockByIndex(h)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("blockchain: missing block at height %d during reload", h)
		}
		block, err := types.DecodeBlock(data)
		if err != nil {
			return err
		}
		id := block.ID()
		bc.mainHashes = append(bc.mainHashes, id)
		bc.timestamps = append(bc.timestamps, int64(block.Header.Timestamp))
		diff, ok := blockDifficultyFromHeader(block)
		if !ok {
			diff, _ = bc.blockDifficulty(block)
		}
		cumulative += diff
		bc.cumulativeDiff = append(bc.cumulativeDiff, cumulative)
		bc.median.Push(uint64(len(data)))
	}
	return nil
}

// blockDifficultyFromHeader always reports false: difficulty is not itself
// stored on the block (it is derived from the retarget history), so
// reloadFromStore recomputes each block's difficulty from the history
// rebuilt so far instead of trusting header content.
func blockDifficultyFromHeader(*types.Block) (int64, bool) {
	return 0, false
}

// GetTopBlock returns the current main-chain tip.
func (bc *Blockchain) GetTopBlock() (ChainTip, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tipLocked()
}

func (bc *Blockchain) tipLocked() (ChainTip, error) {
	if len(bc.mainHashes) == 0 {
		return ChainTip{}, fmt.Errorf("blockchain: no blocks")
	}
	last := len(bc.mainHashes) - 1
	return ChainTip{
		Hash:                 bc.mainHashes[last],
		Height:               uint64(last),
		CumulativeDifficulty: bc.cumulativeDiff[last],
	}, nil
}

// GetBlockByHeight returns the main-chain block at height.
func (bc *Blockchain) GetBlockByHeight(height uint64) (*types.Block, bool, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	data, ok, err := bc.store.GetBlockByIndex(height)
	if err != nil || !ok {
		return nil, ok, err
	}
	b, err := types.DecodeBlock(data)
	return b, true, err
}

// GetBlockByHash looks a block up by id, checking the main chain, then any
// tracked alternative chain.
func (bc *Blockchain) GetBlockByHash(hash crypto.Hash) (*types.Block, bool, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if cached, ok := bc.blockCache.Get(hash); ok {
		return cached.(*types.Block), true, nil
	}
	data, ok, err := bc.store.GetBlockByHash(hash)
	if err != nil {
		return nil, false, err
	}
	if ok {
		b, err := types.DecodeBlock(data)
		if err != nil {
			return nil, false, err
		}
		bc.blockCache.Add(hash, b)
		return b, true, nil
	}
	if b, ok := bc.alt.blockByHash(hash); ok {
		return b, true, nil
	}
	return nil, false, nil
}

// BuildSparseChain returns hashes skipping by powers of two backward from
// the current tip, ending with genesis, for the "do you know these" probe
// of a chain request.
func (bc *Blockchain) BuildSparseChain() []crypto.Hash {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	var out []crypto.Hash
	if len(bc.mainHashes) == 0 {
		return out
	}
	top := len(bc.mainHashes) - 1
	step := 1
	for i := top; i >= 0; i -= step {
		out = append(out, bc.mainHashes[i])
		step *= 2
	}
	if out[len(out)-1] != bc.mainHashes[0] {
		out = append(out, bc.mainHashes[0])
	}
	return out
}

// FindSupplement returns the height of the most recent hash in theirHashes
// (ordered tip-first, as BuildSparseChain emits) that we also have on our
// main chain.
func (bc *Blockchain) FindSupplement(theirHashes []crypto.Hash) (uint64, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	index := make(map[crypto.Hash]int, len(bc.mainHashes))
	for i, h := range bc.mainHashes {
		index[h] = i
	}
	for _, h := range theirHashes {
		if height, ok := index[h]; ok {
			return uint64(height), true
		}
	}
	return 0, false
}

// Subscribe registers for BlockAdded/ChainReorg events.
func (bc *Blockchain) Subscribe(buffer int) *eventbus.Subscription {
	return bc.bus.Subscribe(buffer)
}
