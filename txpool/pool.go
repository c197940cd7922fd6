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
// Package txpool holds unconfirmed transactions: admission, deduplication,
// double-spend prevention via an aggregate key-image set, eviction, and
// block-template assembly, grounded on §4.3 and TransactionPoolCleaner.cpp/h.
// The pool exclusively owns its transactions and their aggregate validator
// state; the blockchain engine only ever reaches it through the narrow
// blockchain.PoolAdapter/TemplateSource interfaces.
package txpool

import (
	"sync"
	"time"

	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/consensus"
	"github.com/qwertycoin-project/qwc-node/crypto"
	"github.com/qwertycoin-project/qwc-node/log"
)

var logger = log.NewModuleLogger(log.TxPool)

// PushResult is the outcome of Push.
type PushResult int

const (
	Admitted PushResult = iota
	AlreadyInPool
	RecentlyDeleted
	KeyImageAlreadySpent
	Invalid
)

func (r PushResult) String() string {
	switch r {
	case Admitted:
		return "Admitted"
	case AlreadyInPool:
		return "AlreadyInPool"
	case RecentlyDeleted:
		return "RecentlyDeleted"
	case KeyImageAlreadySpent:
		return "KeyImageAlreadySpent"
	default:
		return "Invalid"
	}
}

// DefaultTimeout is how long an admitted transaction may sit in the pool
// before Clean evicts it for age, per CryptoNote's
// CRYPTONOTE_MEMPOOL_TX_LIVETIME default (12 hours).
const DefaultTimeout = 12 * time.Hour

// DefaultRecentlyDeletedWindow is how long an evicted transaction's hash is
// remembered to block re-admission (gossip-loop defense), per
// CRYPTONOTE_MEMPOOL_TX_FROM_ALT_BLOCK_LIVETIME-style deletion spam guard.
const DefaultRecentlyDeletedWindow = 1 * time.Hour

// Validator is supplied by the caller (typically the blockchain engine) to
// check a transaction independently of pool state: ring signatures verify,
// inputs/outputs are well-formed, fee is sufficient.
type Validator func(tx *types.Transaction) error

type poolEntry struct {
	tx        *types.Transaction
	hash      crypto.Hash
	firstSeen time.Time
}

// Pool is the unconfirmed-transaction pool. Safe for concurrent use.
type Pool struct {
	mu sync.Mutex

	entries   map[crypto.Hash]*poolEntry
	keyImages *keyImageSet

	recentlyDeleted map[crypto.Hash]time.Time
	deletedWindow   time.Duration
	timeout         time.Duration

	now func() time.Time
}

// New constructs an empty Pool. now, if nil, defaults to time.Now; tests
// inject a fake clock to exercise TTL eviction deterministically.
func New(timeout, deletedWindow time.Duration, now func() time.Time) *Pool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if deletedWindow <= 0 {
		deletedWindow = DefaultRecentlyDeletedWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Pool{
		entries:         make(map[crypto.Hash]*poolEntry),
		keyImages:       newKeyImageSet(),
		recentlyDeleted: make(map[crypto.Hash]time.Time),
		deletedWindow:   deletedWindow,
		timeout:         timeout,
		now:             now,
	}
}

// Push admits tx iff it is not recently deleted, passes validate, and none
// of its key images already appear in the pool's aggregate set.
func (p *Pool) Push(tx *types.Transaction, validate Validator) (PushResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := types.FastHashTransaction(tx)

	if deletedAt, ok := p.recentlyDeleted[hash]; ok {
		if p.now().Sub(deletedAt) < p.deletedWindow {
			return RecentlyDeleted, nil
		}
		delete(p.recentlyDeleted, hash)
	}
	if _, ok := p.entries[hash]; ok {
		return AlreadyInPool, nil
	}

	images := tx.KeyImages()
	if p.keyImages.intersects(images) {
		return KeyImageAlreadySpent, nil
	}

	if validate != nil {
		if err := validate(tx); err != nil {
			return Invalid, err
		}
	}

	p.entries[hash] = &poolEntry{tx: tx, hash: hash, firstSeen: p.now()}
	p.keyImages.add(images)
	logger.Debug("admitted transaction", "hash", hash, "poolSize", len(p.entries))
	return Admitted, nil
}

// Remove evicts hash, subtracting its key images from the aggregate set and
// recording it in the recently-deleted window.
func (p *Pool) Remove(hash crypto.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash crypto.Hash) bool {
	entry, ok := p.entries[hash]
	if !ok {
		return false
	}
	delete(p.entries, hash)
	p.keyImages.remove(entry.tx.KeyImages())
	p.recentlyDeleted[hash] = p.now()
	return true
}

// RemoveConfirmed implements blockchain.PoolAdapter: evicts every hash that
// just confirmed on-chain, without re-adding them to the recently-deleted
// window (confirmation, not gossip-loop defense, is why they're gone).
func (p *Pool) RemoveConfirmed(hashes []crypto.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		if entry, ok := p.entries[h]; ok {
			delete(p.entries, h)
			p.keyImages.remove(entry.tx.KeyImages())
		}
	}
}

// Restore implements blockchain.PoolAdapter: re-admits transactions from a
// block popped during a reorg, bypassing the recently-deleted window (these
// were never illegitimately evicted) and bypassing independent validation
// (they were already valid when first mined).
func (p *Pool) Restore(txs []*types.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tx := range txs {
		hash := types.FastHashTransaction(tx)
		if _, ok := p.entries[hash]; ok {
			continue
		}
		images := tx.KeyImages()
		if p.keyImages.intersects(images) {
			// a conflicting transaction slipped into the pool while this
			// one was confirmed; the on-chain history wins, so the
			// restored transaction is dropped rather than admitted.
			continue
		}
		p.entries[hash] = &poolEntry{tx: tx, hash: hash, firstSeen: p.now()}
		p.keyImages.add(images)
	}
}

// Lookup implements blockchain.PoolAdapter.
func (p *Pool) Lookup(hash crypto.Hash) (*types.Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[hash]
	if !ok {
		return nil, false
	}
	return entry.tx, true
}

// Clean removes every transaction whose age exceeds the pool timeout, or
// which fails the height-dependent mixin check (a block-version upgrade can
// retroactively invalidate a pool transaction's ring size), and returns
// their hashes.
func (p *Pool) Clean(currentHeight uint64) []crypto.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()

	limits := consensus.MixinLimitsForHeight(currentHeight)
	now := p.now()
	var removed []crypto.Hash
	for hash, entry := range p.entries {
		expired := now.Sub(entry.firstSeen) > p.timeout
		if !expired && mixinWithinLimits(entry.tx, limits) {
			continue
		}
		removed = append(removed, hash)
	}
	for _, hash := range removed {
		p.removeLocked(hash)
	}
	return removed
}

func mixinWithinLimits(tx *types.Transaction, limits consensus.MixinLimits) bool {
	for _, in := range tx.Prefix.Inputs {
		keyIn, ok := in.(types.KeyInput)
		if !ok {
			continue
		}
		mixin := uint64(len(keyIn.OutputIndexes))
		if mixin > 0 {
			mixin--
		}
		if mixin < limits.Min || mixin > limits.Max {
			return false
		}
	}
	return true
}

// ForBlockTemplate implements blockchain.TemplateSource: returns pool
// transactions (oldest first, a simple fee-neutral priority policy) whose
// cumulative wire size does not exceed budget.
func (p *Pool) ForBlockTemplate(budget uint64) []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]*poolEntry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	sortByFirstSeen(entries)

	var out []*types.Transaction
	var used uint64
	for _, e := range entries {
		size := uint64(len(types.EncodeTransaction(e.tx)))
		if used+size > budget {
			continue
		}
		out = append(out, e.tx)
		used += size
	}
	return out
}

func sortByFirstSeen(entries []*poolEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].firstSeen.After(entries[j].firstSeen); j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

// Size returns the number of transactions currently pooled.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Hashes returns every currently pooled transaction's hash, for
// REQUEST_TX_POOL reconciliation (p2p.PoolSource).
func (p *Pool) Hashes() []crypto.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	hashes := make([]crypto.Hash, 0, len(p.entries))
	for h := range p.entries {
		hashes = append(hashes, h)
	}
	return hashes
}
