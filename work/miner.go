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
// Package work is a single-agent CPU miner, grounded on the teacher's
// work.CpuAgent/worker (Start/Stop, a quitCurrentOp channel that cancels
// whatever nonce search is in flight when Stop is called, a loop that
// builds a fresh template after every nonce batch or solved block):
// generalized from
// Ethereum-style block sealing to a CryptoNote-style long-hash nonce
// search against blockchain.GetBlockTemplate/consensus.CheckHash.
package work

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/qwertycoin-project/qwc-node/blockchain"
	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/consensus"
	"github.com/qwertycoin-project/qwc-node/crypto"
	"github.com/qwertycoin-project/qwc-node/log"
)

var logger = log.NewModuleLogger(log.Consensus)

// ChainTemplater is the narrow slice of blockchain.Blockchain the miner
// needs: assembling a candidate and submitting a solved one.
type ChainTemplater interface {
	GetBlockTemplate(minerAddress crypto.PublicKey, extraNonce []byte, majorVersion uint8, source blockchain.TemplateSource) (*blockchain.BlockTemplate, error)
	AddBlock(block *types.Block) (blockchain.AddResult, error)
}

// Found is called with every block the miner successfully submits to the
// chain, so the caller (cmd/qwcd) can fan it out over p2p.
type Found func(block *types.Block, hash crypto.Hash)

// Miner drives a single CPU nonce-search loop against the current chain
// tip, building a fresh template after every nonce batch or solved block;
// a tip change does not interrupt a batch in progress.
type Miner struct {
	chain  ChainTemplater
	source blockchain.TemplateSource
	onFound Found

	minerAddress crypto.PublicKey
	majorVersion uint8

	mu            sync.Mutex
	quitCurrentOp chan struct{}

	mining int32
	stop   chan struct{}
}

// New constructs a Miner. majorVersion selects the long-hash variant via
// consensus.HashingAlgorithmForVersion.
func New(chain ChainTemplater, source blockchain.TemplateSource, minerAddress crypto.PublicKey, majorVersion uint8, onFound Found) *Miner {
	return &Miner{
		chain:        chain,
		source:       source,
		minerAddress: minerAddress,
		majorVersion: majorVersion,
		onFound:      onFound,
		stop:         make(chan struct{}, 1),
	}
}

// Start begins mining in the background. Calling Start while already
// mining is a no-op.
func (m *Miner) Start() {
	if !atomic.CompareAndSwapInt32(&m.mining, 0, 1) {
		return
	}
	go m.loop()
}

// Stop halts the in-flight nonce search and the retry loop. Calling Stop
// while not mining is a no-op.
func (m *Miner) Stop() {
	if !atomic.CompareAndSwapInt32(&m.mining, 1, 0) {
		return
	}
	m.mu.Lock()
	if m.quitCurrentOp != nil {
		close(m.quitCurrentOp)
		m.quitCurrentOp = nil
	}
	m.mu.Unlock()
	m.stop <- struct{}{}
}

// Mining reports whether the background loop is currently running.
func (m *Miner) Mining() bool {
	return atomic.LoadInt32(&m.mining) == 1
}

// loop repeatedly builds a fresh template and mines it, restarting on
// every iteration (the template embeds the current tip and timestamp, so
// a stale nonce search against an old tip is simply replaced).
func (m *Miner) loop() {
	for {
		select {
		case <-m.stop:
			m.mu.Lock()
			if m.quitCurrentOp != nil {
				close(m.quitCurrentOp)
				m.quitCurrentOp = nil
			}
			m.mu.Unlock()
			return
		default:
		}

		tmpl, err := m.chain.GetBlockTemplate(m.minerAddress, nil, m.majorVersion, m.source)
		if err != nil {
			logger.Error("work: template build failed", "err", err)
			time.Sleep(time.Second)
			continue
		}

		m.mu.Lock()
		quit := make(chan struct{})
		m.quitCurrentOp = quit
		m.mu.Unlock()

		if block, ok := m.mine(tmpl, quit); ok {
			m.submit(block)
		}
	}
}

// mine searches nonce space for tmpl until it finds a passing hash, quit
// fires (Stop was called), or the search batch is
// exhausted (returned so loop can refresh the template's timestamp).
func (m *Miner) mine(tmpl *blockchain.BlockTemplate, quit <-chan struct{}) (*types.Block, bool) {
	variant, ok := consensus.HashingAlgorithmForVersion(m.majorVersion)
	if !ok {
		logger.Error("work: no hashing algorithm for major version", "version", m.majorVersion)
		return nil, false
	}

	const batch = 1 << 20
	header := tmpl.Header
	for nonce := uint32(0); nonce < batch; nonce++ {
		select {
		case <-quit:
			return nil, false
		default:
		}
		header.Nonce = nonce
		hashInput := types.EncodeHeaderForHashing(&header)
		longHash := crypto.LongHash(hashInput, variant, 0)
		if consensus.CheckHash(longHash, tmpl.Difficulty) {
			block := &types.Block{
				Header:            header,
				BaseTransaction:   tmpl.Coinbase,
				TransactionHashes: tmpl.TransactionHashes,
			}
			return block, true
		}
	}
	return nil, false
}

func (m *Miner) submit(block *types.Block) {
	result, err := m.chain.AddBlock(block)
	if err != nil {
		logger.Debug("work: mined block rejected", "err", err)
		return
	}
	if result != blockchain.AddedToMain {
		return
	}
	hash := types.FastHashTransaction(&block.BaseTransaction)
	logger.Info("work: block found", "hash", hash)
	if m.onFound != nil {
		m.onFound(block, hash)
	}
}
