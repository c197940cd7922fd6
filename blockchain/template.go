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

import (
	"time"

	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/crypto"
)

// TemplateSource is the pool's side of getBlockTemplate: it returns
// candidate transactions (already ordered by the pool's own priority
// policy) and their total size in bytes must not exceed budget.
type TemplateSource interface {
	ForBlockTemplate(budget uint64) []*types.Transaction
}

// BlockTemplate is the assembled candidate a miner hashes against.
type BlockTemplate struct {
	Header            types.BlockHeader
	Coinbase          types.Transaction
	TransactionHashes []crypto.Hash
	Difficulty        int64
}

// GetBlockTemplate assembles the next candidate block for minerAddress,
// pulling transactions from source under the block-size median
// constraint, per §4.2.
func (bc *Blockchain) GetBlockTemplate(minerAddress crypto.PublicKey, extraNonce []byte, majorVersion uint8, source TemplateSource) (*BlockTemplate, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	tip, err := bc.tipLocked()
	if err != nil {
		return nil, err
	}
	height := tip.Height + 1
	median := bc.median.Median()
	if median == 0 {
		median = 1 << 20 // bootstrap budget before any history exists
	}
	budget := 2 * median

	var txs []*types.Transaction
	if source != nil {
		txs = source.ForBlockTemplate(budget)
	}

	var fees uint64
	hashes := make([]crypto.Hash, 0, len(txs))
	for _, tx := range txs {
		in, out := tx.SumInputs(), tx.SumOutputs()
		if in >= out {
			fees += in - out
		}
		hashes = append(hashes, types.FastHashTransaction(tx))
	}

	generated := estimateGeneratedSupply(height)
	reward := BaseReward(generated) + fees

	coinbase := types.Transaction{
		Prefix: types.TransactionPrefix{
			Version: 1,
			Inputs:  []types.TransactionInput{types.CoinbaseInput{BlockIndex: uint32(height)}},
			Outputs: []types.TransactionOutput{{Amount: reward, Target: types.KeyOutputTarget{Key: minerAddress}}},
			Extra:   extraNonce,
		},
	}

	header := types.BlockHeader{
		MajorVersion:      majorVersion,
		MinorVersion:      0,
		Timestamp:         uint64(time.Now().Unix()),
		PreviousBlockHash: tip.Hash,
	}

	difficulty, _ := bc.blockDifficulty(nil)
	return &BlockTemplate{
		Header:            header,
		Coinbase:          coinbase,
		TransactionHashes: hashes,
		Difficulty:        difficulty,
	}, nil
}
