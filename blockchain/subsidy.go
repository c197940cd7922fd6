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
// Emission and the block-size penalty, grounded on CryptoNote's classic
// "continuous decay off already-generated supply" curve (Currency::
// getBlockReward in CurrencyImpl.cpp, unavailable in the retrieval pack but
// the formula shape is referenced by EXCCoin-exccd's blockchain/subsidy.go
// next to it) and the size-penalty formula spelled out directly by the
// distilled specification.
package blockchain

import "math/big"

// MoneySupply is the maximum emittable supply, in atomic units.
const MoneySupply uint64 = 1 << 62

// EmissionSpeedFactor controls how fast the reward decays: each block's
// base reward is (MoneySupply-alreadyGenerated) >> EmissionSpeedFactor.
const EmissionSpeedFactor = 20

// MinimumFee is the smallest Σinputs-Σoutputs a non-coinbase transaction
// may charge.
const MinimumFee uint64 = 1000

// BaseReward returns the pre-penalty coinbase reward given how much supply
// has already been generated.
func BaseReward(alreadyGeneratedCoins uint64) uint64 {
	if alreadyGeneratedCoins >= MoneySupply {
		return 0
	}
	return (MoneySupply - alreadyGeneratedCoins) >> EmissionSpeedFactor
}

// PenalizedReward applies the oversize-block penalty:
// reward * (2*median - size) * size / median^2, computed in 128-bit-class
// arithmetic (big.Int here) to avoid overflow at the extremes, per §4.2's
// coinbase validation step. size must not exceed 2*median; the caller is
// responsible for rejecting blocks that do before ever reaching this
// function, since the formula goes negative past that point.
func PenalizedReward(reward uint64, medianSize, size uint64) uint64 {
	if size <= medianSize || medianSize == 0 {
		return reward
	}
	if size > 2*medianSize {
		return 0
	}

	r := new(big.Int).SetUint64(reward)
	twoMedian := new(big.Int).SetUint64(2 * medianSize)
	sz := new(big.Int).SetUint64(size)
	numerator := new(big.Int).Sub(twoMedian, sz)
	numerator.Mul(numerator, sz)
	numerator.Mul(numerator, r)

	denominator := new(big.Int).SetUint64(medianSize)
	denominator.Mul(denominator, denominator)

	numerator.Div(numerator, denominator)
	return numerator.Uint64()
}

// MedianSizeTracker maintains a rolling median over the last N block sizes,
// shared between the coinbase-penalty check and the pool's block-template
// assembly (§4.2 "supplemented feature"), rather than each recomputing its
// own window.
type MedianSizeTracker struct {
	window []uint64
	limit  int
}

// NewMedianSizeTracker creates a tracker retaining at most limit samples.
func NewMedianSizeTracker(limit int) *MedianSizeTracker {
	return &MedianSizeTracker{limit: limit}
}

// Push records size as the most recent block's size, evicting the oldest
// sample once the window is full.
func (m *MedianSizeTracker) Push(size uint64) {
	m.window = append(m.window, size)
	if len(m.window) > m.limit {
		m.window = m.window[len(m.window)-m.limit:]
	}
}

// Median returns the current window's median size, or 0 if empty.
func (m *MedianSizeTracker) Median() uint64 {
	n := len(m.window)
	if n == 0 {
		return 0
	}
	sorted := append([]uint64(nil), m.window...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
