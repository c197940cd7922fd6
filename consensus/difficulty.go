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
// LWMA-2 (Zawy, MIT licensed algorithm) difficulty retargeting, ported
// line-for-line from CryptoNoteCore/Difficulty.cpp's nextDifficultyV3/V4/V5:
// the variants differ in window size, clamp bounds, the emergency bump
// factor and whether it acts as a floor, and the fallback difficulty, so
// they share NextDifficulty and differ only in a retargetParams value.
package consensus

// DifficultyTarget is the network's target block solve time, in seconds.
const DifficultyTarget int64 = 120

// DifficultyVariant selects which historical LWMA-2 parameterization is
// active. The engine uses the single variant given in its Config for every
// block; the variant is not switched by block major version.
type DifficultyVariant int

const (
	DifficultyV3 DifficultyVariant = iota
	DifficultyV4
	DifficultyV5
)

type retargetParams struct {
	window        int64
	futureLimit   int64 // 0 means "clamp solve time to [-4T, 6T]" per V5's simpler rule
	lowClampPct   int64
	highClampPct  int64
	bumpPct       int64
	bumpIsFloor   bool // V3: bump replaces next_D outright; V4/V5: bump is a floor
	fallback      uint64
}

func (v DifficultyVariant) params() retargetParams {
	switch v {
	case DifficultyV3:
		return retargetParams{window: 17, futureLimit: 14400, lowClampPct: 70, highClampPct: 107, bumpPct: 110, bumpIsFloor: false, fallback: 1000}
	case DifficultyV4:
		return retargetParams{window: 17, futureLimit: 14400, lowClampPct: 67, highClampPct: 150, bumpPct: 110, bumpIsFloor: true, fallback: 1000}
	default: // DifficultyV5
		return retargetParams{window: 60, futureLimit: 0, lowClampPct: 67, highClampPct: 150, bumpPct: 108, bumpIsFloor: true, fallback: 50000}
	}
}

// NextDifficulty implements LWMA-2 over the trailing window of timestamps
// and cumulative difficulties (oldest first, entry i of both slices
// describing the same block); only the last window+1 entries present in
// both slices are used. Returns a network-appropriate fallback difficulty
// until there is enough history.
func NextDifficulty(variant DifficultyVariant, timestamps []int64, cumulativeDifficulties []int64) int64 {
	p := variant.params()
	n := p.window

	m := int64(len(timestamps))
	if c := int64(len(cumulativeDifficulties)); c < m {
		m = c
	}
	if m < n+1 {
		return int64(p.fallback)
	}
	timestamps = timestamps[m-n-1 : m]
	cumulativeDifficulties = cumulativeDifficulties[m-n-1 : m]

	var weightedSum, sum3 int64
	for i := int64(1); i <= n; i++ {
		solveTime := timestamps[i] - timestamps[i-1]
		solveTime = clampSolveTime(solveTime, p)
		weightedSum += solveTime * i
		if i > n-3 {
			sum3 += solveTime
		}
	}
	if weightedSum <= 0 {
		weightedSum = 1
	}

	diffSpan := cumulativeDifficulties[n] - cumulativeDifficulties[0]
	nextD := (diffSpan * DifficultyTarget * (n + 1) * 99) / (100 * 2 * weightedSum)
	prevD := cumulativeDifficulties[n] - cumulativeDifficulties[n-1]

	low := (prevD * p.lowClampPct) / 100
	high := (prevD * p.highClampPct) / 100
	nextD = clampInt64(nextD, low, high)

	if sum3 < (8*DifficultyTarget)/10 {
		bump := (prevD * p.bumpPct) / 100
		if p.bumpIsFloor {
			if bump > nextD {
				nextD = bump
			}
		} else {
			nextD = bump
		}
	}

	return nextD
}

func clampSolveTime(st int64, p retargetParams) int64 {
	upper := 6 * DifficultyTarget
	lower := -4 * DifficultyTarget
	if p.futureLimit > 0 {
		lower = -p.futureLimit
	}
	return clampInt64(st, lower, upper)
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
