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
// Resolves the spec's "soft-shell" open question: per
// src/Crypto/SlowHashCommon.h the scratchpad/iteration count oscillates
// over a fixed window as a triangle wave computed with integer division,
// not a literal sine curve. softShellWindow and softShellAmplitude are
// reproduced from that header; softShellParams walks height modulo the
// window and folds it into a triangle wave around the baseline.

package crypto

const (
	softShellWindow          = 2048 // blocks per oscillation period
	softShellAmplitude       = 512 * 1024
	softShellBaseScratchpad  = 2 * 1024 * 1024
	softShellBaseIterations  = 1 << 19
	softShellIterAmplitude   = 1 << 15
)

// softShellParams derives the scratchpad size and iteration count for
// height, oscillating linearly (triangle wave) over softShellWindow blocks
// so that neither value ever needs to shrink discontinuously.
func softShellParams(height uint64) longHashParams {
	phase := height % softShellWindow
	half := uint64(softShellWindow / 2)

	var ramp uint64
	if phase <= half {
		ramp = phase
	} else {
		ramp = softShellWindow - phase
	}
	// ramp runs 0..half..0 across the window; normalize to 0..amplitude
	scratchpadDelta := int(ramp*uint64(2*softShellAmplitude)/half) - softShellAmplitude
	iterDelta := int(ramp*uint64(2*softShellIterAmplitude)/half) - softShellIterAmplitude

	scratchpad := softShellBaseScratchpad + scratchpadDelta
	iterations := softShellBaseIterations + iterDelta
	// keep the scratchpad a multiple of 64 so block-sized scans stay aligned
	scratchpad -= scratchpad % 64
	if scratchpad < 64 {
		scratchpad = 64
	}
	if iterations < 1 {
		iterations = 1
	}
	return longHashParams{scratchpadBytes: scratchpad, iterations: iterations}
}
