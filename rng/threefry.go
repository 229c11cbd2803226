// Package rng implements the counter based Threefry random generator used for
// reproducible shuffling and sampling.
package rng

import "math/bits"

// rotation constants of Threefry-2x32
var rotations = [8]uint8{13, 15, 26, 6, 17, 29, 16, 24}

// key schedule constant
const keyParity = 0x1BD11BDA

// mix adds x1 into x0, rotates x1 and xors the sum back into it.
func mix(x0, x1 uint32, rot uint8) (uint32, uint32) {
	x0 += x1
	x1 = bits.RotateLeft32(x1, int(rot))
	x1 ^= x0
	return x0, x1
}

// Threefry computes 20 rounds of Threefry-2x32 on the counter pair x0, x1
// keyed by seed0, seed1. Tweaks and permutation of Threefish are omitted.
func Threefry(seed0, seed1, x0, x1 uint32) (uint32, uint32) {
	ks := [3]uint32{seed0, seed1, keyParity ^ seed0 ^ seed1}

	// 5 key schedules, 4 rounds each
	for sc := uint32(0); sc < 5; sc++ {
		x0 += ks[sc%3]
		x1 += ks[(sc+1)%3] + sc

		rot := (sc % 2) * 4
		for round := uint32(0); round < 4; round++ {
			x0, x1 = mix(x0, x1, rotations[rot+round])
		}
	}

	x0 += ks[2]
	x1 += ks[0] + 5
	return x0, x1
}

// Threefry64 keys Threefry with the low and high halves of seed and packs the
// output pair as hi<<32 | lo.
func Threefry64(seed uint64, x0, x1 uint32) uint64 {
	lo, hi := Threefry(uint32(seed), uint32(seed>>32), x0, x1)
	return uint64(hi)<<32 | uint64(lo)
}
