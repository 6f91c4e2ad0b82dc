package field

import "github.com/smallyu/go-sm2/internal/crypto/int256"

// reductionTable[i] holds 2^(32*(i+8)) mod p as eight signed 32-bit word
// coefficients, least significant word first.
var reductionTable = [8][8]int64{
	{1, 0, -1, 1, 0, 0, 0, 1},
	{1, 1, -1, 0, 1, 0, 0, 1},
	{1, 1, 0, 0, 0, 1, 0, 1},
	{1, 1, 0, 1, 0, 0, 1, 1},
	{1, 1, 0, 1, 1, 0, 0, 2},
	{2, 1, -1, 2, 1, 1, 0, 2},
	{2, 2, -1, 1, 2, 1, 1, 2},
	{2, 2, 0, 1, 1, 2, 1, 3},
}

// Reduce returns w mod p using the special form of p. The product is split
// into sixteen 32-bit words and the upper eight are folded down through
// reductionTable.
func Reduce(w int256.Wide) int256.Int {
	var words [16]int64
	for i := 0; i < 8; i++ {
		words[2*i] = int64(w[i] & 0xFFFFFFFF)
		words[2*i+1] = int64(w[i] >> 32)
	}

	var acc [9]int64
	copy(acc[:8], words[:8])
	for i := 0; i < 8; i++ {
		hi := words[i+8]
		if hi == 0 {
			continue
		}
		for j := 0; j < 8; j++ {
			acc[j] += hi * reductionTable[i][j]
		}
	}
	propagate(&acc)

	// 2^256 mod p = 2^224 + 2^96 - 2^64 + 1
	for acc[8] != 0 {
		over := acc[8]
		acc[8] = 0
		acc[0] += over
		acc[2] -= over
		acc[3] += over
		acc[7] += over
		propagate(&acc)
	}

	var limbs [4]uint64
	for i := 0; i < 4; i++ {
		limbs[i] = uint64(acc[2*i]) | uint64(acc[2*i+1])<<32
	}
	r := int256.FromLimbs(limbs[0], limbs[1], limbs[2], limbs[3])
	for r.Cmp(P) >= 0 {
		r, _ = r.Sub(P)
	}
	return r
}

// propagate normalizes words 0..7 into [0, 2^32), pushing signed carries
// upward into acc[8].
func propagate(acc *[9]int64) {
	for j := 0; j < 8; j++ {
		carry := acc[j] >> 32
		acc[j] &= 0xFFFFFFFF
		acc[j+1] += carry
	}
}
