// Package int256 implements fixed-width 256-bit unsigned integers stored as
// four little-endian 64-bit limbs, together with the generic modular
// arithmetic needed by the SM2 field and scalar layers.
package int256

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

var (
	// ErrDivisionByZero is returned when reducing by a zero modulus or
	// inverting a value that is congruent to zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrInvalidHex is returned for strings that are not hexadecimal.
	ErrInvalidHex = errors.New("invalid hex string")
	// ErrOverflow is returned when an encoding does not fit in 256 bits.
	ErrOverflow = errors.New("value exceeds 256 bits")
)

// Size is the length of the big-endian byte encoding.
const Size = 32

// Int is an unsigned integer in [0, 2^256). The zero value is 0.
type Int struct {
	limbs [4]uint64
}

// Wide is the 512-bit product of two Ints, little-endian.
type Wide [8]uint64

var (
	Zero = Int{}
	One  = Int{limbs: [4]uint64{1, 0, 0, 0}}
)

// FromLimbs builds an Int from little-endian limbs.
func FromLimbs(l0, l1, l2, l3 uint64) Int {
	return Int{limbs: [4]uint64{l0, l1, l2, l3}}
}

// FromUint64 returns v as an Int.
func FromUint64(v uint64) Int {
	return Int{limbs: [4]uint64{v, 0, 0, 0}}
}

// FromHex parses a big-endian hex string. An optional 0x prefix is accepted,
// odd-length input is zero-padded on the left and case is ignored.
func FromHex(s string) (Int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Int{}, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return FromBytes(b)
}

// MustFromHex is like FromHex but panics on malformed input. It is meant for
// package-level constants.
func MustFromHex(s string) Int {
	v, err := FromHex(s)
	if err != nil {
		panic(fmt.Sprintf("int256: bad constant %q: %v", s, err))
	}
	return v
}

// FromBytes interprets b as a big-endian integer of at most 32 significant bytes.
// Leading zero bytes beyond 32 are tolerated.
func FromBytes(b []byte) (Int, error) {
	for len(b) > Size {
		if b[0] != 0 {
			return Int{}, ErrOverflow
		}
		b = b[1:]
	}
	var buf [Size]byte
	copy(buf[Size-len(b):], b)
	return FromBytes32(buf), nil
}

// FromBytes32 interprets a 32-byte big-endian array.
func FromBytes32(b [Size]byte) Int {
	var z Int
	for i := 0; i < 4; i++ {
		off := Size - 8*(i+1)
		z.limbs[i] = uint64(b[off])<<56 | uint64(b[off+1])<<48 | uint64(b[off+2])<<40 |
			uint64(b[off+3])<<32 | uint64(b[off+4])<<24 | uint64(b[off+5])<<16 |
			uint64(b[off+6])<<8 | uint64(b[off+7])
	}
	return z
}

// Bytes returns the 32-byte big-endian encoding.
func (a Int) Bytes() [Size]byte {
	var b [Size]byte
	for i := 0; i < 4; i++ {
		off := Size - 8*(i+1)
		v := a.limbs[i]
		for j := 7; j >= 0; j-- {
			b[off+j] = byte(v)
			v >>= 8
		}
	}
	return b
}

// Hex returns the 64-character uppercase big-endian hex encoding.
func (a Int) Hex() string {
	return strings.ToUpper(a.HexLower())
}

// HexLower returns the 64-character lowercase big-endian hex encoding.
func (a Int) HexLower() string {
	b := a.Bytes()
	return hex.EncodeToString(b[:])
}

func (a Int) String() string {
	return a.Hex()
}

// Limbs returns the little-endian limbs.
func (a Int) Limbs() [4]uint64 {
	return a.limbs
}

func (a Int) IsZero() bool {
	return a.limbs[0]|a.limbs[1]|a.limbs[2]|a.limbs[3] == 0
}

func (a Int) IsOne() bool {
	return a.limbs[0] == 1 && a.limbs[1]|a.limbs[2]|a.limbs[3] == 0
}

// Cmp returns -1, 0 or +1.
func (a Int) Cmp(b Int) int {
	for i := 3; i >= 0; i-- {
		if a.limbs[i] < b.limbs[i] {
			return -1
		}
		if a.limbs[i] > b.limbs[i] {
			return 1
		}
	}
	return 0
}

func (a Int) Equal(b Int) bool {
	return a.limbs == b.limbs
}

// Add returns a+b mod 2^256 and the outgoing carry.
func (a Int) Add(b Int) (Int, uint64) {
	var z Int
	var c uint64
	for i := 0; i < 4; i++ {
		z.limbs[i], c = bits.Add64(a.limbs[i], b.limbs[i], c)
	}
	return z, c
}

// Sub returns a-b mod 2^256 and the outgoing borrow.
func (a Int) Sub(b Int) (Int, uint64) {
	var z Int
	var borrow uint64
	for i := 0; i < 4; i++ {
		z.limbs[i], borrow = bits.Sub64(a.limbs[i], b.limbs[i], borrow)
	}
	return z, borrow
}

// Mul returns the full 512-bit product.
func (a Int) Mul(b Int) Wide {
	var w Wide
	for i := 0; i < 4; i++ {
		var carry uint64
		for j := 0; j < 4; j++ {
			hi, lo := bits.Mul64(a.limbs[i], b.limbs[j])
			var c uint64
			lo, c = bits.Add64(lo, w[i+j], 0)
			hi += c
			lo, c = bits.Add64(lo, carry, 0)
			hi += c
			w[i+j] = lo
			carry = hi
		}
		w[i+4] = carry
	}
	return w
}

// BitLen returns the position of the highest set bit plus one, 0 for zero.
func (a Int) BitLen() int {
	for i := 3; i >= 0; i-- {
		if a.limbs[i] != 0 {
			return 64*i + bits.Len64(a.limbs[i])
		}
	}
	return 0
}

// Bit reports whether bit i is set. Bits outside [0, 256) are unset.
func (a Int) Bit(i int) bool {
	if i < 0 || i >= 256 {
		return false
	}
	return a.limbs[i/64]>>(uint(i)%64)&1 == 1
}

// SetBit returns a with bit i set.
func (a Int) SetBit(i int) Int {
	if i < 0 || i >= 256 {
		return a
	}
	a.limbs[i/64] |= 1 << (uint(i) % 64)
	return a
}

// Truncate keeps the low n bits of a.
func (a Int) Truncate(n int) Int {
	var z Int
	for i := 0; i < 4; i++ {
		switch {
		case n >= 64*(i+1):
			z.limbs[i] = a.limbs[i]
		case n > 64*i:
			z.limbs[i] = a.limbs[i] & (1<<(uint(n)-64*uint(i)) - 1)
		}
	}
	return z
}

// Lsh1 shifts left by one bit, discarding the top bit.
func (a Int) Lsh1() Int {
	var z Int
	z.limbs[3] = a.limbs[3]<<1 | a.limbs[2]>>63
	z.limbs[2] = a.limbs[2]<<1 | a.limbs[1]>>63
	z.limbs[1] = a.limbs[1]<<1 | a.limbs[0]>>63
	z.limbs[0] = a.limbs[0] << 1
	return z
}

// Rsh1 shifts right by one bit.
func (a Int) Rsh1() Int {
	var z Int
	z.limbs[0] = a.limbs[0]>>1 | a.limbs[1]<<63
	z.limbs[1] = a.limbs[1]>>1 | a.limbs[2]<<63
	z.limbs[2] = a.limbs[2]>>1 | a.limbs[3]<<63
	z.limbs[3] = a.limbs[3] >> 1
	return z
}

func (a Int) And(b Int) Int {
	var z Int
	for i := 0; i < 4; i++ {
		z.limbs[i] = a.limbs[i] & b.limbs[i]
	}
	return z
}

// Widen returns a as the low half of a 512-bit value.
func (a Int) Widen() Wide {
	return Wide{a.limbs[0], a.limbs[1], a.limbs[2], a.limbs[3]}
}

// Low returns the low 256 bits of w.
func (w Wide) Low() Int {
	return Int{limbs: [4]uint64{w[0], w[1], w[2], w[3]}}
}

// High returns the high 256 bits of w.
func (w Wide) High() Int {
	return Int{limbs: [4]uint64{w[4], w[5], w[6], w[7]}}
}
