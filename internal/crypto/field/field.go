// Package field implements arithmetic in GF(p) for the SM2 prime
// p = 2^256 - 2^224 - 2^96 + 2^64 - 1.
package field

import (
	"errors"

	"github.com/smallyu/go-sm2/internal/crypto/int256"
)

// ErrNotCanonical is returned when an encoded element is not below p.
var ErrNotCanonical = errors.New("field element not below p")

// P is the field prime.
var P = int256.FromLimbs(0xFFFFFFFFFFFFFFFF, 0xFFFFFFFF00000000, 0xFFFFFFFFFFFFFFFF, 0xFFFFFFFEFFFFFFFF)

var pMinus2, _ = P.Sub(int256.FromUint64(2))

// Element is a value in [0, p).
type Element struct {
	v int256.Int
}

// New reduces v into the field. Any 256-bit value is below 2p, so a single
// subtraction suffices.
func New(v int256.Int) Element {
	if v.Cmp(P) >= 0 {
		v, _ = v.Sub(P)
	}
	return Element{v: v}
}

// FromUint64 returns v as a field element.
func FromUint64(v uint64) Element {
	return Element{v: int256.FromUint64(v)}
}

// FromBytes decodes a 32-byte big-endian element, rejecting values >= p.
func FromBytes(b [32]byte) (Element, error) {
	v := int256.FromBytes32(b)
	if v.Cmp(P) >= 0 {
		return Element{}, ErrNotCanonical
	}
	return Element{v: v}, nil
}

// FromHex parses a hex element, rejecting values >= p.
func FromHex(s string) (Element, error) {
	v, err := int256.FromHex(s)
	if err != nil {
		return Element{}, err
	}
	if v.Cmp(P) >= 0 {
		return Element{}, ErrNotCanonical
	}
	return Element{v: v}, nil
}

// MustFromHex is FromHex for constants.
func MustFromHex(s string) Element {
	e, err := FromHex(s)
	if err != nil {
		panic("field: bad constant " + s)
	}
	return e
}

func Zero() Element { return Element{} }
func One() Element { return Element{v: int256.One} }

func (a Element) Int() int256.Int { return a.v }
func (a Element) Bytes() [32]byte { return a.v.Bytes() }
func (a Element) Hex() string { return a.v.Hex() }
func (a Element) String() string { return a.v.Hex() }
func (a Element) IsZero() bool { return a.v.IsZero() }
func (a Element) Equal(b Element) bool { return a.v.Equal(b.v) }

func (a Element) Add(b Element) Element {
	return Element{v: a.v.ModAdd(b.v, P)}
}

func (a Element) Sub(b Element) Element {
	return Element{v: a.v.ModSub(b.v, P)}
}

func (a Element) Mul(b Element) Element {
	return Element{v: Reduce(a.v.Mul(b.v))}
}

func (a Element) Square() Element {
	return Element{v: Reduce(a.v.Mul(a.v))}
}

func (a Element) Negate() Element {
	if a.v.IsZero() {
		return a
	}
	v, _ := P.Sub(a.v)
	return Element{v: v}
}

func (a Element) Double() Element {
	return a.Add(a)
}

func (a Element) Triple() Element {
	return a.Add(a).Add(a)
}

// Invert returns a^(p-2). Inverting zero fails with int256.ErrDivisionByZero.
func (a Element) Invert() (Element, error) {
	if a.v.IsZero() {
		return Element{}, int256.ErrDivisionByZero
	}

	result := One()
	base := a
	for i := 0; i < 256; i++ {
		if pMinus2.Bit(i) {
			result = result.Mul(base)
		}
		base = base.Square()
	}
	return result, nil
}
