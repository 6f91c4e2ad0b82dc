// Package digest wraps the 32-byte hash used for message digests, identity
// binding and key derivation. SM3 is used unless another factory is given.
package digest

import (
	"encoding/binary"
	"hash"

	"github.com/tjfoc/gmsm/sm3"
)

// Size is the digest length in bytes.
const Size = 32

// Factory constructs a fresh hash state.
type Factory func() hash.Hash

// Default returns the SM3 factory.
func Default() Factory {
	return sm3.New
}

// Hash accumulates input and produces a 32-byte digest.
type Hash struct {
	h hash.Hash
}

// New returns a Hash backed by f, or by SM3 when f is nil.
func New(f Factory) *Hash {
	if f == nil {
		f = Default()
	}
	return &Hash{h: f()}
}

// Update absorbs b and returns the receiver for chaining.
func (d *Hash) Update(b []byte) *Hash {
	d.h.Write(b)
	return d
}

// UpdateByte absorbs a single byte.
func (d *Hash) UpdateByte(b byte) *Hash {
	d.h.Write([]byte{b})
	return d
}

// Finish returns the digest and resets the state.
func (d *Hash) Finish() [Size]byte {
	var out [Size]byte
	copy(out[:], d.h.Sum(nil))
	d.h.Reset()
	return out
}

// Sum hashes the concatenation of parts.
func Sum(f Factory, parts ...[]byte) [Size]byte {
	d := New(f)
	for _, p := range parts {
		d.Update(p)
	}
	return d.Finish()
}

// KDF derives length bytes as H(Z||ct) blocks for a big-endian 32-bit
// counter starting at 1, where Z is the concatenation of parts.
func KDF(f Factory, length int, parts ...[]byte) []byte {
	out := make([]byte, 0, length+Size)
	d := New(f)
	var ct [4]byte
	for counter := uint32(1); len(out) < length; counter++ {
		for _, p := range parts {
			d.Update(p)
		}
		binary.BigEndian.PutUint32(ct[:], counter)
		block := d.Update(ct[:]).Finish()
		out = append(out, block[:]...)
	}
	return out[:length]
}

// IsZero reports whether every byte of b is zero.
func IsZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
