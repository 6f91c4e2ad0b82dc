// Package keygen draws SM2 scalars and key pairs from a random source.
package keygen

import (
	"fmt"
	"io"

	"github.com/smallyu/go-sm2/internal/crypto/curves"
	"github.com/smallyu/go-sm2/internal/crypto/int256"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"go.uber.org/zap"
)

// KeyPair holds a private scalar d in [1, n-1] and Q = [d]G.
type KeyPair struct {
	D int256.Int
	Q curves.Point
}

// RandomScalar reads 32-byte big-endian candidates from the random source
// until one lies in [1, n-1]. purpose names the draw in debug logs.
func RandomScalar(params *sm2.Parameters, purpose string) (int256.Int, error) {
	var buf [int256.Size]byte
	defer func() {
		for i := range buf {
			buf[i] = 0
		}
	}()

	for attempt := 1; ; attempt++ {
		if _, err := io.ReadFull(params.Rand(), buf[:]); err != nil {
			return int256.Int{}, fmt.Errorf("%w: %w", sm2.ErrRandomSource, err)
		}
		k := int256.FromBytes32(buf)
		if curves.IsValidScalar(k) {
			return k, nil
		}
		params.Log().Debug("scalar out of range, redrawing",
			zap.String("purpose", purpose),
			zap.Int("attempt", attempt))
	}
}

// Generate creates a fresh key pair.
func Generate(params *sm2.Parameters) (*KeyPair, error) {
	d, err := RandomScalar(params, "private key")
	if err != nil {
		return nil, err
	}
	return &KeyPair{D: d, Q: curves.ScalarBaseMult(d)}, nil
}

// FromPrivate derives the key pair of an existing private scalar.
func FromPrivate(d int256.Int) (*KeyPair, error) {
	if !curves.IsValidScalar(d) {
		return nil, sm2.ErrInvalidPrivateKey
	}
	return &KeyPair{D: d, Q: curves.ScalarBaseMult(d)}, nil
}

// ParsePrivateKey decodes a hex private key and checks it lies in [1, n-1].
func ParsePrivateKey(s string) (int256.Int, error) {
	d, err := int256.FromHex(s)
	if err != nil {
		return int256.Int{}, fmt.Errorf("%w: %w", sm2.ErrInvalidPrivateKey, err)
	}
	if !curves.IsValidScalar(d) {
		return int256.Int{}, sm2.ErrInvalidPrivateKey
	}
	return d, nil
}

// ParsePublicKey decodes a hex public key, which must be a finite point on
// the curve.
func ParsePublicKey(s string) (curves.Point, error) {
	q, err := curves.DecodeHex(s)
	if err != nil {
		return curves.Point{}, fmt.Errorf("%w: %w", sm2.ErrInvalidPublicKey, err)
	}
	if err := ValidatePublicKey(q); err != nil {
		return curves.Point{}, err
	}
	return q, nil
}

// ValidatePublicKey rejects infinity and points off the curve.
func ValidatePublicKey(q curves.Point) error {
	if q.IsInfinity() {
		return fmt.Errorf("%w: point at infinity", sm2.ErrInvalidPublicKey)
	}
	if !q.IsOnCurve() {
		return fmt.Errorf("%w: point not on curve", sm2.ErrInvalidPublicKey)
	}
	return nil
}

// Encode returns the hex form of the key pair.
func (kp *KeyPair) Encode() sm2.KeyPair {
	return sm2.KeyPair{
		PrivateKey: kp.D.Hex(),
		PublicKey:  kp.Q.Hex(),
	}
}

// Destroy clears the private scalar.
func (kp *KeyPair) Destroy() {
	kp.D = int256.Int{}
}
