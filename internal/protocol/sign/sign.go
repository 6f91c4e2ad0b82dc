// Package sign implements SM2 digital signatures. Signatures are encoded as
// lowercase hex(r) + "h" + hex(s).
package sign

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/smallyu/go-sm2/internal/crypto/curves"
	"github.com/smallyu/go-sm2/internal/crypto/digest"
	"github.com/smallyu/go-sm2/internal/crypto/int256"
	"github.com/smallyu/go-sm2/internal/protocol/identify"
	"github.com/smallyu/go-sm2/internal/protocol/keygen"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"go.uber.org/zap"
)

// Separator splits r and s in the text encoding.
const Separator = "h"

// Signature is a decoded (r, s) pair.
type Signature struct {
	R, S int256.Int
}

func (sig Signature) String() string {
	return sig.R.HexLower() + Separator + sig.S.HexLower()
}

// Parse decodes the text form: exactly 64 hex digits for each of r and s,
// both in [1, n-1].
func Parse(text string) (Signature, error) {
	parts := strings.Split(text, Separator)
	if len(parts) != 2 {
		return Signature{}, fmt.Errorf("%w: expected 2 parts, got %d", sm2.ErrMalformedSignature, len(parts))
	}
	r, err := parseHalf(parts[0])
	if err != nil {
		return Signature{}, fmt.Errorf("%w: r: %w", sm2.ErrMalformedSignature, err)
	}
	s, err := parseHalf(parts[1])
	if err != nil {
		return Signature{}, fmt.Errorf("%w: s: %w", sm2.ErrMalformedSignature, err)
	}
	if !curves.IsValidScalar(r) || !curves.IsValidScalar(s) {
		return Signature{}, fmt.Errorf("%w: r or s out of range", sm2.ErrMalformedSignature)
	}
	return Signature{R: r, S: s}, nil
}

// parseHalf decodes one fixed-width component, without prefix or sign.
func parseHalf(part string) (int256.Int, error) {
	if len(part) != 2*int256.Size {
		return int256.Int{}, fmt.Errorf("expected %d hex digits, got %d", 2*int256.Size, len(part))
	}
	b, err := hex.DecodeString(part)
	if err != nil {
		return int256.Int{}, err
	}
	return int256.FromBytes(b)
}

// messageDigest returns e = H(Z || M) reduced mod n.
func messageDigest(f digest.Factory, userID, message []byte, pub curves.Point) (int256.Int, error) {
	z, err := identify.Digest(f, userID, pub)
	if err != nil {
		return int256.Int{}, err
	}
	e := digest.New(f).Update(z[:]).Update(message).Finish()
	return curves.ReduceScalar(int256.FromBytes32(e)), nil
}

// Sign signs message for userID with private key d. The key n-1 is a valid
// key pair for encryption and key exchange but cannot sign, since 1+d has
// no inverse mod n; it is refused with ErrInvalidPrivateKey.
func Sign(params *sm2.Parameters, userID, message []byte, d int256.Int) (Signature, error) {
	if !curves.IsValidScalar(d) {
		return Signature{}, sm2.ErrInvalidPrivateKey
	}
	f := params.HashFactory()
	log := params.Log()

	// 1. e = H(Z || M)
	pub := curves.ScalarBaseMult(d)
	e, err := messageDigest(f, userID, message, pub)
	if err != nil {
		return Signature{}, err
	}

	// 2. (1 + d)^-1, undefined for d = n - 1
	dInv, err := curves.ScalarInverse(curves.ScalarAdd(d, int256.One))
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %w", sm2.ErrInvalidPrivateKey, err)
	}

	n := curves.Order()
	for attempt := 1; ; attempt++ {
		k, err := keygen.RandomScalar(params, "signature nonce")
		if err != nil {
			return Signature{}, err
		}

		// 3. r = (e + x1) mod n, redrawn when r = 0 or r + k = n
		x1 := curves.ScalarBaseMult(k).X().Int()
		r := curves.ScalarAdd(e, x1)
		if r.IsZero() {
			log.Debug("signature r is zero, redrawing", zap.Int("attempt", attempt))
			continue
		}
		if sum, carry := r.Add(k); carry == 0 && sum.Equal(n) {
			log.Debug("signature r + k equals n, redrawing", zap.Int("attempt", attempt))
			continue
		}

		// 4. s = (1 + d)^-1 (k - r d) mod n
		s := curves.ScalarMul(dInv, curves.ScalarSub(k, curves.ScalarMul(r, d)))
		if s.IsZero() {
			log.Debug("signature s is zero, redrawing", zap.Int("attempt", attempt))
			continue
		}
		return Signature{R: r, S: s}, nil
	}
}

// Verify checks a text signature. It returns nil for a valid signature and
// an error naming the first failed check otherwise.
func Verify(params *sm2.Parameters, userID, message []byte, text string, pub curves.Point) error {
	sig, err := Parse(text)
	if err != nil {
		return err
	}
	if err := keygen.ValidatePublicKey(pub); err != nil {
		return err
	}

	e, err := messageDigest(params.HashFactory(), userID, message, pub)
	if err != nil {
		return err
	}

	t := curves.ScalarAdd(sig.R, sig.S)
	if t.IsZero() {
		return fmt.Errorf("%w: r + s = 0 mod n", sm2.ErrSignatureMismatch)
	}

	point := curves.ScalarBaseMult(sig.S).Add(pub.Multiply(t))
	if point.IsInfinity() {
		return fmt.Errorf("%w: [s]G + [t]Q is infinity", sm2.ErrSignatureMismatch)
	}

	if !curves.ScalarAdd(e, point.X().Int()).Equal(sig.R) {
		return sm2.ErrSignatureMismatch
	}
	return nil
}
