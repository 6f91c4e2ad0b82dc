// Package encrypt implements SM2 public-key encryption. Ciphertexts are
// lowercase hex of C1 || C3 || C2.
package encrypt

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/smallyu/go-sm2/internal/crypto/curves"
	"github.com/smallyu/go-sm2/internal/crypto/digest"
	"github.com/smallyu/go-sm2/internal/crypto/int256"
	"github.com/smallyu/go-sm2/internal/protocol/keygen"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"go.uber.org/zap"
)

const (
	c1HexLen = 2 * curves.EncodedLen
	c3HexLen = 2 * digest.Size

	// MinCiphertextLen is the hex length of C1 and C3 alone.
	MinCiphertextLen = c1HexLen + c3HexLen
)

// Encrypt encrypts message to pub.
func Encrypt(params *sm2.Parameters, message []byte, pub curves.Point) (string, error) {
	if len(message) == 0 {
		return "", sm2.ErrEmptyMessage
	}
	if err := keygen.ValidatePublicKey(pub); err != nil {
		return "", err
	}

	f := params.HashFactory()
	log := params.Log()
	for attempt := 1; ; attempt++ {
		// 1. C1 = [k]G for a fresh ephemeral k
		k, err := keygen.RandomScalar(params, "encryption ephemeral")
		if err != nil {
			return "", err
		}
		c1 := curves.ScalarBaseMult(k)

		// 2. Shared point [k]Q
		shared := pub.Multiply(k)
		if shared.IsInfinity() {
			log.Debug("shared point at infinity, redrawing", zap.Int("attempt", attempt))
			continue
		}
		x, y := shared.X().Bytes(), shared.Y().Bytes()

		// 3. Key stream, which must not be all zero
		t := digest.KDF(f, len(message), x[:], y[:])
		if digest.IsZero(t) {
			log.Debug("all-zero key stream, redrawing", zap.Int("attempt", attempt))
			continue
		}

		// 4. C2 = M xor t, C3 = H(x || M || y)
		c2 := make([]byte, len(message))
		subtle.XORBytes(c2, message, t)
		c3 := digest.Sum(f, x[:], message, y[:])

		return c1.Hex() + hex.EncodeToString(c3[:]) + hex.EncodeToString(c2), nil
	}
}

// Decrypt recovers the message from a hex ciphertext with private key d.
func Decrypt(params *sm2.Parameters, ciphertext string, d int256.Int) ([]byte, error) {
	if len(ciphertext) < MinCiphertextLen {
		return nil, fmt.Errorf("%w: %d hex characters, need at least %d",
			sm2.ErrCiphertextTooShort, len(ciphertext), MinCiphertextLen)
	}
	if !curves.IsValidScalar(d) {
		return nil, sm2.ErrInvalidPrivateKey
	}

	// 1. Split and decode C1 || C3 || C2
	c1, err := curves.DecodeHex(ciphertext[:c1HexLen])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sm2.ErrInvalidC1Point, err)
	}
	if c1.IsInfinity() || !c1.IsOnCurve() {
		return nil, fmt.Errorf("%w: point not on curve", sm2.ErrInvalidC1Point)
	}
	c3, err := hex.DecodeString(ciphertext[c1HexLen:MinCiphertextLen])
	if err != nil {
		return nil, fmt.Errorf("%w: C3: %v", sm2.ErrInvalidHex, err)
	}
	c2, err := hex.DecodeString(ciphertext[MinCiphertextLen:])
	if err != nil {
		return nil, fmt.Errorf("%w: C2: %v", sm2.ErrInvalidHex, err)
	}

	// 2. Shared point [d]C1
	shared := c1.Multiply(d)
	if shared.IsInfinity() {
		return nil, fmt.Errorf("%w: shared point at infinity", sm2.ErrDecryptionFailed)
	}
	x, y := shared.X().Bytes(), shared.Y().Bytes()

	// 3. Undo the key stream
	f := params.HashFactory()
	t := digest.KDF(f, len(c2), x[:], y[:])
	if len(c2) > 0 && digest.IsZero(t) {
		return nil, fmt.Errorf("%w: all-zero key stream", sm2.ErrDecryptionFailed)
	}
	m := make([]byte, len(c2))
	subtle.XORBytes(m, c2, t)

	// 4. Check C3
	want := digest.Sum(f, x[:], m, y[:])
	if subtle.ConstantTimeCompare(want[:], c3) != 1 {
		for i := range m {
			m[i] = 0
		}
		return nil, sm2.ErrDecryptionVerificationFailed
	}
	return m, nil
}
