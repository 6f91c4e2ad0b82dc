// Package identify computes the SM2 identity digest Z that binds a user ID
// and public key to the curve parameters.
package identify

import (
	"fmt"

	"github.com/smallyu/go-sm2/internal/crypto/curves"
	"github.com/smallyu/go-sm2/internal/crypto/digest"
	"github.com/smallyu/go-sm2/pkg/sm2"
)

// MaxIDLength is the longest user ID whose bit length fits the 16-bit ENTL field.
const MaxIDLength = 0xFFFF / 8

// Digest returns Z = H(ENTL || ID || a || b || Gx || Gy || Qx || Qy), where
// ENTL is the bit length of ID as a big-endian uint16.
func Digest(f digest.Factory, userID []byte, pub curves.Point) ([digest.Size]byte, error) {
	if len(userID) > MaxIDLength {
		return [digest.Size]byte{}, fmt.Errorf("%w: %d bytes", sm2.ErrUserIDTooLong, len(userID))
	}
	if pub.IsInfinity() {
		return [digest.Size]byte{}, fmt.Errorf("%w: point at infinity", sm2.ErrInvalidPublicKey)
	}

	params := curves.SM2()
	entl := uint16(len(userID) * 8)
	a, b := params.A.Bytes(), params.B.Bytes()
	gx, gy := params.Gx.Bytes(), params.Gy.Bytes()
	qx, qy := pub.X().Bytes(), pub.Y().Bytes()

	h := digest.New(f)
	h.UpdateByte(byte(entl >> 8)).UpdateByte(byte(entl))
	h.Update(userID)
	h.Update(a[:]).Update(b[:])
	h.Update(gx[:]).Update(gy[:])
	h.Update(qx[:]).Update(qy[:])
	return h.Finish(), nil
}
