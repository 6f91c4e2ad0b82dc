// Package commitment computes the key confirmation values exchanged at the
// end of an SM2 key agreement. Each side commits to the shared point and
// the full handshake transcript, and proves it by revealing the hash.
package commitment

import (
	"crypto/subtle"

	"github.com/smallyu/go-sm2/internal/crypto/curves"
	"github.com/smallyu/go-sm2/internal/crypto/digest"
)

// Tags that separate the two confirmation values.
const (
	TagResponder byte = 0x02 // S_B, sent by the responder
	TagInitiator byte = 0x03 // S_A, sent by the initiator
)

// Transcript is everything both parties agree on once the shared point is known.
type Transcript struct {
	Shared curves.Point // U on the initiator side, V on the responder side
	Za, Zb [digest.Size]byte
	Ra, Rb curves.Point // ephemeral points of initiator and responder
}

// inner returns H(x || Za || Zb || Ra.x || Ra.y || Rb.x || Rb.y).
func (t *Transcript) inner(f digest.Factory) [digest.Size]byte {
	x := t.Shared.X().Bytes()
	rax, ray := t.Ra.X().Bytes(), t.Ra.Y().Bytes()
	rbx, rby := t.Rb.X().Bytes(), t.Rb.Y().Bytes()
	return digest.Sum(f, x[:], t.Za[:], t.Zb[:], rax[:], ray[:], rbx[:], rby[:])
}

// New returns the confirmation value S = H(tag || y || inner).
func New(f digest.Factory, tag byte, t *Transcript) []byte {
	y := t.Shared.Y().Bytes()
	in := t.inner(f)
	s := digest.New(f).UpdateByte(tag).Update(y[:]).Update(in[:]).Finish()
	return s[:]
}

// Verify recomputes the confirmation value for tag and compares it with
// received in constant time.
func Verify(f digest.Factory, tag byte, t *Transcript, received []byte) bool {
	if len(received) != digest.Size {
		return false
	}
	return subtle.ConstantTimeCompare(New(f, tag, t), received) == 1
}
