// Package exchange implements the SM2 authenticated key agreement between an
// initiator (A) and a responder (B), with key confirmation in both
// directions.
package exchange

import (
	"fmt"

	"github.com/smallyu/go-sm2/internal/crypto/commitment"
	"github.com/smallyu/go-sm2/internal/crypto/curves"
	"github.com/smallyu/go-sm2/internal/crypto/digest"
	"github.com/smallyu/go-sm2/internal/crypto/field"
	"github.com/smallyu/go-sm2/internal/crypto/int256"
	"github.com/smallyu/go-sm2/internal/protocol/identify"
	"github.com/smallyu/go-sm2/internal/protocol/keygen"
	"github.com/smallyu/go-sm2/pkg/sm2"
)

// MaxKeyLength bounds the negotiated key size in bytes.
const MaxKeyLength = 1 << 16

// W is the width used to truncate ephemeral x coordinates,
// ceil(bitlen(n)/2) - 1.
var W = (curves.Order().BitLen()+1)/2 - 1

// xbar returns 2^W + (x mod 2^W).
func xbar(x field.Element) int256.Int {
	return x.Int().Truncate(W).SetBit(W)
}

// Party is the local side of an exchange.
type Party struct {
	ID        []byte
	Static    *keygen.KeyPair
	Ephemeral *keygen.KeyPair
}

// Destroy clears the ephemeral scalar. The static key belongs to the caller.
func (p *Party) Destroy() {
	if p.Ephemeral != nil {
		p.Ephemeral.Destroy()
	}
}

// Peer is what the local side learns about the remote side.
type Peer struct {
	ID        []byte
	Static    curves.Point
	Ephemeral curves.Point
}

// Agreement is the result of combining local and peer material.
type Agreement struct {
	Key        []byte
	Transcript commitment.Transcript
}

// Destroy zeroes the derived key and the shared point.
func (a *Agreement) Destroy() {
	for i := range a.Key {
		a.Key[i] = 0
	}
	a.Key = nil
	a.Transcript.Shared = curves.Infinity()
}

// ValidateKeyLength checks a requested key length in bytes.
func ValidateKeyLength(keyLen int) error {
	if keyLen <= 0 || keyLen > MaxKeyLength {
		return fmt.Errorf("%w: %d", sm2.ErrInvalidKeyLength, keyLen)
	}
	return nil
}

func agree(params *sm2.Parameters, role sm2.Role, local *Party, peer *Peer, keyLen int) (*Agreement, error) {
	if err := ValidateKeyLength(keyLen); err != nil {
		return nil, err
	}
	f := params.HashFactory()

	// 1. The peer's ephemeral point must lie on the curve
	if peer.Ephemeral.IsInfinity() || !peer.Ephemeral.IsOnCurve() {
		return nil, sm2.NewNegotiationError(role, "peer ephemeral point rejected", sm2.ErrEphemeralNotOnCurve)
	}
	if peer.Static.IsInfinity() || !peer.Static.IsOnCurve() {
		return nil, sm2.NewNegotiationError(role, "peer static key rejected", sm2.ErrStaticKeyNotOnCurve)
	}

	// 2. t = (d + xbar(R) * r) mod n
	t := curves.ScalarAdd(local.Static.D, curves.ScalarMul(xbar(local.Ephemeral.Q.X()), local.Ephemeral.D))

	// 3. Shared point [t](P' + [xbar(R')]R')
	combined := peer.Static.Add(peer.Ephemeral.Multiply(xbar(peer.Ephemeral.X()))).Multiply(t)
	if combined.IsInfinity() {
		return nil, sm2.NewNegotiationError(role, "shared point rejected", sm2.ErrSharedPointAtInfinity)
	}

	// 4. Identity digests, always ordered initiator first
	zLocal, err := identify.Digest(f, local.ID, local.Static.Q)
	if err != nil {
		return nil, err
	}
	zPeer, err := identify.Digest(f, peer.ID, peer.Static)
	if err != nil {
		return nil, err
	}

	tr := commitment.Transcript{Shared: combined}
	if role == sm2.Initiator {
		tr.Za, tr.Zb = zLocal, zPeer
		tr.Ra, tr.Rb = local.Ephemeral.Q, peer.Ephemeral
	} else {
		tr.Za, tr.Zb = zPeer, zLocal
		tr.Ra, tr.Rb = peer.Ephemeral, local.Ephemeral.Q
	}

	// 5. K = KDF(x || y || Za || Zb, keyLen)
	x, y := combined.X().Bytes(), combined.Y().Bytes()
	key := digest.KDF(f, keyLen, x[:], y[:], tr.Za[:], tr.Zb[:])

	return &Agreement{Key: key, Transcript: tr}, nil
}

// Respond computes the responder's agreement from the initiator's
// identity, static key and ephemeral point, and returns it with S_B.
func Respond(params *sm2.Parameters, local *Party, initiator *Peer, keyLen int) (*Agreement, []byte, error) {
	a, err := agree(params, sm2.Responder, local, initiator, keyLen)
	if err != nil {
		return nil, nil, err
	}
	return a, commitment.New(params.HashFactory(), commitment.TagResponder, &a.Transcript), nil
}

// Confirm computes the initiator's agreement, checks the responder's S_B and
// returns the agreement with S_A.
func Confirm(params *sm2.Parameters, local *Party, responder *Peer, keyLen int, sb []byte) (*Agreement, []byte, error) {
	a, err := agree(params, sm2.Initiator, local, responder, keyLen)
	if err != nil {
		return nil, nil, err
	}
	f := params.HashFactory()
	if !commitment.Verify(f, commitment.TagResponder, &a.Transcript, sb) {
		a.Destroy()
		return nil, nil, sm2.NewNegotiationError(sm2.Initiator, "responder confirmation mismatch", sm2.ErrConfirmationMismatch)
	}
	return a, commitment.New(f, commitment.TagInitiator, &a.Transcript), nil
}

// CheckInitiator verifies S_A on the responder side.
func (a *Agreement) CheckInitiator(params *sm2.Parameters, sa []byte) error {
	if !commitment.Verify(params.HashFactory(), commitment.TagInitiator, &a.Transcript, sa) {
		return sm2.NewNegotiationError(sm2.Responder, "initiator confirmation mismatch", sm2.ErrConfirmationMismatch)
	}
	return nil
}
