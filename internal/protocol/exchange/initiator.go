package exchange

import (
	"encoding/hex"
	"fmt"

	"github.com/smallyu/go-sm2/internal/protocol/keygen"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"go.uber.org/zap"
)

type initiatorState struct {
	params *sm2.Parameters

	// Current round number; the initiator waits in round 2
	round int

	local  *Party
	keyLen int

	// Set once an error ended the exchange
	aborted bool
}

// NewInitiator starts an exchange as party A. It draws the ephemeral key
// and returns the round 1 message for the responder.
func NewInitiator(params *sm2.Parameters, id string, static *keygen.KeyPair, keyLen int) (sm2.StateMachine, []sm2.Message, error) {
	if err := ValidateKeyLength(keyLen); err != nil {
		return nil, nil, err
	}

	// 1. Ephemeral key pair (r_A, R_A)
	eph, err := newEphemeral(params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	s := &initiatorState{
		params: params,
		round:  2,
		local:  &Party{ID: []byte(id), Static: static, Ephemeral: eph},
		keyLen: keyLen,
	}

	// 2. Announce identity, static key and ephemeral point
	msg, err := newMessage(id, MsgInit, 1, &InitPayload{
		ID:           id,
		StaticKey:    static.Q.Hex(),
		EphemeralKey: eph.Q.Hex(),
		KeyLength:    keyLen,
	})
	if err != nil {
		s.Destroy()
		return nil, nil, err
	}

	params.Log().Debug("key exchange started", zap.Stringer("role", sm2.Initiator), zap.String("id", id))
	return s, []sm2.Message{msg}, nil
}

// Update consumes the responder's answer. Any error ends the exchange and
// zeroes the ephemeral scalar.
func (s *initiatorState) Update(msg sm2.Message) (sm2.StateMachine, []sm2.Message, error) {
	if s.aborted {
		return nil, nil, sm2.ErrExchangeAborted
	}
	if err := expect(msg, uint32(s.round), MsgResponse); err != nil {
		return s.abort(err)
	}
	var payload ResponsePayload
	if err := decode(msg, &payload); err != nil {
		return s.abort(err)
	}
	sb, err := decodeConfirmation(payload.Confirmation)
	if err != nil {
		return s.abort(err)
	}

	// 1. Validate the responder's points, derive K and check S_B
	peer, err := decodePeer(sm2.Initiator, payload.ID, payload.StaticKey, payload.EphemeralKey)
	if err != nil {
		return s.abort(err)
	}
	agreement, sa, err := Confirm(s.params, s.local, peer, s.keyLen, sb)
	if err != nil {
		return s.abort(err)
	}

	// 2. Send S_A and finish
	out, err := newMessage(string(s.local.ID), MsgConfirm, 3, &ConfirmPayload{Confirmation: hex.EncodeToString(sa)})
	if err != nil {
		agreement.Destroy()
		return s.abort(err)
	}

	result := &sm2.ExchangeResult{
		Role:    sm2.Initiator,
		LocalID: string(s.local.ID),
		PeerID:  payload.ID,
		Key:     agreement.Key,
	}
	s.Destroy()

	s.params.Log().Debug("key exchange confirmed", zap.Stringer("role", sm2.Initiator), zap.String("peer", payload.ID))
	return &finishedState{result: result}, []sm2.Message{out}, nil
}

func (s *initiatorState) abort(err error) (sm2.StateMachine, []sm2.Message, error) {
	logAbort(s.params, sm2.Initiator, err)
	s.Destroy()
	s.aborted = true
	return nil, nil, err
}

func (s *initiatorState) Result() interface{} {
	return nil
}

func (s *initiatorState) Details() string {
	return fmt.Sprintf("KeyExchange Initiator Round %d", s.round)
}

// Destroy clears the ephemeral scalar.
func (s *initiatorState) Destroy() {
	s.local.Destroy()
}
