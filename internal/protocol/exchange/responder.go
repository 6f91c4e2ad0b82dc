package exchange

import (
	"encoding/hex"
	"fmt"

	"github.com/smallyu/go-sm2/internal/protocol/keygen"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"go.uber.org/zap"
)

type responderState struct {
	params *sm2.Parameters

	// Current round number: 1 before the init message, 3 while waiting for S_A
	round int

	local     *Party
	peerID    string
	agreement *Agreement

	// Set once an error ended the exchange
	aborted bool
}

// NewResponder prepares party B to answer an initiator. Nothing is sent
// until the round 1 message arrives.
func NewResponder(params *sm2.Parameters, id string, static *keygen.KeyPair) (sm2.StateMachine, error) {
	if static == nil {
		return nil, sm2.ErrInvalidPrivateKey
	}
	params.Log().Debug("key exchange waiting", zap.Stringer("role", sm2.Responder), zap.String("id", id))
	return &responderState{
		params: params,
		round:  1,
		local:  &Party{ID: []byte(id), Static: static},
	}, nil
}

// Update advances the responder. Any error ends the exchange and zeroes
// whatever secret the state holds.
func (s *responderState) Update(msg sm2.Message) (sm2.StateMachine, []sm2.Message, error) {
	if s.aborted {
		return nil, nil, sm2.ErrExchangeAborted
	}
	switch s.round {
	case 1:
		return s.round1(msg)
	case 3:
		return s.round3(msg)
	default:
		return s.abort(fmt.Errorf("unknown round %d", s.round))
	}
}

// round1 answers the initiator with the responder keys and S_B.
func (s *responderState) round1(msg sm2.Message) (sm2.StateMachine, []sm2.Message, error) {
	if err := expect(msg, 1, MsgInit); err != nil {
		return s.abort(err)
	}
	var payload InitPayload
	if err := decode(msg, &payload); err != nil {
		return s.abort(err)
	}
	if err := ValidateKeyLength(payload.KeyLength); err != nil {
		return s.abort(err)
	}

	// 1. Ephemeral key pair (r_B, R_B)
	eph, err := newEphemeral(s.params)
	if err != nil {
		return s.abort(fmt.Errorf("failed to generate ephemeral key: %w", err))
	}
	s.local.Ephemeral = eph

	// 2. Validate the initiator's points, derive K and S_B
	peer, err := decodePeer(sm2.Responder, payload.ID, payload.StaticKey, payload.EphemeralKey)
	if err != nil {
		return s.abort(err)
	}
	agreement, sb, err := Respond(s.params, s.local, peer, payload.KeyLength)
	if err != nil {
		return s.abort(err)
	}

	out, err := newMessage(string(s.local.ID), MsgResponse, 2, &ResponsePayload{
		ID:           string(s.local.ID),
		StaticKey:    s.local.Static.Q.Hex(),
		EphemeralKey: eph.Q.Hex(),
		Confirmation: hex.EncodeToString(sb),
	})
	if err != nil {
		agreement.Destroy()
		return s.abort(err)
	}

	// The ephemeral scalar is not needed past this point
	s.local.Destroy()
	s.agreement = agreement
	s.peerID = payload.ID
	s.round = 3

	s.params.Log().Debug("key exchange answered", zap.Stringer("role", sm2.Responder), zap.String("peer", payload.ID))
	return s, []sm2.Message{out}, nil
}

// round3 checks S_A and releases the key.
func (s *responderState) round3(msg sm2.Message) (sm2.StateMachine, []sm2.Message, error) {
	if err := expect(msg, 3, MsgConfirm); err != nil {
		return s.abort(err)
	}
	var payload ConfirmPayload
	if err := decode(msg, &payload); err != nil {
		return s.abort(err)
	}
	sa, err := hex.DecodeString(payload.Confirmation)
	if err != nil {
		return s.abort(sm2.NewNegotiationError(sm2.Responder, "initiator confirmation malformed",
			fmt.Errorf("%w: %v", sm2.ErrConfirmationMismatch, err)))
	}

	if err := s.agreement.CheckInitiator(s.params, sa); err != nil {
		return s.abort(err)
	}

	result := &sm2.ExchangeResult{
		Role:    sm2.Responder,
		LocalID: string(s.local.ID),
		PeerID:  s.peerID,
		Key:     s.agreement.Key,
	}
	s.agreement = nil

	s.params.Log().Debug("key exchange confirmed", zap.Stringer("role", sm2.Responder), zap.String("peer", s.peerID))
	return &finishedState{result: result}, nil, nil
}

func (s *responderState) abort(err error) (sm2.StateMachine, []sm2.Message, error) {
	logAbort(s.params, sm2.Responder, err)
	s.Destroy()
	s.aborted = true
	return nil, nil, err
}

func (s *responderState) Result() interface{} {
	return nil
}

func (s *responderState) Details() string {
	return fmt.Sprintf("KeyExchange Responder Round %d", s.round)
}

// Destroy clears the ephemeral scalar and any derived key material.
func (s *responderState) Destroy() {
	s.local.Destroy()
	if s.agreement != nil {
		s.agreement.Destroy()
		s.agreement = nil
	}
}
