package exchange

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/smallyu/go-sm2/internal/crypto/curves"
	"github.com/smallyu/go-sm2/internal/protocol/keygen"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"go.uber.org/zap"
)

// expect validates the round and type of an incoming message.
func expect(msg sm2.Message, round uint32, msgType string) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", sm2.ErrInvalidMsg)
	}
	if msg.RoundNumber() != round {
		return fmt.Errorf("%w: received message for round %d, expected %d", sm2.ErrInvalidMsg, msg.RoundNumber(), round)
	}
	if msg.Type() != msgType {
		return fmt.Errorf("%w: received %q, expected %q", sm2.ErrInvalidMsg, msg.Type(), msgType)
	}
	return nil
}

func decode(msg sm2.Message, v interface{}) error {
	if err := json.Unmarshal(msg.Payload(), v); err != nil {
		return fmt.Errorf("%w: %v", sm2.ErrInvalidMsg, err)
	}
	return nil
}

// decodePeer parses the peer's hex keys. A malformed ephemeral point aborts
// the exchange like one that is off the curve.
func decodePeer(role sm2.Role, id, static, ephemeral string) (*Peer, error) {
	r, err := curves.DecodeHex(ephemeral)
	if err != nil {
		return nil, sm2.NewNegotiationError(role, "peer ephemeral point rejected",
			fmt.Errorf("%w: %w", sm2.ErrEphemeralNotOnCurve, err))
	}
	p, err := curves.DecodeHex(static)
	if err != nil {
		return nil, sm2.NewNegotiationError(role, "peer static key rejected",
			fmt.Errorf("%w: %w", sm2.ErrStaticKeyNotOnCurve, err))
	}
	return &Peer{ID: []byte(id), Static: p, Ephemeral: r}, nil
}

func decodeConfirmation(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: confirmation: %v", sm2.ErrInvalidMsg, err)
	}
	return b, nil
}

func newMessage(from, msgType string, round uint32, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return &Message{
		FromID:     from,
		TypeString: msgType,
		RoundNum:   round,
		Data:       data,
	}, nil
}

func newEphemeral(params *sm2.Parameters) (*keygen.KeyPair, error) {
	r, err := keygen.RandomScalar(params, "exchange ephemeral")
	if err != nil {
		return nil, err
	}
	return &keygen.KeyPair{D: r, Q: curves.ScalarBaseMult(r)}, nil
}

func logAbort(params *sm2.Parameters, role sm2.Role, err error) {
	params.Log().Warn("key exchange aborted",
		zap.Stringer("role", role),
		zap.Error(err))
}

// finishedState holds the negotiated key of a completed exchange.
type finishedState struct {
	result *sm2.ExchangeResult
}

func (s *finishedState) Update(msg sm2.Message) (sm2.StateMachine, []sm2.Message, error) {
	return nil, nil, sm2.ErrProtocolDone
}

func (s *finishedState) Result() interface{} {
	return s.result
}

func (s *finishedState) Details() string {
	return fmt.Sprintf("KeyExchange %s Finished", roleTitle(s.result.Role))
}

// Destroy zeroes the negotiated key.
func (s *finishedState) Destroy() {
	s.result.Destroy()
}

func roleTitle(r sm2.Role) string {
	switch r {
	case sm2.Initiator:
		return "Initiator"
	case sm2.Responder:
		return "Responder"
	default:
		return "Unknown"
	}
}
