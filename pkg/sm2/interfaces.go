package sm2

import (
	"crypto/rand"
	"errors"
	"hash"
	"io"

	"go.uber.org/zap"
)

// Errors returned by the handshake state machines.
var (
	ErrInvalidMsg   = errors.New("invalid message received")
	ErrProtocolDone = errors.New("protocol already finished")
)

// Role identifies a side of the key exchange.
type Role int

const (
	Initiator Role = iota + 1
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return "unknown"
	}
}

// Message is a handshake message exchanged between the two parties.
type Message interface {
	// Type returns a string identifier for the message type.
	Type() string

	// From returns the user ID of the sender.
	From() string

	// Payload returns the serialized message body.
	Payload() []byte

	// RoundNumber returns the handshake round this message belongs to.
	RoundNumber() uint32
}

// StateMachine drives one side of the key exchange.
type StateMachine interface {
	// Update applies an incoming message to the current state.
	// It returns:
	// - next: The new state machine (nil if the handshake failed).
	// - out: Messages to deliver to the peer.
	// - err: An error if the transition failed.
	Update(msg Message) (next StateMachine, out []Message, err error)

	// Result returns the *ExchangeResult once finished, nil before.
	Result() interface{}

	// Details returns a description of the current state (e.g., "KeyExchange Responder Round 3").
	Details() string
}

// Destroyer is implemented by states that hold secret material.
type Destroyer interface {
	Destroy()
}

// Parameters carries the collaborators shared by every SM2 operation.
type Parameters struct {
	Random io.Reader        // source of scalars, crypto/rand when nil
	Hash   func() hash.Hash // 32-byte digest, SM3 when nil
	Logger *zap.Logger      // no-op when nil
}

func (p *Parameters) Rand() io.Reader {
	if p == nil || p.Random == nil {
		return rand.Reader
	}
	return p.Random
}

func (p *Parameters) HashFactory() func() hash.Hash {
	if p == nil {
		return nil
	}
	return p.Hash
}

func (p *Parameters) Log() *zap.Logger {
	if p == nil || p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// KeyPair is a hex-encoded SM2 key pair. The private key is 64 hex
// characters, the public key the 130-character uncompressed point.
type KeyPair struct {
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
}

// ExchangeResult is the outcome of a completed key exchange.
type ExchangeResult struct {
	Role    Role
	LocalID string
	PeerID  string
	Key     []byte
}

// Destroy zeroes the negotiated key.
func (r *ExchangeResult) Destroy() {
	for i := range r.Key {
		r.Key[i] = 0
	}
	r.Key = nil
}

// SessionStore keeps handshake state between requests. At most one live
// session exists per identifier.
type SessionStore interface {
	Put(id string, sm StateMachine) error
	Get(id string) (StateMachine, error)
	Remove(id string)
}
