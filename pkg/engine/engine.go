// Package engine is the hex and text facade over the SM2 primitives. Keys,
// points, signatures and ciphertexts cross this API as hex strings in the
// formats other SM2 ports produce.
package engine

import (
	"fmt"
	"hash"
	"io"
	"unicode/utf8"

	"github.com/smallyu/go-sm2/internal/crypto/digest"
	"github.com/smallyu/go-sm2/internal/protocol/encrypt"
	"github.com/smallyu/go-sm2/internal/protocol/exchange"
	"github.com/smallyu/go-sm2/internal/protocol/keygen"
	"github.com/smallyu/go-sm2/internal/protocol/sign"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"go.uber.org/zap"
)

// Option configures an Engine.
type Option func(e *Engine) error

// WithRandom replaces crypto/rand as the scalar source.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) error {
		e.params.Random = r
		return nil
	}
}

// WithHash replaces SM3. The factory must produce 32-byte digests.
func WithHash(f func() hash.Hash) Option {
	return func(e *Engine) error {
		if f == nil {
			return nil
		}
		if size := f().Size(); size != digest.Size {
			return fmt.Errorf("%w: got %d", sm2.ErrInvalidHashSize, size)
		}
		e.params.Hash = f
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) error {
		e.params.Logger = l
		return nil
	}
}

// Engine runs SM2 operations. It holds no mutable state and is safe for
// concurrent use if its random source is.
type Engine struct {
	params *sm2.Parameters
}

func New(opts ...Option) (*Engine, error) {
	e := &Engine{params: &sm2.Parameters{}}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Parameters exposes the collaborators for packages that drive the
// protocol layer directly.
func (e *Engine) Parameters() *sm2.Parameters {
	return e.params
}

func (e *Engine) log() *zap.Logger {
	return e.params.Log()
}

// GenerateKeyPair draws a fresh key pair.
func (e *Engine) GenerateKeyPair() (sm2.KeyPair, error) {
	kp, err := keygen.Generate(e.params)
	if err != nil {
		return sm2.KeyPair{}, err
	}
	defer kp.Destroy()
	return kp.Encode(), nil
}

// PublicKey derives the public key of a hex private key.
func (e *Engine) PublicKey(privateKey string) (string, error) {
	d, err := keygen.ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	kp, err := keygen.FromPrivate(d)
	if err != nil {
		return "", err
	}
	defer kp.Destroy()
	return kp.Q.Hex(), nil
}

// ValidatePublicKey reports whether publicKey decodes to a finite point on
// the curve.
func (e *Engine) ValidatePublicKey(publicKey string) error {
	_, err := keygen.ParsePublicKey(publicKey)
	return err
}

// Encrypt encrypts message to publicKey and returns the hex ciphertext.
func (e *Engine) Encrypt(message []byte, publicKey string) (string, error) {
	if len(message) == 0 {
		return "", sm2.ErrEmptyMessage
	}
	q, err := keygen.ParsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	return encrypt.Encrypt(e.params, message, q)
}

// Decrypt recovers the text encrypted in ciphertext. The plaintext must be
// valid UTF-8.
func (e *Engine) Decrypt(ciphertext, privateKey string) (string, error) {
	d, err := keygen.ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	plain, err := encrypt.Decrypt(e.params, ciphertext, d)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", sm2.ErrInvalidPlaintext
	}
	return string(plain), nil
}

// DecryptBytes is Decrypt without the text check.
func (e *Engine) DecryptBytes(ciphertext, privateKey string) ([]byte, error) {
	d, err := keygen.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return encrypt.Decrypt(e.params, ciphertext, d)
}

// Sign signs message on behalf of userID and returns "r h s" in hex.
// PublicKey accepts the private key n-1, but Sign refuses it with
// sm2.ErrInvalidPrivateKey.
func (e *Engine) Sign(userID string, message []byte, privateKey string) (string, error) {
	d, err := keygen.ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	sig, err := sign.Sign(e.params, []byte(userID), message, d)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

// Verify checks signature over message for userID and publicKey. Every
// failure, including malformed input, reports false.
func (e *Engine) Verify(userID, signature string, message []byte, publicKey string) bool {
	q, err := keygen.ParsePublicKey(publicKey)
	if err == nil {
		err = sign.Verify(e.params, []byte(userID), message, signature, q)
	}
	if err != nil {
		e.log().Debug("signature rejected", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return true
}

// NewInitiator starts a key exchange as party A and returns the first
// message for the responder.
func (e *Engine) NewInitiator(id, privateKey string, keyLen int) (sm2.StateMachine, []sm2.Message, error) {
	static, err := e.staticKey(privateKey)
	if err != nil {
		return nil, nil, err
	}
	return exchange.NewInitiator(e.params, id, static, keyLen)
}

// NewResponder prepares party B to answer an initiator.
func (e *Engine) NewResponder(id, privateKey string) (sm2.StateMachine, error) {
	static, err := e.staticKey(privateKey)
	if err != nil {
		return nil, err
	}
	return exchange.NewResponder(e.params, id, static)
}

func (e *Engine) staticKey(privateKey string) (*keygen.KeyPair, error) {
	d, err := keygen.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return keygen.FromPrivate(d)
}
