package sm2

import (
	"errors"
	"fmt"

	"github.com/smallyu/go-sm2/internal/crypto/curves"
	"github.com/smallyu/go-sm2/internal/crypto/int256"
)

// Errors returned by the SM2 engine. Match them with errors.Is.
var (
	ErrDivisionByZero        = int256.ErrDivisionByZero
	ErrInvalidHex            = int256.ErrInvalidHex
	ErrUnsupportedEncoding   = curves.ErrUnsupportedEncoding
	ErrInvalidEncodingLength = curves.ErrInvalidEncodingLength

	ErrInvalidPublicKey             = errors.New("invalid public key")
	ErrInvalidPrivateKey            = errors.New("invalid private key")
	ErrEmptyMessage                 = errors.New("message is empty")
	ErrCiphertextTooShort           = errors.New("ciphertext too short")
	ErrInvalidC1Point               = errors.New("invalid C1 point")
	ErrDecryptionFailed             = errors.New("decryption failed")
	ErrDecryptionVerificationFailed = errors.New("decryption verification failed")
	ErrInvalidPlaintext             = errors.New("plaintext is not valid UTF-8 text")
	ErrMalformedSignature           = errors.New("malformed signature")
	ErrSignatureMismatch            = errors.New("signature verification failed")
	ErrUserIDTooLong                = errors.New("user ID too long")
	ErrRandomSource                 = errors.New("random source failure")
	ErrInvalidHashSize              = errors.New("hash size must be 32 bytes")

	ErrInvalidKeyLength      = errors.New("invalid negotiated key length")
	ErrEphemeralNotOnCurve   = errors.New("ephemeral point not on curve")
	ErrStaticKeyNotOnCurve   = errors.New("static public key not on curve")
	ErrSharedPointAtInfinity = errors.New("shared point is at infinity")
	ErrConfirmationMismatch  = errors.New("key confirmation mismatch")
	ErrExchangeAborted       = errors.New("key exchange already aborted")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
)

// NegotiationError reports an aborted key exchange and the side that
// detected the failure.
type NegotiationError struct {
	Role   Role
	Reason string
	Err    error
}

func (e *NegotiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("key exchange aborted by %s: %s: %v", e.Role, e.Reason, e.Err)
	}
	return fmt.Sprintf("key exchange aborted by %s: %s", e.Role, e.Reason)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// NewNegotiationError creates a new NegotiationError.
func NewNegotiationError(role Role, reason string, err error) *NegotiationError {
	return &NegotiationError{
		Role:   role,
		Reason: reason,
		Err:    err,
	}
}
