package sm2

import (
	"errors"
	"testing"
)

func TestNegotiationError(t *testing.T) {
	err := NewNegotiationError(Responder, "peer ephemeral point rejected", ErrEphemeralNotOnCurve)

	want := "key exchange aborted by responder: peer ephemeral point rejected: ephemeral point not on curve"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var wrapped error = err
	if !errors.Is(wrapped, ErrEphemeralNotOnCurve) {
		t.Error("errors.Is did not see the wrapped kind")
	}

	var ne *NegotiationError
	if !errors.As(wrapped, &ne) || ne.Role != Responder {
		t.Error("errors.As did not recover the role")
	}

	bare := NewNegotiationError(Initiator, "timeout", nil)
	if bare.Error() != "key exchange aborted by initiator: timeout" {
		t.Errorf("unexpected message %q", bare.Error())
	}
	if bare.Unwrap() != nil {
		t.Error("expected nil Unwrap")
	}
}
