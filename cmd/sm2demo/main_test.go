package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/smallyu/go-sm2/pkg/sm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestCommands(t *testing.T) {
	out, err := run(t, "keygen")
	require.NoError(t, err)
	var kp sm2.KeyPair
	require.NoError(t, json.Unmarshal([]byte(out), &kp))

	pub, err := run(t, "pubkey", kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, pub)

	ct, err := run(t, "encrypt", kp.PublicKey, "encryption standard")
	require.NoError(t, err)
	text, err := run(t, "decrypt", kp.PrivateKey, ct)
	require.NoError(t, err)
	assert.Equal(t, "encryption standard", text)

	sig, err := run(t, "sign", kp.PrivateKey, "alice", "message digest")
	require.NoError(t, err)
	out, err = run(t, "verify", kp.PublicKey, "alice", "message digest", sig)
	require.NoError(t, err)
	assert.Equal(t, "valid", out)

	_, err = run(t, "verify", kp.PublicKey, "alice", "other message", sig)
	assert.Error(t, err)
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "encrypt", "04abcd", "x")
	assert.ErrorIs(t, err, sm2.ErrInvalidPublicKey)

	_, err = run(t, "decrypt", "01")
	assert.Error(t, err)

	_, err = run(t, "keygen", "--log-format", "xml")
	assert.Error(t, err)
}
