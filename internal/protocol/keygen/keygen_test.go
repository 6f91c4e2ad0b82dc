package keygen

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/smallyu/go-sm2/internal/crypto/curves"
	"github.com/smallyu/go-sm2/internal/crypto/int256"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	aliceD   = "6FCBA2EF9AE0AB902BC3BDE3FF915D44BA4CC78F88E2F8E7F8996D3B8CCEEDEE"
	alicePub = "0426f1f3ef122785d17d3870c2434650363fdf4b2f450e8ed1b60fdc1fc6f019abd9198bdbefa58476ec8225125b8ce3e10a100dc6976cc189d96da6889ebcd37a"
)

func reader(t *testing.T, draws ...string) *bytes.Reader {
	t.Helper()
	b, err := hex.DecodeString(strings.Join(draws, ""))
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestGenerateDeterministic(t *testing.T) {
	params := &sm2.Parameters{Random: reader(t, aliceD)}

	kp, err := Generate(params)
	require.NoError(t, err)
	assert.Equal(t, aliceD, kp.D.Hex())
	assert.Equal(t, alicePub, kp.Q.Hex())
	assert.True(t, kp.Q.IsOnCurve())

	enc := kp.Encode()
	assert.Equal(t, aliceD, enc.PrivateKey)
	assert.Equal(t, alicePub, enc.PublicKey)
}

func TestRandomScalarRejectsOutOfRange(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	params := &sm2.Parameters{
		Random: reader(t,
			strings.Repeat("00", 32),
			curves.Order().Hex(),
			strings.Repeat("FF", 32),
			aliceD,
		),
		Logger: zap.New(core),
	}

	k, err := RandomScalar(params, "test")
	require.NoError(t, err)
	assert.Equal(t, aliceD, k.Hex())
	assert.Equal(t, 3, logs.FilterMessage("scalar out of range, redrawing").Len())
}

func TestRandomScalarSourceFailure(t *testing.T) {
	params := &sm2.Parameters{Random: reader(t, "0102")}
	_, err := RandomScalar(params, "test")
	assert.ErrorIs(t, err, sm2.ErrRandomSource)
}

func TestGenerateWithSystemRandom(t *testing.T) {
	kp, err := Generate(nil)
	require.NoError(t, err)
	assert.True(t, curves.IsValidScalar(kp.D))
	assert.True(t, curves.ScalarBaseMult(kp.D).Equal(kp.Q))

	kp.Destroy()
	assert.True(t, kp.D.IsZero())
}

func TestFromPrivate(t *testing.T) {
	kp, err := FromPrivate(int256.MustFromHex(aliceD))
	require.NoError(t, err)
	assert.Equal(t, alicePub, kp.Q.Hex())

	_, err = FromPrivate(int256.Zero)
	assert.ErrorIs(t, err, sm2.ErrInvalidPrivateKey)
	_, err = FromPrivate(curves.Order())
	assert.ErrorIs(t, err, sm2.ErrInvalidPrivateKey)
}

func TestParseKeys(t *testing.T) {
	d, err := ParsePrivateKey(strings.ToLower(aliceD))
	require.NoError(t, err)
	assert.Equal(t, aliceD, d.Hex())

	_, err = ParsePrivateKey("not hex")
	assert.ErrorIs(t, err, sm2.ErrInvalidPrivateKey)
	_, err = ParsePrivateKey("00")
	assert.ErrorIs(t, err, sm2.ErrInvalidPrivateKey)

	q, err := ParsePublicKey(alicePub)
	require.NoError(t, err)
	assert.Equal(t, alicePub, q.Hex())

	tests := []struct {
		name string
		in   string
	}{
		{"infinity", "00"},
		{"bad hex", "04xyz"},
		{"compressed", "02" + alicePub[2:66]},
		{"off curve", alicePub[:128] + "00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.in)
			assert.ErrorIs(t, err, sm2.ErrInvalidPublicKey)
		})
	}
}
