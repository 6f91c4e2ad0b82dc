package encrypt

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/smallyu/go-sm2/internal/crypto/curves"
	"github.com/smallyu/go-sm2/internal/crypto/int256"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bobD   = "5E35D7D3F3C54DBAC72E61819E730B019A84208CA3A35E4C2E353DFCCB2A3B53"
	bobPub = "049EAFB2CEF3C95526C686A6C961A247A1AEE7FC2E802454227A012B083AC553F5E30EB411162CD81274BDAFF97896F264171CAD0743DFA5AD39DFE0D924B167F9"

	fixedK    = "4C62EEFD6ECFC2B95B92FD6C3D9575148AFA17425546D49018E5388D49DD7B4F"
	plaintext = "encryption standard"
	wantCT    = "0411c88ae04cec1ba554d03d5b5970333a83585826c2a985de5520d9e934389efb84b52d344fb21aa8ea38a4940c8332692b8d4da2393549212eafdc0f11ca5c9c" +
		"189b68649bf386ab3942eeadf62b00f76b87887c5860940002ae61b449d1a8e3" +
		"5352b015a3b46b1397d274aa0fce013991ffd4"
)

func fixedReader(t *testing.T, draws ...string) *bytes.Reader {
	t.Helper()
	b, err := hex.DecodeString(strings.Join(draws, ""))
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func bobKey(t *testing.T) (int256.Int, curves.Point) {
	t.Helper()
	pub, err := curves.DecodeHex(bobPub)
	require.NoError(t, err)
	return int256.MustFromHex(bobD), pub
}

func TestEncryptVector(t *testing.T) {
	d, pub := bobKey(t)
	params := &sm2.Parameters{Random: fixedReader(t, fixedK)}

	ct, err := Encrypt(params, []byte(plaintext), pub)
	require.NoError(t, err)
	assert.Equal(t, wantCT, ct)
	assert.Len(t, ct, MinCiphertextLen+2*len(plaintext))

	m, err := Decrypt(nil, ct, d)
	require.NoError(t, err)
	assert.Equal(t, plaintext, string(m))

	m, err = Decrypt(nil, strings.ToUpper(ct), d)
	require.NoError(t, err)
	assert.Equal(t, plaintext, string(m))
}

func TestRoundTrip(t *testing.T) {
	d, pub := bobKey(t)
	messages := [][]byte{
		[]byte("a"),
		[]byte("你好, SM2"),
		bytes.Repeat([]byte{0x5A}, 1000),
	}
	for _, msg := range messages {
		ct, err := Encrypt(nil, msg, pub)
		require.NoError(t, err)
		m, err := Decrypt(nil, ct, d)
		require.NoError(t, err)
		assert.Equal(t, msg, m)
	}
}

func TestRoundTripInjectedHash(t *testing.T) {
	d, pub := bobKey(t)
	params := &sm2.Parameters{Hash: sha256.New}

	ct, err := Encrypt(params, []byte(plaintext), pub)
	require.NoError(t, err)
	m, err := Decrypt(params, ct, d)
	require.NoError(t, err)
	assert.Equal(t, plaintext, string(m))

	// SM3 cannot open a SHA-256 ciphertext
	_, err = Decrypt(nil, ct, d)
	assert.ErrorIs(t, err, sm2.ErrDecryptionVerificationFailed)
}

func TestEncryptErrors(t *testing.T) {
	_, pub := bobKey(t)

	_, err := Encrypt(nil, nil, pub)
	assert.ErrorIs(t, err, sm2.ErrEmptyMessage)

	_, err = Encrypt(nil, []byte("x"), curves.Infinity())
	assert.ErrorIs(t, err, sm2.ErrInvalidPublicKey)

	offCurve := curves.NewPoint(pub.X(), pub.X())
	_, err = Encrypt(nil, []byte("x"), offCurve)
	assert.ErrorIs(t, err, sm2.ErrInvalidPublicKey)

	_, err = Encrypt(&sm2.Parameters{Random: fixedReader(t, "01")}, []byte("x"), pub)
	assert.ErrorIs(t, err, sm2.ErrRandomSource)
}

func TestDecryptErrors(t *testing.T) {
	d, _ := bobKey(t)

	flip := func(s string, i int) string {
		b := []byte(s)
		if b[i] == '0' {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
		return string(b)
	}

	tests := []struct {
		name string
		ct   string
		want error
	}{
		{"short", wantCT[:MinCiphertextLen-1], sm2.ErrCiphertextTooShort},
		{"bad C1 tag", "02" + wantCT[2:], sm2.ErrInvalidC1Point},
		{"C1 off curve", flip(wantCT, 100), sm2.ErrInvalidC1Point},
		{"bad C3 hex", wantCT[:c1HexLen] + "zz" + wantCT[c1HexLen+2:], sm2.ErrInvalidHex},
		{"odd C2", wantCT + "0", sm2.ErrInvalidHex},
		{"C3 mismatch", flip(wantCT, c1HexLen+3), sm2.ErrDecryptionVerificationFailed},
		{"C2 tampered", flip(wantCT, len(wantCT)-1), sm2.ErrDecryptionVerificationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(nil, tt.ct, d)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Decrypt(nil, wantCT, int256.Zero)
	assert.ErrorIs(t, err, sm2.ErrInvalidPrivateKey)
}

func FuzzDecrypt(f *testing.F) {
	f.Add(wantCT)
	f.Add(wantCT[:MinCiphertextLen])
	f.Add("04")
	f.Add(strings.Repeat("0", MinCiphertextLen+2))

	d := int256.MustFromHex(bobD)
	f.Fuzz(func(t *testing.T, ct string) {
		m, err := Decrypt(nil, ct, d)
		if err != nil && m != nil {
			t.Fatalf("partial plaintext returned with error %v", err)
		}
	})
}
