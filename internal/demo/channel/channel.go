// Package channel encrypts demo traffic under a negotiated key with SM4-CBC,
// an all-zero IV and PKCS#7 padding. Ciphertexts travel as hex.
package channel

import (
	"bytes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/smallyu/go-sm2/internal/crypto/digest"
	"github.com/tjfoc/gmsm/sm4"
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrInvalidPadding    = errors.New("invalid padding")
)

// Channel is safe for concurrent use; each call builds its own CBC state.
type Channel struct {
	block cipher.Block
	iv    [sm4.BlockSize]byte
}

// New keys a channel. A 16-byte key is used as is; any other length is
// replaced by the first 16 characters of its uppercase hex SM3 digest, as
// the other demo clients do.
func New(key []byte) (*Channel, error) {
	block, err := sm4.NewCipher(prepareKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create SM4 cipher: %w", err)
	}
	return &Channel{block: block}, nil
}

func prepareKey(key []byte) []byte {
	if len(key) == sm4.BlockSize {
		return key
	}
	sum := digest.Sum(digest.Default(), key)
	return []byte(strings.ToUpper(hex.EncodeToString(sum[:]))[:sm4.BlockSize])
}

// Encrypt returns the hex ciphertext of plaintext.
func (c *Channel) Encrypt(plaintext string) string {
	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv[:]).CryptBlocks(out, padded)
	return hex.EncodeToString(out)
}

func (c *Channel) Decrypt(ciphertext string) (string, error) {
	in, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(in) == 0 || len(in)%sm4.BlockSize != 0 {
		return "", fmt.Errorf("%w: length %d is not a positive multiple of %d", ErrInvalidCiphertext, len(in), sm4.BlockSize)
	}
	out := make([]byte, len(in))
	cipher.NewCBCDecrypter(c.block, c.iv[:]).CryptBlocks(out, in)
	plain, err := unpad(out)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(b []byte) []byte {
	n := sm4.BlockSize - len(b)%sm4.BlockSize
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > sm4.BlockSize || n > len(b) {
		return nil, ErrInvalidPadding
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, ErrInvalidPadding
		}
	}
	return b[:len(b)-n], nil
}
