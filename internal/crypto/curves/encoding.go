package curves

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/smallyu/go-sm2/internal/crypto/field"
)

const (
	// EncodedLen is the length of an uncompressed encoding 0x04||X||Y.
	EncodedLen = 65

	tagInfinity     = 0x00
	tagUncompressed = 0x04
)

var (
	ErrUnsupportedEncoding   = errors.New("unsupported point encoding")
	ErrInvalidEncodingLength = errors.New("invalid point encoding length")
	ErrInvalidPointHex       = errors.New("invalid point hex")
)

// Encode returns 0x04||X||Y, or the single byte 0x00 for infinity.
func (p Point) Encode() []byte {
	if p.infinity {
		return []byte{tagInfinity}
	}
	out := make([]byte, EncodedLen)
	out[0] = tagUncompressed
	x, y := p.x.Bytes(), p.y.Bytes()
	copy(out[1:33], x[:])
	copy(out[33:], y[:])
	return out
}

// Hex returns the lowercase hex of Encode.
func (p Point) Hex() string {
	return hex.EncodeToString(p.Encode())
}

func (p Point) String() string {
	if p.infinity {
		return "infinity"
	}
	return p.Hex()
}

// Decode parses an uncompressed encoding. It does not check that the point
// lies on the curve.
func Decode(b []byte) (Point, error) {
	if len(b) == 0 {
		return Point{}, ErrInvalidEncodingLength
	}
	switch b[0] {
	case tagInfinity:
		if len(b) != 1 {
			return Point{}, ErrInvalidEncodingLength
		}
		return Infinity(), nil
	case tagUncompressed:
		if len(b) != EncodedLen {
			return Point{}, ErrInvalidEncodingLength
		}
	default:
		return Point{}, fmt.Errorf("%w: leading byte 0x%02x", ErrUnsupportedEncoding, b[0])
	}

	var xb, yb [32]byte
	copy(xb[:], b[1:33])
	copy(yb[:], b[33:])
	x, err := field.FromBytes(xb)
	if err != nil {
		return Point{}, fmt.Errorf("x coordinate: %w", err)
	}
	y, err := field.FromBytes(yb)
	if err != nil {
		return Point{}, fmt.Errorf("y coordinate: %w", err)
	}
	return Point{x: x, y: y}, nil
}

// DecodeHex parses the hex form of an encoding, in either case.
func DecodeHex(s string) (Point, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrInvalidPointHex, err)
	}
	return Decode(b)
}
