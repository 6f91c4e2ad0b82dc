// Package curves implements point arithmetic on the SM2 recommended curve
// y^2 = x^3 + ax + b over GF(p), with a = p - 3.
package curves

import (
	"github.com/smallyu/go-sm2/internal/crypto/field"
	"github.com/smallyu/go-sm2/internal/crypto/int256"
)

// Params holds the domain parameters of the curve.
type Params struct {
	Name    string
	P       int256.Int // field prime
	A, B    field.Element
	N       int256.Int // order of G
	Gx, Gy  field.Element
	BitSize int
}

var sm2 = &Params{
	Name:    "SM2P256V1",
	P:       field.P,
	A:       field.MustFromHex("FFFFFFFEFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF00000000FFFFFFFFFFFFFFFC"),
	B:       field.MustFromHex("28E9FA9E9D9F5E344D5A9E4BCF6509A7F39789F515AB8F92DDBCBD414D940E93"),
	N:       int256.FromLimbs(0x53BBF40939D54123, 0x7203DF6B21C6052B, 0xFFFFFFFFFFFFFFFF, 0xFFFFFFFEFFFFFFFF),
	Gx:      field.MustFromHex("32C4AE2C1F1981195F9904466A39C9948FE30BBFF2660BE1715A4589334C74C7"),
	Gy:      field.MustFromHex("BC3736A2F4F6779C59BDCEE36B692153D0A9877CC62A474002DF32E52139F0A0"),
	BitSize: 256,
}

// SM2 returns the parameters of the only supported curve. The returned value
// must not be modified.
func SM2() *Params {
	return sm2
}

// Order returns n.
func Order() int256.Int {
	return sm2.N
}

// Generator returns G.
func Generator() Point {
	return Point{x: sm2.Gx, y: sm2.Gy}
}
