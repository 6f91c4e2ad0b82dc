package curves

import (
	"github.com/smallyu/go-sm2/internal/crypto/field"
	"github.com/smallyu/go-sm2/internal/crypto/int256"
)

// Point is an affine point on the curve, or the point at infinity.
// Points are values and are never modified after construction.
type Point struct {
	x, y     field.Element
	infinity bool
}

// NewPoint returns the affine point (x, y) without checking it lies on the curve.
func NewPoint(x, y field.Element) Point {
	return Point{x: x, y: y}
}

// Infinity returns the identity element.
func Infinity() Point {
	return Point{infinity: true}
}

func (p Point) X() field.Element { return p.x }
func (p Point) Y() field.Element { return p.y }
func (p Point) IsInfinity() bool { return p.infinity }

// IsOnCurve reports whether y^2 = x^3 + ax + b. The point at infinity is on
// the curve.
func (p Point) IsOnCurve() bool {
	if p.infinity {
		return true
	}
	lhs := p.y.Square()
	rhs := p.x.Square().Add(sm2.A).Mul(p.x).Add(sm2.B)
	return lhs.Equal(rhs)
}

func (p Point) Equal(q Point) bool {
	if p.infinity || q.infinity {
		return p.infinity == q.infinity
	}
	return p.x.Equal(q.x) && p.y.Equal(q.y)
}

func (p Point) Negate() Point {
	if p.infinity {
		return p
	}
	return Point{x: p.x, y: p.y.Negate()}
}

// Add returns p + q using the affine chord rule.
func (p Point) Add(q Point) Point {
	if p.infinity {
		return q
	}
	if q.infinity {
		return p
	}
	if p.x.Equal(q.x) {
		if p.y.Equal(q.y) {
			return p.Double()
		}
		return Infinity()
	}

	// x differs, so the denominator is nonzero
	inv, _ := q.x.Sub(p.x).Invert()
	lambda := q.y.Sub(p.y).Mul(inv)
	x3 := lambda.Square().Sub(p.x).Sub(q.x)
	y3 := lambda.Mul(p.x.Sub(x3)).Sub(p.y)
	return Point{x: x3, y: y3}
}

// Double returns 2p using the affine tangent rule.
func (p Point) Double() Point {
	if p.infinity || p.y.IsZero() {
		return Infinity()
	}

	inv, _ := p.y.Double().Invert()
	lambda := p.x.Square().Triple().Add(sm2.A).Mul(inv)
	x3 := lambda.Square().Sub(p.x.Double())
	y3 := lambda.Mul(p.x.Sub(x3)).Sub(p.y)
	return Point{x: x3, y: y3}
}

func (p Point) Subtract(q Point) Point {
	return p.Add(q.Negate())
}

// Multiply returns [k]p by left-to-right double-and-add in Jacobian
// coordinates, converting back to affine once at the end.
func (p Point) Multiply(k int256.Int) Point {
	if k.IsZero() || p.infinity {
		return Infinity()
	}
	if k.IsOne() {
		return p
	}

	acc := jacobianInfinity()
	for i := k.BitLen() - 1; i >= 0; i-- {
		acc = acc.double()
		if k.Bit(i) {
			acc = acc.addAffine(p)
		}
	}
	return acc.toAffine()
}

// ScalarBaseMult returns [k]G.
func ScalarBaseMult(k int256.Int) Point {
	return Generator().Multiply(k)
}
