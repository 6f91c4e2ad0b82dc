package curves

import "github.com/smallyu/go-sm2/internal/crypto/field"

// jacobianPoint represents the affine point (X/Z^2, Y/Z^3). Z = 0 is the
// point at infinity. Only used inside scalar multiplication.
type jacobianPoint struct {
	x, y, z field.Element
}

func jacobianInfinity() jacobianPoint {
	return jacobianPoint{x: field.One(), y: field.One(), z: field.Zero()}
}

func jacobianFromAffine(p Point) jacobianPoint {
	if p.infinity {
		return jacobianInfinity()
	}
	return jacobianPoint{x: p.x, y: p.y, z: field.One()}
}

func (j jacobianPoint) isInfinity() bool {
	return j.z.IsZero()
}

func (j jacobianPoint) toAffine() Point {
	if j.isInfinity() {
		return Infinity()
	}
	// z is nonzero here
	zInv, _ := j.z.Invert()
	zInv2 := zInv.Square()
	zInv3 := zInv2.Mul(zInv)
	return Point{x: j.x.Mul(zInv2), y: j.y.Mul(zInv3)}
}

// double uses the a = -3 doubling formulas (dbl-2001-b).
func (j jacobianPoint) double() jacobianPoint {
	if j.isInfinity() || j.y.IsZero() {
		return jacobianInfinity()
	}

	delta := j.z.Square()
	gamma := j.y.Square()
	beta := j.x.Mul(gamma)
	alpha := j.x.Sub(delta).Mul(j.x.Add(delta)).Triple()

	x3 := alpha.Square().Sub(beta.Double().Double().Double())
	z3 := j.y.Add(j.z).Square().Sub(gamma).Sub(delta)
	gamma2 := gamma.Square()
	y3 := alpha.Mul(beta.Double().Double().Sub(x3)).Sub(gamma2.Double().Double().Double())

	return jacobianPoint{x: x3, y: y3, z: z3}
}

// addAffine returns j + q for an affine q (mixed addition).
func (j jacobianPoint) addAffine(q Point) jacobianPoint {
	if q.infinity {
		return j
	}
	if j.isInfinity() {
		return jacobianFromAffine(q)
	}

	z1z1 := j.z.Square()
	u2 := q.x.Mul(z1z1)
	s2 := q.y.Mul(j.z).Mul(z1z1)
	h := u2.Sub(j.x)
	r := s2.Sub(j.y)

	if h.IsZero() {
		if r.IsZero() {
			return j.double()
		}
		return jacobianInfinity()
	}

	h2 := h.Square()
	h3 := h2.Mul(h)
	xh2 := j.x.Mul(h2)

	x3 := r.Square().Sub(h3).Sub(xh2.Double())
	y3 := r.Mul(xh2.Sub(x3)).Sub(j.y.Mul(h3))
	z3 := j.z.Mul(h)

	return jacobianPoint{x: x3, y: y3, z: z3}
}
