package int256

import "math/bits"

// ModReduce returns w mod m using binary long division.
func ModReduce(w Wide, m Int) (Int, error) {
	if m.IsZero() {
		return Int{}, ErrDivisionByZero
	}

	rem := w
	mBits := m.BitLen()
	rBits := w.bitLen()
	if rBits < mBits {
		return rem.Low(), nil
	}

	mw := m.Widen()
	for shift := rBits - mBits; shift >= 0; shift-- {
		shifted := mw.shl(shift)
		if rem.cmp(shifted) >= 0 {
			rem = rem.sub(shifted)
		}
	}
	return rem.Low(), nil
}

// Mod returns a mod m.
func (a Int) Mod(m Int) (Int, error) {
	return ModReduce(a.Widen(), m)
}

// ModAdd returns (a+b) mod m. Both operands must already be below m.
func (a Int) ModAdd(b, m Int) Int {
	sum, carry := a.Add(b)
	if carry != 0 || sum.Cmp(m) >= 0 {
		sum, _ = sum.Sub(m)
	}
	return sum
}

// ModSub returns (a-b) mod m. Both operands must already be below m.
func (a Int) ModSub(b, m Int) Int {
	diff, borrow := a.Sub(b)
	if borrow != 0 {
		diff, _ = diff.Add(m)
	}
	return diff
}

// ModMul returns a*b mod m.
func (a Int) ModMul(b, m Int) (Int, error) {
	return ModReduce(a.Mul(b), m)
}

// ModPow returns a^e mod m. The exponent is scanned from its least
// significant bit while the base is repeatedly squared.
func (a Int) ModPow(e, m Int) (Int, error) {
	base, err := a.Mod(m)
	if err != nil {
		return Int{}, err
	}
	result, err := One.Mod(m)
	if err != nil {
		return Int{}, err
	}

	n := e.BitLen()
	for i := 0; i < n; i++ {
		if e.Bit(i) {
			if result, err = result.ModMul(base, m); err != nil {
				return Int{}, err
			}
		}
		if i+1 < n {
			if base, err = base.ModMul(base, m); err != nil {
				return Int{}, err
			}
		}
	}
	return result, nil
}

// ModInverse returns a^(m-2) mod m, the inverse of a for prime m.
func (a Int) ModInverse(m Int) (Int, error) {
	r, err := a.Mod(m)
	if err != nil {
		return Int{}, err
	}
	if r.IsZero() {
		return Int{}, ErrDivisionByZero
	}
	exp, _ := m.Sub(FromUint64(2))
	return r.ModPow(exp, m)
}

func (w Wide) bitLen() int {
	for i := 7; i >= 0; i-- {
		if w[i] != 0 {
			return 64*i + bits.Len64(w[i])
		}
	}
	return 0
}

func (w Wide) cmp(v Wide) int {
	for i := 7; i >= 0; i-- {
		if w[i] < v[i] {
			return -1
		}
		if w[i] > v[i] {
			return 1
		}
	}
	return 0
}

func (w Wide) sub(v Wide) Wide {
	var z Wide
	var borrow uint64
	for i := 0; i < 8; i++ {
		z[i], borrow = bits.Sub64(w[i], v[i], borrow)
	}
	return z
}

func (w Wide) shl(n int) Wide {
	var z Wide
	words, off := n/64, uint(n%64)
	for i := 7; i >= words; i-- {
		z[i] = w[i-words] << off
		if off != 0 && i-words-1 >= 0 {
			z[i] |= w[i-words-1] >> (64 - off)
		}
	}
	return z
}
