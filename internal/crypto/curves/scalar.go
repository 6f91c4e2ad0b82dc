package curves

import "github.com/smallyu/go-sm2/internal/crypto/int256"

// Arithmetic modulo the group order n. n is a nonzero constant, so the generic
// reductions below cannot fail.

// IsValidScalar reports whether k is in [1, n-1].
func IsValidScalar(k int256.Int) bool {
	return !k.IsZero() && k.Cmp(sm2.N) < 0
}

// ReduceScalar returns k mod n.
func ReduceScalar(k int256.Int) int256.Int {
	for k.Cmp(sm2.N) >= 0 {
		k, _ = k.Sub(sm2.N)
	}
	return k
}

// ScalarAdd returns (a+b) mod n for arbitrary 256-bit a and b.
func ScalarAdd(a, b int256.Int) int256.Int {
	return ReduceScalar(a).ModAdd(ReduceScalar(b), sm2.N)
}

// ScalarSub returns (a-b) mod n.
func ScalarSub(a, b int256.Int) int256.Int {
	return ReduceScalar(a).ModSub(ReduceScalar(b), sm2.N)
}

// ScalarMul returns a*b mod n.
func ScalarMul(a, b int256.Int) int256.Int {
	v, _ := a.ModMul(b, sm2.N)
	return v
}

// ScalarInverse returns a^-1 mod n, failing with int256.ErrDivisionByZero
// when a is a multiple of n.
func ScalarInverse(a int256.Int) (int256.Int, error) {
	return a.ModInverse(sm2.N)
}
