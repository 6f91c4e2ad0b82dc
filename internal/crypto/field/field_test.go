package field

import (
	"math/rand/v2"
	"testing"

	"github.com/smallyu/go-sm2/internal/crypto/int256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randElement(r *rand.Rand) Element {
	return New(int256.FromLimbs(r.Uint64(), r.Uint64(), r.Uint64(), r.Uint64()))
}

func TestReduceMatchesGeneric(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	max := int256.FromLimbs(^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0))
	pm1, _ := P.Sub(int256.One)

	inputs := []int256.Wide{
		max.Mul(max),
		pm1.Mul(pm1),
		P.Widen(),
		{},
	}
	for i := 0; i < 500; i++ {
		a := int256.FromLimbs(r.Uint64(), r.Uint64(), r.Uint64(), r.Uint64())
		b := int256.FromLimbs(r.Uint64(), r.Uint64(), r.Uint64(), r.Uint64())
		inputs = append(inputs, a.Mul(b))
	}

	for _, w := range inputs {
		want, err := int256.ModReduce(w, P)
		require.NoError(t, err)
		require.Equal(t, want, Reduce(w), "w=%x", w)
	}
}

func TestMulVector(t *testing.T) {
	got := FromUint64(3).Mul(FromUint64(4))
	assert.Equal(t, FromUint64(0xC), got)
}

func TestNew(t *testing.T) {
	assert.True(t, New(P).IsZero())
	pp1, _ := P.Add(int256.One)
	assert.Equal(t, One(), New(pp1))
}

func TestFromBytesRejectsNonCanonical(t *testing.T) {
	_, err := FromBytes(P.Bytes())
	assert.ErrorIs(t, err, ErrNotCanonical)

	_, err = FromHex(P.Hex())
	assert.ErrorIs(t, err, ErrNotCanonical)

	pm1, _ := P.Sub(int256.One)
	e, err := FromBytes(pm1.Bytes())
	require.NoError(t, err)
	assert.Equal(t, pm1, e.Int())
}

func TestArithmetic(t *testing.T) {
	r := rand.New(rand.NewPCG(13, 14))
	for i := 0; i < 100; i++ {
		a, b := randElement(r), randElement(r)

		assert.Equal(t, a, a.Add(b).Sub(b))
		assert.True(t, a.Add(a.Negate()).IsZero())
		assert.Equal(t, a.Add(a), a.Double())
		assert.Equal(t, a.Mul(FromUint64(3)), a.Triple())
		assert.Equal(t, a.Mul(a), a.Square())
		assert.Equal(t, a.Mul(b), b.Mul(a))

		if a.IsZero() {
			continue
		}
		inv, err := a.Invert()
		require.NoError(t, err)
		assert.Equal(t, One(), a.Mul(inv))

		generic, err := a.Int().ModInverse(P)
		require.NoError(t, err)
		assert.Equal(t, generic, inv.Int())
	}
}

func TestInvertZero(t *testing.T) {
	_, err := Zero().Invert()
	assert.ErrorIs(t, err, int256.ErrDivisionByZero)
}

func TestNegateZero(t *testing.T) {
	assert.True(t, Zero().Negate().IsZero())
}

func BenchmarkReduce(b *testing.B) {
	r := rand.New(rand.NewPCG(1, 1))
	x, y := randElement(r).Int(), randElement(r).Int()
	w := x.Mul(y)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Reduce(w)
	}
}

func BenchmarkGenericReduce(b *testing.B) {
	r := rand.New(rand.NewPCG(1, 1))
	x, y := randElement(r).Int(), randElement(r).Int()
	w := x.Mul(y)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = int256.ModReduce(w, P)
	}
}
