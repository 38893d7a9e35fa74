package semi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_foldBinary_IntArith(t *testing.T) {
	cases := []struct {
		name string
		op   opcode
		a, b int64
		want int64
	}{
		{"add", opAdd, 2, 3, 5},
		{"sub", opSub, 5, 3, 2},
		{"mul", opMul, 4, 3, 12},
		{"mod", opMod, 7, 3, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, ok := foldBinary(c.op, IntValue(c.a), IntValue(c.b))
			if assert.True(t, ok) {
				assert.Equal(t, KindInt, v.Kind())
				assert.Equal(t, c.want, v.AsInt())
			}
		})
	}
}

func Test_foldBinary_DivAlwaysFloats(t *testing.T) {
	v, ok := foldBinary(opDiv, IntValue(6), IntValue(3))
	if assert.True(t, ok) {
		assert.Equal(t, KindFloat, v.Kind())
		assert.Equal(t, 2.0, v.AsFloat())
	}
}

func Test_foldBinary_DivByZeroDeclines(t *testing.T) {
	_, ok := foldBinary(opDiv, IntValue(1), IntValue(0))
	assert.False(t, ok, "division by a constant zero must not be folded")
}

func Test_foldBinary_ModByZeroDeclines(t *testing.T) {
	_, ok := foldBinary(opMod, IntValue(1), IntValue(0))
	assert.False(t, ok)
}

func Test_foldBinary_MixedIntFloatPromotes(t *testing.T) {
	v, ok := foldBinary(opAdd, IntValue(2), FloatValue(1.5))
	if assert.True(t, ok) {
		assert.Equal(t, KindFloat, v.Kind())
		assert.Equal(t, 3.5, v.AsFloat())
	}
}

func Test_foldBinary_Comparisons(t *testing.T) {
	v, ok := foldBinary(opGt, IntValue(5), IntValue(3))
	if assert.True(t, ok) {
		assert.True(t, v.AsBool())
	}
	v, ok = foldBinary(opGe, IntValue(3), IntValue(3))
	if assert.True(t, ok) {
		assert.True(t, v.AsBool())
	}
	v, ok = foldBinary(opGt, IntValue(3), IntValue(3))
	if assert.True(t, ok) {
		assert.False(t, v.AsBool())
	}
}

func Test_foldBinary_Equality(t *testing.T) {
	v, ok := foldBinary(opEq, IntValue(1), FloatValue(1.0))
	if assert.True(t, ok) {
		assert.True(t, v.AsBool(), "1 == 1.0 across numeric kinds")
	}
	v, ok = foldBinary(opNeq, IntValue(1), IntValue(2))
	if assert.True(t, ok) {
		assert.True(t, v.AsBool())
	}
}

func Test_foldBinary_NonNumericOperandsDecline(t *testing.T) {
	_, ok := foldBinary(opAdd, InlineStringValue("a"), IntValue(1))
	assert.False(t, ok)
}

func Test_foldUnary_Neg(t *testing.T) {
	v, ok := foldUnary(opNeg, IntValue(5))
	if assert.True(t, ok) {
		assert.Equal(t, int64(-5), v.AsInt())
	}
	v, ok = foldUnary(opNeg, FloatValue(2.5))
	if assert.True(t, ok) {
		assert.Equal(t, -2.5, v.AsFloat())
	}
}

func Test_foldUnary_BoolNot(t *testing.T) {
	v, ok := foldUnary(opBoolNot, BoolValue(true))
	if assert.True(t, ok) {
		assert.False(t, v.AsBool())
	}
	v, ok = foldUnary(opBoolNot, IntValue(0))
	if assert.True(t, ok) {
		assert.True(t, v.AsBool(), "!0 is true")
	}
}

func Test_foldUnary_NegOnNonNumberDeclines(t *testing.T) {
	_, ok := foldUnary(opNeg, BoolValue(true))
	assert.False(t, ok)
}
