package semi

// foldBinary evaluates a binary operator over two compile-time constants,
// sharing the exact semantics the VM's dispatch loop uses at runtime
// (spec's constant folding note: folding must never see a different
// answer than running the same op would give). ok is false when the
// operands aren't foldable (e.g. division by a non-constant, or a type
// combination the VM itself would raise a runtime error for — folding
// declines rather than baking a compile-time panic into someone else's
// module).
func foldBinary(op opcode, a, b Value) (Value, bool) {
	switch op {
	case opAdd:
		return arithFold(a, b, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
	case opSub:
		return arithFold(a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y })
	case opMul:
		return arithFold(a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y })
	case opDiv:
		if a.IsNumber() && b.IsNumber() {
			if b.toFloat() == 0 {
				return Invalid, false
			}
			return FloatValue(a.toFloat() / b.toFloat()), true
		}
		return Invalid, false
	case opMod:
		if a.kind == KindInt && b.kind == KindInt {
			if b.AsInt() == 0 {
				return Invalid, false
			}
			return IntValue(a.AsInt() % b.AsInt()), true
		}
		return Invalid, false
	case opEq:
		return BoolValue(a.Equal(b)), true
	case opNeq:
		return BoolValue(!a.Equal(b)), true
	case opGt, opGe:
		return compareFold(op, a, b)
	}
	return Invalid, false
}

func arithFold(a, b Value, intOp func(int64, int64) int64, fltOp func(float64, float64) float64) (Value, bool) {
	if !a.IsNumber() || !b.IsNumber() {
		if a.IsString() && b.IsString() {
			return Invalid, false // string concat folding left to the VM's + semantics, not duplicated here
		}
		return Invalid, false
	}
	if a.kind == KindInt && b.kind == KindInt {
		return IntValue(intOp(a.AsInt(), b.AsInt())), true
	}
	return FloatValue(fltOp(a.toFloat(), b.toFloat())), true
}

func compareFold(op opcode, a, b Value) (Value, bool) {
	if !a.IsNumber() || !b.IsNumber() {
		return Invalid, false
	}
	af, bf := a.toFloat(), b.toFloat()
	switch op {
	case opGt:
		return BoolValue(af > bf), true
	case opGe:
		return BoolValue(af >= bf), true
	}
	return Invalid, false
}

// foldUnary evaluates NEG/NOT over a compile-time constant.
func foldUnary(op opcode, v Value) (Value, bool) {
	switch op {
	case opNeg:
		switch v.kind {
		case KindInt:
			return IntValue(-v.AsInt()), true
		case KindFloat:
			return FloatValue(-v.AsFloat()), true
		}
		return Invalid, false
	case opBoolNot:
		return BoolValue(!v.IsTruthy()), true
	}
	return Invalid, false
}
