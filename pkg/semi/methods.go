package semi

// magicMethods is one row of the VM's "class table": function pointers
// for the primitive operations a value kind supports, indexed by the left
// operand's Kind (spec §4.4 Primitive dispatch). Every arithmetic,
// comparison, and collection opcode looks up the row for one of its
// operand registers (R[b] for arithmetic, comparison and unary ops) and
// calls through it; a nil entry means the kind doesn't
// support that operation. This is deliberately the extension point the
// spec calls out for user-defined types — today only the built-in kinds
// are registered, but nothing past this table needs to change to add one.
type magicMethods struct {
	add, sub, mul, div, mod, pow func(vm *VM, a, b Value) (Value, error)
	bitAnd, bitOr, bitXor, shl, shr func(vm *VM, a, b Value) (Value, error)
	neg    func(vm *VM, a Value) (Value, error)
	bitNot func(vm *VM, a Value) (Value, error)
	eq     func(a, b Value) bool
	cmp    func(vm *VM, a, b Value) (int, error) // -1/0/1, used by GT/GE
	length func(vm *VM, a Value) (int, error)
	getItem func(vm *VM, a, idx Value) (Value, error)
	setItem func(vm *VM, a, idx, v Value) error
	delItem func(vm *VM, a, idx Value) error
	contain func(vm *VM, a, needle Value) (bool, error)
	iterInit func(vm *VM, a Value) (Value, error)
	iterNext func(vm *VM, iter Value, index int64) (item Value, ok bool, err error)
}

// classTable is indexed by Kind, collapsing the two inline/heap variants
// of string and range onto the same row (they share behavior; only
// representation differs).
var classTable [int(KindNative) + 1]*magicMethods

func registerClass(kinds []Kind, m *magicMethods) {
	for _, k := range kinds {
		classTable[k] = m
	}
}

func classFor(v Value) *magicMethods { return classTable[v.Kind()] }

func init() {
	registerClass([]Kind{KindInt, KindFloat}, &magicMethods{
		add: numericOp(func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }),
		sub: numericOp(func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }),
		mul: numericOp(func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }),
		div: func(vm *VM, a, b Value) (Value, error) {
			if b.toFloat() == 0 {
				return Invalid, &SemiError{ID: ErrDivideByZero}
			}
			return FloatValue(a.toFloat() / b.toFloat()), nil
		},
		mod: func(vm *VM, a, b Value) (Value, error) {
			if a.kind != KindInt || b.kind != KindInt {
				return Invalid, &SemiError{ID: ErrUnexpectedType, Message: "mod requires integers"}
			}
			if b.AsInt() == 0 {
				return Invalid, &SemiError{ID: ErrDivideByZero}
			}
			return IntValue(a.AsInt() % b.AsInt()), nil
		},
		pow: func(vm *VM, a, b Value) (Value, error) {
			return FloatValue(intPow(a.toFloat(), b.toFloat())), nil
		},
		bitAnd: intOnlyOp(func(a, b int64) int64 { return a & b }),
		bitOr:  intOnlyOp(func(a, b int64) int64 { return a | b }),
		bitXor: intOnlyOp(func(a, b int64) int64 { return a ^ b }),
		shl:    intOnlyOp(func(a, b int64) int64 { return a << uint64(b) }),
		shr:    intOnlyOp(func(a, b int64) int64 { return a >> uint64(b) }),
		neg: func(vm *VM, a Value) (Value, error) {
			if a.kind == KindInt {
				return IntValue(-a.AsInt()), nil
			}
			return FloatValue(-a.AsFloat()), nil
		},
		bitNot: func(vm *VM, a Value) (Value, error) {
			if a.kind != KindInt {
				return Invalid, &SemiError{ID: ErrUnexpectedType}
			}
			return IntValue(^a.AsInt()), nil
		},
		eq: func(a, b Value) bool { return a.Equal(b) },
		cmp: func(vm *VM, a, b Value) (int, error) {
			if !b.IsNumber() {
				return 0, &SemiError{ID: ErrUnexpectedType}
			}
			af, bf := a.toFloat(), b.toFloat()
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		},
	})

	registerClass([]Kind{KindInlineString, KindString}, &magicMethods{
		add: func(vm *VM, a, b Value) (Value, error) {
			if !b.IsString() {
				return Invalid, &SemiError{ID: ErrUnexpectedType, Message: "cannot concatenate string with non-string"}
			}
			return newStringValue(vm.heap, a.StringValue()+b.StringValue()), nil
		},
		eq: func(a, b Value) bool { return a.Equal(b) },
		cmp: func(vm *VM, a, b Value) (int, error) {
			if !b.IsString() {
				return 0, &SemiError{ID: ErrUnexpectedType}
			}
			as, bs := a.StringValue(), b.StringValue()
			switch {
			case as < bs:
				return -1, nil
			case as > bs:
				return 1, nil
			default:
				return 0, nil
			}
		},
		length: func(vm *VM, a Value) (int, error) { return len(a.StringValue()), nil },
		contain: func(vm *VM, a, needle Value) (bool, error) {
			if !needle.IsString() {
				return false, &SemiError{ID: ErrUnexpectedType}
			}
			return stringsContain(a.StringValue(), needle.StringValue()), nil
		},
	})

	registerClass([]Kind{KindList}, &magicMethods{
		eq: func(a, b Value) bool { return a.Equal(b) },
		length: func(vm *VM, a Value) (int, error) { return len(a.asList().items), nil },
		getItem: func(vm *VM, a, idx Value) (Value, error) {
			l := a.asList()
			i, err := listIndex(idx, len(l.items))
			if err != nil {
				return Invalid, err
			}
			return l.items[i], nil
		},
		setItem: func(vm *VM, a, idx, v Value) error {
			l := a.asList()
			i, err := listIndex(idx, len(l.items))
			if err != nil {
				return err
			}
			l.items[i] = v
			return nil
		},
		delItem: func(vm *VM, a, idx Value) error {
			l := a.asList()
			i, err := listIndex(idx, len(l.items))
			if err != nil {
				return err
			}
			l.items = append(l.items[:i], l.items[i+1:]...)
			return nil
		},
		contain: func(vm *VM, a, needle Value) (bool, error) {
			for _, item := range a.asList().items {
				if item.Equal(needle) {
					return true, nil
				}
			}
			return false, nil
		},
		iterInit: func(vm *VM, a Value) (Value, error) { return a, nil },
		iterNext: func(vm *VM, iter Value, index int64) (Value, bool, error) {
			items := iter.asList().items
			if index >= int64(len(items)) {
				return Invalid, false, nil
			}
			return items[index], true, nil
		},
	})

	registerClass([]Kind{KindDict}, &magicMethods{
		length: func(vm *VM, a Value) (int, error) { return a.asDict().Len(), nil },
		getItem: func(vm *VM, a, idx Value) (Value, error) {
			v, ok := a.asDict().Get(idx)
			if !ok {
				return Invalid, &SemiError{ID: ErrKeyNotFound}
			}
			return v, nil
		},
		setItem: func(vm *VM, a, idx, v Value) error {
			a.asDict().Set(idx, v)
			return nil
		},
		delItem: func(vm *VM, a, idx Value) error {
			if !a.asDict().Delete(idx) {
				return &SemiError{ID: ErrKeyNotFound}
			}
			return nil
		},
		contain: func(vm *VM, a, needle Value) (bool, error) {
			_, ok := a.asDict().Get(needle)
			return ok, nil
		},
	})

	registerClass([]Kind{KindInlineRange, KindRange}, &magicMethods{
		eq: func(a, b Value) bool { return a.Equal(b) },
		length: func(vm *VM, a Value) (int, error) {
			from, to, step := rangeBounds(a)
			return rangeLen(from, to, step), nil
		},
		iterInit: func(vm *VM, a Value) (Value, error) { return a, nil },
		iterNext: func(vm *VM, iter Value, index int64) (Value, bool, error) {
			from, to, step := rangeBounds(iter)
			n := int64(rangeLen(from, to, step))
			if index >= n {
				return Invalid, false, nil
			}
			return IntValue(from + index*step), true, nil
		},
	})

	registerClass([]Kind{KindBool}, &magicMethods{
		eq: func(a, b Value) bool { return a.Equal(b) },
	})
}

func numericOp(intOp func(int64, int64) int64, fltOp func(float64, float64) float64) func(*VM, Value, Value) (Value, error) {
	return func(vm *VM, a, b Value) (Value, error) {
		if !a.IsNumber() || !b.IsNumber() {
			return Invalid, &SemiError{ID: ErrUnexpectedType}
		}
		if a.kind == KindInt && b.kind == KindInt {
			return IntValue(intOp(a.AsInt(), b.AsInt())), nil
		}
		return FloatValue(fltOp(a.toFloat(), b.toFloat())), nil
	}
}

func intOnlyOp(op func(int64, int64) int64) func(*VM, Value, Value) (Value, error) {
	return func(vm *VM, a, b Value) (Value, error) {
		if a.kind != KindInt || b.kind != KindInt {
			return Invalid, &SemiError{ID: ErrUnexpectedType}
		}
		return IntValue(op(a.AsInt(), b.AsInt())), nil
	}
}

func intPow(a, b float64) float64 {
	if b == 0 {
		return 1
	}
	result := 1.0
	neg := b < 0
	n := int64(b)
	if neg {
		n = -n
	}
	for i := int64(0); i < n; i++ {
		result *= a
	}
	if neg {
		return 1 / result
	}
	return result
}

func listIndex(idx Value, length int) (int, error) {
	if idx.kind != KindInt {
		return 0, &SemiError{ID: ErrUnexpectedType, Message: "list index must be an integer"}
	}
	i := idx.AsInt()
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, &SemiError{ID: ErrIndexOutOfRange}
	}
	return int(i), nil
}

func rangeBounds(v Value) (from, to, step int64) {
	if v.kind == KindInlineRange {
		f, t := v.AsInlineRange()
		return int64(f), int64(t), 1
	}
	r := v.asRange()
	return r.from, r.to, r.step
}

func rangeLen(from, to, step int64) int {
	if step == 0 {
		return 0
	}
	if step > 0 {
		if to <= from {
			return 0
		}
		return int((to - from + step - 1) / step)
	}
	if to >= from {
		return 0
	}
	return int((from - to - step - 1) / -step)
}

func stringsContain(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
