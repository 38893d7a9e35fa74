package semi

// constantTable collects the literal operands a function body's K-shape
// instructions reference, deduplicating by value so the same literal used
// twice compiles to one K slot (spec §3 Constant table).
//
// Equal values must map to the same index for K to be stable, which rules
// out Value.obj pointer-identity dedup for heap constants (two equal
// string literals would otherwise get distinct heap objects and therefore
// distinct slots); lookup instead compares by kind+content for the kinds
// the compiler ever folds into constants.
type constantTable struct {
	values []Value
}

func newConstantTable() *constantTable {
	return &constantTable{}
}

// index returns v's slot, appending it if this exact value hasn't been
// seen in this table yet. Panics via ErrTooManyConstants past the
// per-module K operand width (spec §4.2's K-shape field width).
func (c *constantTable) index(v Value) uint16 {
	for i, existing := range c.values {
		if constantEqual(existing, v) {
			return uint16(i)
		}
	}
	if len(c.values) >= maxConstants {
		panic(&SemiError{ID: ErrTooManyConstants})
	}
	c.values = append(c.values, v)
	return uint16(len(c.values) - 1)
}

func (c *constantTable) at(i uint16) Value { return c.values[i] }

func (c *constantTable) len() int { return len(c.values) }

// constantEqual is deliberately stricter about type than Value.Equal: 1
// and 1.0 are == at runtime but must not collapse to the same constant
// slot, since LOAD_CONSTANT's result type is part of what the compiler tracks
// for constant folding.
func constantEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInt:
		return a.AsInt() == b.AsInt()
	case KindFloat:
		return a.AsFloat() == b.AsFloat()
	case KindBool:
		return a.AsBool() == b.AsBool()
	case KindInlineString:
		return a.AsInlineString() == b.AsInlineString()
	case KindString:
		return a.StringValue() == b.StringValue()
	case KindInlineRange:
		af, at := a.AsInlineRange()
		bf, bt := b.AsInlineRange()
		return af == bf && at == bt
	case KindInvalid:
		return true
	default:
		return false
	}
}

// maxConstants matches the K operand's field width (spec §4.2): 16 bits.
const maxConstants = 1 << 16
