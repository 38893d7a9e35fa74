package semi

import "github.com/semi-lang/semi-sub001/internal/pagedstack"

// stringObject is the heap form of a string value, used whenever the
// content does not fit in the 0-2 byte inline variant (spec §3).
type stringObject struct {
	object
	data string
}

// rangeObject is the heap form of a range value, used whenever the bounds
// or step do not fit the inline variant's int32/implicit-step-1 shape.
type rangeObject struct {
	object
	from, to, step int64
}

// listObject is a growable, ordered sequence of values.
type listObject struct {
	object
	items []Value
}

// upvalue is open while its enclosing frame is live (stack points at a
// live register) and closed after that frame returns (owns a copy).
//
// stack/slot locate the open register: stack is the VM's value stack (so
// Close can reach into it) and slot is the absolute register address. A
// pagedstack.Stack's backing array may be reallocated by Grow, but the
// *Stack handle itself never moves, so holding it directly (rather than a
// pointer to a slice variable, as a plain growable slice would require)
// keeps every open upvalue valid across a grow with no fixup pass. Once
// closed, stack is nil and closed holds the value directly.
type upvalue struct {
	object
	stack  *pagedstack.Stack[Value]
	slot   int
	closed Value
	next   *upvalue // VM's open-upvalue list, sorted by descending slot
}

func (uv *upvalue) isOpen() bool { return uv.stack != nil }

func (uv *upvalue) get() Value {
	if uv.isOpen() {
		return uv.stack.Items()[uv.slot]
	}
	return uv.closed
}

func (uv *upvalue) set(v Value) {
	if uv.isOpen() {
		uv.stack.Items()[uv.slot] = v
		return
	}
	uv.closed = v
}

func (uv *upvalue) close() {
	if uv.isOpen() {
		uv.closed = uv.stack.Items()[uv.slot]
		uv.stack = nil
	}
}

// upvalueDesc says where an enclosing scope sources a captured upvalue:
// either a local register of the immediately enclosing function
// (isLocal=true) or an upvalue of that enclosing function (isLocal=false).
type upvalueDesc struct {
	index   uint8
	isLocal bool
}

// funcProto is the immutable artifact the compiler emits for a function
// body (spec §3 Function prototype).
type funcProto struct {
	object
	arity        uint8
	coarity      uint8
	maxStack     uint8
	code         []instruction
	lines        []int32 // parallel to code, for runtime error reporting
	upvalues     []upvalueDesc
	moduleID     uint32
	name         string // for diagnostics only, not part of the VM's semantics
}

// closure binds a prototype to its captured upvalues at runtime.
type closure struct {
	object
	proto        *funcProto
	upvalues     []*upvalue
	prevDeferred *closure // frame's deferred-call chain, LIFO
}

// NativeFunc is the host-side signature for a native function registered
// with AddNativeFunction (spec §6 external collaborators).
type NativeFunc func(vm *VM, args []Value) (Value, error)

type nativeFunc struct {
	object
	name string
	fn   NativeFunc
}

func newStringObject(h *heap, s string) *stringObject {
	o := &stringObject{data: s}
	h.register(&o.object, KindString)
	return o
}

func newRangeObject(h *heap, from, to, step int64) *rangeObject {
	o := &rangeObject{from: from, to: to, step: step}
	h.register(&o.object, KindRange)
	return o
}

func newListObject(h *heap, items []Value) *listObject {
	o := &listObject{items: items}
	h.register(&o.object, KindList)
	return o
}

func newUpvalue(h *heap, stack *pagedstack.Stack[Value], slot int) *upvalue {
	o := &upvalue{stack: stack, slot: slot}
	h.register(&o.object, KindUpvalue)
	return o
}

func newFuncProto(h *heap) *funcProto {
	o := &funcProto{}
	h.register(&o.object, KindProto)
	return o
}

func newClosure(h *heap, proto *funcProto) *closure {
	o := &closure{proto: proto, upvalues: make([]*upvalue, len(proto.upvalues))}
	h.register(&o.object, KindClosure)
	return o
}

func newNativeFunc(h *heap, name string, fn NativeFunc) *nativeFunc {
	o := &nativeFunc{name: name, fn: fn}
	h.register(&o.object, KindNative)
	return o
}

func newStringValue(h *heap, s string) Value {
	if len(s) <= 2 {
		return InlineStringValue(s)
	}
	return objectValue(KindString, &newStringObject(h, s).object)
}

func newRangeValue(h *heap, from, to, step int64) Value {
	if step == 1 && from >= minInt32 && from <= maxInt32 && to >= minInt32 && to <= maxInt32 {
		return InlineRangeValue(int32(from), int32(to))
	}
	return objectValue(KindRange, &newRangeObject(h, from, to, step).object)
}

func newListValue(h *heap, items []Value) Value {
	return objectValue(KindList, &newListObject(h, items).object)
}

const (
	minInt32 = -1 << 31
	maxInt32 = 1<<31 - 1
)
