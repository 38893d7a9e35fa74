package semi

import "unsafe"

// ptrCast reinterprets an object header pointer as a pointer to its
// concrete struct, relying on the same embedded-header layout Value's
// asX() accessors use (object is always the literal first field).
func ptrCast(o *object) unsafe.Pointer { return unsafe.Pointer(o) }

// heap is the mark-and-sweep collector (spec §4.5, original_source's GC).
// It owns every object allocated through it and is non-moving: once
// allocated, an object's address never changes, which is what lets
// upvalues and dict tuples hold direct pointers.
//
// Go's own runtime already garbage-collects the memory behind these
// objects; this type layers the source language's own tracing discipline
// on top (an intrusive all-objects list, a mark phase driven by a gray
// worklist, and a sweep that runs type-dispatched "destructors"). Sweeping
// unlinks objects not reachable from the VM's roots from the live list.
// A cycle runs only when collect or maybeCollect is called; neither the
// compiler nor the VM calls them, so allocation alone never starts one.
type heap struct {
	head      *object
	grayHead  *object
	allocated uint64
	threshold uint64
	maxHeap   uint64

	roots rootProvider
}

// rootProvider is implemented by the VM: the heap cannot walk VM state
// itself (it has no notion of frames or dicts), so mark asks the owner for
// every root value/object each cycle, the same separation of concerns as
// original_source's GC, which only owns the object list and defers "what's
// a root" to its caller.
type rootProvider interface {
	gcRoots(mark func(Value))
}

const defaultGCThreshold = 1 << 20 // bytes, matches a modest initial heap

func newHeap() *heap {
	return &heap{threshold: defaultGCThreshold}
}

func (h *heap) register(o *object, kind Kind) {
	o.kind = kind
	o.next = h.head
	h.head = o
	h.allocated += objectSize(kind)
	if h.maxHeap != 0 && h.allocated > h.maxHeap {
		// No collection is attempted here: exceeding the hard cap is an
		// allocation-limit error, not silently tolerated growth.
		panic(&SemiError{ID: ErrAllocationLimit})
	}
}

// maybeCollect runs a cycle if the allocation threshold has been crossed.
func (h *heap) maybeCollect() {
	if h.allocated >= h.threshold {
		h.collect()
	}
}

// collect runs one mark-and-sweep cycle unconditionally.
func (h *heap) collect() {
	if h.roots != nil {
		h.roots.gcRoots(h.mark)
	}
	h.propagate()
	h.sweep()
	h.threshold = h.allocated*2 + defaultGCThreshold
}

// mark pushes a value's heap object (if any) onto the gray worklist,
// setting its reachable bit. Already-gray/black objects are skipped.
func (h *heap) mark(v Value) {
	if !v.kind.isHeap() || v.obj == nil {
		return
	}
	h.markObject(v.obj)
}

func (h *heap) markObject(o *object) {
	if o == nil || o.reachable {
		return
	}
	o.reachable = true
	o.grayNext = h.grayHead
	h.grayHead = o
}

// propagate drains the gray worklist, marking each object's children.
func (h *heap) propagate() {
	for h.grayHead != nil {
		o := h.grayHead
		h.grayHead = o.grayNext
		o.grayNext = nil
		h.markChildren(o)
	}
}

func (h *heap) markChildren(o *object) {
	switch o.kind {
	case KindList:
		l := (*listObject)(ptrCast(o))
		for _, v := range l.items {
			h.mark(v)
		}
	case KindDict:
		d := (*dictObject)(ptrCast(o))
		for _, t := range d.tuples {
			if t.key.kind != KindInvalid {
				h.mark(t.key)
				h.mark(t.value)
			}
		}
	case KindUpvalue:
		uv := (*upvalue)(ptrCast(o))
		if !uv.isOpen() {
			h.mark(uv.closed)
		}
	case KindClosure:
		c := (*closure)(ptrCast(o))
		h.markObject(&c.proto.object)
		for _, uv := range c.upvalues {
			if uv != nil {
				h.markObject(&uv.object)
			}
		}
		if c.prevDeferred != nil {
			h.markObject(&c.prevDeferred.object)
		}
	case KindProto:
		// function prototypes hold no Value references of their own beyond
		// the constant table, which the module (a root) already covers.
	case KindString, KindRange, KindNative:
		// leaf objects: no children.
	}
}

// sweep walks the all-objects list, freeing anything left white and
// clearing the mark on everything still gray/black for the next cycle.
func (h *heap) sweep() {
	var kept *object
	h.allocated = 0
	for o := h.head; o != nil; {
		next := o.next
		if o.reachable {
			o.reachable = false
			o.next = kept
			kept = o
			h.allocated += objectSize(o.kind)
		}
		// else: unlinked, left for Go's GC to reclaim; no finalizer is
		// needed because none of our object kinds hold non-Go resources.
		o = next
	}
	h.head = kept
}

func objectSize(kind Kind) uint64 {
	switch kind {
	case KindString:
		return 32
	case KindRange:
		return 32
	case KindList:
		return 48
	case KindDict:
		return 64
	case KindUpvalue:
		return 32
	case KindClosure:
		return 48
	case KindProto:
		return 96
	case KindNative:
		return 32
	default:
		return 16
	}
}
