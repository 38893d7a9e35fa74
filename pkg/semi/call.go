package semi

// pushFrame grows the frame and value stacks as needed and pushes a new
// frame for cl starting at value-stack offset base (spec §4.4 Frame
// model / Stack growth: fixed minima, doubling growth, fixed maxima).
func (vm *VM) pushFrame(cl *closure, m *module, base int) {
	vm.pushFrameKind(cl, m, base, false)
}

func (vm *VM) pushFrameKind(cl *closure, m *module, base int, isDefer bool) {
	if len(vm.frames) >= cap(vm.frames) {
		vm.growFrames()
	}
	need := base + int(cl.proto.maxStack)
	if need > vm.stack.Len() {
		if err := vm.stack.Grow(need); err != nil {
			panic(&SemiError{ID: ErrStackOverflow})
		}
	}
	vm.frames = append(vm.frames, frame{closure: cl, module: m, base: base, isDefer: isDefer})
}

func (vm *VM) growFrames() {
	newCap := cap(vm.frames) * 2
	if newCap == 0 {
		newCap = minFrames
	}
	if newCap > vm.cfg.FrameMax {
		if cap(vm.frames) >= vm.cfg.FrameMax {
			panic(&SemiError{ID: ErrStackOverflow})
		}
		newCap = vm.cfg.FrameMax
	}
	grown := make([]frame, len(vm.frames), newCap)
	copy(grown, vm.frames)
	vm.frames = grown
}

// execCall implements CALL (spec §4.4 Frame model / On CALL).
func (vm *VM) execCall(ins instruction) {
	fr := &vm.frames[len(vm.frames)-1]
	calleeReg := ins.a()
	argCount := ins.b()
	callee := vm.reg(fr, calleeReg)

	switch callee.Kind() {
	case KindNative:
		nf := callee.asNative()
		base := fr.base + int(calleeReg)
		args := append([]Value(nil), vm.stack.Items()[base+1:base+1+int(argCount)]...)
		result, err := nf.fn(vm, args)
		if err != nil {
			if se, ok := err.(*SemiError); ok {
				panic(se)
			}
			panic(&SemiError{ID: ErrInternal, Message: err.Error()})
		}
		vm.setReg(fr, calleeReg, result)

	case KindClosure:
		cl := callee.asClosure()
		if int(cl.proto.arity) != int(argCount) {
			panic(&SemiError{ID: ErrArgCountMismatch})
		}
		if len(cl.proto.code) == 0 {
			panic(&SemiError{ID: ErrInvalidInstruction, Message: "empty function body"})
		}
		last := cl.proto.code[len(cl.proto.code)-1].op()
		if last != opReturn && last != opTrap {
			panic(&SemiError{ID: ErrInvalidInstruction, Message: "chunk does not end with RETURN/TRAP"})
		}
		newBase := fr.base + int(calleeReg) + 1
		vm.pushFrame(cl, fr.module, newBase)

	default:
		panic(&SemiError{ID: ErrUnexpectedType, Message: "call target is not a function"})
	}
}

// execReturn implements RETURN (spec §4.4 Return). It reports true when
// the VM's dispatch loop should stop: the outermost frame has finished
// and its deferred chain has fully drained.
func (vm *VM) execReturn(ins instruction, baseDepth int) bool {
	fr := &vm.frames[len(vm.frames)-1]
	a := ins.a()

	var returned Value
	hasValue := a != returnNoValue
	if hasValue {
		returned = vm.reg(fr, a)
	}

	if fr.deferred != nil {
		d := fr.deferred
		fr.deferred = d.prevDeferred
		fr.pc-- // re-execute this RETURN once the defer's own RETURN resumes here
		deferBase := fr.base + int(a) + 1
		vm.pushFrameKind(d, fr.module, deferBase, true)
		return false
	}

	if cl := fr.closure; cl.proto.coarity != 0 && !hasValue {
		panic(&SemiError{ID: ErrMissingReturnValue})
	}

	vm.closeUpvaluesFrom(fr.base)
	vm.frames = vm.frames[:len(vm.frames)-1]

	if len(vm.frames) < baseDepth {
		vm.returnSlot = returned
		return true
	}

	if fr.isDefer {
		// A defer frame's "caller slot" coincides with the live frame's
		// pending return-value register; leave it untouched so the
		// rewound RETURN below re-reads the value it was about to return.
		return false
	}

	caller := &vm.frames[len(vm.frames)-1]
	callerReg := uint8(fr.base - caller.base - 1)
	if hasValue {
		vm.setReg(caller, callerReg, returned)
	} else {
		vm.setReg(caller, callerReg, Invalid)
	}
	return false
}

// execDeferCall implements DEFER_CALL: a closure over the deferred body's
// prototype is pushed onto the current frame's deferred chain, LIFO
// (spec §4.3 Defer / §4.4 Return point 1).
func (vm *VM) execDeferCall(fr *frame, ins instruction) {
	proto := fr.module.constant.at(ins.k()).asProto()
	cl := vm.captureClosure(fr, proto)
	cl.prevDeferred = fr.deferred
	fr.deferred = cl
}

// captureClosure materializes a closure over proto, resolving each
// upvalue descriptor against either the enclosing frame's open-upvalue
// list (isLocal) or the currently executing closure's own upvalues
// (spec §4.4 Upvalue protocol, Capturing).
func (vm *VM) captureClosure(fr *frame, proto *funcProto) *closure {
	cl := newClosure(vm.heap, proto)
	for i, desc := range proto.upvalues {
		if desc.isLocal {
			cl.upvalues[i] = vm.findOrCreateUpvalue(fr.base + int(desc.index))
		} else {
			cl.upvalues[i] = fr.closure.upvalues[desc.index]
		}
	}
	return cl
}

// findOrCreateUpvalue returns the open upvalue pointing at absolute slot,
// reusing one from the sorted-by-descending-slot open list if present.
func (vm *VM) findOrCreateUpvalue(slot int) *upvalue {
	var prev *upvalue
	uv := vm.openUpvalues
	for uv != nil && uv.slot > slot {
		prev = uv
		uv = uv.next
	}
	if uv != nil && uv.slot == slot {
		return uv
	}
	created := newUpvalue(vm.heap, vm.stack, slot)
	created.next = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.next = created
	}
	return created
}

// closeUpvaluesFrom closes every open upvalue at or above slot, removing
// it from the open list (spec §4.4's CLOSE_UPVALUES and the frame-pop
// path of Return point 3).
func (vm *VM) closeUpvaluesFrom(slot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.slot >= slot {
		uv := vm.openUpvalues
		uv.close()
		vm.openUpvalues = uv.next
		uv.next = nil
	}
}
