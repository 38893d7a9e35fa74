package semi

// run executes cl's prototype to completion on vm's frame/value stacks
// (spec §4.4). It returns the module's "last returned value" once the
// outermost frame's RETURN has drained every attached defer, per the
// Return section's termination rule.
func (vm *VM) run(cl *closure, m *module) Value {
	vm.pushFrame(cl, m, 0)
	baseDepth := len(vm.frames)

	for {
		fr := &vm.frames[len(vm.frames)-1]
		code := fr.closure.proto.code
		if fr.pc >= len(code) {
			panic(&SemiError{ID: ErrInvalidPC})
		}
		ins := code[fr.pc]
		fr.pc++
		if vm.cfg.Trace {
			vm.logging.trace("%-16s pc=%-4d base=%d\n", ins.op(), fr.pc-1, fr.base)
		}

		switch ins.op() {
		case opNop:
			// no-op

		case opLoadConstant:
			vm.execLoadConstant(fr, ins)

		case opLoadNil:
			vm.setReg(fr, ins.a(), Invalid)

		case opLoadBool:
			vm.setReg(fr, ins.a(), BoolValue(ins.b() != 0))

		case opMove:
			vm.setReg(fr, ins.a(), vm.reg(fr, ins.b()))

		case opGetModuleVar:
			vm.execGetModuleVar(fr, ins)

		case opSetModuleVar:
			sym := ins.k()
			fr.module.setVar(uint32(sym), ins.useExports(), vm.reg(fr, ins.a()))

		case opGetUpvalue:
			vm.setReg(fr, ins.a(), fr.closure.upvalues[ins.b()].get())

		case opSetUpvalue:
			fr.closure.upvalues[ins.b()].set(vm.reg(fr, ins.a()))

		case opCloseUpvalues:
			vm.closeUpvaluesFrom(fr.base + int(ins.a()))

		case opNewList:
			vm.setReg(fr, ins.a(), newListValue(vm.heap, nil))

		case opNewDict:
			vm.setReg(fr, ins.a(), newDictValue(vm.heap))

		case opAppendList:
			l := vm.reg(fr, ins.a()).asList()
			l.items = append(l.items, vm.reg(fr, ins.b()))

		case opAppendMap:
			vm.reg(fr, ins.a()).asDict().Set(vm.reg(fr, ins.b()), vm.reg(fr, ins.c()))

		case opGetItem:
			v := vm.callMagic2("getItem", vm.reg(fr, ins.b()), vm.reg(fr, ins.c()), func(m *magicMethods, a, b Value) (Value, error) {
				if m.getItem == nil {
					return Invalid, &SemiError{ID: ErrUnexpectedType}
				}
				return m.getItem(vm, a, b)
			})
			vm.setReg(fr, ins.a(), v)

		case opSetItem:
			base := vm.reg(fr, ins.a())
			idx := vm.reg(fr, ins.b())
			val := vm.reg(fr, ins.c())
			m := classFor(base)
			if m == nil || m.setItem == nil {
				panic(&SemiError{ID: ErrUnexpectedType})
			}
			if err := m.setItem(vm, base, idx, val); err != nil {
				panic(err)
			}

		case opDelItem:
			base := vm.reg(fr, ins.a())
			idx := vm.reg(fr, ins.b())
			m := classFor(base)
			if m == nil || m.delItem == nil {
				panic(&SemiError{ID: ErrUnexpectedType})
			}
			if err := m.delItem(vm, base, idx); err != nil {
				panic(err)
			}

		case opContain:
			base := vm.reg(fr, ins.c())
			needle := vm.reg(fr, ins.b())
			m := classFor(base)
			if m == nil || m.contain == nil {
				panic(&SemiError{ID: ErrUnexpectedType})
			}
			ok, err := m.contain(vm, base, needle)
			if err != nil {
				panic(err)
			}
			vm.setReg(fr, ins.a(), BoolValue(ok))

		case opGetAttr, opSetAttr, opCheckType:
			panic(&SemiError{ID: ErrUnsupportedFeature, Message: "struct attributes are not supported"})

		case opMakeRange:
			from := vm.reg(fr, ins.b())
			to := vm.reg(fr, ins.c())
			vm.setReg(fr, ins.a(), newRangeValue(vm.heap, from.AsInt(), to.AsInt(), 1))

		case opIterNext:
			vm.execIterNext(fr, ins)

		case opAdd, opSub, opMul, opDiv, opMod, opPow,
			opBitAnd, opBitOr, opBitXor, opShl, opShr:
			vm.execBinaryArith(fr, ins)

		case opNeg:
			v := vm.reg(fr, ins.b())
			m := classFor(v)
			if m == nil || m.neg == nil {
				panic(&SemiError{ID: ErrUnexpectedType})
			}
			r, err := m.neg(vm, v)
			if err != nil {
				panic(err)
			}
			vm.setReg(fr, ins.a(), r)

		case opBitNot:
			v := vm.reg(fr, ins.b())
			m := classFor(v)
			if m == nil || m.bitNot == nil {
				panic(&SemiError{ID: ErrUnexpectedType})
			}
			r, err := m.bitNot(vm, v)
			if err != nil {
				panic(err)
			}
			vm.setReg(fr, ins.a(), r)

		case opBoolNot:
			vm.setReg(fr, ins.a(), BoolValue(!vm.reg(fr, ins.b()).IsTruthy()))

		case opEq, opNeq:
			a, b := vm.reg(fr, ins.b()), vm.reg(fr, ins.c())
			eq := a.Equal(b)
			if m := classFor(a); m != nil && m.eq != nil {
				eq = m.eq(a, b)
			}
			if ins.op() == opNeq {
				eq = !eq
			}
			vm.setReg(fr, ins.a(), BoolValue(eq))

		case opGt, opGe:
			a, b := vm.reg(fr, ins.b()), vm.reg(fr, ins.c())
			m := classFor(a)
			if m == nil || m.cmp == nil {
				panic(&SemiError{ID: ErrUnexpectedType})
			}
			cmp, err := m.cmp(vm, a, b)
			if err != nil {
				panic(err)
			}
			if ins.op() == opGt {
				vm.setReg(fr, ins.a(), BoolValue(cmp > 0))
			} else {
				vm.setReg(fr, ins.a(), BoolValue(cmp >= 0))
			}

		case opLen:
			v := vm.reg(fr, ins.b())
			m := classFor(v)
			if m == nil || m.length == nil {
				panic(&SemiError{ID: ErrUnexpectedType})
			}
			n, err := m.length(vm, v)
			if err != nil {
				panic(err)
			}
			vm.setReg(fr, ins.a(), IntValue(int64(n)))

		case opJump:
			fr.pc += int(ins.j())

		case opCJump:
			if !vm.reg(fr, ins.a()).IsTruthy() {
				fr.pc += int(ins.j())
			}

		case opCJumpTruthy:
			if vm.reg(fr, ins.a()).IsTruthy() {
				fr.pc += int(ins.j())
			}

		case opCall:
			vm.execCall(ins)

		case opReturn:
			if vm.execReturn(ins, baseDepth) {
				return vm.returnSlot
			}

		case opTrap:
			vm.errorf(ErrInvalidInstruction, "TRAP at pc=%d", fr.pc-1)

		case opDeferCall:
			vm.execDeferCall(fr, ins)

		case opHalt:
			return vm.returnSlot

		default:
			panic(&SemiError{ID: ErrInvalidInstruction})
		}
	}
}

func (vm *VM) reg(fr *frame, r uint8) Value { return vm.stack.Items()[fr.base+int(r)] }

func (vm *VM) setReg(fr *frame, r uint8, v Value) { vm.stack.Items()[fr.base+int(r)] = v }

func (vm *VM) execLoadConstant(fr *frame, ins instruction) {
	v := fr.module.constant.at(ins.k())
	if v.Kind() == KindProto {
		cl := vm.captureClosure(fr, v.asProto())
		vm.setReg(fr, ins.a(), objectValue(KindClosure, &cl.object))
		return
	}
	vm.setReg(fr, ins.a(), v)
}

func (vm *VM) execGetModuleVar(fr *frame, ins instruction) {
	sym := uint32(ins.k())
	if v, ok := fr.module.getVar(sym, ins.useExports()); ok {
		vm.setReg(fr, ins.a(), v)
		return
	}
	// Host globals are keyed by the VM's own symbol table, so look the
	// name up there rather than reusing the module's symbol id.
	if hsym, ok := vm.hostGlobalSyms.lookup(fr.module.symbols.name(sym)); ok {
		if v, ok := vm.hostGlobals.Get(IntValue(int64(hsym))); ok {
			vm.setReg(fr, ins.a(), v)
			return
		}
	}
	panic(&SemiError{ID: ErrUninitializedVariable})
}

func (vm *VM) execBinaryArith(fr *frame, ins instruction) {
	a, b := vm.reg(fr, ins.b()), vm.reg(fr, ins.c())
	m := classFor(a)
	if m == nil {
		panic(&SemiError{ID: ErrUnexpectedType})
	}
	var fn func(*VM, Value, Value) (Value, error)
	switch ins.op() {
	case opAdd:
		fn = m.add
	case opSub:
		fn = m.sub
	case opMul:
		fn = m.mul
	case opDiv:
		fn = m.div
	case opMod:
		fn = m.mod
	case opPow:
		fn = m.pow
	case opBitAnd:
		fn = m.bitAnd
	case opBitOr:
		fn = m.bitOr
	case opBitXor:
		fn = m.bitXor
	case opShl:
		fn = m.shl
	case opShr:
		fn = m.shr
	}
	if fn == nil {
		panic(&SemiError{ID: ErrUnexpectedType})
	}
	v, err := fn(vm, a, b)
	if err != nil {
		panic(err)
	}
	vm.setReg(fr, ins.a(), v)
}

func (vm *VM) callMagic2(name string, a, b Value, fn func(*magicMethods, Value, Value) (Value, error)) Value {
	m := classFor(a)
	if m == nil {
		panic(&SemiError{ID: ErrUnexpectedType, Message: name})
	}
	v, err := fn(m, a, b)
	if err != nil {
		panic(err)
	}
	return v
}

// execIterNext implements ITER_NEXT (spec §4.3/§4.4): R[a]=index or
// sentinel, R[b]=next item, R[c]=iterator. On exhaustion it falls
// through; otherwise it skips the following instruction, which the
// compiler always emits as a JUMP past the loop, so execution continues
// into the loop body.
func (vm *VM) execIterNext(fr *frame, ins instruction) {
	iter := vm.reg(fr, ins.c())
	index := vm.reg(fr, ins.a())
	// R[a] holds the index of the last item consumed, or Invalid before the
	// first call; the index this call consumes is always one past that.
	i := int64(0)
	if index.Kind() == KindInt {
		i = index.AsInt() + 1
	}
	vm.closeUpvaluesFrom(fr.base + int(ins.a()))
	m := classFor(iter)
	if m == nil || m.iterNext == nil {
		panic(&SemiError{ID: ErrUnexpectedType})
	}
	item, ok, err := m.iterNext(vm, iter, i)
	if err != nil {
		panic(err)
	}
	if !ok {
		vm.setReg(fr, ins.a(), Invalid)
		return
	}
	vm.setReg(fr, ins.a(), IntValue(i))
	vm.setReg(fr, ins.b(), item)
	fr.pc++ // skip the JUMP that leaves the loop
}
