package semi

// variableDesc records where a declared local lives and whether it has
// been captured as an upvalue by a nested function (spec §3 Compiler
// scopes), mirroring original_source's compiler.h VariableDescription.
type variableDesc struct {
	name     string
	register uint8
	captured bool
	readOnly bool
}

// blockScope is one lexical block within a function: `if`/`for` bodies
// push one, function bodies push the outermost. Register IDs allocated
// within a block are released back to the function scope when it closes,
// the same "registers are block-local, stack-discipline reclaimed" rule
// original_source's BlockScope implements.
type blockScope struct {
	parent    *blockScope
	fn        *functionScope
	base      uint8 // first register owned by this block
	variables []variableDesc
}

// functionScope tracks one function body's compilation state: its
// register high-water mark (maxRegister), the chain of open block scopes,
// and the upvalue descriptors it has resolved so far.
type functionScope struct {
	parent       *functionScope
	block        *blockScope
	nextRegister uint8
	maxRegister  uint8
	upvalues     []upvalueDesc
	upvalueNames []string
	proto        *funcProto
	inDefer      bool // true while compiling a defer body: return-with-value is an error

	code  []instruction
	lines []int32

	coarity    uint8
	coaritySet bool

	loop *loopContext
}

// loopContext threads break/continue patch lists and the loop-top PC
// through nested `for` bodies (spec §4.3 Control flow).
type loopContext struct {
	parent    *loopContext
	top       int   // PC to jump back to on `continue`
	breaks    []int // indices of JUMP placeholders to patch to the loop's exit
	baseReg   uint8
}

func newFunctionScope(parent *functionScope, proto *funcProto) *functionScope {
	fs := &functionScope{parent: parent, proto: proto}
	fs.pushBlock()
	return fs
}

func (fs *functionScope) pushBlock() {
	fs.block = &blockScope{parent: fs.block, fn: fs, base: fs.nextRegister}
}

func (fs *functionScope) popBlock() {
	fs.nextRegister = fs.block.base
	fs.block = fs.block.parent
}

const maxRegisters = 256

// allocRegister reserves the next free register in the current block.
func (fs *functionScope) allocRegister() uint8 {
	if int(fs.nextRegister) >= maxRegisters {
		panic(&SemiError{ID: ErrTooManyLocals})
	}
	r := fs.nextRegister
	fs.nextRegister++
	if fs.nextRegister > fs.maxRegister {
		fs.maxRegister = fs.nextRegister
	}
	return r
}

// declare binds name to a fresh register in the current block.
func (fs *functionScope) declare(name string, readOnly bool) variableDesc {
	for _, v := range fs.block.variables {
		if v.name == name {
			panic(&SemiError{ID: ErrVariableAlreadyDefined, Message: name})
		}
	}
	v := variableDesc{name: name, register: fs.allocRegister(), readOnly: readOnly}
	fs.block.variables = append(fs.block.variables, v)
	return v
}

// resolveLocal searches this function's open blocks, innermost first.
func (fs *functionScope) resolveLocal(name string) (variableDesc, bool) {
	for b := fs.block; b != nil; b = b.parent {
		for i := len(b.variables) - 1; i >= 0; i-- {
			if b.variables[i].name == name {
				return b.variables[i], true
			}
		}
	}
	return variableDesc{}, false
}

// markCaptured flags name's local as captured. Nothing reads the flag:
// an open upvalue already reads and writes the local's stack slot
// directly, so stores need no extra routing (spec §4.4).
func (fs *functionScope) markCaptured(name string) {
	for b := fs.block; b != nil; b = b.parent {
		for i := len(b.variables) - 1; i >= 0; i-- {
			if b.variables[i].name == name {
				b.variables[i].captured = true
				return
			}
		}
	}
}

const maxUpvalues = 255

// resolveUpvalue finds name in an enclosing function, adding upvalue
// descriptors along the chain as needed (spec §4.4's capture protocol),
// and returns this function's local upvalue index for it.
func (fs *functionScope) resolveUpvalue(name string) (uint8, bool) {
	for i, n := range fs.upvalueNames {
		if n == name {
			return uint8(i), true
		}
	}
	if fs.parent == nil {
		return 0, false
	}
	if v, ok := fs.parent.resolveLocal(name); ok {
		fs.parent.markCaptured(name)
		return fs.addUpvalue(name, v.register, true)
	}
	if idx, ok := fs.parent.resolveUpvalue(name); ok {
		return fs.addUpvalue(name, idx, false)
	}
	return 0, false
}

func (fs *functionScope) addUpvalue(name string, index uint8, isLocal bool) (uint8, bool) {
	if len(fs.upvalues) >= maxUpvalues {
		panic(&SemiError{ID: ErrTooManyUpvalues})
	}
	fs.upvalues = append(fs.upvalues, upvalueDesc{index: index, isLocal: isLocal})
	fs.upvalueNames = append(fs.upvalueNames, name)
	return uint8(len(fs.upvalues) - 1), true
}
