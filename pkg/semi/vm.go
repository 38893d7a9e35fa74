package semi

import (
	"errors"
	"fmt"

	"github.com/semi-lang/semi-sub001/internal/pagedstack"
	"github.com/semi-lang/semi-sub001/internal/panicerr"
)

// Config holds the VM's tunables, filled with defaults by DefaultConfig
// and adjusted via Options (spec §6's initConfig/createVM, rendered as
// gothird's functional-options pattern over its own VM config rather than
// a C struct passed by pointer).
type Config struct {
	Logf             func(format string, args ...interface{})
	StackMin, StackMax       int
	FrameMin, FrameMax       int
	MaxGlobalVars    int
	Trace            bool
}

func DefaultConfig() Config {
	return Config{
		Logf:          func(string, ...interface{}) {},
		StackMin:      minStack,
		StackMax:      maxStack,
		FrameMin:      minFrames,
		FrameMax:      maxFrames,
		MaxGlobalVars: 65534,
	}
}

// Option configures a VM at construction time.
type Option func(*Config)

func WithLogf(fn func(string, ...interface{})) Option {
	return func(c *Config) { c.Logf = fn }
}

func WithStackLimits(min, max int) Option {
	return func(c *Config) { c.StackMin, c.StackMax = min, max }
}

func WithTrace(trace bool) Option {
	return func(c *Config) { c.Trace = trace }
}

func WithGlobalVarLimit(n int) Option {
	return func(c *Config) { c.MaxGlobalVars = n }
}

// VM is a single, independent execution engine (spec §5: "two VMs must
// not share heap objects"). Its dispatch loop, frame stack, value stack,
// and open-upvalue list are all owned exclusively by this instance.
type VM struct {
	cfg  Config
	heap *heap

	stack  *pagedstack.Stack[Value]
	frames []frame

	openUpvalues *upvalue // sorted by descending absolute slot

	hostGlobals    *dictObject
	hostGlobalSyms *symbolTable

	modules    []*module
	returned   Value
	returnSlot Value
	lastError  *SemiError

	logging loggingState
}

// loggingState mirrors gothird's aligned-column trace logger: each traced
// instruction gets a fixed-width opcode column so a running trace stays
// readable without a separate formatter per opcode.
type loggingState struct {
	logf   func(string, ...interface{})
	column int
}

func (l *loggingState) trace(format string, args ...interface{}) {
	l.logf(format, args...)
}

// New creates a VM with the given options layered over DefaultConfig,
// installs the built-in type table (already done via methods.go's init),
// and returns the handle (spec §6 createVM).
func New(opts ...Option) *VM {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	vm := &VM{
		cfg:            cfg,
		hostGlobals:    nil,
		hostGlobalSyms: newSymbolTable(),
	}
	vm.heap = newHeap()
	vm.heap.roots = vm
	vm.hostGlobals = newDictObject(vm.heap)
	vm.stack = pagedstack.New[Value](cfg.StackMin, cfg.StackMax)
	if err := vm.stack.Grow(cfg.StackMin); err != nil {
		panic(err)
	}
	vm.frames = make([]frame, 0, cfg.FrameMin)
	vm.logging = loggingState{logf: cfg.Logf}
	return vm
}

func (vm *VM) nextModuleID() uint32 {
	id := uint32(len(vm.modules))
	vm.modules = append(vm.modules, nil)
	return id
}

// AddGlobalVariable registers a host-visible, read-only binding (spec §6
// addGlobalVariable); past MaxGlobalVars it fails with
// ErrTooManyGlobalVars rather than the VM silently truncating.
func (vm *VM) AddGlobalVariable(name string, v Value) error {
	if vm.hostGlobals.Len() >= vm.cfg.MaxGlobalVars {
		return &SemiError{ID: ErrTooManyGlobalVars}
	}
	sym := vm.hostGlobalSyms.intern(name)
	vm.hostGlobals.Set(IntValue(int64(sym)), v)
	return nil
}

// AddNativeFunction registers a host function under name, wrapping fn as
// a callable Value (spec §6's native function surface; concrete natives
// like print/len live outside this package per spec's Non-goals on the
// embedding side, see cmd/semi).
func (vm *VM) AddNativeFunction(name string, fn NativeFunc) error {
	nf := newNativeFunc(vm.heap, name, fn)
	return vm.AddGlobalVariable(name, objectValue(KindNative, &nf.object))
}

// RunModule executes m's init function to completion (spec §6 runModule).
// On success, the value of a top-level `return` (Invalid if the module
// has none) is left in vm.returned and also returned for embedding
// convenience.
func (vm *VM) RunModule(m *module) (Value, error) {
	vm.modules[m.id] = m
	cl := newClosure(vm.heap, m.init)
	var result Value
	err := panicerr.Recover("semi vm", func() error {
		result = vm.run(cl, m)
		return nil
	})
	if err != nil {
		var se *SemiError
		if errors.As(err, &se) {
			vm.lastError = se
			return Invalid, se
		}
		wrapped := &SemiError{ID: ErrInternal, Message: err.Error()}
		vm.lastError = wrapped
		return Invalid, wrapped
	}
	vm.returned = result
	return result, nil
}

// gcRoots implements rootProvider: every slot of the value stack, every
// frame's closure/deferred chain, every
// module's exports/globals/constant table, and the host globals table
// (spec §4.5).
func (vm *VM) gcRoots(mark func(Value)) {
	for _, v := range vm.stack.Items() {
		mark(v)
	}
	for _, fr := range vm.frames {
		if fr.closure != nil {
			mark(objectValue(KindClosure, &fr.closure.object))
		}
		for d := fr.deferred; d != nil; d = d.prevDeferred {
			mark(objectValue(KindClosure, &d.object))
		}
	}
	for _, m := range vm.modules {
		if m == nil {
			continue
		}
		markDict(mark, m.exports)
		markDict(mark, m.globals)
		for _, v := range m.constant.values {
			mark(v)
		}
	}
	markDict(mark, vm.hostGlobals)
	mark(vm.returned)
}

func markDict(mark func(Value), d *dictObject) {
	if d == nil {
		return
	}
	d.Each(func(k, v Value) {
		mark(k)
		mark(v)
	})
}

func (vm *VM) errorf(id ErrorID, format string, args ...interface{}) {
	panic(&SemiError{ID: id, Message: fmt.Sprintf(format, args...)})
}
