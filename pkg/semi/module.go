package semi

// module is the compiled artifact for one source file (spec §3 Module
// artifact): an exports dict and a globals dict (together "module vars",
// selected by SET_MODULE_VAR/GET_MODULE_VAR's export flag), a constant
// table shared by every function body compiled from it, and the top-level
// init function's prototype. original_source's vm.h calls the equivalent
// struct SemiModule; moduleID is what funcProto.moduleID and runtime
// errors reference back to it.
//
// Both dicts are keyed by the module's own interned symbol ID rather than
// by re-hashing the name string on every access, which is the point of
// threading a symbolTable through the compiler in the first place.
type module struct {
	id       uint32
	name     string
	heap     *heap
	exports  *dictObject
	globals  *dictObject
	init     *funcProto
	symbols  *symbolTable
	constant *constantTable
}

func newModule(h *heap, id uint32, name string) *module {
	return &module{
		id:       id,
		name:     name,
		heap:     h,
		exports:  newDictObject(h),
		globals:  newDictObject(h),
		symbols:  newSymbolTable(),
		constant: newConstantTable(),
	}
}

func (m *module) varDict(useExports bool) *dictObject {
	if useExports {
		return m.exports
	}
	return m.globals
}

func (m *module) getVar(sym uint32, useExports bool) (Value, bool) {
	return m.varDict(useExports).Get(IntValue(int64(sym)))
}

func (m *module) setVar(sym uint32, useExports bool, v Value) {
	m.varDict(useExports).Set(IntValue(int64(sym)), v)
}

// lookupExport is used by the embedding API to read back a named export
// after RunModule completes (spec §6).
func (m *module) lookupExport(name string) (Value, bool) {
	sym, ok := m.symbols.lookup(name)
	if !ok {
		return Invalid, false
	}
	return m.exports.Get(IntValue(int64(sym)))
}

// Module is the opaque handle an embedder holds onto between CompileModule
// and RunModule (spec §6).
type Module = module

// LookupExport resolves name against m's export table; ok is false if name
// was never exported.
func (m *module) LookupExport(name string) (Value, bool) {
	return m.lookupExport(name)
}

// ExportNames lists every symbol name bound in m's export table, in no
// particular order (dict iteration order is insertion order, but exports
// across multiple `export` statements are not required to preserve any
// ordering beyond that).
func (m *module) ExportNames() []string {
	var names []string
	m.exports.Each(func(k, v Value) {
		names = append(names, m.symbols.name(uint32(k.AsInt())))
	})
	return names
}
