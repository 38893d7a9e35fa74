package semi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileAndRun(t *testing.T, src string, natives map[string]NativeFunc) (*VM, *Module, Value) {
	t.Helper()
	vm := New()
	for name, fn := range natives {
		require.NoError(t, vm.AddNativeFunction(name, fn))
	}
	m, err := CompileModule(vm, t.Name(), []byte(src))
	require.NoError(t, err, "compile")
	result, err := vm.RunModule(m)
	require.NoError(t, err, "run")
	return vm, m, result
}

func Test_ConstantFoldingEmitsASingleLoad(t *testing.T) {
	_, m, _ := compileAndRun(t, `export x := 3 + 4 * 2`, nil)

	v, ok := m.LookupExport("x")
	require.True(t, ok)
	assert.Equal(t, int64(11), v.AsInt())

	// The fold happens entirely at compile time: no ADD/MUL opcode should
	// ever reach the instruction stream.
	for _, ins := range m.init.code {
		assert.NotEqual(t, opAdd, ins.op())
		assert.NotEqual(t, opMul, ins.op())
	}
	require.Len(t, m.init.code, 3, "LOAD_CONSTANT, SET_MODULE_VAR, then RETURN")
	assert.Equal(t, opLoadConstant, m.init.code[0].op())
	assert.Equal(t, opSetModuleVar, m.init.code[1].op())
	assert.Equal(t, opReturn, m.init.code[2].op())
	assert.Equal(t, int64(11), m.constant.at(m.init.code[0].k()).AsInt())
}

func Test_FunctionCall(t *testing.T) {
	src := `
fn add(a, b) {
	return a + b
}
export result := add(2, 3)
`
	_, m, _ := compileAndRun(t, src, nil)
	v, ok := m.LookupExport("result")
	require.True(t, ok)
	assert.Equal(t, int64(5), v.AsInt())
}

func Test_RangeForLoop(t *testing.T) {
	src := `
sum := 0
for item in 1..5 {
	sum = sum + item
}
export total := sum
`
	_, m, _ := compileAndRun(t, src, nil)
	v, ok := m.LookupExport("total")
	require.True(t, ok)
	// 1..5 is exclusive of 5: 1+2+3+4 == 10.
	assert.Equal(t, int64(10), v.AsInt())
}

func Test_IndexedForLoop(t *testing.T) {
	src := `
count := 0
itemSum := 0
for i, item in 10..13 {
	count = count + 1
	itemSum = itemSum + i + item
}
export count := count
export itemSum := itemSum
`
	_, m, _ := compileAndRun(t, src, nil)
	count, ok := m.LookupExport("count")
	require.True(t, ok)
	itemSum, ok := m.LookupExport("itemSum")
	require.True(t, ok)
	// 10..13 is exclusive of 13: indices 0,1,2 paired with items 10,11,12.
	assert.Equal(t, int64(3), count.AsInt())
	assert.Equal(t, int64(0+10+1+11+2+12), itemSum.AsInt())
}

func Test_ClosureCapturesAcrossCalls(t *testing.T) {
	src := `
fn makeCounter() {
	count := 0
	fn increment() {
		count = count + 1
		return count
	}
	return increment
}
inc := makeCounter()
export a := inc()
export b := inc()
export c := inc()
`
	_, m, _ := compileAndRun(t, src, nil)
	a, _ := m.LookupExport("a")
	b, _ := m.LookupExport("b")
	c, _ := m.LookupExport("c")
	assert.Equal(t, int64(1), a.AsInt())
	assert.Equal(t, int64(2), b.AsInt())
	assert.Equal(t, int64(3), c.AsInt())
}

func Test_IndependentClosuresDoNotShareState(t *testing.T) {
	src := `
fn makeCounter() {
	count := 0
	fn increment() {
		count = count + 1
		return count
	}
	return increment
}
incA := makeCounter()
incB := makeCounter()
export a1 := incA()
export a2 := incA()
export b1 := incB()
`
	_, m, _ := compileAndRun(t, src, nil)
	a1, _ := m.LookupExport("a1")
	a2, _ := m.LookupExport("a2")
	b1, _ := m.LookupExport("b1")
	assert.Equal(t, int64(1), a1.AsInt())
	assert.Equal(t, int64(2), a2.AsInt())
	assert.Equal(t, int64(1), b1.AsInt(), "a fresh counter starts over at 1")
}

func Test_DeferRunsLastDeferredFirst(t *testing.T) {
	var appendFn NativeFunc = func(vm *VM, args []Value) (Value, error) {
		if len(args) != 2 {
			return Invalid, &SemiError{ID: ErrArgCountMismatch}
		}
		if err := AppendToList(args[0], args[1]); err != nil {
			return Invalid, err
		}
		return args[0], nil
	}
	src := `
log := []
defer { append(log, "b") }
defer { append(log, "a") }
export out := log
`
	_, m, _ := compileAndRun(t, src, map[string]NativeFunc{"append": appendFn})
	out, ok := m.LookupExport("out")
	require.True(t, ok)
	n, err := Length(out)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	first, err := classFor(out).getItem(nil, out, IntValue(0))
	require.NoError(t, err)
	second, err := classFor(out).getItem(nil, out, IntValue(1))
	require.NoError(t, err)
	assert.Equal(t, "a", first.StringValue(), "the most recently deferred call runs first")
	assert.Equal(t, "b", second.StringValue())
}

func Test_ConstantIfElidesDeadBranch(t *testing.T) {
	src := `
if true {
	export result := 1
} else {
	export result := 2
}
`
	_, m, _ := compileAndRun(t, src, nil)
	v, ok := m.LookupExport("result")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.AsInt())

	for _, ins := range m.init.code {
		op := ins.op()
		assert.NotEqual(t, opCJump, op, "a constant condition must not emit a branch")
		assert.NotEqual(t, opJump, op)
	}
}

func Test_ConstantIfElseBranchTaken(t *testing.T) {
	src := `
if false {
	export result := 1
} else {
	export result := 2
}
`
	_, m, _ := compileAndRun(t, src, nil)
	v, ok := m.LookupExport("result")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInt())
}

func Test_NonConstantIfStillBranches(t *testing.T) {
	src := `
fn pick(flag) {
	if flag {
		return 1
	} else {
		return 2
	}
}
export a := pick(true)
export b := pick(false)
`
	_, m, _ := compileAndRun(t, src, nil)
	a, _ := m.LookupExport("a")
	b, _ := m.LookupExport("b")
	assert.Equal(t, int64(1), a.AsInt())
	assert.Equal(t, int64(2), b.AsInt())
}

func Test_ExportNamesListsAllExports(t *testing.T) {
	src := `
export a := 1
export b := 2
`
	_, m, _ := compileAndRun(t, src, nil)
	names := m.ExportNames()
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func Test_UninitializedModuleVarIsARuntimeError(t *testing.T) {
	vm := New()
	m, err := CompileModule(vm, t.Name(), []byte(`export x := neverDefined`))
	require.NoError(t, err, "a single-pass compiler can't reject this until runtime")
	_, err = vm.RunModule(m)
	require.Error(t, err)
	var se *SemiError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrUninitializedVariable, se.ID)
}
