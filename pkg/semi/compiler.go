package semi

import (
	"errors"

	"github.com/semi-lang/semi-sub001/internal/panicerr"
)

// compiler is the single-pass driver: one lexer, one token of lookahead,
// and the current function/block scope chain (spec §4.3). Like
// original_source's compiler.c, every error is a single non-local exit —
// here, a panic of *SemiError caught by CompileModule, which releases
// nothing explicitly since Go's GC (not this package's) already owns the
// scope chain's memory; the "release every open scope" requirement is
// satisfied by simply letting the half-built chain become unreachable.
type compiler struct {
	lex *lexer
	cur token

	fn     *functionScope
	module *module
	heap   *heap

	atTopLevel bool
}

func newCompiler(h *heap, m *module, src []byte) *compiler {
	c := &compiler{lex: newLexer(src), module: m, heap: h}
	c.advance()
	return c
}

func (c *compiler) advance() {
	c.cur = c.lex.next()
	if c.cur.kind == tokError {
		panic(&SemiError{ID: c.lex.errID, Message: c.cur.text, Line: c.cur.line, Column: c.cur.column})
	}
}

func (c *compiler) failAt(id ErrorID, msg string, tok token) {
	panic(&SemiError{ID: id, Message: msg, Line: tok.line, Column: tok.column})
}

func (c *compiler) expect(k tokenKind, msg string) token {
	if c.cur.kind != k {
		c.failAt(ErrExpectedToken, msg, c.cur)
	}
	tok := c.cur
	c.advance()
	return tok
}

func (c *compiler) expectIdentText(msg string) string {
	tok := c.expect(tokIdent, msg)
	return tok.text
}

// skipSeparators consumes any run of newline/`;` statement separators.
func (c *compiler) skipSeparators() {
	for c.cur.kind == tokNewline || c.cur.kind == tokSemicolon {
		c.advance()
	}
}

func (c *compiler) stringConstant(s string) Value {
	return newStringValue(c.heap, s)
}

// --- emission ---------------------------------------------------------

func (c *compiler) emit(ins instruction, line int) int {
	c.fn.code = append(c.fn.code, ins)
	c.fn.lines = append(c.fn.lines, int32(line))
	return len(c.fn.code) - 1
}

func (c *compiler) emitT(op opcode, a, b, cc uint8, kB, kC bool) int {
	return c.emit(encodeT(op, a, b, cc, kB, kC), c.cur.line)
}

func (c *compiler) emitJ(op opcode, a uint8, j int16) int {
	return c.emit(encodeJ(op, a, j), c.cur.line)
}

func (c *compiler) emitK(op opcode, a uint8, k uint16) int {
	return c.emit(encodeK(op, a, k), c.cur.line)
}

func (c *compiler) emitKExport(op opcode, a uint8, k uint16) int {
	return c.emit(encodeKExport(op, a, k), c.cur.line)
}

// patchJumpHere patches a J-shape placeholder at idx to land on the
// instruction about to be emitted next.
func (c *compiler) patchJumpHere(idx int) {
	c.patchJumpTo(idx, len(c.fn.code))
}

func (c *compiler) patchJumpTo(idx, target int) {
	offset := int16(target - idx - 1)
	c.fn.code[idx] = c.fn.code[idx].setJ(offset)
}

// emitLoadConstant spills v into the module's constant table and loads it
// with LOAD_CONSTANT. Every constant takes this path, small ints and bools
// included: no instruction operand is ever inlined with a kB/kC flag.
func (c *compiler) emitLoadConstant(target uint8, v Value) {
	k := c.module.constant.index(v)
	c.emitK(opLoadConstant, target, k)
}

// --- identifier resolution / LHS parsing -------------------------------

// resolveIdent implements the read side of parseLhsNud (spec §4.3):
// local, upvalue, module var, or host global, in that order.
func (c *compiler) resolveIdent(name string, target uint8) pexpr {
	if v, ok := c.fn.resolveLocal(name); ok {
		return pexpr{kind: pexprVar, reg: v.register}
	}
	if idx, ok := c.fn.resolveUpvalue(name); ok {
		c.emitT(opGetUpvalue, target, idx, 0, false, false)
		return pexpr{kind: pexprReg, reg: target}
	}
	// A single-pass compiler can't yet know whether a later top-level
	// statement defines name, and can't distinguish a module var from a
	// host-registered global until runtime either (the VM falls back to
	// its read-only host globals when the module dict has nothing under
	// this symbol) — so any identifier that isn't a local/upvalue is
	// optimistically emitted as a (non-exporting) GET_MODULE_VAR and only
	// fails, at runtime, if nothing ever defines it.
	sym := c.module.symbols.intern(name)
	c.emitK(opGetModuleVar, target, uint16(sym))
	return pexpr{kind: pexprReg, reg: target}
}

// parseAssignmentOrExpr handles `:=` (new binding) and `=` (update), dispatching per
// the LHS table in spec §4.3.
func (c *compiler) parseAssignmentOrExpr() {
	startLine := c.cur.line
	lhsTok := c.cur
	if lhsTok.kind == tokIdent {
		name := lhsTok.text
		// Peek far enough to tell `name := ...` / `name = ...` apart from a
		// bare expression statement (e.g. a call or an indexed assignment),
		// backtracking the cursor if it turns out to be neither.
		snapshot := c.lex.cur.Save()
		depths := [3]int{c.lex.parenDepth, c.lex.bracketDepth, c.lex.braceDepth}
		c.advance()
		switch c.cur.kind {
		case tokDefine:
			c.advance()
			c.compileDeclare(name, startLine)
			return
		case tokAssign:
			c.advance()
			c.compileAssignSimple(name, startLine)
			return
		default:
			c.lex.cur.Restore(snapshot)
			c.lex.parenDepth, c.lex.bracketDepth, c.lex.braceDepth = depths[0], depths[1], depths[2]
			c.cur = lhsTok
		}
	}
	// Not a simple `name :=`/`name =`: parse as a full expression, which
	// also covers indexed assignment (`base[i] = v`) via
	// compileExprStatementOrIndexAssign.
	c.compileExprStatementOrIndexAssign()
}

func (c *compiler) compileDeclare(name string, line int) {
	reg := c.fn.allocRegister()
	val := c.parseExpression(bpNone, reg)
	r := c.materialize(val, reg)
	if r != reg {
		c.emitT(opMove, reg, r, 0, false, false)
	}
	v := variableDesc{name: name, register: reg}
	c.fn.block.variables = append(c.fn.block.variables, v)
	_ = line
}

func (c *compiler) compileAssignSimple(name string, line int) {
	if v, ok := c.fn.resolveLocal(name); ok {
		tmp := c.fn.allocRegister()
		val := c.parseExpression(bpNone, tmp)
		r := c.materialize(val, tmp)
		c.emitT(opMove, v.register, r, 0, false, false)
		c.fn.nextRegister--
		return
	}
	if idx, ok := c.fn.resolveUpvalue(name); ok {
		tmp := c.fn.allocRegister()
		val := c.parseExpression(bpNone, tmp)
		r := c.materialize(val, tmp)
		c.emitT(opSetUpvalue, r, idx, 0, false, false)
		c.fn.nextRegister--
		return
	}
	sym := c.module.symbols.intern(name)
	tmp := c.fn.allocRegister()
	val := c.parseExpression(bpNone, tmp)
	r := c.materialize(val, tmp)
	c.emitK(opSetModuleVar, r, uint16(sym))
	c.fn.nextRegister--
	_ = line
}

// compileExprStatementOrIndexAssign parses a bare expression; if what
// comes back is an indexable base immediately followed by `=`, it's
// really an indexed assignment (`a[k] = v`), the one LHS form the simple
// identifier fast path above can't recognize without backtracking.
func (c *compiler) compileExprStatementOrIndexAssign() {
	reg := c.fn.allocRegister()
	// Parse a primary + access chain ourselves so we can intercept a
	// trailing `[...]` immediately before `=`.
	e := c.parseExpression(bpAccess+1, reg)
	for c.cur.kind == tokLBracket {
		c.advance()
		idx := c.parseExpression(bpNone, reg+1)
		c.expect(tokRBracket, "expected ']'")
		ir := c.materialize(idx, reg+1)
		br := c.materialize(e, reg)
		if c.cur.kind == tokAssign {
			c.advance()
			val := c.parseExpression(bpNone, reg+2)
			vr := c.materialize(val, reg+2)
			c.emitT(opSetItem, br, ir, vr, false, false)
			c.fn.nextRegister = reg
			return
		}
		c.emitT(opGetItem, reg, br, ir, false, false)
		e = pexpr{kind: pexprReg, reg: reg}
	}
	// Finish any remaining operators (e.g. a bare call or full expression).
	for lbp(c.cur.kind) > bpNone {
		e = c.parseLed(e, reg)
	}
	c.fn.nextRegister = reg
}

// --- statements ---------------------------------------------------------

func (c *compiler) parseBlock() {
	c.expect(tokLBrace, "expected '{'")
	c.fn.pushBlock()
	c.skipSeparators()
	for c.cur.kind != tokRBrace && c.cur.kind != tokEOF {
		c.parseStatement()
		c.skipSeparators()
	}
	base := c.fn.block.base
	c.expect(tokRBrace, "expected '}'")
	c.emitT(opCloseUpvalues, base, 0, 0, false, false)
	c.fn.popBlock()
}

func (c *compiler) parseStatement() {
	switch c.cur.kind {
	case tokKwIf:
		c.parseIf()
	case tokKwFor:
		c.parseFor()
	case tokKwFn:
		c.parseFunctionDecl()
	case tokKwExport:
		c.parseExport()
	case tokKwReturn:
		c.parseReturn()
	case tokKwDefer:
		c.parseDefer()
	case tokKwBreak:
		c.parseBreak()
	case tokKwContinue:
		c.parseContinue()
	case tokKwImport, tokKwStruct, tokKwRaise:
		c.failAt(ErrUnsupportedFeature, c.cur.kind.String()+" is not supported", c.cur)
	case tokLBrace:
		c.parseBlock()
	default:
		c.parseAssignmentOrExpr()
	}
}

func (c *compiler) parseIf() {
	c.advance()
	var patchList []int
	for {
		reg := c.fn.allocRegister()
		cond := c.parseExpression(bpNone, reg)
		if cond.kind == pexprConstant {
			taken := cond.value.IsTruthy()
			if taken {
				c.fn.nextRegister--
				c.parseBlock()
				c.skipElifElseBranches(false)
				break
			}
			c.fn.nextRegister--
			c.skipBlock()
			if c.cur.kind == tokKwElif {
				c.advance()
				continue
			}
			if c.cur.kind == tokKwElse {
				c.advance()
				c.parseBlock()
			}
			break
		}
		cr := c.materialize(cond, reg)
		skip := c.emitJ(opCJump, cr, 0)
		c.fn.nextRegister--
		c.parseBlock()
		exitJump := c.emitJ(opJump, 0, 0)
		patchList = append(patchList, exitJump)
		c.patchJumpHere(skip)
		if c.cur.kind == tokKwElif {
			c.advance()
			continue
		}
		if c.cur.kind == tokKwElse {
			c.advance()
			c.parseBlock()
		}
		break
	}
	for _, idx := range patchList {
		c.patchJumpHere(idx)
	}
}

// skipElifElseBranches discards remaining elif/else bodies once a constant
// `if` has already chosen its branch (spec §4.3's dead-branch elision:
// "the compiled chunk contains no emission for the ... branch body").
func (c *compiler) skipElifElseBranches(consumeFirst bool) {
	_ = consumeFirst
	for c.cur.kind == tokKwElif {
		c.advance()
		c.skipCondition()
		c.skipBlock()
	}
	if c.cur.kind == tokKwElse {
		c.advance()
		c.skipBlock()
	}
}

func (c *compiler) skipCondition() {
	c.skipExpression(bpNone)
}

// skipBlock parses a `{ ... }` body purely to advance past it, rewinding
// any code it emitted (used for elided constant-condition branches).
func (c *compiler) skipBlock() {
	mark := len(c.fn.code)
	savedNext := c.fn.nextRegister
	c.parseBlock()
	c.fn.code = c.fn.code[:mark]
	c.fn.lines = c.fn.lines[:mark]
	c.fn.nextRegister = savedNext
}

func (c *compiler) parseFor() {
	c.advance()
	if c.cur.kind == tokLBrace {
		c.parseInfiniteFor()
		return
	}
	// `for item in iter` or `for i, item in iter`.
	first := c.expectIdentText("expected loop variable")
	indexName := ""
	itemName := first
	if c.cur.kind == tokComma {
		c.advance()
		indexName = first
		itemName = c.expectIdentText("expected loop item variable")
	}
	c.expect(tokKwIn, "expected 'in'")

	c.fn.pushBlock()
	iterReg := c.fn.allocRegister()
	iterExpr := c.parseExpression(bpNone, iterReg)
	ir := c.materialize(iterExpr, iterReg)
	if ir != iterReg {
		c.emitT(opMove, iterReg, ir, 0, false, false)
	}

	idxReg := c.fn.allocRegister()
	itemReg := c.fn.allocRegister()
	if indexName != "" {
		c.fn.block.variables = append(c.fn.block.variables, variableDesc{name: indexName, register: idxReg})
	}
	c.fn.block.variables = append(c.fn.block.variables, variableDesc{name: itemName, register: itemReg})

	c.emitT(opLoadNil, idxReg, 0, 0, false, false)
	loopTop := len(c.fn.code)
	c.fn.loop = &loopContext{parent: c.fn.loop, top: loopTop, baseReg: iterReg}
	c.emitT(opIterNext, idxReg, itemReg, iterReg, false, false)
	skipBody := c.emitJ(opJump, 0, 0)
	c.parseBlock()
	c.emitJ(opJump, 0, int16(loopTop-len(c.fn.code)-1))
	c.patchJumpHere(skipBody)

	for _, b := range c.fn.loop.breaks {
		c.patchJumpHere(b)
	}
	c.fn.loop = c.fn.loop.parent
	c.fn.popBlock()
}

func (c *compiler) parseInfiniteFor() {
	loopTop := len(c.fn.code)
	c.fn.loop = &loopContext{parent: c.fn.loop, top: loopTop, baseReg: c.fn.nextRegister}
	c.parseBlock()
	c.emitJ(opJump, 0, int16(loopTop-len(c.fn.code)-1))
	for _, b := range c.fn.loop.breaks {
		c.patchJumpHere(b)
	}
	c.fn.loop = c.fn.loop.parent
}

func (c *compiler) parseBreak() {
	tok := c.cur
	c.advance()
	if c.fn.loop == nil {
		c.failAt(ErrUnexpectedToken, "'break' outside a loop", tok)
	}
	idx := c.emitJ(opJump, 0, 0)
	c.fn.loop.breaks = append(c.fn.loop.breaks, idx)
}

func (c *compiler) parseContinue() {
	tok := c.cur
	c.advance()
	if c.fn.loop == nil {
		c.failAt(ErrUnexpectedToken, "'continue' outside a loop", tok)
	}
	c.emitJ(opJump, 0, int16(c.fn.loop.top-len(c.fn.code)-1))
}

func (c *compiler) parseFunctionDecl() {
	c.advance()
	name := c.expectIdentText("expected function name")
	proto := c.compileFunctionBody(name)
	idx := c.addFunctionConstant(proto)
	reg := c.fn.allocRegister()
	c.emitK(opLoadConstant, reg, idx)
	if c.atTopLevel {
		sym := c.module.symbols.intern(name)
		c.emitK(opSetModuleVar, reg, uint16(sym))
		return
	}
	c.fn.block.variables = append(c.fn.block.variables, variableDesc{name: name, register: reg})
}

// addFunctionConstant boxes a compiled prototype as a closure-constant
// (the module init materializes the closure via LOAD_CONSTANT; capture of
// any upvalues happens then, per spec §4.4's capturing protocol).
func (c *compiler) addFunctionConstant(proto *funcProto) uint16 {
	return c.module.constant.index(objectValue(KindProto, &proto.object))
}

// compileFunctionBody parses `(params) { body }` in a fresh function
// scope and returns the resulting prototype.
func (c *compiler) compileFunctionBody(name string) *funcProto {
	proto := newFuncProto(c.heap)
	proto.name = name
	proto.moduleID = c.module.id

	parentFn := c.fn
	parentTopLevel := c.atTopLevel
	c.fn = newFunctionScope(parentFn, proto)
	c.atTopLevel = false

	c.expect(tokLParen, "expected '('")
	var arity uint8
	for c.cur.kind != tokRParen {
		if arity > 0 {
			c.expect(tokComma, "expected ',' between parameters")
		}
		pname := c.expectIdentText("expected parameter name")
		reg := c.fn.allocRegister()
		c.fn.block.variables = append(c.fn.block.variables, variableDesc{name: pname, register: reg})
		arity++
	}
	c.expect(tokRParen, "expected ')'")
	proto.arity = arity

	c.parseBlock()
	if len(c.fn.code) == 0 || c.fn.code[len(c.fn.code)-1].op() != opReturn {
		c.emitT(opReturn, returnNoValue, 0, 0, false, false)
	}

	proto.code = c.fn.code
	proto.lines = c.fn.lines
	proto.upvalues = c.fn.upvalues
	proto.maxStack = c.fn.maxRegister
	if c.fn.coaritySet {
		proto.coarity = c.fn.coarity
	}

	c.fn = parentFn
	c.atTopLevel = parentTopLevel
	return proto
}

func (c *compiler) parseReturn() {
	tok := c.cur
	c.advance()
	hasValue := c.cur.kind != tokNewline && c.cur.kind != tokSemicolon &&
		c.cur.kind != tokRBrace && c.cur.kind != tokEOF

	if c.fn.inDefer && hasValue {
		c.failAt(ErrReturnValueInDefer, "return with a value is not allowed in a defer body", tok)
	}

	coarity := uint8(0)
	if hasValue {
		coarity = 1
	}
	if c.fn.coaritySet && c.fn.coarity != coarity {
		c.failAt(ErrInconsistentCoarity, "inconsistent return coarity", tok)
	}
	c.fn.coarity = coarity
	c.fn.coaritySet = true

	if !hasValue {
		c.emitT(opReturn, returnNoValue, 0, 0, false, false)
		return
	}
	reg := c.fn.nextRegister
	val := c.parseExpression(bpNone, reg)
	r := c.materialize(val, reg)
	c.emitT(opReturn, r, 0, 0, false, false)
}

func (c *compiler) parseDefer() {
	tok := c.cur
	c.advance()
	if c.fn.inDefer {
		c.failAt(ErrNestedDefer, "nested defer is not allowed", tok)
	}
	proto := newFuncProto(c.heap)
	proto.name = "<defer>"
	proto.moduleID = c.module.id

	parentFn := c.fn
	c.fn = newFunctionScope(parentFn, proto)
	c.fn.inDefer = true

	c.parseBlock()
	c.emitT(opReturn, returnNoValue, 0, 0, false, false)
	proto.code = c.fn.code
	proto.lines = c.fn.lines
	proto.upvalues = c.fn.upvalues
	proto.maxStack = c.fn.maxRegister

	c.fn = parentFn
	k := c.addFunctionConstant(proto)
	c.emitK(opDeferCall, 0, k)
}

func (c *compiler) parseExport() {
	tok := c.cur
	c.advance()
	if !c.atTopLevel {
		c.failAt(ErrExportNotTopLevel, "'export' is only allowed at top level", tok)
	}
	if c.cur.kind == tokKwFn {
		c.advance()
		name := c.expectIdentText("expected function name")
		proto := c.compileFunctionBody(name)
		k := c.addFunctionConstant(proto)
		reg := c.fn.allocRegister()
		c.emitK(opLoadConstant, reg, k)
		sym := c.module.symbols.intern(name)
		c.emitKExport(opSetModuleVar, reg, uint16(sym))
		return
	}
	name := c.expectIdentText("expected identifier after 'export'")
	c.expect(tokDefine, "expected ':=' in export binding")
	reg := c.fn.allocRegister()
	val := c.parseExpression(bpNone, reg)
	r := c.materialize(val, reg)
	sym := c.module.symbols.intern(name)
	c.emitKExport(opSetModuleVar, r, uint16(sym))
}

// --- module driver ------------------------------------------------------

// CompileModule parses and emits source into a module artifact, returning
// the module on success. It is the implementation of the embedding API's
// compileModule (spec §6).
func CompileModule(vm *VM, name string, source []byte) (*module, error) {
	var result *module
	err := panicerr.Recover("semi compile", func() error {
		m := newModule(vm.heap, vm.nextModuleID(), name)
		proto := newFuncProto(vm.heap)
		proto.name = name
		proto.moduleID = m.id

		c := &compiler{lex: newLexer(source), module: m, heap: vm.heap, atTopLevel: true}
		c.fn = newFunctionScope(nil, proto)
		c.advance()
		c.skipSeparators()
		for c.cur.kind != tokEOF {
			c.parseStatement()
			c.skipSeparators()
		}
		if len(c.fn.code) == 0 || c.fn.code[len(c.fn.code)-1].op() != opReturn {
			c.emitT(opReturn, returnNoValue, 0, 0, false, false)
		}
		proto.code = c.fn.code
		proto.lines = c.fn.lines
		proto.maxStack = c.fn.maxRegister
		m.init = proto
		result = m
		return nil
	})
	if err != nil {
		var se *SemiError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, &SemiError{ID: ErrInternal, Message: err.Error()}
	}
	return result, nil
}
