package semi

// pexprKind tags a parsed expression's shape per spec §4.3's Pratt parser
// result taxonomy: Constant/Var/Reg. There is no Type kind: the lexer does
// not single out type identifiers, so an identifier that starts with an
// uppercase letter resolves like any other identifier.
type pexprKind uint8

const (
	pexprConstant pexprKind = iota // compile-time value, nothing emitted yet
	pexprVar                       // lives in a fixed register already (local/param)
	pexprReg                       // lives in target/temp register, code already emitted
)

type pexpr struct {
	kind  pexprKind
	reg   uint8
	value Value
}

// Binding powers, low to high (spec §4.3's precedence ladder). Gaps are
// left between levels so nothing downstream needs renumbering.
const (
	bpNone       = 0
	bpTernary    = 10
	bpOr         = 20
	bpAnd        = 30
	bpInIs       = 40
	bpEquality   = 50
	bpComparison = 60
	bpTerm       = 70
	bpFactor     = 80
	bpExponent   = 90
	bpUnary      = 100
	bpAccess     = 110
)

// materialize ensures e's value lives in a register, preferring the
// caller's target register and reusing an existing Var's register
// verbatim rather than emitting a redundant MOVE (spec §4.3's point (c)).
func (c *compiler) materialize(e pexpr, target uint8) uint8 {
	switch e.kind {
	case pexprVar:
		return e.reg
	case pexprReg:
		if e.reg != target {
			c.emitT(opMove, target, e.reg, 0, false, false)
		}
		return target
	default: // pexprConstant
		c.emitLoadConstant(target, e.value)
		return target
	}
}

// parseExpression implements the Pratt loop: a null denotation for the
// current token, then left denotations for as long as the next token's
// left binding power is ≥ rbp.
func (c *compiler) parseExpression(rbp int, target uint8) pexpr {
	left := c.parseNud(target)
	for lbp(c.cur.kind) >= rbp && lbp(c.cur.kind) > bpNone {
		left = c.parseLed(left, target)
	}
	return left
}

func lbp(k tokenKind) int {
	switch k {
	case tokQuestion:
		return bpTernary
	case tokKwOr:
		return bpOr
	case tokKwAnd:
		return bpAnd
	case tokKwIn, tokKwIs:
		return bpInIs
	case tokEq, tokNeq:
		return bpEquality
	case tokLt, tokLe, tokGt, tokGe:
		return bpComparison
	case tokPlus, tokMinus:
		return bpTerm
	case tokStar, tokSlash, tokPercent, tokAmp, tokPipe, tokCaret, tokShl, tokShr:
		return bpFactor
	case tokStarStar:
		return bpExponent
	case tokLParen, tokLBracket, tokDot, tokDotDot:
		return bpAccess
	default:
		return bpNone
	}
}

func (c *compiler) parseNud(target uint8) pexpr {
	tok := c.cur
	switch tok.kind {
	case tokInt:
		c.advance()
		return pexpr{kind: pexprConstant, value: IntValue(tok.intVal)}
	case tokFloat:
		c.advance()
		return pexpr{kind: pexprConstant, value: FloatValue(tok.fltVal)}
	case tokString:
		c.advance()
		return pexpr{kind: pexprConstant, value: c.stringConstant(tok.text)}
	case tokKwTrue:
		c.advance()
		return pexpr{kind: pexprConstant, value: BoolValue(true)}
	case tokKwFalse:
		c.advance()
		return pexpr{kind: pexprConstant, value: BoolValue(false)}
	case tokIdent:
		c.advance()
		return c.resolveIdent(tok.text, target)
	case tokLParen:
		c.advance()
		e := c.parseExpression(bpNone, target)
		c.expect(tokRParen, "expected ')'")
		return e
	case tokLBracket:
		return c.parseListLiteral(target)
	case tokLBrace:
		return c.parseDictLiteral(target)
	case tokMinus:
		c.advance()
		operand := c.parseExpression(bpUnary, target)
		if operand.kind == pexprConstant {
			if v, ok := foldUnary(opNeg, operand.value); ok {
				return pexpr{kind: pexprConstant, value: v}
			}
		}
		r := c.materialize(operand, target)
		c.emitT(opNeg, target, r, 0, false, false)
		return pexpr{kind: pexprReg, reg: target}
	case tokBang:
		c.advance()
		operand := c.parseExpression(bpUnary, target)
		if operand.kind == pexprConstant {
			if v, ok := foldUnary(opBoolNot, operand.value); ok {
				return pexpr{kind: pexprConstant, value: v}
			}
		}
		r := c.materialize(operand, target)
		c.emitT(opBoolNot, target, r, 0, false, false)
		return pexpr{kind: pexprReg, reg: target}
	case tokTilde:
		c.advance()
		operand := c.parseExpression(bpUnary, target)
		r := c.materialize(operand, target)
		c.emitT(opBitNot, target, r, 0, false, false)
		return pexpr{kind: pexprReg, reg: target}
	default:
		c.failAt(ErrUnexpectedToken, "unexpected token in expression", tok)
		return pexpr{kind: pexprConstant, value: Invalid}
	}
}

func (c *compiler) parseLed(left pexpr, target uint8) pexpr {
	tok := c.cur
	switch tok.kind {
	case tokQuestion:
		return c.parseTernary(left, target)
	case tokLParen:
		return c.parseCall(left, target)
	case tokLBracket:
		return c.parseIndex(left, target)
	case tokDotDot:
		return c.parseRange(left, target)
	case tokDot:
		c.advance()
		name := c.expectIdentText("expected field name after '.'")
		_ = name
		// Reserved for future structs (spec §4.3 LHS parser table).
		c.failAt(ErrUnsupportedFeature, "field access is not supported", tok)
		return pexpr{kind: pexprConstant, value: Invalid}
	default:
		return c.parseBinary(left, target)
	}
}

var binaryOps = map[tokenKind]struct {
	op    opcode
	rbp   int
	logic bool // and/or: short-circuit, not a plain arithmetic opcode
}{
	tokKwOr:  {rbp: bpOr + 1, logic: true},
	tokKwAnd: {rbp: bpAnd + 1, logic: true},
	tokPlus:  {op: opAdd, rbp: bpTerm + 1},
	tokMinus: {op: opSub, rbp: bpTerm + 1},
	tokStar:  {op: opMul, rbp: bpFactor + 1},
	tokSlash: {op: opDiv, rbp: bpFactor + 1},
	tokPercent: {op: opMod, rbp: bpFactor + 1},
	tokAmp:   {op: opBitAnd, rbp: bpFactor + 1},
	tokPipe:  {op: opBitOr, rbp: bpFactor + 1},
	tokCaret: {op: opBitXor, rbp: bpFactor + 1},
	tokShl:   {op: opShl, rbp: bpFactor + 1},
	tokShr:   {op: opShr, rbp: bpFactor + 1},
	// ** is right-associative: its rbp equals its lbp, so a ** b ** c
	// parses as a ** (b ** c).
	tokStarStar: {op: opPow, rbp: bpExponent},
	tokEq:       {op: opEq, rbp: bpEquality + 1},
	tokNeq:      {op: opNeq, rbp: bpEquality + 1},
	// Comparison lowering (spec §4.3): < and <= emit GT/GE with swapped operands.
	tokLt: {op: opGt, rbp: bpComparison + 1},
	tokLe: {op: opGe, rbp: bpComparison + 1},
	tokGt: {op: opGt, rbp: bpComparison + 1},
	tokGe: {op: opGe, rbp: bpComparison + 1},
	tokKwIn: {op: opContain, rbp: bpInIs + 1},
}

func (c *compiler) parseBinary(left pexpr, target uint8) pexpr {
	tok := c.cur
	info, ok := binaryOps[tok.kind]
	if !ok {
		c.failAt(ErrUnexpectedToken, "unexpected operator", tok)
	}
	c.advance()

	if info.logic {
		return c.parseShortCircuit(tok.kind, left, target, info.rbp)
	}

	swap := tok.kind == tokLt || tok.kind == tokLe
	right := c.parseExpression(info.rbp, target+1)

	if left.kind == pexprConstant && right.kind == pexprConstant {
		a, b := left.value, right.value
		if swap {
			a, b = b, a
		}
		if v, ok := foldBinary(info.op, a, b); ok {
			return pexpr{kind: pexprConstant, value: v}
		}
	}

	lr := c.materialize(left, target)
	rr := c.materialize(right, target+1)
	if swap {
		lr, rr = rr, lr
	}
	c.emitT(info.op, target, lr, rr, false, false)
	return pexpr{kind: pexprReg, reg: target}
}

// parseShortCircuit implements and/or: "for and/or with a constant left
// operand, the parse proceeds as a trivial reduction" (spec §4.3).
func (c *compiler) parseShortCircuit(kind tokenKind, left pexpr, target uint8, rbp int) pexpr {
	if left.kind == pexprConstant {
		if kind == tokKwAnd && !left.value.IsTruthy() {
			c.skipExpression(rbp)
			return pexpr{kind: pexprConstant, value: left.value}
		}
		if kind == tokKwOr && left.value.IsTruthy() {
			c.skipExpression(rbp)
			return pexpr{kind: pexprConstant, value: left.value}
		}
		right := c.parseExpression(rbp, target)
		return right
	}
	lr := c.materialize(left, target)
	var jumpOp opcode
	if kind == tokKwAnd {
		jumpOp = opCJump // falsy short-circuits "and"
	} else {
		jumpOp = opCJumpTruthy
	}
	skip := c.emitJ(jumpOp, lr, 0)
	right := c.parseExpression(rbp, target)
	rr := c.materialize(right, target)
	if rr != target {
		c.emitT(opMove, target, rr, 0, false, false)
	}
	c.patchJumpHere(skip)
	return pexpr{kind: pexprReg, reg: target}
}

// skipExpression parses and discards an expression purely for its side
// effects on token position, used when a constant and/or left operand
// already determines the result (spec §4.3).
func (c *compiler) skipExpression(rbp int) {
	mark := len(c.fn.code)
	c.parseExpression(rbp, c.fn.nextRegister)
	c.fn.code = c.fn.code[:mark]
	c.fn.lines = c.fn.lines[:mark]
}

func (c *compiler) parseTernary(cond pexpr, target uint8) pexpr {
	c.advance() // '?'
	if cond.kind == pexprConstant {
		// "a constant condition emits only the chosen branch; the other
		// branch is still parsed but the emitted code is rewound" (§4.3).
		if cond.value.IsTruthy() {
			result := c.parseExpression(bpTernary, target)
			c.expect(tokColon, "expected ':' in ternary")
			c.skipExpression(bpTernary)
			return result
		}
		c.skipExpression(bpTernary)
		c.expect(tokColon, "expected ':' in ternary")
		return c.parseExpression(bpTernary, target)
	}
	cr := c.materialize(cond, target)
	skipThen := c.emitJ(opCJump, cr, 0)
	thenVal := c.parseExpression(bpTernary, target)
	tr := c.materialize(thenVal, target)
	if tr != target {
		c.emitT(opMove, target, tr, 0, false, false)
	}
	skipElse := c.emitJ(opJump, 0, 0)
	c.patchJumpHere(skipThen)
	c.expect(tokColon, "expected ':' in ternary")
	elseVal := c.parseExpression(bpTernary, target)
	er := c.materialize(elseVal, target)
	if er != target {
		c.emitT(opMove, target, er, 0, false, false)
	}
	c.patchJumpHere(skipElse)
	return pexpr{kind: pexprReg, reg: target}
}

func (c *compiler) parseCall(callee pexpr, target uint8) pexpr {
	c.advance() // '('
	base := c.materialize(callee, target)
	if base != target {
		// A local callee keeps its own register; the call runs in target so
		// its result does not overwrite the variable.
		c.emitT(opMove, target, base, 0, false, false)
		base = target
	}
	argBase := base + 1
	argCount := uint8(0)
	for c.cur.kind != tokRParen {
		if argCount > 0 {
			c.expect(tokComma, "expected ',' between arguments")
			if c.cur.kind == tokRParen {
				break // trailing comma: f(args,)
			}
		}
		argReg := argBase + argCount
		arg := c.parseExpression(bpNone, argReg)
		r := c.materialize(arg, argReg)
		if r != argReg {
			c.emitT(opMove, argReg, r, 0, false, false)
		}
		argCount++
		if argCount == 0 {
			c.failAt(ErrTooManyArguments, "too many arguments", c.cur)
		}
	}
	c.expect(tokRParen, "expected ')'")
	c.emitT(opCall, base, argCount, 1, false, false)
	return pexpr{kind: pexprReg, reg: base}
}

func (c *compiler) parseIndex(base pexpr, target uint8) pexpr {
	c.advance() // '['
	br := c.materialize(base, target)
	idx := c.parseExpression(bpNone, target+1)
	c.expect(tokRBracket, "expected ']'")
	ir := c.materialize(idx, target+1)
	c.emitT(opGetItem, target, br, ir, false, false)
	return pexpr{kind: pexprReg, reg: target}
}

func (c *compiler) parseRange(from pexpr, target uint8) pexpr {
	c.advance() // '..'
	to := c.parseExpression(bpAccess+1, target+1)
	step := pexpr{kind: pexprConstant, value: IntValue(1)}
	if c.cur.kind == tokKwStep {
		c.advance()
		step = c.parseExpression(bpAccess+1, target+2)
	}
	if from.kind == pexprConstant && to.kind == pexprConstant && step.kind == pexprConstant {
		return pexpr{kind: pexprConstant, value: c.foldRange(from.value, to.value, step.value)}
	}
	fr := c.materialize(from, target)
	tr := c.materialize(to, target+1)
	_ = step
	c.emitT(opMakeRange, target, fr, tr, false, false)
	return pexpr{kind: pexprReg, reg: target}
}

func (c *compiler) foldRange(from, to, step Value) Value {
	if from.kind != KindInt || to.kind != KindInt || step.kind != KindInt {
		return Invalid
	}
	return newRangeValue(c.heap, from.AsInt(), to.AsInt(), step.AsInt())
}

func (c *compiler) parseListLiteral(target uint8) pexpr {
	c.advance() // '['
	c.emitT(opNewList, target, 0, 0, false, false)
	for c.cur.kind != tokRBracket {
		item := c.parseExpression(bpNone, target+1)
		ir := c.materialize(item, target+1)
		c.emitT(opAppendList, target, ir, 0, false, false)
		if c.cur.kind != tokRBracket {
			c.expect(tokComma, "expected ',' between list items")
			if c.cur.kind == tokRBracket {
				break
			}
		}
	}
	c.expect(tokRBracket, "expected ']'")
	return pexpr{kind: pexprReg, reg: target}
}

func (c *compiler) parseDictLiteral(target uint8) pexpr {
	c.advance() // '{'
	c.emitT(opNewDict, target, 0, 0, false, false)
	for c.cur.kind != tokRBrace {
		key := c.parseExpression(bpNone, target+1)
		c.expect(tokColon, "expected ':' in dict literal")
		val := c.parseExpression(bpNone, target+2)
		kr := c.materialize(key, target+1)
		vr := c.materialize(val, target+2)
		c.emitT(opAppendMap, target, kr, vr, false, false)
		if c.cur.kind != tokRBrace {
			c.expect(tokComma, "expected ',' between dict entries")
			if c.cur.kind == tokRBrace {
				break
			}
		}
	}
	c.expect(tokRBrace, "expected '}'")
	return pexpr{kind: pexprReg, reg: target}
}
