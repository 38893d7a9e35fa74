package semi

// tokenKind enumerates the lexer's output vocabulary (spec §4.1).
type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokError

	tokIdent
	tokInt
	tokFloat
	tokString

	tokKwOr
	tokKwAnd
	tokKwIn
	tokKwIs
	tokKwIf
	tokKwAs
	tokKwFn
	tokKwFor
	tokKwElif
	tokKwElse
	tokKwStep
	tokKwTrue
	tokKwFalse
	tokKwDefer
	tokKwRaise
	tokKwBreak
	tokKwUnset
	tokKwExport
	tokKwReturn
	tokKwImport
	tokKwStruct
	tokKwContinue

	tokPlus
	tokMinus
	tokStar
	tokStarStar
	tokSlash
	tokPercent
	tokAmp
	tokPipe
	tokCaret
	tokTilde
	tokShl
	tokShr
	tokBang
	tokAssign
	tokDefine // :=
	tokEq
	tokNeq
	tokLt
	tokLe
	tokGt
	tokGe
	tokQuestion
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokComma
	tokColon
	tokDot
	tokDotDot
	tokSemicolon
	tokNewline
)

var keywords = map[string]tokenKind{
	"or":       tokKwOr,
	"and":      tokKwAnd,
	"in":       tokKwIn,
	"is":       tokKwIs,
	"if":       tokKwIf,
	"as":       tokKwAs,
	"fn":       tokKwFn,
	"for":      tokKwFor,
	"elif":     tokKwElif,
	"else":     tokKwElse,
	"step":     tokKwStep,
	"true":     tokKwTrue,
	"false":    tokKwFalse,
	"defer":    tokKwDefer,
	"raise":    tokKwRaise,
	"break":    tokKwBreak,
	"unset":    tokKwUnset,
	"export":   tokKwExport,
	"return":   tokKwReturn,
	"import":   tokKwImport,
	"struct":   tokKwStruct,
	"continue": tokKwContinue,
}

// token carries the recognized lexeme plus source position for diagnostics
// and the compiler's line table.
type token struct {
	kind   tokenKind
	text   string
	intVal int64
	fltVal float64
	line   int
	column int
}

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "EOF"
	case tokError:
		return "error"
	case tokIdent:
		return "identifier"
	case tokInt:
		return "int literal"
	case tokFloat:
		return "float literal"
	case tokString:
		return "string literal"
	case tokNewline:
		return "newline"
	default:
		return "token"
	}
}
