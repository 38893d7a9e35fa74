package semi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []token {
	t.Helper()
	l := newLexer([]byte(src))
	var toks []token
	for {
		tok := l.next()
		require.NotEqual(t, tokError, tok.kind, "unexpected lex error: %s", tok.text)
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks
		}
	}
}

func tokenKinds(toks []token) []tokenKind {
	kinds := make([]tokenKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.kind
	}
	return kinds
}

func Test_lexer_Punctuation(t *testing.T) {
	toks := lexAll(t, "x := 1 + 2 * (3 - 4) / 5")
	assert.Equal(t, []tokenKind{
		tokIdent, tokDefine, tokInt, tokPlus, tokInt, tokStar,
		tokLParen, tokInt, tokMinus, tokInt, tokRParen, tokSlash, tokInt,
		tokEOF,
	}, tokenKinds(toks))
}

func Test_lexer_Keywords(t *testing.T) {
	toks := lexAll(t, "fn for in if elif else step defer return export")
	assert.Equal(t, []tokenKind{
		tokKwFn, tokKwFor, tokKwIn, tokKwIf, tokKwElif, tokKwElse,
		tokKwStep, tokKwDefer, tokKwReturn, tokKwExport, tokEOF,
	}, tokenKinds(toks))
}

func Test_lexer_KeywordLikeIdentsAreNotKeywords(t *testing.T) {
	toks := lexAll(t, "forever")
	require.Len(t, toks, 2)
	assert.Equal(t, tokIdent, toks[0].kind)
	assert.Equal(t, "forever", toks[0].text)
}

func Test_lexer_NumberLiterals(t *testing.T) {
	toks := lexAll(t, "42 3.5 0")
	require.Len(t, toks, 4)
	assert.Equal(t, tokInt, toks[0].kind)
	assert.Equal(t, int64(42), toks[0].intVal)
	assert.Equal(t, tokFloat, toks[1].kind)
	assert.Equal(t, 3.5, toks[1].fltVal)
	assert.Equal(t, tokInt, toks[2].kind)
	assert.Equal(t, int64(0), toks[2].intVal)
}

func Test_lexer_RangeOperatorVsDecimalPoint(t *testing.T) {
	toks := lexAll(t, "1..5")
	require.Len(t, toks, 4)
	assert.Equal(t, tokInt, toks[0].kind)
	assert.Equal(t, int64(1), toks[0].intVal)
	assert.Equal(t, tokDotDot, toks[1].kind)
	assert.Equal(t, tokInt, toks[2].kind)
	assert.Equal(t, int64(5), toks[2].intVal)
}

func Test_lexer_StringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\tc\"d"`)
	require.Len(t, toks, 2)
	assert.Equal(t, tokString, toks[0].kind)
	assert.Equal(t, "a\nb\tc\"d", toks[0].text)
}

func Test_lexer_UnterminatedString(t *testing.T) {
	l := newLexer([]byte(`"abc`))
	tok := l.next()
	assert.Equal(t, tokError, tok.kind)
	assert.Equal(t, ErrUnterminatedString, l.errID)
}

func Test_lexer_TwoCharOperators(t *testing.T) {
	toks := lexAll(t, "== != <= >= ** << >>")
	assert.Equal(t, []tokenKind{
		tokEq, tokNeq, tokLe, tokGe, tokStarStar, tokShl, tokShr, tokEOF,
	}, tokenKinds(toks))
}

func Test_lexer_NewlineSuppressedInsideBrackets(t *testing.T) {
	toks := lexAll(t, "[1,\n2]")
	assert.Equal(t, []tokenKind{
		tokLBracket, tokInt, tokComma, tokInt, tokRBracket, tokEOF,
	}, tokenKinds(toks))
}

func Test_lexer_NewlineEmittedOutsideBrackets(t *testing.T) {
	toks := lexAll(t, "1\n2")
	assert.Equal(t, []tokenKind{
		tokInt, tokNewline, tokInt, tokEOF,
	}, tokenKinds(toks))
}

func Test_lexer_CommentsAreSkipped(t *testing.T) {
	toks := lexAll(t, "1 # this is a comment\n2")
	assert.Equal(t, []tokenKind{
		tokInt, tokNewline, tokInt, tokEOF,
	}, tokenKinds(toks))
}
