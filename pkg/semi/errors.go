package semi

import "fmt"

// ErrorID enumerates every machine-readable error the compiler and VM can
// surface at the embedding boundary (spec §7).
type ErrorID uint16

const (
	ErrNone ErrorID = iota

	// Lexical
	ErrInvalidUTF8
	ErrInvalidNumber
	ErrUnterminatedString
	ErrInvalidEscape
	ErrIdentifierTooLong

	// Parse
	ErrUnexpectedToken
	ErrUnexpectedEOF
	ErrExpectedToken
	ErrExpectedLValue
	ErrInconsistentCoarity
	ErrReturnValueInDefer
	ErrNestedDefer
	ErrExportNotTopLevel
	ErrUnsupportedFeature

	// Semantic
	ErrUninitializedVariable
	ErrVariableAlreadyDefined
	ErrTooManyLocals
	ErrTooManyUpvalues
	ErrTooManyArguments
	ErrTooManyConstants
	ErrTooManyModuleVars
	ErrTooManyGlobalVars
	ErrTooManyInstructions
	ErrBracketsTooDeep
	ErrAssignToReadOnly

	// Runtime
	ErrUnexpectedType
	ErrDivideByZero
	ErrArgCountMismatch
	ErrInvalidInstruction
	ErrInvalidPC
	ErrStackOverflow
	ErrMissingReturnValue
	ErrModuleNotFound
	ErrOutOfMemory
	ErrAllocationLimit
	ErrIndexOutOfRange
	ErrKeyNotFound

	// Internal
	ErrInternal
)

var errorNames = map[ErrorID]string{
	ErrNone:                   "none",
	ErrInvalidUTF8:            "invalid utf-8",
	ErrInvalidNumber:          "invalid number literal",
	ErrUnterminatedString:     "unterminated string",
	ErrInvalidEscape:          "invalid escape sequence",
	ErrIdentifierTooLong:      "identifier too long",
	ErrUnexpectedToken:        "unexpected token",
	ErrUnexpectedEOF:          "unexpected end of file",
	ErrExpectedToken:          "expected token",
	ErrExpectedLValue:         "expected lvalue",
	ErrInconsistentCoarity:    "inconsistent return coarity",
	ErrReturnValueInDefer:     "return value in defer",
	ErrNestedDefer:            "nested defer",
	ErrExportNotTopLevel:      "export outside top level",
	ErrUnsupportedFeature:     "feature not implemented",
	ErrUninitializedVariable:  "uninitialized variable",
	ErrVariableAlreadyDefined: "variable already defined",
	ErrTooManyLocals:          "too many locals",
	ErrTooManyUpvalues:        "too many upvalues",
	ErrTooManyArguments:       "too many arguments",
	ErrTooManyConstants:       "too many constants",
	ErrTooManyModuleVars:      "too many module variables",
	ErrTooManyGlobalVars:      "too many global variables",
	ErrTooManyInstructions:    "too many instructions",
	ErrBracketsTooDeep:        "brackets nested too deeply",
	ErrAssignToReadOnly:       "assignment to read-only binding",
	ErrUnexpectedType:         "unexpected type",
	ErrDivideByZero:           "divide by zero",
	ErrArgCountMismatch:       "argument count mismatch",
	ErrInvalidInstruction:     "invalid instruction",
	ErrInvalidPC:              "invalid program counter",
	ErrStackOverflow:          "stack overflow",
	ErrMissingReturnValue:     "missing return value",
	ErrModuleNotFound:         "module not found",
	ErrOutOfMemory:            "out of memory",
	ErrAllocationLimit:        "allocation limit reached",
	ErrIndexOutOfRange:        "index out of range",
	ErrKeyNotFound:            "key not found",
	ErrInternal:               "internal error",
}

func (id ErrorID) String() string {
	if s, ok := errorNames[id]; ok {
		return s
	}
	return fmt.Sprintf("ErrorID(%d)", uint16(id))
}

// SemiError is the error type returned across the embedding boundary (§6,
// §7). Message is an optional static debug string; Line/Column are set only
// for compile-time errors.
type SemiError struct {
	ID      ErrorID
	Message string
	Line    int
	Column  int
}

func (err *SemiError) Error() string {
	if err == nil {
		return ErrNone.String()
	}
	if err.Line > 0 {
		if err.Message != "" {
			return fmt.Sprintf("%d:%d: %s: %s", err.Line, err.Column, err.ID, err.Message)
		}
		return fmt.Sprintf("%d:%d: %s", err.Line, err.Column, err.ID)
	}
	if err.Message != "" {
		return fmt.Sprintf("%s: %s", err.ID, err.Message)
	}
	return err.ID.String()
}

func newError(id ErrorID, msg string) *SemiError {
	return &SemiError{ID: id, Message: msg}
}

func newErrorAt(id ErrorID, msg string, line, col int) *SemiError {
	return &SemiError{ID: id, Message: msg, Line: line, Column: col}
}
