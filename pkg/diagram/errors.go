package diagram

import (
	"fmt"

	"github.com/aretw0/trio/pkg/domain"
)

// Diagnostic codes.
const (
	CodeParse             = "ParseError"
	CodeTypeNotFound      = "TypeNotFound"
	CodePredicateNotFound = "PredicateNotFound"
	CodeArityMismatch     = "ArityMismatch"
	CodeTypeMismatch      = "TypeMismatch"
	CodeDuplicateName     = "DuplicateName"
	CodeVarNotFound       = "VarNotFound"
	CodeSelector          = "SelectorError"
	CodePathNotFound      = "PathNotFound"
	CodeCyclicDefinition  = "CyclicDefinition"
	CodeUnknownShape      = "UnknownShape"
	CodeUnknownFunction   = "UnknownFunction"
	CodeProperty          = "PropertyError"
	CodeCanvas            = "CanvasError"
	CodeInfeasible        = "Infeasible"
	CodeDiverged          = "Diverged"
	CodeCanceled          = "Canceled"
	CodeResource          = "ResourceError"
	CodeNotConverged      = "NotConverged"
)

// Error is a failure in one of the engine stages.
type Error struct {
	Diagnostic domain.Diagnostic
}

func (e *Error) Error() string {
	return e.Diagnostic.String()
}

// Stage reports which pipeline stage produced the error.
func (e *Error) Stage() domain.Stage {
	return e.Diagnostic.Stage
}

func compileErr(code string, at pos, symbol string, format string, args ...any) *Error {
	return &Error{Diagnostic: domain.Diagnostic{
		Stage:   domain.StageCompile,
		Source:  at.src,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Symbol:  symbol,
		Line:    at.line,
		Column:  at.col,
	}}
}

func optimizeErr(code string, symbol string, format string, args ...any) *Error {
	return &Error{Diagnostic: domain.Diagnostic{
		Stage:   domain.StageOptimize,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Symbol:  symbol,
	}}
}

func serializeErr(code string, symbol string, format string, args ...any) *Error {
	return &Error{Diagnostic: domain.Diagnostic{
		Stage:   domain.StageSerialize,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Symbol:  symbol,
	}}
}
