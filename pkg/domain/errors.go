package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it without parsing messages.
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindCompile    Kind = "CompileError"
	KindOptimize   Kind = "OptimizeError"
	KindTimeout    Kind = "TimeoutError"
	KindGeneration Kind = "GenerationError"
	KindInternal   Kind = "InternalFault"
)

// Stage names the pipeline step a Diagnostic originates from.
type Stage string

const (
	StageCompile   Stage = "compile"
	StageOptimize  Stage = "optimize"
	StageSerialize Stage = "serialize"
)

// Diagnostic is the structured detail attached to compile and optimize failures.
type Diagnostic struct {
	Stage   Stage  `json:"stage"`
	Source  string `json:"source,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Symbol  string `json:"symbol,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (d Diagnostic) String() string {
	var loc string
	switch {
	case d.Line > 0 && d.Source != "":
		loc = fmt.Sprintf("%s:%d:%d", d.Source, d.Line, d.Column)
	case d.Line > 0:
		loc = fmt.Sprintf("%d:%d", d.Line, d.Column)
	default:
		loc = d.Source
	}
	msg := d.Message
	if loc != "" {
		msg = loc + ": " + msg
	}
	if d.Code != "" {
		msg = d.Code + ": " + msg
	}
	return msg
}

// Error is the typed failure surfaced to callers.
type Error struct {
	Kind       Kind
	Message    string
	Diagnostic *Diagnostic
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error of the given kind wrapping cause.
func NewError(kind Kind, cause error) *Error {
	e := &Error{Kind: kind, Err: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of err, or KindInternal if err carries none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a domain Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
