package types

import (
	"errors"
	"fmt"
)

// SyntaxError represents malformed source input with position information.
type SyntaxError struct {
	Token    string
	Position *Position
	Msg      string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	msg := e.Msg
	if e.Token != "" {
		msg = fmt.Sprintf("%s (near %q)", msg, e.Token)
	}
	if e.Position != nil {
		return fmt.Sprintf("syntax error at line %d, column %d: %s",
			e.Position.Line, e.Position.Column, msg)
	}
	return fmt.Sprintf("syntax error: %s", msg)
}

// UnsupportedConstructError represents valid input that uses a feature with
// no representation in the query model. Essential reports whether dropping
// the construct would change query results; non-essential constructs degrade
// to a diagnostic instead of failing the translation.
type UnsupportedConstructError struct {
	Construct string
	Position  *Position
	Essential bool
	Hint      string
}

// Error implements the error interface.
func (e *UnsupportedConstructError) Error() string {
	msg := fmt.Sprintf("unsupported construct: %s", e.Construct)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// UnresolvedReferenceError represents a column or table reference that does
// not resolve against the scope accumulated so far.
type UnresolvedReferenceError struct {
	Name     string
	Position *Position
}

// Error implements the error interface.
func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference: %q", e.Name)
}

// ResourceLimitError represents input that exceeded a configured parsing or
// translation bound.
type ResourceLimitError struct {
	Kind  string
	Limit int
}

// Error implements the error interface.
func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("resource limit exceeded: more than %d %s", e.Limit, e.Kind)
}

// UnknownTargetError represents a framework or dialect id with no registered
// implementation.
type UnknownTargetError struct {
	Kind string
	ID   string
}

// Error implements the error interface.
func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Kind, e.ID)
}

// IsSyntaxError reports whether err is a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsUnsupportedConstruct reports whether err is an UnsupportedConstructError.
func IsUnsupportedConstruct(err error) bool {
	var ue *UnsupportedConstructError
	return errors.As(err, &ue)
}

// IsUnresolvedReference reports whether err is an UnresolvedReferenceError.
func IsUnresolvedReference(err error) bool {
	var re *UnresolvedReferenceError
	return errors.As(err, &re)
}

// IsResourceLimit reports whether err is a ResourceLimitError.
func IsResourceLimit(err error) bool {
	var le *ResourceLimitError
	return errors.As(err, &le)
}

// IsUnknownTarget reports whether err is an UnknownTargetError.
func IsUnknownTarget(err error) bool {
	var te *UnknownTargetError
	return errors.As(err, &te)
}

// DiagnosticCode maps an engine error to its diagnostic code. Unrecognized
// errors map to Internal.
func DiagnosticCode(err error) Code {
	switch {
	case IsSyntaxError(err):
		return TranslateSyntaxError
	case IsUnsupportedConstruct(err):
		return TranslateUnsupported
	case IsUnresolvedReference(err):
		return TranslateUnresolvedReference
	case IsResourceLimit(err):
		return TranslateResourceLimit
	case IsUnknownTarget(err):
		return TranslateUnknownTarget
	default:
		return Internal
	}
}
