package kmodel

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure cases.
var (
	ErrGraphIntegrity      = errors.New("graph integrity violated")
	ErrMalformedAnnotation = errors.New("malformed annotation")
	ErrOperatorNotFound    = errors.New("operator not found")
	ErrPortOutOfRange      = errors.New("port index out of range")
	ErrIndexOverflow       = errors.New("index exceeds maximum safe value")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrWrongOperatorKind   = errors.New("wrong operator kind")
	ErrDurationRange       = errors.New("duration must be a finite, non-negative number of seconds")
)

// GraphIntegrityError reports a connection, port index or operator index that does
// not resolve. It always indicates a defect in a previous pass or in the front end.
type GraphIntegrityError struct {
	// Pass is the compilation pass that detected the problem, if known.
	Pass string

	Operator OperatorIndex
	Port     int
	Kind     PortKind

	Msg   string
	Cause error
}

func (e *GraphIntegrityError) Error() string {
	pass := e.Pass
	if pass == "" {
		pass = "model"
	}
	var loc string
	if e.Port >= 0 {
		loc = fmt.Sprintf("operator %d %s port %d", e.Operator, e.Kind, e.Port)
	} else {
		loc = fmt.Sprintf("operator %d", e.Operator)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%s): %s: %v", ErrGraphIntegrity, pass, loc, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s (%s): %s", ErrGraphIntegrity, pass, loc, e.Msg)
}

func (e *GraphIntegrityError) Unwrap() error {
	return e.Cause
}

func (e *GraphIntegrityError) Is(target error) bool {
	return target == ErrGraphIntegrity
}

func integrityError(op OperatorIndex, port int, kind PortKind, cause error, format string, args ...any) *GraphIntegrityError {
	return &GraphIntegrityError{
		Operator: op,
		Port:     port,
		Kind:     kind,
		Msg:      fmt.Sprintf(format, args...),
		Cause:    cause,
	}
}

// NewIntegrityError creates a GraphIntegrityError attributed to the given pass.
// Use port -1 when the problem is not tied to a port.
func NewIntegrityError(pass string, op OperatorIndex, port int, kind PortKind, format string, args ...any) *GraphIntegrityError {
	e := integrityError(op, port, kind, nil, format, args...)
	e.Pass = pass
	return e
}

// InPass attributes every GraphIntegrityError in err's chain that has no pass yet
// to the given pass. Other errors are returned unchanged.
func InPass(pass string, err error) error {
	var ie *GraphIntegrityError
	if errors.As(err, &ie) && ie.Pass == "" {
		ie.Pass = pass
	}
	return err
}

// MalformedAnnotationError is returned when an annotation value that is required
// to be numeric or boolean could not be parsed.
type MalformedAnnotationError struct {
	Operator OperatorIndex
	Tag      string
	Key      string
	Value    string
	Cause    error
}

func (e *MalformedAnnotationError) Error() string {
	return fmt.Sprintf("%s: operator %d @%s(%s=%q): %v",
		ErrMalformedAnnotation, e.Operator, e.Tag, e.Key, e.Value, e.Cause)
}

func (e *MalformedAnnotationError) Unwrap() error {
	return e.Cause
}

func (e *MalformedAnnotationError) Is(target error) bool {
	return target == ErrMalformedAnnotation
}
