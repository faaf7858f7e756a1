package kmodel

import (
	"fmt"
	"strconv"
)

// OperatorIndex is the globally unique, never reused index of an operator.
// Indices are modeled as unbounded integers but every index is checked
// against MaxSafeIndex before it is used to address anything.
type OperatorIndex int64

// NoOperator marks the absence of an operator, e.g. the owner of the root.
const NoOperator OperatorIndex = -1

// MaxSafeIndex is the largest operator or port index accepted by the model.
const MaxSafeIndex = 1<<53 - 1

func (i OperatorIndex) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// Validate checks that the index is non-negative and within MaxSafeIndex.
func (i OperatorIndex) Validate() error {
	if i < 0 {
		return fmt.Errorf("%w: operator index %d", ErrOperatorNotFound, i)
	}
	if i > MaxSafeIndex {
		return fmt.Errorf("%w: operator index %d", ErrIndexOverflow, i)
	}
	return nil
}

func checkPortIndex(port int) error {
	if port < 0 {
		return fmt.Errorf("%w: port index %d", ErrPortOutOfRange, port)
	}
	if int64(port) > MaxSafeIndex {
		return fmt.Errorf("%w: port index %d", ErrIndexOverflow, port)
	}
	return nil
}

// PortKind selects the input or output port list of an operator.
type PortKind int

const (
	Input PortKind = iota
	Output
)

func (k PortKind) String() string {
	switch k {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// Opposite returns the other port kind.
func (k PortKind) Opposite() PortKind {
	if k == Input {
		return Output
	}
	return Input
}

// Direction selects which connection list of a port is addressed.
//
// Downstream lists point towards consumers: the Outgoing list of a composite
// port and the Connections of a primitive output port. Upstream lists point
// towards producers: the Incoming list of a composite port and the Connections
// of a primitive input port.
type Direction int

const (
	Downstream Direction = iota
	Upstream
)

func (d Direction) String() string {
	if d == Downstream {
		return "downstream"
	}
	return "upstream"
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Downstream {
		return Upstream
	}
	return Downstream
}

// Connection names one endpoint of a directed edge by operator index, port
// index and port kind. It is a name, not a pointer: graph rewriting only ever
// updates these three fields, and every use resolves them through the graph.
type Connection struct {
	Operator OperatorIndex
	Port     int
	Kind     PortKind
}

// In returns the endpoint naming input port p of op.
func In(op OperatorIndex, p int) Connection {
	return Connection{Operator: op, Port: p, Kind: Input}
}

// Out returns the endpoint naming output port p of op.
func Out(op OperatorIndex, p int) Connection {
	return Connection{Operator: op, Port: p, Kind: Output}
}

func (c Connection) String() string {
	return fmt.Sprintf("%d.%s[%d]", c.Operator, c.Kind, c.Port)
}
