package kconsistent

import (
	"errors"
	"fmt"

	"github.com/birdayz/streamc/kmodel"
)

// ErrTooManyStartOperators is matched by every *TooManyStartOperatorsError.
var ErrTooManyStartOperators = errors.New("too many start operators")

// TooManyStartOperatorsError is returned when an operator-driven consistent
// region ends up with more than one start operator after merging. This is an
// error in the application, not in the compiler.
type TooManyStartOperatorsError struct {
	Region int
	Starts []kmodel.OperatorIndex
}

func (e *TooManyStartOperatorsError) Error() string {
	return fmt.Sprintf("%s: operator-driven consistent region %d has %d start operators %v",
		ErrTooManyStartOperators, e.Region, len(e.Starts), e.Starts)
}

func (e *TooManyStartOperatorsError) Is(target error) bool {
	return target == ErrTooManyStartOperators
}
