package kparallel

import (
	"errors"
	"fmt"

	"github.com/birdayz/streamc/kmodel"
)

// ErrInvalidParallelWidth is matched by every *InvalidParallelWidthError.
var ErrInvalidParallelWidth = errors.New("invalid parallel width")

// InvalidParallelWidthError is returned when a parallel region resolves to a
// width below one, either from its annotation or from a submission override.
type InvalidParallelWidthError struct {
	Width    int
	Region   string
	Operator kmodel.OperatorIndex
}

func (e *InvalidParallelWidthError) Error() string {
	return fmt.Sprintf("%s: region %q rooted at operator %d has width %d",
		ErrInvalidParallelWidth, e.Region, e.Operator, e.Width)
}

func (e *InvalidParallelWidthError) Is(target error) bool {
	return target == ErrInvalidParallelWidth
}
