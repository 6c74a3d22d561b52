package ot

import (
	"errors"
	"fmt"

	"github.com/polda-go/pipelinedoc/pkg/otvalue"
)

// ErrUnsyncable is returned when a submitted version falls outside the
// retained window of the Session's log.
var ErrUnsyncable = errors.New("ot: version is not within the retained window")

// IncompatiblePositionsError reports that two positions disagree in
// branch kind at a level the transform needed to compare.
type IncompatiblePositionsError struct {
	A, B otvalue.Path
}

func (e *IncompatiblePositionsError) Error() string {
	return fmt.Sprintf("ot: incompatible positions %v and %v", e.A, e.B)
}

// InvalidOperationError reports that an operation is structurally
// invalid (e.g. a Move whose from is an ancestor of to).
type InvalidOperationError struct {
	Op Operation
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("ot: invalid operation %#v", e.Op)
}

// NonexistentPositionError reports that a position no longer has a
// meaningful location in the document.
type NonexistentPositionError struct {
	Pos otvalue.Path
	Op  Operation
}

func (e *NonexistentPositionError) Error() string {
	return fmt.Sprintf("ot: position %v has no location after %#v", e.Pos, e.Op)
}
