package render

import (
	"errors"
	"fmt"
)

// ErrNoEngine is returned when a partial is rendered by a Runtime that is not
// attached to an Executor.
var ErrNoEngine = errors.New("no template engine configured")

// UnknownHelperError reports a helper name missing from the Environment.
type UnknownHelperError struct {
	Name string
}

func (e *UnknownHelperError) Error() string {
	return fmt.Sprintf("unknown helper %q", e.Name)
}

// UnknownPartialError reports a partial name missing from the Environment.
type UnknownPartialError struct {
	Name string
}

func (e *UnknownPartialError) Error() string {
	return fmt.Sprintf("unknown partial %q", e.Name)
}

// RecursionLimitError is returned when nested partials exceed the executor's
// maximum depth.
type RecursionLimitError struct {
	Name  string
	Limit int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("partial %q exceeds maximum render depth %d", e.Name, e.Limit)
}

// ContentShapeConflictError is returned when a keyed write hits whole-value
// content or the other way round.
type ContentShapeConflictError struct {
	Have Shape
	Want Shape
	Key  string
}

func (e *ContentShapeConflictError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cannot set key %q: content is already %s", e.Key, e.Have)
	}
	return fmt.Sprintf("cannot set %s content: content is already %s", e.Want, e.Have)
}
