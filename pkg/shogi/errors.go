package shogi

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation marks a position the rules cannot reason about,
// such as a missing king or an empty origin square.
var ErrInvariantViolation = errors.New("shogi: invariant violation")

// InvariantViolation is the panic value raised by the core when a position is
// corrupt. Callers that drive whole games recover it into an error.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return "shogi: invariant violation: " + e.Reason
}

func (e *InvariantViolation) Unwrap() error {
	return ErrInvariantViolation
}

func violate(format string, args ...any) {
	panic(&InvariantViolation{Reason: fmt.Sprintf(format, args...)})
}
