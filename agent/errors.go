package agent

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when Run is called while another Run on the
// same agent is in progress, or when the log is inconsistent.
var ErrInvalidState = errors.New("agent: invalid state")

// MaxIterationsError is returned when the model keeps requesting tools
// past the iteration limit.
type MaxIterationsError struct {
	Max int
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("max iterations exceeded: model still requesting tools after %d turns", e.Max)
}

// IsMaxIterations reports whether err is or wraps a MaxIterationsError.
func IsMaxIterations(err error) bool {
	var me *MaxIterationsError
	return errors.As(err, &me)
}
