package tools

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPermissionDenied is matched by authorization errors that represent a
// policy or user denial rather than a failure of the authorizer itself.
var ErrPermissionDenied = errors.New("permission denied")

// ErrAuthorizerFailed marks a result whose authorizer could not decide,
// for example because the approval channel closed. Callers treat it as
// fatal rather than as a denial.
var ErrAuthorizerFailed = errors.New("authorizer failed")

// IsAuthorizerFailure reports whether a result failed because its
// authorizer broke.
func IsAuthorizerFailure(result ToolResult) bool {
	return errors.Is(result.Error, ErrAuthorizerFailed)
}

// ToolNotFoundError is returned when a tool name is not registered.
type ToolNotFoundError struct {
	Name      string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("tool not found: %s", e.Name)
	}
	return fmt.Sprintf("tool not found: %s (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// InvalidInputError reports arguments rejected before execution.
type InvalidInputError struct {
	Tool   string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for %s: %s", e.Tool, e.Reason)
}

// IsToolNotFound reports whether err is or wraps a ToolNotFoundError.
func IsToolNotFound(err error) bool {
	var nf *ToolNotFoundError
	return errors.As(err, &nf)
}

// IsInvalidInput reports whether err is or wraps an InvalidInputError.
func IsInvalidInput(err error) bool {
	var ii *InvalidInputError
	return errors.As(err, &ii)
}
