// Isolated tool execution.
//
// Information Hiding:
// - Goroutine lifecycle and abandonment hidden
// - Panic recovery hidden
// - Timeout context derivation hidden

package tools

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/richinex/smith/internal/logging"
)

// Executor runs a tool on its own goroutine under a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an executor with the given per-call timeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

type execOutcome struct {
	result ToolResult
	err    error
}

// Execute runs tool.Execute and waits for it or for ctx.
//
// When ctx ends first, ctx.Err() is returned and the tool goroutine is
// abandoned with its context cancelled. A timeout is reported as a failed
// result rather than an error. A panic becomes a failed result.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)

	done := make(chan execOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error().
					Str("tool", tool.Metadata().Name).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("tool panicked")
				done <- execOutcome{result: FailureResultf("tool panicked: %v", r)}
			}
		}()
		result, err := tool.Execute(execCtx, args)
		done <- execOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		cancel()
		if out.err != nil {
			return FailureResult(out.err), nil
		}
		return out.result, nil
	case <-ctx.Done():
		cancel()
		return ToolResult{}, ctx.Err()
	case <-execCtx.Done():
		cancel()
		if ctx.Err() != nil {
			return ToolResult{}, ctx.Err()
		}
		return FailureResultf("tool '%s' timed out after %s", tool.Metadata().Name, e.timeout), nil
	}
}
