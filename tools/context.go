package tools

import (
	"fmt"
	"time"
)

const (
	// DefaultTimeout bounds a single tool execution.
	DefaultTimeout = 120 * time.Second
	// DefaultMaxOutputSize caps the bytes of tool output returned to the model.
	DefaultMaxOutputSize = 10 * 1024 * 1024
)

// ExecContext holds per-dispatch execution limits.
// The zero value is usable: limits fall back to the defaults.
type ExecContext struct {
	WorkingDir    string
	Timeout       time.Duration
	MaxOutputSize int
}

// DefaultExecContext returns the default limits rooted at workDir.
func DefaultExecContext(workDir string) ExecContext {
	return ExecContext{
		WorkingDir:    workDir,
		Timeout:       DefaultTimeout,
		MaxOutputSize: DefaultMaxOutputSize,
	}
}

func (c ExecContext) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c ExecContext) maxOutput() int {
	if c.MaxOutputSize <= 0 {
		return DefaultMaxOutputSize
	}
	return c.MaxOutputSize
}

// TruncateOutput cuts s to at most max bytes and appends a marker stating
// the original size.
func TruncateOutput(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("\n\n[Output truncated: %d bytes total, showing first %d bytes]", len(s), max)
}
