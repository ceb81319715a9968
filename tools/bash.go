// Bash Tool - shell command execution.
//
// Information Hiding:
// - Process setup and working directory hidden
// - Timeout handling hidden
// - Exit status reporting abstracted

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// MaxBashTimeout caps the timeout_secs argument.
const MaxBashTimeout = 600 * time.Second

// BashTool executes commands via bash -c.
type BashTool struct {
	workDir        string
	defaultTimeout time.Duration
}

// NewBashTool creates a new bash tool running in workDir.
func NewBashTool(workDir string, defaultTimeout time.Duration) *BashTool {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &BashTool{workDir: workDir, defaultTimeout: defaultTimeout}
}

// Metadata returns the tool metadata.
func (t *BashTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "bash",
		Description: "Run a bash command in the working directory and return combined stdout and stderr. A non-zero exit status is reported as an error.",
		Parameters: []ToolParameter{
			{Name: "command", ParamType: "string", Description: "The command to execute", Required: true},
			{Name: "timeout_secs", ParamType: "integer", Description: fmt.Sprintf("Timeout in seconds (default: %d, max: %d)", int(t.defaultTimeout.Seconds()), int(MaxBashTimeout.Seconds())), Required: false},
		},
		Kind: TypeBash,
	}
}

type bashArgs struct {
	Command     string `json:"command"`
	TimeoutSecs int    `json:"timeout_secs"`
}

// Validate validates the tool arguments.
func (t *BashTool) Validate(args json.RawMessage) error {
	var a bashArgs
	if err := decodeArgs("bash", args, &a); err != nil {
		return err
	}
	if strings.TrimSpace(a.Command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if a.TimeoutSecs < 0 || time.Duration(a.TimeoutSecs)*time.Second > MaxBashTimeout {
		return fmt.Errorf("timeout_secs must be between 1 and %d", int(MaxBashTimeout.Seconds()))
	}
	return nil
}

// Execute runs the command.
func (t *BashTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a bashArgs
	if err := decodeArgs("bash", args, &a); err != nil {
		return FailureResult(err), nil
	}

	timeout := t.defaultTimeout
	if a.TimeoutSecs > 0 {
		timeout = time.Duration(a.TimeoutSecs) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", a.Command)
	cmd.Dir = t.workDir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	// Background children may hold the output pipe open after bash is killed.
	cmd.WaitDelay = 2 * time.Second

	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ToolResult{
			Output: output.String(),
			Error:  fmt.Errorf("command timed out after %d seconds", int(timeout.Seconds())),
		}, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ToolResult{
				Output: output.String(),
				Error:  fmt.Errorf("command failed with exit code %d\noutput: %s", exitErr.ExitCode(), strings.TrimSpace(output.String())),
			}, nil
		}
		return FailureResult(fmt.Errorf("failed to execute command: %w", err)), nil
	}

	if output.Len() == 0 {
		return SuccessResult("(no output)"), nil
	}
	return SuccessResult(output.String()), nil
}
