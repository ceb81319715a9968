// Agent configuration types.
//
// Information Hiding:
// - Configuration validation logic hidden
// - Default values hidden

package agent

import (
	"fmt"
	"time"

	"github.com/richinex/smith/tools"
)

const (
	// DefaultMaxIterations bounds the model turns of one Run.
	DefaultMaxIterations = 10
	// DefaultMaxTokens is the per-turn output token limit.
	DefaultMaxTokens = 4096
	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 1.0
)

// Config holds agent configuration.
type Config struct {
	// Name identifies the agent in logs.
	Name string

	// SystemPrompt guides the agent's behavior.
	SystemPrompt string

	// MaxIterations is the most model turns one Run may take.
	MaxIterations int

	// MaxTokens and Temperature are sent with every request.
	MaxTokens   uint32
	Temperature float32

	// StopSequences are sent with every request.
	StopSequences []string

	// Streaming prefers Model.Stream over Model.Complete.
	Streaming bool

	// Exec bounds each tool execution.
	Exec tools.ExecContext
}

// DefaultConfig returns a basic agent configuration rooted at workDir.
func DefaultConfig(workDir string) Config {
	return Config{
		Name:          "smith",
		SystemPrompt:  DefaultSystemPrompt(workDir),
		MaxIterations: DefaultMaxIterations,
		MaxTokens:     DefaultMaxTokens,
		Temperature:   DefaultTemperature,
		Streaming:     true,
		Exec:          tools.DefaultExecContext(workDir),
	}
}

// DefaultSystemPrompt describes the coding-agent role.
func DefaultSystemPrompt(workDir string) string {
	return fmt.Sprintf(`You are smith, an autonomous coding agent working in %s.

Use the available tools to inspect and change the project. Paths passed to
tools must be absolute. Prefer reading before editing, keep edits minimal,
and run the project's checks with bash when you have changed code.

A tool result that starts with "Error:" failed. If a call is denied with
"permission denied", do not retry it; explain what you wanted to do and
follow any user feedback included in the message.

When the task is complete, reply with a short summary of what you did.`, workDir)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.Exec.Timeout < 0 {
		return fmt.Errorf("tool timeout must not be negative, got %s", c.Exec.Timeout)
	}
	return nil
}

// ToolTimeout returns the per-call tool timeout.
func (c Config) ToolTimeout() time.Duration {
	if c.Exec.Timeout <= 0 {
		return tools.DefaultTimeout
	}
	return c.Exec.Timeout
}
