// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"time"
)

// Builder provides fluent configuration for creating agents.
// Usage: agent.NewBuilder(workDir) - no stutter.
type Builder struct {
	config Config
}

// NewBuilder starts from DefaultConfig(workDir).
func NewBuilder(workDir string) *Builder {
	return &Builder{config: DefaultConfig(workDir)}
}

// Name sets the agent's name.
func (b *Builder) Name(name string) *Builder {
	b.config.Name = name
	return b
}

// SystemPrompt sets the agent's system prompt.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.config.SystemPrompt = prompt
	return b
}

// MaxIterations sets the turn limit.
func (b *Builder) MaxIterations(n int) *Builder {
	b.config.MaxIterations = n
	return b
}

// MaxTokens sets the per-turn output token limit.
func (b *Builder) MaxTokens(n uint32) *Builder {
	b.config.MaxTokens = n
	return b
}

// Temperature sets the sampling temperature.
func (b *Builder) Temperature(t float32) *Builder {
	b.config.Temperature = t
	return b
}

// StopSequences sets the stop sequences.
func (b *Builder) StopSequences(seqs ...string) *Builder {
	b.config.StopSequences = seqs
	return b
}

// Streaming enables or disables streaming requests.
func (b *Builder) Streaming(enabled bool) *Builder {
	b.config.Streaming = enabled
	return b
}

// ToolTimeout sets the per-call tool timeout.
func (b *Builder) ToolTimeout(d time.Duration) *Builder {
	b.config.Exec.Timeout = d
	return b
}

// MaxOutputSize sets the tool output cap in bytes.
func (b *Builder) MaxOutputSize(n int) *Builder {
	b.config.Exec.MaxOutputSize = n
	return b
}

// Build validates and returns the configuration.
func (b *Builder) Build() (Config, error) {
	if err := b.config.Validate(); err != nil {
		return Config{}, err
	}
	return b.config, nil
}
