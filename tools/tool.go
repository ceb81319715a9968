// Package tools provides the tool system for agents.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Error handling internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/smith/llm"
)

// ToolParameter defines a parameter schema for a tool.
type ToolParameter struct {
	Name        string                 `json:"name"`
	ParamType   string                 `json:"param_type"`
	Description string                 `json:"description"`
	Required    bool                   `json:"required"`
	Items       map[string]interface{} `json:"items,omitempty"`
}

// ToolMetadata describes what a tool does and how to use it.
type ToolMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	ReadOnly    bool            `json:"read_only"`
	Kind        ToolType        `json:"kind"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Schema returns the JSON Schema object for the tool's arguments.
func (m ToolMetadata) Schema() map[string]interface{} {
	properties := make(map[string]interface{}, len(m.Parameters))
	required := []string{}
	for _, p := range m.Parameters {
		prop := map[string]interface{}{
			"type":        p.ParamType,
			"description": p.Description,
		}
		if p.ParamType == "array" {
			items := p.Items
			if items == nil {
				items = map[string]interface{}{"type": "string"}
			}
			prop["items"] = items
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Definition returns the tool as advertised to the model.
func (m ToolMetadata) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        m.Name,
		Description: m.Description,
		Parameters:  m.Schema(),
	}
}

// ToolResult represents the result of a tool execution.
// Success is determined by whether Error is nil.
type ToolResult struct {
	Output      string   `json:"output"`
	Error       error    `json:"-"` // Excluded from JSON, use MarshalJSON for custom serialization
	Suggestions []string `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for ToolResult.
func (t ToolResult) MarshalJSON() ([]byte, error) {
	if t.Error != nil {
		return json.Marshal(struct {
			Success     bool     `json:"success"`
			Output      string   `json:"output,omitempty"`
			Error       string   `json:"error"`
			Suggestions []string `json:"suggestions,omitempty"`
		}{
			Output:      t.Output,
			Error:       t.Error.Error(),
			Suggestions: t.Suggestions,
		})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
	}{
		Success: true,
		Output:  t.Output,
	})
}

// Success returns true if the tool execution succeeded.
func (t ToolResult) Success() bool {
	return t.Error == nil
}

// Content renders the result as the text the model sees.
func (t ToolResult) Content() string {
	if t.Error == nil {
		return t.Output
	}

	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(t.Error.Error())
	if len(t.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, s := range t.Suggestions {
			b.WriteString("\n- ")
			b.WriteString(s)
		}
	}
	return b.String()
}

// SuccessResult creates a successful tool result.
func SuccessResult(output string) ToolResult {
	return ToolResult{Output: output}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) ToolResult {
	return ToolResult{Error: err}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...interface{}) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...)}
}

// Tool is the interface that all tools must implement.
//
// Information Hiding: Tool implementations hide their internal execution logic,
// data structures, and error handling strategies behind this interface.
// Execute runs off the agent goroutine and must not touch agent state.
type Tool interface {
	// Metadata returns tool metadata (name, description, parameters).
	Metadata() ToolMetadata

	// Execute runs the tool with given arguments.
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)

	// Validate validates arguments before execution (optional).
	Validate(args json.RawMessage) error
}

// decodeArgs unmarshals args into v, reporting failures as invalid input.
func decodeArgs(tool string, args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return &InvalidInputError{Tool: tool, Reason: fmt.Sprintf("invalid arguments: %v", err)}
	}
	return nil
}
