// Package llm provides shared data models for LLM providers.
package llm

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockType tags the variant held by a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of a message. Exactly one of the variant
// fields is meaningful, selected by Type.
type ContentBlock struct {
	Type       BlockType   `json:"type"`
	Text       string      `json:"text,omitempty"`
	ToolUse    *ToolUse    `json:"tool_use,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ToolUse is a model request to invoke a tool.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult carries a tool's output back to the model.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// NewToolUseBlock creates a tool_use content block.
func NewToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUse: &ToolUse{ID: id, Name: name, Input: input}}
}

// NewToolResultBlock creates a tool_result content block.
func NewToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{
		Type:       BlockToolResult,
		ToolResult: &ToolResult{ToolUseID: toolUseID, Content: content, IsError: isError},
	}
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserMessage creates a user message with a single text block.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{NewTextBlock(content)}}
}

// AssistantMessage creates an assistant message with a single text block.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{NewTextBlock(content)}}
}

// ToolResultMessage creates a tool message answering one tool call.
func ToolResultMessage(toolUseID, content string, isError bool) Message {
	return Message{Role: RoleTool, Content: []ContentBlock{NewToolResultBlock(toolUseID, content, isError)}}
}

// Text returns the concatenation of all text blocks.
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks in order.
func (m Message) ToolUses() []ToolUse {
	var uses []ToolUse
	for _, b := range m.Content {
		if b.Type == BlockToolUse && b.ToolUse != nil {
			uses = append(uses, *b.ToolUse)
		}
	}
	return uses
}

// ToolResults returns the tool_result blocks in order.
func (m Message) ToolResults() []ToolResult {
	var results []ToolResult
	for _, b := range m.Content {
		if b.Type == BlockToolResult && b.ToolResult != nil {
			results = append(results, *b.ToolResult)
		}
	}
	return results
}

// HasToolUse reports whether the message requests any tool.
func (m Message) HasToolUse() bool {
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate logged messages.
func (m Message) Clone() Message {
	out := Message{Role: m.Role, Content: make([]ContentBlock, len(m.Content))}
	for i, b := range m.Content {
		c := ContentBlock{Type: b.Type, Text: b.Text}
		if b.ToolUse != nil {
			tu := *b.ToolUse
			tu.Input = append(json.RawMessage(nil), b.ToolUse.Input...)
			c.ToolUse = &tu
		}
		if b.ToolResult != nil {
			tr := *b.ToolResult
			c.ToolResult = &tr
		}
		out.Content[i] = c
	}
	return out
}

// ToolDefinition defines a tool that the LLM can call.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// StopReason is the model's declared reason for ending a turn.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
	StopError        StopReason = "error"
)

// Usage contains token usage statistics.
type Usage struct {
	InputTokens  uint32 `json:"input_tokens"`
	OutputTokens uint32 `json:"output_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns input plus output tokens.
func (u Usage) Total() uint32 {
	return u.InputTokens + u.OutputTokens
}

// CompletionRequest is the outbound turn. Built fresh for every iteration.
type CompletionRequest struct {
	Messages      []Message
	SystemPrompt  string
	Tools         []ToolDefinition
	MaxTokens     uint32
	Temperature   float32
	StopSequences []string
}

// CompletionResponse is one completed assistant turn.
type CompletionResponse struct {
	Message    Message
	StopReason StopReason
	Usage      Usage

	// ToolCallErrors lists tool calls whose arguments could not be
	// assembled. They are not part of Message.
	ToolCallErrors []ToolCallError
}

// ToolCallError records a malformed tool call from a streamed turn.
type ToolCallError struct {
	Index int
	ID    string
	Name  string
	Err   error
}
