// Conversation log.
//
// Information Hiding:
// - Message storage and copying hidden
// - Tool-use / tool-result pairing checks hidden

package agent

import (
	"fmt"

	"github.com/richinex/smith/llm"
)

// Conversation is the ordered message log of one agent.
//
// Every tool result answers a tool_use block of the latest assistant
// message, and all of that message's calls are answered before the next
// user or assistant message is appended.
type Conversation struct {
	systemPrompt string
	messages     []llm.Message
	pending      []string // unanswered tool_use IDs of the latest assistant message
}

// NewConversation creates an empty log.
func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{systemPrompt: systemPrompt}
}

// RestoreConversation rebuilds a log from persisted messages, rejecting
// any history that breaks tool-call pairing.
func RestoreConversation(systemPrompt string, messages []llm.Message) (*Conversation, error) {
	c := NewConversation(systemPrompt)
	for i, msg := range messages {
		if err := c.Append(msg); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}
	return c, nil
}

// SystemPrompt returns the system prompt.
func (c *Conversation) SystemPrompt() string { return c.systemPrompt }

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Messages returns a deep copy of the log.
func (c *Conversation) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Clone()
	}
	return out
}

// Last returns the most recent message.
func (c *Conversation) Last() (llm.Message, bool) {
	if len(c.messages) == 0 {
		return llm.Message{}, false
	}
	return c.messages[len(c.messages)-1].Clone(), true
}

// Pending returns the tool_use IDs still waiting for a result.
func (c *Conversation) Pending() []string {
	return append([]string(nil), c.pending...)
}

// AssistantTurns counts assistant messages.
func (c *Conversation) AssistantTurns() int {
	n := 0
	for _, m := range c.messages {
		if m.Role == llm.RoleAssistant {
			n++
		}
	}
	return n
}

// Append validates and appends a copy of msg.
func (c *Conversation) Append(msg llm.Message) error {
	switch msg.Role {
	case llm.RoleUser, llm.RoleSystem:
		if len(c.pending) > 0 {
			return fmt.Errorf("%s message while tool calls %v are unanswered", msg.Role, c.pending)
		}
		if msg.HasToolUse() || len(msg.ToolResults()) > 0 {
			return fmt.Errorf("%s message cannot carry tool blocks", msg.Role)
		}

	case llm.RoleAssistant:
		if len(c.pending) > 0 {
			return fmt.Errorf("assistant message while tool calls %v are unanswered", c.pending)
		}
		if len(msg.ToolResults()) > 0 {
			return fmt.Errorf("assistant message cannot carry tool results")
		}
		seen := make(map[string]bool)
		var ids []string
		for _, use := range msg.ToolUses() {
			if use.ID == "" {
				return fmt.Errorf("tool_use %q has no ID", use.Name)
			}
			if seen[use.ID] {
				return fmt.Errorf("duplicate tool_use ID %q", use.ID)
			}
			seen[use.ID] = true
			ids = append(ids, use.ID)
		}
		c.messages = append(c.messages, msg.Clone())
		c.pending = ids
		return nil

	case llm.RoleTool:
		results := msg.ToolResults()
		if len(results) == 0 || msg.HasToolUse() || msg.Text() != "" {
			return fmt.Errorf("tool message must carry only tool results")
		}
		for _, r := range results {
			if !c.answer(r.ToolUseID) {
				return fmt.Errorf("tool result %q does not answer a pending tool call", r.ToolUseID)
			}
		}

	default:
		return fmt.Errorf("unknown role %q", msg.Role)
	}

	c.messages = append(c.messages, msg.Clone())
	return nil
}

func (c *Conversation) answer(id string) bool {
	for i, p := range c.pending {
		if p == id {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Validate rechecks the whole log.
func (c *Conversation) Validate() error {
	_, err := RestoreConversation(c.systemPrompt, c.messages)
	return err
}
