// Package llmtest provides a deterministic Model for tests.
//
// Information Hiding:
// - Turn sequencing and request capture hidden behind the Model interface
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/richinex/smith/llm"
)

// ErrScriptExhausted is returned when more turns are requested than scripted.
var ErrScriptExhausted = errors.New("llmtest: script exhausted")

// Turn is one scripted model response.
type Turn struct {
	// Events are yielded in order by Stream.
	Events []llm.StreamEvent
	// Err is returned by Stream or Complete before any event.
	Err error
	// StreamErr is yielded after Events.
	StreamErr error
	// Block waits for context cancellation after Events.
	Block bool
	// Response, when set, is returned by Complete as is, without
	// accumulating Events.
	Response *llm.CompletionResponse
}

// Call describes a tool call for ToolTurn. Args is raw, possibly invalid, JSON.
type Call struct {
	ID   string
	Name string
	Args string
}

// TextTurn is a final answer with no tool calls.
func TextTurn(text string) Turn {
	return Turn{Events: []llm.StreamEvent{
		llm.TextDeltaEvent{Text: text},
		llm.TurnEndEvent{StopReason: llm.StopEndTurn, Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}},
	}}
}

// ToolTurn requests the given tool calls, optionally preceded by text.
func ToolTurn(text string, calls ...Call) Turn {
	var events []llm.StreamEvent
	if text != "" {
		events = append(events, llm.TextDeltaEvent{Text: text})
	}
	for i, c := range calls {
		events = append(events,
			llm.ToolCallStartEvent{Index: i, ID: c.ID, Name: c.Name},
			llm.ToolCallDeltaEvent{Index: i, Fragment: c.Args},
			llm.ToolCallEndEvent{Index: i},
		)
	}
	events = append(events, llm.TurnEndEvent{StopReason: llm.StopToolUse, Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}})
	return Turn{Events: events}
}

// ScriptedModel replays turns and records every request it receives.
type ScriptedModel struct {
	mu       sync.Mutex
	turns    []Turn
	next     int
	requests []llm.CompletionRequest

	// StreamingDisabled makes Stream return llm.ErrStreamingUnsupported.
	StreamingDisabled bool
}

// NewScriptedModel creates a model that answers with turns in order.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{turns: turns}
}

func (m *ScriptedModel) Name() string  { return "scripted" }
func (m *ScriptedModel) Model() string { return "scripted-1" }

// Requests returns copies of the requests received so far.
func (m *ScriptedModel) Requests() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns how many turns have been consumed.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

func (m *ScriptedModel) take(req llm.CompletionRequest) (Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := req
	snapshot.Messages = make([]llm.Message, len(req.Messages))
	for i, msg := range req.Messages {
		snapshot.Messages[i] = msg.Clone()
	}
	m.requests = append(m.requests, snapshot)

	if m.next >= len(m.turns) {
		return Turn{}, ErrScriptExhausted
	}
	turn := m.turns[m.next]
	m.next++
	return turn, nil
}

// Complete accumulates the next turn's events.
func (m *ScriptedModel) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	turn, err := m.take(req)
	if err != nil {
		return llm.CompletionResponse{}, err
	}
	if turn.Err != nil {
		return llm.CompletionResponse{}, turn.Err
	}
	if turn.Response != nil {
		return *turn.Response, nil
	}
	return llm.Accumulate(ctx, m.stream(ctx, turn))
}

// Stream yields the next turn's events.
func (m *ScriptedModel) Stream(ctx context.Context, req llm.CompletionRequest) (llm.Stream, error) {
	if m.StreamingDisabled {
		return nil, llm.ErrStreamingUnsupported
	}
	turn, err := m.take(req)
	if err != nil {
		return nil, err
	}
	if turn.Err != nil {
		return nil, turn.Err
	}
	return m.stream(ctx, turn), nil
}

func (m *ScriptedModel) stream(ctx context.Context, turn Turn) llm.Stream {
	return func(yield func(llm.StreamEvent, error) bool) {
		for _, ev := range turn.Events {
			if !yield(ev, nil) {
				return
			}
		}
		if turn.Block {
			<-ctx.Done()
			yield(nil, ctx.Err())
			return
		}
		if turn.StreamErr != nil {
			yield(nil, turn.StreamErr)
		}
	}
}

var _ llm.Model = (*ScriptedModel)(nil)
