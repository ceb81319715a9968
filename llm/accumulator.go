// Stream accumulation.
//
// Information Hiding:
// - Per-index argument buffering hidden
// - JSON completeness checks hidden
// - Final message assembly order hidden

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/richinex/smith/internal/logging"
)

// ErrIncompleteStream is wrapped when a stream ends without a turn-end event.
var ErrIncompleteStream = errors.New("stream ended without turn end")

type callBuilder struct {
	id    string
	name  string
	args  strings.Builder
	ended bool
	input json.RawMessage
	err   error
}

// Accumulate consumes stream and reconstructs one complete turn.
//
// Tool calls are keyed by their stream index; argument fragments of
// different indices may interleave. A call whose arguments fail to parse is
// reported in CompletionResponse.ToolCallErrors and left out of the
// message, without affecting text or sibling calls. Structural stream
// errors are returned as *ProviderError.
func Accumulate(ctx context.Context, stream Stream) (CompletionResponse, error) {
	var (
		text  strings.Builder
		calls = make(map[int]*callBuilder)
		end   *TurnEndEvent
	)

	for ev, err := range stream {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return CompletionResponse{}, ctxErr
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return CompletionResponse{}, err
			}
			return CompletionResponse{}, NewProviderError("", err)
		}
		if end != nil {
			return CompletionResponse{}, NewProviderError("", fmt.Errorf("event %T after turn end", ev))
		}

		switch e := ev.(type) {
		case TextDeltaEvent:
			text.WriteString(e.Text)

		case ToolCallStartEvent:
			if _, exists := calls[e.Index]; exists {
				return CompletionResponse{}, NewProviderError("", fmt.Errorf("duplicate start for tool call index %d", e.Index))
			}
			calls[e.Index] = &callBuilder{id: e.ID, name: e.Name}

		case ToolCallDeltaEvent:
			b, ok := calls[e.Index]
			if !ok {
				return CompletionResponse{}, NewProviderError("", fmt.Errorf("argument delta for unknown tool call index %d", e.Index))
			}
			if b.ended {
				return CompletionResponse{}, NewProviderError("", fmt.Errorf("argument delta after end for tool call index %d", e.Index))
			}
			b.args.WriteString(e.Fragment)

		case ToolCallEndEvent:
			b, ok := calls[e.Index]
			if !ok {
				return CompletionResponse{}, NewProviderError("", fmt.Errorf("end for unknown tool call index %d", e.Index))
			}
			b.finish()

		case TurnEndEvent:
			end = &e

		case nil:
			return CompletionResponse{}, NewProviderError("", errors.New("nil stream event"))

		default:
			return CompletionResponse{}, NewProviderError("", fmt.Errorf("unknown stream event %T", ev))
		}
	}

	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}
	if end == nil {
		return CompletionResponse{}, NewProviderError("", ErrIncompleteStream)
	}

	return assemble(text.String(), calls, *end), nil
}

func (b *callBuilder) finish() {
	if b.ended {
		return
	}
	b.ended = true

	raw := strings.TrimSpace(b.args.String())
	if raw == "" {
		b.input = json.RawMessage("{}")
		return
	}
	if !json.Valid([]byte(raw)) {
		b.err = fmt.Errorf("invalid JSON arguments for tool %q: %s", b.name, truncateFragment(raw))
		return
	}
	b.input = json.RawMessage(raw)
}

func assemble(text string, calls map[int]*callBuilder, end TurnEndEvent) CompletionResponse {
	indices := make([]int, 0, len(calls))
	for idx := range calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	msg := Message{Role: RoleAssistant}
	if text != "" {
		msg.Content = append(msg.Content, NewTextBlock(text))
	}

	var callErrs []ToolCallError
	for _, idx := range indices {
		b := calls[idx]
		if !b.ended {
			b.err = fmt.Errorf("tool call %q was never completed", b.name)
		}
		if b.err != nil {
			logging.Warn().
				Int("index", idx).
				Str("tool", b.name).
				Str("call_id", b.id).
				Err(b.err).
				Msg("dropping malformed tool call")
			callErrs = append(callErrs, ToolCallError{Index: idx, ID: b.id, Name: b.name, Err: b.err})
			continue
		}
		msg.Content = append(msg.Content, NewToolUseBlock(b.id, b.name, b.input))
	}

	return CompletionResponse{
		Message:        msg,
		StopReason:     end.StopReason,
		Usage:          end.Usage,
		ToolCallErrors: callErrs,
	}
}

func truncateFragment(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
