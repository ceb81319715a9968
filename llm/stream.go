package llm

import "iter"

// Stream is a lazy, finite, non-restartable sequence of stream events.
// A non-nil error terminates the sequence.
type Stream = iter.Seq2[StreamEvent, error]

// StreamEvent is one incremental delta of a model turn.
type StreamEvent interface {
	streamEvent()
}

// TextDeltaEvent carries a fragment of assistant text.
type TextDeltaEvent struct {
	Text string
}

// ToolCallStartEvent announces a tool call at Index.
type ToolCallStartEvent struct {
	Index int
	ID    string
	Name  string
}

// ToolCallDeltaEvent carries a partial JSON fragment of the arguments for
// the call at Index.
type ToolCallDeltaEvent struct {
	Index    int
	Fragment string
}

// ToolCallEndEvent marks the arguments of the call at Index as complete.
type ToolCallEndEvent struct {
	Index int
}

// TurnEndEvent terminates a turn.
type TurnEndEvent struct {
	StopReason StopReason
	Usage      Usage
}

func (TextDeltaEvent) streamEvent()     {}
func (ToolCallStartEvent) streamEvent() {}
func (ToolCallDeltaEvent) streamEvent() {}
func (ToolCallEndEvent) streamEvent()   {}
func (TurnEndEvent) streamEvent()       {}

// StreamOf returns a Stream that yields events in order.
func StreamOf(events ...StreamEvent) Stream {
	return func(yield func(StreamEvent, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// ResponseEvents converts a completed response into the event sequence a
// streaming provider would have produced for it.
func ResponseEvents(resp CompletionResponse) []StreamEvent {
	var events []StreamEvent
	if text := resp.Message.Text(); text != "" {
		events = append(events, TextDeltaEvent{Text: text})
	}
	for i, use := range resp.Message.ToolUses() {
		events = append(events,
			ToolCallStartEvent{Index: i, ID: use.ID, Name: use.Name},
			ToolCallDeltaEvent{Index: i, Fragment: string(use.Input)},
			ToolCallEndEvent{Index: i},
		)
	}
	return append(events, TurnEndEvent{StopReason: resp.StopReason, Usage: resp.Usage})
}
