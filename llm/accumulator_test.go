package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulateTextOnly(t *testing.T) {
	resp, err := Accumulate(context.Background(), StreamOf(
		TextDeltaEvent{Text: "Hel"},
		TextDeltaEvent{Text: "lo"},
		TurnEndEvent{StopReason: StopEndTurn, Usage: Usage{InputTokens: 3, OutputTokens: 2}},
	))
	require.NoError(t, err)

	assert.Equal(t, RoleAssistant, resp.Message.Role)
	assert.Equal(t, "Hello", resp.Message.Text())
	assert.False(t, resp.Message.HasToolUse())
	assert.Equal(t, StopEndTurn, resp.StopReason)
	assert.Equal(t, uint32(5), resp.Usage.Total())
}

func TestAccumulateInterleavedToolCalls(t *testing.T) {
	resp, err := Accumulate(context.Background(), StreamOf(
		TextDeltaEvent{Text: "Reading both."},
		ToolCallStartEvent{Index: 1, ID: "b", Name: "read_file"},
		ToolCallStartEvent{Index: 0, ID: "a", Name: "read_file"},
		ToolCallDeltaEvent{Index: 0, Fragment: `{"path":`},
		ToolCallDeltaEvent{Index: 1, Fragment: `{"path":"b.txt"}`},
		ToolCallDeltaEvent{Index: 0, Fragment: `"a.txt"}`},
		ToolCallEndEvent{Index: 1},
		ToolCallEndEvent{Index: 0},
		TurnEndEvent{StopReason: StopToolUse},
	))
	require.NoError(t, err)

	require.Len(t, resp.Message.Content, 3)
	assert.Equal(t, BlockText, resp.Message.Content[0].Type)

	uses := resp.Message.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, "a", uses[0].ID)
	assert.JSONEq(t, `{"path":"a.txt"}`, string(uses[0].Input))
	assert.Equal(t, "b", uses[1].ID)
	assert.JSONEq(t, `{"path":"b.txt"}`, string(uses[1].Input))
	assert.Empty(t, resp.ToolCallErrors)
}

func TestAccumulateEmptyArgumentsBecomeObject(t *testing.T) {
	resp, err := Accumulate(context.Background(), StreamOf(
		ToolCallStartEvent{Index: 0, ID: "t1", Name: "list_dir"},
		ToolCallEndEvent{Index: 0},
		TurnEndEvent{StopReason: StopToolUse},
	))
	require.NoError(t, err)

	uses := resp.Message.ToolUses()
	require.Len(t, uses, 1)
	assert.JSONEq(t, `{}`, string(uses[0].Input))
}

func TestAccumulateMalformedCallIsIsolated(t *testing.T) {
	resp, err := Accumulate(context.Background(), StreamOf(
		TextDeltaEvent{Text: "trying"},
		ToolCallStartEvent{Index: 0, ID: "bad", Name: "write_file"},
		ToolCallDeltaEvent{Index: 0, Fragment: `{"path": "x", "content": `},
		ToolCallEndEvent{Index: 0},
		ToolCallStartEvent{Index: 1, ID: "good", Name: "read_file"},
		ToolCallDeltaEvent{Index: 1, Fragment: `{"path":"y"}`},
		ToolCallEndEvent{Index: 1},
		TurnEndEvent{StopReason: StopToolUse},
	))
	require.NoError(t, err)

	assert.Equal(t, "trying", resp.Message.Text())
	uses := resp.Message.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "good", uses[0].ID)

	require.Len(t, resp.ToolCallErrors, 1)
	assert.Equal(t, "bad", resp.ToolCallErrors[0].ID)
	assert.Equal(t, "write_file", resp.ToolCallErrors[0].Name)
	assert.Contains(t, resp.ToolCallErrors[0].Err.Error(), "invalid JSON")
}

func TestAccumulateUnterminatedCallIsReported(t *testing.T) {
	resp, err := Accumulate(context.Background(), StreamOf(
		ToolCallStartEvent{Index: 0, ID: "t1", Name: "bash"},
		ToolCallDeltaEvent{Index: 0, Fragment: `{"command":"ls"}`},
		TurnEndEvent{StopReason: StopToolUse},
	))
	require.NoError(t, err)

	assert.Empty(t, resp.Message.ToolUses())
	require.Len(t, resp.ToolCallErrors, 1)
	assert.Contains(t, resp.ToolCallErrors[0].Err.Error(), "never completed")
}

func TestAccumulateProtocolViolations(t *testing.T) {
	cases := map[string][]StreamEvent{
		"missing turn end": {TextDeltaEvent{Text: "hi"}},
		"event after turn end": {
			TurnEndEvent{StopReason: StopEndTurn},
			TextDeltaEvent{Text: "late"},
		},
		"duplicate start": {
			ToolCallStartEvent{Index: 0, ID: "a", Name: "x"},
			ToolCallStartEvent{Index: 0, ID: "b", Name: "x"},
			TurnEndEvent{},
		},
		"delta for unknown index": {
			ToolCallDeltaEvent{Index: 4, Fragment: "{}"},
			TurnEndEvent{},
		},
		"delta after end": {
			ToolCallStartEvent{Index: 0, ID: "a", Name: "x"},
			ToolCallEndEvent{Index: 0},
			ToolCallDeltaEvent{Index: 0, Fragment: "{}"},
			TurnEndEvent{},
		},
		"end for unknown index": {
			ToolCallEndEvent{Index: 2},
			TurnEndEvent{},
		},
		"nil event": {nil},
	}

	for name, events := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Accumulate(context.Background(), StreamOf(events...))
			require.Error(t, err)
			assert.True(t, IsProviderError(err), "got %v", err)
		})
	}
}

func TestAccumulateMissingTurnEndWrapsIncomplete(t *testing.T) {
	_, err := Accumulate(context.Background(), StreamOf(TextDeltaEvent{Text: "partial"}))
	assert.ErrorIs(t, err, ErrIncompleteStream)
}

func TestAccumulateStreamError(t *testing.T) {
	boom := errors.New("connection reset")
	stream := func(yield func(StreamEvent, error) bool) {
		if !yield(TextDeltaEvent{Text: "a"}, nil) {
			return
		}
		yield(nil, boom)
	}

	_, err := Accumulate(context.Background(), stream)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsProviderError(err))
}

func TestAccumulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := func(yield func(StreamEvent, error) bool) {
		if !yield(TextDeltaEvent{Text: "a"}, nil) {
			return
		}
		cancel()
		yield(TextDeltaEvent{Text: "b"}, nil)
	}

	_, err := Accumulate(ctx, stream)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsProviderError(err))
}

func TestResponseEventsRoundTrip(t *testing.T) {
	orig := CompletionResponse{
		Message: Message{Role: RoleAssistant, Content: []ContentBlock{
			NewTextBlock("ok"),
			NewToolUseBlock("t1", "glob", []byte(`{"pattern":"*.go"}`)),
		}},
		StopReason: StopToolUse,
		Usage:      Usage{InputTokens: 1, OutputTokens: 1},
	}

	got, err := Accumulate(context.Background(), StreamOf(ResponseEvents(orig)...))
	require.NoError(t, err)
	assert.Equal(t, orig.Message.Text(), got.Message.Text())
	assert.Equal(t, orig.Message.ToolUses(), got.Message.ToolUses())
	assert.Equal(t, orig.StopReason, got.StopReason)
}
