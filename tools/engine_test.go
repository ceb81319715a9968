package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name     string
	readOnly bool
	params   []ToolParameter
	validate func(json.RawMessage) error
	execute  func(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

func (s *stubTool) Metadata() ToolMetadata {
	return ToolMetadata{Name: s.name, Description: "stub", Parameters: s.params, ReadOnly: s.readOnly, Kind: TypeCustom}
}

func (s *stubTool) Validate(args json.RawMessage) error {
	if s.validate != nil {
		return s.validate(args)
	}
	return nil
}

func (s *stubTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	return s.execute(ctx, args)
}

func echoTool() *stubTool {
	return &stubTool{
		name:   "echo",
		params: []ToolParameter{{Name: "text", ParamType: "string", Required: true}},
		execute: func(_ context.Context, args json.RawMessage) (ToolResult, error) {
			var a struct{ Text string }
			_ = json.Unmarshal(args, &a)
			return SuccessResult(a.Text), nil
		},
	}
}

type recorder struct {
	mu     sync.Mutex
	events []ToolEvent
}

func (r *recorder) HandleToolEvent(ev ToolEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []EventKind
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (r *recorder) last() ToolEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *recorder) {
	t.Helper()
	reg := NewRegistry()
	reg.Register(echoTool())
	e := NewEngine(reg, opts...)
	rec := &recorder{}
	e.Subscribe(rec)
	return e, rec
}

func TestDispatchSuccess(t *testing.T) {
	e, rec := newTestEngine(t)

	result := e.Dispatch(context.Background(), Invocation{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)})

	require.True(t, result.Success())
	assert.Equal(t, "hi", result.Content())
	assert.Equal(t, []EventKind{EventStarted, EventCompleted}, rec.kinds())
	assert.Equal(t, "c1", rec.last().CallID)
}

func TestDispatchUnknownTool(t *testing.T) {
	e, rec := newTestEngine(t)

	result := e.Dispatch(context.Background(), Invocation{ID: "c1", Name: "nope", Arguments: json.RawMessage(`{}`)})

	require.False(t, result.Success())
	assert.True(t, IsToolNotFound(result.Error))
	assert.Contains(t, result.Content(), "tool not found: nope")
	assert.Contains(t, result.Content(), "echo")
	assert.Equal(t, []EventKind{EventFailed}, rec.kinds())
}

func TestDispatchInvalidInput(t *testing.T) {
	cases := map[string]string{
		"not an object":    `"hi"`,
		"missing required": `{}`,
		"wrong type":       `{"text": 3}`,
		"null required":    `{"text": null}`,
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			e, rec := newTestEngine(t)
			result := e.Dispatch(context.Background(), Invocation{ID: "c1", Name: "echo", Arguments: json.RawMessage(args)})

			require.False(t, result.Success())
			assert.True(t, IsInvalidInput(result.Error), "got %v", result.Error)
			assert.Equal(t, []EventKind{EventFailed}, rec.kinds())
		})
	}
}

func TestDispatchToolValidateWrapped(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{
		name:     "picky",
		validate: func(json.RawMessage) error { return errors.New("bad shape") },
		execute: func(context.Context, json.RawMessage) (ToolResult, error) {
			t.Fatal("must not execute")
			return ToolResult{}, nil
		},
	})

	result := NewEngine(reg).Dispatch(context.Background(), Invocation{Name: "picky", Arguments: json.RawMessage(`{}`)})

	var ii *InvalidInputError
	require.ErrorAs(t, result.Error, &ii)
	assert.Equal(t, "picky", ii.Tool)
	assert.Equal(t, "bad shape", ii.Reason)
}

func TestDispatchDenied(t *testing.T) {
	deny := AuthorizerFunc(func(context.Context, AuthRequest) error {
		return fmt.Errorf("%w: operation blocked by user. User feedback: use git", ErrPermissionDenied)
	})
	e, rec := newTestEngine(t, WithAuthorizer(deny))

	result := e.Dispatch(context.Background(), Invocation{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)})

	require.False(t, result.Success())
	assert.Contains(t, result.Content(), "permission denied")
	assert.Contains(t, result.Content(), "use git")
	assert.Equal(t, []EventKind{EventFailed}, rec.kinds())
	assert.False(t, rec.last().Cancelled)
}

func TestDispatchAuthorizationCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	auth := AuthorizerFunc(func(ctx context.Context, _ AuthRequest) error {
		cancel()
		return ctx.Err()
	})
	e, rec := newTestEngine(t, WithAuthorizer(auth))

	result := e.Dispatch(ctx, Invocation{Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)})

	require.False(t, result.Success())
	assert.ErrorIs(t, result.Error, context.Canceled)
	assert.Equal(t, []EventKind{EventFailed}, rec.kinds())
	assert.True(t, rec.last().Cancelled)
}

func TestDispatchAuthorizerFailureIsReported(t *testing.T) {
	broken := errors.New("approver channel closed")
	e, _ := newTestEngine(t, WithAuthorizer(AuthorizerFunc(func(context.Context, AuthRequest) error { return broken })))

	result := e.Dispatch(context.Background(), Invocation{Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)})

	assert.ErrorIs(t, result.Error, broken)
	assert.ErrorIs(t, result.Error, ErrAuthorizerFailed)
	assert.True(t, IsAuthorizerFailure(result))
}

func TestDispatchDenialIsNotAuthorizerFailure(t *testing.T) {
	deny := AuthorizerFunc(func(context.Context, AuthRequest) error { return ErrPermissionDenied })
	e, _ := newTestEngine(t, WithAuthorizer(deny))

	result := e.Dispatch(context.Background(), Invocation{Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)})

	require.False(t, result.Success())
	assert.False(t, IsAuthorizerFailure(result))
}

func TestDispatchCancelledDuringExecution(t *testing.T) {
	reg := NewRegistry()
	release := make(chan struct{})
	defer close(release)
	reg.Register(&stubTool{
		name: "slow",
		execute: func(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return SuccessResult("late"), nil
		},
	})
	e := NewEngine(reg)
	rec := &recorder{}
	e.Subscribe(rec)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	result := e.Dispatch(ctx, Invocation{Name: "slow", Arguments: json.RawMessage(`{}`)})

	require.False(t, result.Success())
	assert.ErrorIs(t, result.Error, context.Canceled)
	assert.Equal(t, []EventKind{EventStarted, EventFailed}, rec.kinds())
	assert.True(t, rec.last().Cancelled)
}

func TestDispatchTimeout(t *testing.T) {
	reg := NewRegistry()
	release := make(chan struct{})
	defer close(release)
	reg.Register(&stubTool{
		name: "hang",
		execute: func(context.Context, json.RawMessage) (ToolResult, error) {
			<-release
			return SuccessResult("late"), nil
		},
	})
	e := NewEngine(reg, WithExecContext(ExecContext{Timeout: 20 * time.Millisecond}))

	result := e.Dispatch(context.Background(), Invocation{Name: "hang", Arguments: json.RawMessage(`{}`)})

	require.False(t, result.Success())
	assert.Contains(t, result.Error.Error(), "timed out")
	assert.NotEmpty(t, result.Suggestions)
}

func TestDispatchRecoversPanic(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{
		name: "boom",
		execute: func(context.Context, json.RawMessage) (ToolResult, error) {
			panic("kaboom")
		},
	})
	e := NewEngine(reg)
	rec := &recorder{}
	e.Subscribe(rec)

	result := e.Dispatch(context.Background(), Invocation{Name: "boom", Arguments: json.RawMessage(`{}`)})

	require.False(t, result.Success())
	assert.Contains(t, result.Error.Error(), "kaboom")
	assert.Equal(t, []EventKind{EventStarted, EventFailed}, rec.kinds())
}

func TestDispatchTruncatesOutput(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{
		name: "big",
		execute: func(context.Context, json.RawMessage) (ToolResult, error) {
			return SuccessResult(strings.Repeat("x", 100)), nil
		},
	})
	e := NewEngine(reg, WithExecContext(ExecContext{MaxOutputSize: 10}))

	result := e.Dispatch(context.Background(), Invocation{Name: "big", Arguments: json.RawMessage(`{}`)})

	require.True(t, result.Success())
	assert.Equal(t, strings.Repeat("x", 10)+"\n\n[Output truncated: 100 bytes total, showing first 10 bytes]", result.Output)
}

func TestDispatchAddsSuggestions(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{
		name: "missing",
		execute: func(context.Context, json.RawMessage) (ToolResult, error) {
			return FailureResultf("open /x: no such file or directory"), nil
		},
	})

	result := NewEngine(reg).Dispatch(context.Background(), Invocation{Name: "missing", Arguments: json.RawMessage(`{}`)})

	content := result.Content()
	assert.True(t, strings.HasPrefix(content, "Error: open /x"))
	assert.Contains(t, content, "\n\nSuggestions:\n- Verify the file path is correct")
}

func TestEmitterRecoversHandlerPanic(t *testing.T) {
	em := NewEmitter()
	rec := &recorder{}
	em.Subscribe(HandlerFunc(func(ToolEvent) { panic("handler") }))
	em.Subscribe(rec)

	assert.NotPanics(t, func() { em.Emit(ToolEvent{Kind: EventStarted, Name: "x"}) })
	assert.Equal(t, []EventKind{EventStarted}, rec.kinds())
}
