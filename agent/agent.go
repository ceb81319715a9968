// Agent loop implementation.
//
// All agent execution goes through this module: the model is asked for a
// turn, requested tools are dispatched through the engine, and their
// results are fed back until the model stops asking for tools.
//
// Information Hiding:
// - Streaming vs. non-streaming model calls hidden
// - Tool-call normalization hidden
// - Conversation log and persistence hidden

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/smith/internal/logging"
	"github.com/richinex/smith/llm"
	"github.com/richinex/smith/permission"
	"github.com/richinex/smith/storage"
	"github.com/richinex/smith/tools"
)

// RunResult is the outcome of a completed Run.
type RunResult struct {
	// Text is the final assistant text.
	Text string
	// Usage is summed across every model turn of the run.
	Usage llm.Usage
	// Iterations is the number of model turns taken.
	Iterations int
	// StopReason is the stop reason of the final turn.
	StopReason llm.StopReason
}

// Agent drives one conversation between a model and a set of tools.
type Agent struct {
	config      Config
	model       llm.Model
	registry    *tools.Registry
	permissions *permission.Manager
	engine      *tools.Engine
	conv        *Conversation
	logger      zerolog.Logger

	store     storage.ConversationStorage
	sessionID string

	onText  func(string)
	running atomic.Bool
}

// New creates an agent. The permission manager, when non-nil, authorizes
// every tool call; a nil manager allows all calls.
func New(config Config, model llm.Model, registry *tools.Registry, perms *permission.Manager) *Agent {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}

	logger := logging.Component("agent").With().Str("agent", config.Name).Logger()

	opts := []tools.EngineOption{
		tools.WithExecContext(config.Exec),
		tools.WithLogger(logging.Component("tools")),
	}
	if perms != nil {
		opts = append(opts, tools.WithAuthorizer(perms))
	}

	return &Agent{
		config:      config,
		model:       model,
		registry:    registry,
		permissions: perms,
		engine:      tools.NewEngine(registry, opts...),
		conv:        NewConversation(config.SystemPrompt),
		logger:      logger,
	}
}

// WithStorage enables session persistence. Call Resume to load history.
func (a *Agent) WithStorage(store storage.ConversationStorage, sessionID string) *Agent {
	a.store = store
	a.sessionID = sessionID
	return a
}

// WithLogger replaces the agent logger.
func (a *Agent) WithLogger(l zerolog.Logger) *Agent {
	a.logger = l
	return a
}

// OnText registers a callback receiving assistant text as it arrives.
func (a *Agent) OnText(fn func(string)) *Agent {
	a.onText = fn
	return a
}

// Subscribe adds a tool event handler.
func (a *Agent) Subscribe(h tools.EventHandler) {
	a.engine.Subscribe(h)
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.config.Name }

// SessionID returns the persistence session, if any.
func (a *Agent) SessionID() string { return a.sessionID }

// Registry returns the tool registry.
func (a *Agent) Registry() *tools.Registry { return a.registry }

// Permissions returns the permission manager, which may be nil.
func (a *Agent) Permissions() *permission.Manager { return a.permissions }

// Messages returns a copy of the conversation log.
func (a *Agent) Messages() []llm.Message { return a.conv.Messages() }

// Resume loads the stored session into the conversation log. A session
// with no stored messages leaves the log empty.
func (a *Agent) Resume(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	if a.running.Load() {
		return fmt.Errorf("%w: resume during run", ErrInvalidState)
	}

	snap, err := a.store.Load(ctx, a.sessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", a.sessionID, err)
	}
	if snap.Empty() {
		return nil
	}

	prompt := a.config.SystemPrompt
	if snap.SystemPrompt != "" {
		prompt = snap.SystemPrompt
	}
	conv, err := RestoreConversation(prompt, snap.Messages)
	if err != nil {
		return fmt.Errorf("%w: session %s: %v", ErrInvalidState, a.sessionID, err)
	}
	a.conv = conv

	a.logger.Debug().Str("session", a.sessionID).Int("messages", conv.Len()).Msg("session resumed")
	return nil
}

// Run appends userMessage and loops until the model produces a turn without
// tool calls, the iteration limit is reached, the model fails, or ctx is
// cancelled. Calling Run while another Run is in progress returns
// ErrInvalidState.
func (a *Agent) Run(ctx context.Context, userMessage string) (RunResult, error) {
	if !a.running.CompareAndSwap(false, true) {
		return RunResult{}, fmt.Errorf("%w: run already in progress", ErrInvalidState)
	}
	defer a.running.Store(false)

	if err := a.conv.Append(llm.UserMessage(userMessage)); err != nil {
		return RunResult{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	defer a.persist(ctx)

	start := time.Now()
	var result RunResult

	for iteration := 1; iteration <= a.config.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		resp, err := a.complete(ctx, a.request())
		if err != nil {
			a.logger.Warn().Err(err).Int("iteration", iteration).Msg("model call failed")
			return result, err
		}
		result.Iterations = iteration
		result.Usage.Add(resp.Usage)
		result.StopReason = resp.StopReason

		msg, calls := normalizeTurn(resp, iteration)
		if err := a.conv.Append(msg); err != nil {
			return result, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}

		a.logger.Debug().
			Int("iteration", iteration).
			Str("stop_reason", string(resp.StopReason)).
			Int("tool_calls", len(calls)).
			Msg("model turn")

		if len(calls) == 0 {
			result.Text = msg.Text()
			a.logger.Info().
				Int("iterations", iteration).
				Uint32("tokens", result.Usage.Total()).
				Dur("elapsed", time.Since(start)).
				Msg("run complete")
			return result, nil
		}

		if err := a.dispatch(ctx, calls); err != nil {
			return result, err
		}
	}

	a.logger.Warn().Int("max", a.config.MaxIterations).Msg("iteration limit reached")
	return result, &MaxIterationsError{Max: a.config.MaxIterations}
}

func (a *Agent) request() llm.CompletionRequest {
	return llm.CompletionRequest{
		Messages:      a.conv.Messages(),
		SystemPrompt:  a.conv.SystemPrompt(),
		Tools:         a.registry.Definitions(),
		MaxTokens:     a.config.MaxTokens,
		Temperature:   a.config.Temperature,
		StopSequences: a.config.StopSequences,
	}
}

// complete asks the model for one turn, streaming when possible.
func (a *Agent) complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if a.config.Streaming {
		stream, err := a.model.Stream(ctx, req)
		switch {
		case err == nil:
			resp, err := llm.Accumulate(ctx, a.tee(stream))
			return resp, a.modelError(ctx, err)
		case errors.Is(err, llm.ErrStreamingUnsupported):
			a.logger.Debug().Str("provider", a.model.Name()).Msg("streaming unsupported, falling back to complete")
		default:
			return llm.CompletionResponse{}, a.modelError(ctx, err)
		}
	}

	resp, err := a.model.Complete(ctx, req)
	if err != nil {
		return llm.CompletionResponse{}, a.modelError(ctx, err)
	}
	if text := resp.Message.Text(); text != "" && a.onText != nil {
		a.onText(text)
	}
	return resp, nil
}

func (a *Agent) modelError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return llm.NewProviderError(a.model.Name(), err)
}

// tee forwards text deltas to the OnText callback.
func (a *Agent) tee(stream llm.Stream) llm.Stream {
	if a.onText == nil {
		return stream
	}
	return func(yield func(llm.StreamEvent, error) bool) {
		for ev, err := range stream {
			if delta, ok := ev.(llm.TextDeltaEvent); ok && err == nil {
				a.onText(delta.Text)
			}
			if !yield(ev, err) {
				return
			}
		}
	}
}

// toolCall is one call to answer, either dispatchable or already failed.
type toolCall struct {
	use      llm.ToolUse
	parseErr error
}

// normalizeTurn builds the assistant message to record and the calls it
// must be answered with. Every call gets a unique non-empty ID. Calls the
// accumulator rejected are recorded as tool_use blocks with empty input
// after the valid ones, and calls from a non-streaming response whose input
// is not JSON get empty input in place. Each is answered with its parse
// error.
func normalizeTurn(resp llm.CompletionResponse, iteration int) (llm.Message, []toolCall) {
	msg := llm.Message{Role: llm.RoleAssistant}
	seen := make(map[string]bool)
	var calls []toolCall

	uniqueID := func(id string) string {
		if id == "" || seen[id] {
			id = fmt.Sprintf("call_%d_%d", iteration, len(calls))
		}
		seen[id] = true
		return id
	}

	for _, block := range resp.Message.Content {
		if block.ToolUse == nil {
			msg.Content = append(msg.Content, block)
			continue
		}
		use := *block.ToolUse
		use.ID = uniqueID(use.ID)
		var parseErr error
		switch {
		case len(use.Input) == 0:
			use.Input = json.RawMessage("{}")
		case !json.Valid(use.Input):
			parseErr = fmt.Errorf("invalid JSON arguments for tool %q", use.Name)
			use.Input = json.RawMessage("{}")
		}
		msg.Content = append(msg.Content, llm.NewToolUseBlock(use.ID, use.Name, use.Input))
		calls = append(calls, toolCall{use: use, parseErr: parseErr})
	}

	for _, bad := range resp.ToolCallErrors {
		use := llm.ToolUse{ID: uniqueID(bad.ID), Name: bad.Name, Input: json.RawMessage("{}")}
		msg.Content = append(msg.Content, llm.NewToolUseBlock(use.ID, use.Name, use.Input))
		calls = append(calls, toolCall{use: use, parseErr: bad.Err})
	}

	return msg, calls
}

// dispatch answers every call in order. When ctx is cancelled the
// remaining calls are answered as cancelled so the log stays consistent.
func (a *Agent) dispatch(ctx context.Context, calls []toolCall) error {
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			a.cancelRemaining(calls[i:], err)
			return err
		}

		var result tools.ToolResult
		if call.parseErr != nil {
			result = tools.FailureResultf("invalid arguments for tool '%s': %v", call.use.Name, call.parseErr)
			a.engine.Emitter().Emit(tools.ToolEvent{
				Kind:   tools.EventFailed,
				Name:   call.use.Name,
				CallID: call.use.ID,
				Input:  call.use.Input,
				Result: &result,
				Err:    result.Error,
			})
		} else {
			result = a.engine.Dispatch(ctx, tools.Invocation{
				ID:        call.use.ID,
				Name:      call.use.Name,
				Arguments: call.use.Input,
			})
		}

		if err := a.conv.Append(llm.ToolResultMessage(call.use.ID, result.Content(), !result.Success())); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}

		if tools.IsAuthorizerFailure(result) {
			a.cancelRemaining(calls[i+1:], result.Error)
			a.logger.Error().Err(result.Error).Str("tool", call.use.Name).Msg("authorization broke, aborting run")
			return fmt.Errorf("%w: %w", ErrInvalidState, result.Error)
		}
	}
	return nil
}

func (a *Agent) cancelRemaining(calls []toolCall, cause error) {
	for _, call := range calls {
		msg := llm.ToolResultMessage(call.use.ID, fmt.Sprintf("Error: tool call cancelled: %v", cause), true)
		if err := a.conv.Append(msg); err != nil {
			a.logger.Error().Err(err).Str("call_id", call.use.ID).Msg("failed to record cancelled call")
		}
	}
}

// persist saves the log after a run, even one aborted by cancellation.
func (a *Agent) persist(ctx context.Context) {
	if a.store == nil {
		return
	}
	snap := storage.Snapshot{SystemPrompt: a.conv.SystemPrompt(), Messages: a.conv.Messages()}
	if err := a.store.Save(context.WithoutCancel(ctx), a.sessionID, snap); err != nil {
		a.logger.Warn().Err(err).Str("session", a.sessionID).Msg("failed to save session")
	}
}
