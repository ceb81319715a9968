// Tool Engine - validated, authorized, isolated tool dispatch.
//
// Information Hiding:
// - Pipeline ordering (lookup, validate, authorize, execute) hidden
// - Event emission points hidden
// - Output truncation and error categorization hidden

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/richinex/smith/internal/logging"
)

// Invocation is an untrusted tool call requested by the model.
type Invocation struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// AuthRequest is what an Authorizer sees for one invocation.
type AuthRequest struct {
	CallID string
	Meta   ToolMetadata
	Args   json.RawMessage
}

// Authorizer decides whether an invocation may execute. A nil error allows
// it. Denials must match ErrPermissionDenied; context errors mean the
// decision was cancelled; anything else is a failure of the authorizer.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthRequest) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, req AuthRequest) error

// Authorize calls f(ctx, req).
func (f AuthorizerFunc) Authorize(ctx context.Context, req AuthRequest) error { return f(ctx, req) }

// Engine dispatches invocations against a registry.
type Engine struct {
	registry   *Registry
	authorizer Authorizer
	emitter    *Emitter
	exec       ExecContext
	logger     zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAuthorizer sets the authorizer consulted before execution.
func WithAuthorizer(a Authorizer) EngineOption {
	return func(e *Engine) { e.authorizer = a }
}

// WithEmitter sets the event emitter.
func WithEmitter(em *Emitter) EngineOption {
	return func(e *Engine) { e.emitter = em }
}

// WithExecContext sets execution limits.
func WithExecContext(c ExecContext) EngineOption {
	return func(e *Engine) { e.exec = c }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine. Without an authorizer every call is allowed.
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		emitter:  NewEmitter(),
		logger:   logging.Component("tools"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Emitter returns the engine's event emitter.
func (e *Engine) Emitter() *Emitter { return e.emitter }

// Subscribe adds an event handler.
func (e *Engine) Subscribe(h EventHandler) { e.emitter.Subscribe(h) }

// Dispatch runs one invocation and always returns a result. Failures of
// any stage, including panics, are reported as failed results.
func (e *Engine) Dispatch(ctx context.Context, inv Invocation) (result ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("tool", inv.Name).Interface("panic", r).Msg("dispatch panicked")
			result = FailureResultf("tool '%s' panicked: %v", inv.Name, r)
			e.emitter.Emit(ToolEvent{Kind: EventFailed, Name: inv.Name, CallID: inv.ID, Input: inv.Arguments, Result: &result, Err: result.Error})
		}
	}()

	log := e.logger.With().Str("tool", inv.Name).Str("call_id", inv.ID).Logger()

	tool, err := e.registry.Lookup(inv.Name)
	if err != nil {
		log.Warn().Err(err).Msg("unknown tool")
		return e.fail(inv, FailureResult(err), false)
	}
	meta := tool.Metadata()

	if err := e.validate(tool, meta, inv.Arguments); err != nil {
		log.Debug().Err(err).Msg("invalid tool input")
		return e.fail(inv, e.categorize(meta, FailureResult(err)), false)
	}

	if e.authorizer != nil {
		err := e.authorizer.Authorize(ctx, AuthRequest{CallID: inv.ID, Meta: meta, Args: inv.Arguments})
		switch {
		case err == nil:
		case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			log.Debug().Err(err).Msg("authorization cancelled")
			return e.fail(inv, FailureResult(fmt.Errorf("cancelled: %w", err)), true)
		case errors.Is(err, ErrPermissionDenied):
			log.Info().Err(err).Msg("tool call denied")
			return e.fail(inv, FailureResult(err), false)
		default:
			log.Error().Err(err).Msg("authorization failed")
			return e.fail(inv, FailureResult(fmt.Errorf("%w: %w", ErrAuthorizerFailed, err)), false)
		}
	}

	e.emitter.Emit(ToolEvent{Kind: EventStarted, Name: inv.Name, CallID: inv.ID, Input: inv.Arguments})
	log.Debug().Msg("executing tool")

	result, err = NewExecutor(e.exec.timeout()).Execute(ctx, tool, inv.Arguments)
	if err != nil {
		log.Debug().Err(err).Msg("tool execution cancelled")
		return e.fail(inv, FailureResult(fmt.Errorf("cancelled: %w", err)), true)
	}

	result.Output = TruncateOutput(result.Output, e.exec.maxOutput())
	if !result.Success() {
		result = e.categorize(meta, result)
		log.Debug().Err(result.Error).Msg("tool failed")
		e.emitter.Emit(ToolEvent{Kind: EventFailed, Name: inv.Name, CallID: inv.ID, Input: inv.Arguments, Result: &result, Err: result.Error})
		return result
	}

	e.emitter.Emit(ToolEvent{Kind: EventCompleted, Name: inv.Name, CallID: inv.ID, Input: inv.Arguments, Result: &result})
	return result
}

func (e *Engine) validate(tool Tool, meta ToolMetadata, args json.RawMessage) error {
	if err := ValidateArgs(meta, args); err != nil {
		return err
	}
	if err := tool.Validate(args); err != nil {
		var ii *InvalidInputError
		if errors.As(err, &ii) {
			return err
		}
		return &InvalidInputError{Tool: meta.Name, Reason: err.Error()}
	}
	return nil
}

func (e *Engine) fail(inv Invocation, result ToolResult, cancelled bool) ToolResult {
	e.emitter.Emit(ToolEvent{
		Kind:      EventFailed,
		Name:      inv.Name,
		CallID:    inv.ID,
		Input:     inv.Arguments,
		Result:    &result,
		Err:       result.Error,
		Cancelled: cancelled,
	})
	return result
}

func (e *Engine) categorize(meta ToolMetadata, result ToolResult) ToolResult {
	if result.Error == nil || len(result.Suggestions) > 0 {
		return result
	}
	result.Suggestions = Suggest(HintContext{
		Tool:          meta.Name,
		WorkingDir:    e.exec.WorkingDir,
		Timeout:       int(e.exec.timeout().Seconds()),
		MaxOutputSize: e.exec.maxOutput(),
	}, result.Error.Error())
	return result
}
