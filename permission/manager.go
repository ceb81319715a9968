// Permission Manager - policy decision point for tool calls.
//
// Information Hiding:
// - Decision order (mode, read-only, validation, config, cache, prompt) hidden
// - Per-tool-name serialization hidden
// - Approver goroutine and cancellation hidden

package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/richinex/smith/internal/logging"
)

// Mode selects a blanket policy.
type Mode int

const (
	// ModePrompt asks the approver for undecided calls.
	ModePrompt Mode = iota
	// ModeAllowAll allows every call without asking.
	ModeAllowAll
	// ModeDenyAll denies every call without asking, read-only ones included.
	ModeDenyAll
)

func (m Mode) String() string {
	switch m {
	case ModeAllowAll:
		return "allow"
	case ModeDenyAll:
		return "deny"
	default:
		return "prompt"
	}
}

// ParseMode parses "prompt", "allow" or "deny".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prompt", "ask":
		return ModePrompt, nil
	case "allow", "allow_all", "yes":
		return ModeAllowAll, nil
	case "deny", "deny_all", "no":
		return ModeDenyAll, nil
	default:
		return ModePrompt, fmt.Errorf("unknown permission mode %q (want prompt, allow or deny)", s)
	}
}

// Manager decides tool calls for one agent session.
//
// The session cache is keyed by tool name only: approving one shell
// command for the session approves every later shell command.
type Manager struct {
	approver  Approver
	mode      Mode
	config    *Config
	validator *SecurityValidator
	logger    zerolog.Logger

	mu    sync.Mutex
	cache map[string]Decision
	locks map[string]*semaphore.Weighted
}

// Option configures a Manager.
type Option func(*Manager)

// WithMode sets the blanket policy.
func WithMode(mode Mode) Option {
	return func(m *Manager) { m.mode = mode }
}

// WithConfig sets the persisted allow-list.
func WithConfig(cfg *Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithValidator sets the path validator for writes and deletes.
func WithValidator(v *SecurityValidator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithLogger sets the manager logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager. A nil approver denies every prompt.
func NewManager(approver Approver, opts ...Option) *Manager {
	if approver == nil {
		approver = DenyAll{}
	}
	m := &Manager{
		approver: approver,
		config:   NewConfig(),
		logger:   logging.Component("permission"),
		cache:    make(map[string]Decision),
		locks:    make(map[string]*semaphore.Weighted),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mode returns the manager's blanket policy.
func (m *Manager) Mode() Mode { return m.mode }

// Check decides req. Denials are a Decision, not an error. A cancelled
// ctx returns ctx.Err() and records nothing. A failing approver returns an
// error wrapping ErrInvalidState.
func (m *Manager) Check(ctx context.Context, req Request) (Decision, error) {
	resp, err := m.decide(ctx, req)
	return resp.Decision, err
}

// Cached returns the remembered decision for a tool name.
func (m *Manager) Cached(toolName string) (Decision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.cache[toolName]
	return d, ok
}

// Reset forgets all session decisions.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]Decision)
}

func (m *Manager) decide(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = ulid.Make().String()
	}
	log := m.logger.With().Str("tool", req.ToolName).Str("request_id", req.ID).Logger()

	switch m.mode {
	case ModeAllowAll:
		return Response{Decision: Allow}, nil
	case ModeDenyAll:
		log.Debug().Msg("denied by mode")
		return Response{Decision: Deny, reason: "all tool calls are denied in this session"}, nil
	}

	if req.ReadOnly {
		return Response{Decision: Allow}, nil
	}

	if m.validator != nil {
		var err error
		switch req.Type {
		case TypeFileWrite:
			err = m.validator.ValidateWrite(req.Target)
		case TypeFileDelete:
			err = m.validator.ValidateDelete(req.Target)
		case TypeCommandExecute:
			for _, target := range req.Writes {
				if dynamicTarget(target) {
					continue
				}
				if err = m.validator.ValidateWrite(target); err != nil {
					break
				}
			}
		}
		if err != nil {
			log.Info().Err(err).Msg("blocked by security validation")
			return Response{Decision: Deny, reason: err.Error()}, nil
		}
	}

	if m.config != nil {
		ok, err := m.config.IsAllowed(req)
		if err != nil {
			log.Warn().Err(err).Msg("invalid permission pattern")
		} else if ok {
			log.Debug().Msg("allowed by config")
			return Response{Decision: Allow}, nil
		}
	}

	sem := m.lockFor(req.ToolName)
	if err := sem.Acquire(ctx, 1); err != nil {
		return Response{Decision: Deny}, err
	}
	defer sem.Release(1)

	if d, ok := m.Cached(req.ToolName); ok {
		log.Debug().Stringer("decision", d).Msg("using session decision")
		if d == Deny {
			return Response{Decision: Deny, reason: "operation was denied earlier in this session"}, nil
		}
		return Response{Decision: d}, nil
	}

	resp, err := m.prompt(ctx, req)
	if err != nil {
		return Response{Decision: Deny}, err
	}

	if resp.Decision == AllowForSession || (resp.Decision == Deny && resp.Remember) {
		m.mu.Lock()
		m.cache[req.ToolName] = resp.Decision
		m.mu.Unlock()
	}
	log.Info().Stringer("decision", resp.Decision).Msg("permission decided")
	return resp, nil
}

type promptOutcome struct {
	resp Response
	err  error
}

// prompt runs the approver on its own goroutine so a cancelled ctx
// releases the caller even if the approver ignores it.
func (m *Manager) prompt(ctx context.Context, req Request) (Response, error) {
	done := make(chan promptOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- promptOutcome{err: fmt.Errorf("approver panicked: %v", r)}
			}
		}()
		resp, err := m.approver.PromptUser(ctx, req)
		done <- promptOutcome{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case out := <-done:
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		if out.err != nil {
			if errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded) {
				return Response{}, out.err
			}
			return Response{}, fmt.Errorf("%w: approver failed: %v", ErrInvalidState, out.err)
		}
		if !out.resp.Decision.valid() {
			return Response{}, fmt.Errorf("%w: approver returned %s", ErrInvalidState, out.resp.Decision)
		}
		return out.resp, nil
	}
}

func (m *Manager) lockFor(name string) *semaphore.Weighted {
	m.mu.Lock()
	defer m.mu.Unlock()
	sem, ok := m.locks[name]
	if !ok {
		sem = semaphore.NewWeighted(1)
		m.locks[name] = sem
	}
	return sem
}
