// Tool lifecycle events.
//
// Information Hiding:
// - Handler list storage and locking hidden
// - Handler panics contained inside Emit

package tools

import (
	"encoding/json"
	"sync"

	"github.com/richinex/smith/internal/logging"
)

// EventKind identifies a point in a tool's lifecycle.
type EventKind int

const (
	EventStarted EventKind = iota
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ToolEvent is an observational notification. Handlers cannot influence
// the outcome of a dispatch.
type ToolEvent struct {
	Kind      EventKind
	Name      string
	CallID    string
	Input     json.RawMessage
	Result    *ToolResult
	Err       error
	Cancelled bool
}

// EventHandler receives tool events.
type EventHandler interface {
	HandleToolEvent(ev ToolEvent)
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ev ToolEvent)

// HandleToolEvent calls f(ev).
func (f HandlerFunc) HandleToolEvent(ev ToolEvent) { f(ev) }

// Emitter broadcasts events to subscribed handlers, synchronously and in
// subscription order.
type Emitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
}

// NewEmitter creates an emitter with no handlers.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe adds h to the handler list.
func (e *Emitter) Subscribe(h EventHandler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Emit delivers ev to every handler.
func (e *Emitter) Emit(ev ToolEvent) {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, ev)
	}
}

func deliver(h EventHandler, ev ToolEvent) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("tool", ev.Name).
				Str("event", ev.Kind.String()).
				Interface("panic", r).
				Msg("tool event handler panicked")
		}
	}()
	h.HandleToolEvent(ev)
}
