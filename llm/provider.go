// Package llm provides LLM provider abstractions.
//
// Model interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Translation of vendor stream events into StreamEvent values
// - Provider-specific error handling

package llm

import (
	"context"
	"errors"
	"fmt"
)

// Model defines the abstract interface for LLM providers.
// The agent core depends only on this interface, never on a concrete vendor.
type Model interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the model identifier being used.
	Model() string

	// Complete sends a non-streaming completion request.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Stream starts a streaming completion. The returned Stream must be
	// consumed at most once.
	Stream(ctx context.Context, req CompletionRequest) (Stream, error)
}

// ErrStreamingUnsupported is returned by Stream when a model can only
// complete synchronously. Callers fall back to Complete.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// ProviderError wraps a network, transport or malformed-stream failure.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("provider error: %v", e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err unless it is already a ProviderError.
func NewProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Err: err}
}

// IsProviderError reports whether err is or wraps a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
