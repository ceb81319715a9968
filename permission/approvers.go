package permission

import (
	"context"
	"errors"
	"sync"
)

// DenyAll denies every prompt with optional feedback.
type DenyAll struct {
	Feedback string
}

// PromptUser implements Approver.
func (a DenyAll) PromptUser(context.Context, Request) (Response, error) {
	return Response{Decision: Deny, Feedback: a.Feedback}, nil
}

// AllowOnce allows every prompt without remembering it.
type AllowOnce struct{}

// PromptUser implements Approver.
func (AllowOnce) PromptUser(context.Context, Request) (Response, error) {
	return Response{Decision: Allow}, nil
}

// AllowSession allows every prompt for the rest of the session.
type AllowSession struct{}

// PromptUser implements Approver.
func (AllowSession) PromptUser(context.Context, Request) (Response, error) {
	return Response{Decision: AllowForSession}, nil
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req Request) (Response, error)

// PromptUser calls f(ctx, req).
func (f ApproverFunc) PromptUser(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// ErrNoMoreResponses is returned by Scripted when its queue is empty.
var ErrNoMoreResponses = errors.New("scripted approver: no more responses")

// Scripted answers prompts from a fixed queue and records each request.
type Scripted struct {
	mu        sync.Mutex
	responses []Response
	requests  []Request
}

// NewScripted creates an approver that replays responses in order.
func NewScripted(responses ...Response) *Scripted {
	return &Scripted{responses: responses}
}

// PromptUser implements Approver.
func (s *Scripted) PromptUser(_ context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return Response{}, ErrNoMoreResponses
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

// Requests returns the requests seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Calls returns how many times PromptUser was called.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
