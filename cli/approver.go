// Terminal permission prompts.
//
// Information Hiding:
// - Prompt layout hidden
// - Answer parsing hidden

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/richinex/smith/permission"
)

// TerminalApprover asks the user on the terminal. Without an interactive
// terminal every request is denied.
type TerminalApprover struct {
	in          *LineReader
	out         io.Writer
	interactive bool
	mu          sync.Mutex
}

// NewTerminalApprover creates an approver reading answers from in.
func NewTerminalApprover(in *LineReader, out io.Writer, interactive bool) *TerminalApprover {
	return &TerminalApprover{in: in, out: out, interactive: interactive}
}

// PromptUser implements permission.Approver.
func (a *TerminalApprover) PromptUser(ctx context.Context, req permission.Request) (permission.Response, error) {
	if !a.interactive {
		return permission.Response{
			Decision: permission.Deny,
			Feedback: "no interactive terminal to ask for approval",
		}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprintf(a.out, "\nPermission required to %s\n", req.Type)
	fmt.Fprintf(a.out, "  Tool:   %s\n", req.ToolName)
	if req.Target != "" {
		fmt.Fprintf(a.out, "  Target: %s\n", req.Target)
	}
	if req.Description != "" {
		for _, l := range strings.Split(strings.TrimRight(req.Description, "\n"), "\n") {
			fmt.Fprintf(a.out, "  %s\n", l)
		}
	}
	fmt.Fprint(a.out, "[y]es once / [a]lways this session / [n]o (feedback): ")

	answer, err := a.in.ReadLine(ctx)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(a.out)
			return permission.Response{}, ctx.Err()
		}
		return permission.Response{}, fmt.Errorf("approval input closed: %w", err)
	}
	return ParseAnswer(answer), nil
}

// ParseAnswer turns a typed answer into a response. Anything that is not
// an approval is a denial; text after "n" or "no", or an unrecognized
// answer, is passed to the model as feedback.
func ParseAnswer(answer string) permission.Response {
	answer = strings.TrimSpace(answer)
	lower := strings.ToLower(answer)

	switch lower {
	case "y", "yes":
		return permission.Response{Decision: permission.Allow}
	case "a", "always":
		return permission.Response{Decision: permission.AllowForSession}
	case "", "n", "no":
		return permission.Response{Decision: permission.Deny}
	}

	for _, prefix := range []string{"no", "n"} {
		if rest, ok := strings.CutPrefix(lower, prefix); ok && rest != "" && strings.ContainsAny(rest[:1], " :,-") {
			feedback := strings.TrimLeft(answer[len(prefix):], " :,-")
			return permission.Response{Decision: permission.Deny, Feedback: feedback}
		}
	}

	return permission.Response{Decision: permission.Deny, Feedback: answer}
}

var _ permission.Approver = (*TerminalApprover)(nil)
