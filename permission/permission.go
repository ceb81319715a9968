// Package permission decides whether a tool invocation may run.
//
// Information Hiding:
// - Session cache layout and per-name locking hidden
// - Approval wait and its cancellation hidden
// - Config pattern matching and path validation hidden
package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/richinex/smith/tools"
)

// ErrInvalidState reports a broken collaborator, such as an approver that
// fails instead of answering.
var ErrInvalidState = errors.New("permission: invalid state")

// Decision is the outcome of a permission check. The zero value is Deny.
type Decision int

const (
	Deny Decision = iota
	Allow
	AllowForSession
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case AllowForSession:
		return "allow_for_session"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Allowed reports whether the decision lets the call run.
func (d Decision) Allowed() bool {
	return d == Allow || d == AllowForSession
}

func (d Decision) valid() bool {
	return d == Allow || d == AllowForSession || d == Deny
}

// PermissionType classifies the side effect of an operation.
type PermissionType string

const (
	TypeFileRead           PermissionType = "file_read"
	TypeFileWrite          PermissionType = "file_write"
	TypeFileDelete         PermissionType = "file_delete"
	TypeCommandExecute     PermissionType = "command_execute"
	TypeNetworkAccess      PermissionType = "network_access"
	TypeSystemModification PermissionType = "system_modification"
)

func (t PermissionType) String() string {
	switch t {
	case TypeFileRead:
		return "read file"
	case TypeFileWrite:
		return "write file"
	case TypeFileDelete:
		return "delete file"
	case TypeCommandExecute:
		return "execute command"
	case TypeNetworkAccess:
		return "network access"
	case TypeSystemModification:
		return "system modification"
	default:
		return string(t)
	}
}

// TypeForTool maps a tool kind to the permission taxonomy. Tools of
// unknown kind are treated as system modifications.
func TypeForTool(kind tools.ToolType) PermissionType {
	switch kind {
	case tools.TypeReadFile, tools.TypeListDir, tools.TypeGlob, tools.TypeGrep:
		return TypeFileRead
	case tools.TypeWriteFile, tools.TypeUpdateFile:
		return TypeFileWrite
	case tools.TypeBash:
		return TypeCommandExecute
	case tools.TypeFetch:
		return TypeNetworkAccess
	default:
		return TypeSystemModification
	}
}

// Request is a pending decision shown to an Approver.
type Request struct {
	ID          string
	CallID      string
	ToolName    string
	Type        PermissionType
	Target      string
	Description string
	ReadOnly    bool

	// Commands holds the parsed sub-commands of a shell request.
	Commands []BashCommand
	// Writes holds the output redirection targets of a shell request.
	Writes []string
}

// Response is an Approver's answer. Feedback is shown to the model on a
// denial. Remember makes a denial stick for the rest of the session.
type Response struct {
	Decision Decision
	Feedback string
	Remember bool

	reason string // set for denials made without asking
}

// Approver asks a human (or a stand-in) for a decision. PromptUser may
// block and must return promptly once ctx is done.
type Approver interface {
	PromptUser(ctx context.Context, req Request) (Response, error)
}

// DeniedError is returned by Manager.Authorize for a denied call. It
// matches tools.ErrPermissionDenied.
type DeniedError struct {
	Tool     string
	Feedback string
	Reason   string
}

func (e *DeniedError) Error() string {
	switch {
	case e.Reason != "":
		return "permission denied: " + e.Reason
	case e.Feedback != "":
		return "permission denied: operation blocked by user. User feedback: " + e.Feedback
	default:
		return "permission denied: operation blocked by user"
	}
}

// Is lets errors.Is(err, tools.ErrPermissionDenied) match.
func (e *DeniedError) Is(target error) bool {
	return target == tools.ErrPermissionDenied
}

// IsDenied reports whether err is or wraps a DeniedError.
func IsDenied(err error) bool {
	var de *DeniedError
	return errors.As(err, &de)
}
