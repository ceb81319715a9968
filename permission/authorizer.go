package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/richinex/smith/tools"
)

var _ tools.Authorizer = (*Manager)(nil)

// Authorize adapts Check to the tool engine. A denial is returned as a
// *DeniedError carrying the user's feedback.
func (m *Manager) Authorize(ctx context.Context, ar tools.AuthRequest) error {
	req := RequestFor(ar.Meta, ar.Args)
	req.CallID = ar.CallID

	resp, err := m.decide(ctx, req)
	if err != nil {
		return err
	}
	if resp.Decision.Allowed() {
		return nil
	}
	return &DeniedError{Tool: req.ToolName, Feedback: resp.Feedback, Reason: resp.reason}
}

// RequestFor builds the approval request for a tool call. The target is
// the path or command the call acts on.
func RequestFor(meta tools.ToolMetadata, args json.RawMessage) Request {
	req := Request{
		ToolName: meta.Name,
		Type:     TypeForTool(meta.Kind),
		ReadOnly: meta.ReadOnly,
	}

	var fields struct {
		Path    string `json:"path"`
		Command string `json:"command"`
		Pattern string `json:"pattern"`
		URL     string `json:"url"`
		Method  string `json:"method"`
	}
	_ = json.Unmarshal(args, &fields)

	switch meta.Kind {
	case tools.TypeBash:
		req.Target = fields.Command
		req.Description = "Run: " + fields.Command
		if cmds, err := ParseBashCommand(fields.Command); err == nil && len(cmds) > 0 {
			req.Commands = cmds
			req.Description += "\n" + describeCommands(cmds)
		}
		if writes, err := BashWriteTargets(fields.Command); err == nil && len(writes) > 0 {
			req.Writes = writes
			req.Description += "\nWrites: " + strings.Join(writes, ", ")
		}
	case tools.TypeWriteFile:
		req.Target = fields.Path
		req.Description = "Write file " + fields.Path
	case tools.TypeUpdateFile:
		req.Target = fields.Path
		req.Description = "Edit file " + fields.Path
	case tools.TypeGlob, tools.TypeGrep:
		req.Target = fields.Pattern
		req.Description = fmt.Sprintf("Search for %q", fields.Pattern)
		if fields.Path != "" {
			req.Description += " in " + fields.Path
		}
	case tools.TypeFetch:
		req.Target = fields.URL
		if u, err := url.Parse(fields.URL); err == nil && u.Hostname() != "" {
			req.Target = u.Hostname()
		}
		method := strings.ToUpper(fields.Method)
		if method == "" {
			method = "GET"
		}
		req.Description = fmt.Sprintf("%s %s", method, fields.URL)
	case tools.TypeReadFile, tools.TypeListDir:
		req.Target = fields.Path
		req.Description = "Read " + fields.Path
	default:
		req.Target = strings.TrimSpace(string(args))
		req.Description = fmt.Sprintf("%s %s", meta.Name, truncate(req.Target, 200))
	}
	return req
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
