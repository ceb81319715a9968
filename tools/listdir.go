package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// MaxListDepth caps the depth argument of list_dir.
	MaxListDepth = 5
	// MaxListEntries caps the entries returned by list_dir.
	MaxListEntries = 1000
)

// ListDirTool lists directory entries as an indented tree.
type ListDirTool struct{}

// NewListDirTool creates a new list_dir tool.
func NewListDirTool() *ListDirTool {
	return &ListDirTool{}
}

// Metadata returns the tool metadata.
func (t *ListDirTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "list_dir",
		Description: "List the entries of a directory as a tree. Directories end with /. The .git directory is skipped.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Absolute path of the directory", Required: true},
			{Name: "depth", ParamType: "integer", Description: fmt.Sprintf("How many levels to descend (default: 1, max: %d)", MaxListDepth), Required: false},
		},
		ReadOnly: true,
		Kind:     TypeListDir,
	}
}

type listDirArgs struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

// Validate validates the arguments.
func (t *ListDirTool) Validate(args json.RawMessage) error {
	var a listDirArgs
	if err := decodeArgs("list_dir", args, &a); err != nil {
		return err
	}
	if err := requireAbsolute(a.Path); err != nil {
		return err
	}
	if a.Depth < 0 || a.Depth > MaxListDepth {
		return fmt.Errorf("depth must be between 1 and %d", MaxListDepth)
	}
	return nil
}

// Execute lists the directory.
func (t *ListDirTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a listDirArgs
	if err := decodeArgs("list_dir", args, &a); err != nil {
		return FailureResult(err), nil
	}
	if a.Depth == 0 {
		a.Depth = 1
	}

	info, err := os.Stat(a.Path)
	if os.IsNotExist(err) {
		return FailureResultf("no such file or directory: %s", a.Path), nil
	}
	if err != nil {
		return FailureResult(err), nil
	}
	if !info.IsDir() {
		return FailureResultf("%s is not a directory", a.Path), nil
	}

	var (
		b         strings.Builder
		count     int
		truncated bool
	)
	var walk func(dir string, level int) error
	walk = func(dir string, level int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			if entry.Name() == ".git" {
				continue
			}
			if count >= MaxListEntries {
				truncated = true
				return nil
			}
			count++

			name := entry.Name()
			if entry.IsDir() {
				name += "/"
			}
			b.WriteString(strings.Repeat("  ", level))
			b.WriteString(name)
			b.WriteByte('\n')

			if entry.IsDir() && level+1 < a.Depth {
				if err := walk(filepath.Join(dir, entry.Name()), level+1); err != nil {
					if ctx.Err() != nil {
						return err
					}
					fmt.Fprintf(&b, "%s(unreadable: %v)\n", strings.Repeat("  ", level+1), err)
				}
			}
		}
		return nil
	}

	if err := walk(a.Path, 0); err != nil {
		if ctx.Err() != nil {
			return ToolResult{}, ctx.Err()
		}
		return FailureResult(fmt.Errorf("failed to list directory: %w", err)), nil
	}

	if count == 0 {
		return SuccessResult(fmt.Sprintf("%s is empty", a.Path)), nil
	}
	out := strings.TrimSuffix(b.String(), "\n")
	if truncated {
		out += fmt.Sprintf("\n\n(Showing first %d entries)", MaxListEntries)
	}
	return SuccessResult(out), nil
}
