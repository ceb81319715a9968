// Glob tool for file discovery.
//
// Returns file paths matching a glob pattern without reading content.
// Patterns support ** and {a,b} alternation.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// DefaultGlobMaxResults is the default maximum results per query.
	DefaultGlobMaxResults = 100
	// AbsoluteGlobMaxResults is the hard limit to prevent excessive memory.
	AbsoluteGlobMaxResults = 1000
)

// GlobTool finds files matching glob patterns.
type GlobTool struct {
	workDir string
}

// NewGlobTool creates a new glob tool searching workDir by default.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{workDir: workDir}
}

// Metadata returns tool metadata.
func (t *GlobTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "glob",
		Description: "Find files matching a glob pattern. Returns absolute file paths only (no content). Hidden directories (starting with .) are skipped. Use for discovery, then read_file to load content.",
		Parameters: []ToolParameter{
			{Name: "pattern", ParamType: "string", Description: "Glob pattern (e.g., '**/*.go', 'src/**/*.{ts,tsx}', '*.yaml')", Required: true},
			{Name: "path", ParamType: "string", Description: "Absolute base directory to search from (default: working directory)", Required: false},
			{Name: "limit", ParamType: "integer", Description: fmt.Sprintf("Maximum files to return (default: %d, max: %d)", DefaultGlobMaxResults, AbsoluteGlobMaxResults), Required: false},
		},
		ReadOnly: true,
		Kind:     TypeGlob,
	}
}

type globArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
	Limit   int    `json:"limit"`
}

// Validate validates the arguments.
func (t *GlobTool) Validate(args json.RawMessage) error {
	var a globArgs
	if err := decodeArgs("glob", args, &a); err != nil {
		return err
	}
	if strings.TrimSpace(a.Pattern) == "" {
		return fmt.Errorf("pattern is required")
	}
	if !doublestar.ValidatePattern(a.Pattern) {
		return fmt.Errorf("invalid glob pattern: %s", a.Pattern)
	}
	if a.Path != "" {
		if err := requireAbsolute(a.Path); err != nil {
			return err
		}
	}
	if a.Limit < 0 || a.Limit > AbsoluteGlobMaxResults {
		return fmt.Errorf("limit must be between 1 and %d", AbsoluteGlobMaxResults)
	}
	return nil
}

// Execute runs the glob search.
func (t *GlobTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a globArgs
	if err := decodeArgs("glob", args, &a); err != nil {
		return FailureResult(err), nil
	}
	limit := a.Limit
	if limit == 0 {
		limit = DefaultGlobMaxResults
	}

	base := a.Path
	if base == "" {
		base = t.workDir
	}
	info, err := os.Stat(base)
	if err != nil {
		return FailureResultf("no such directory: %s", base), nil
	}
	if !info.IsDir() {
		return FailureResultf("%s is not a directory", base), nil
	}

	pattern := strings.TrimPrefix(filepath.ToSlash(a.Pattern), "./")

	var matches []string
	err = doublestar.GlobWalk(os.DirFS(base), pattern, func(path string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || hasHiddenSegment(path) {
			return nil
		}
		matches = append(matches, filepath.Join(base, filepath.FromSlash(path)))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ToolResult{}, ctx.Err()
		}
		return FailureResultf("glob failed: %v", err), nil
	}

	if len(matches) == 0 {
		return SuccessResult(fmt.Sprintf("No files matched pattern %q in %s", a.Pattern, base)), nil
	}

	sort.Strings(matches)
	total := len(matches)
	if total > limit {
		matches = matches[:limit]
	}

	out := strings.Join(matches, "\n")
	if total > limit {
		out += fmt.Sprintf("\n\n(Showing %d of %d files)", limit, total)
	}
	return SuccessResult(out), nil
}

func hasHiddenSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}
