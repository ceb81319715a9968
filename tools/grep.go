// Grep Tool - Repository content search.
//
// Information Hiding:
// - Ripgrep command construction hidden
// - In-process regexp fallback when rg is unavailable
// - Result limiting abstracted

package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// DefaultGrepLimit is the default number of matching lines returned.
	DefaultGrepLimit = 50
	// MaxGrepLimit caps the limit argument.
	MaxGrepLimit = 500
	// MaxGrepContext caps the context argument.
	MaxGrepContext = 5
)

// GrepTool searches file contents via ripgrep.
type GrepTool struct {
	workDir string
	rgPath  string
}

// NewGrepTool creates a new grep tool searching workDir by default.
func NewGrepTool(workDir string) *GrepTool {
	rgPath, _ := exec.LookPath("rg")
	return &GrepTool{workDir: workDir, rgPath: rgPath}
}

// Metadata returns the tool metadata.
func (t *GrepTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "grep",
		Description: "Search file contents with a regular expression. Returns path:line:text for each match.",
		Parameters: []ToolParameter{
			{Name: "pattern", ParamType: "string", Description: "Regular expression to search for", Required: true},
			{Name: "path", ParamType: "string", Description: "Absolute file or directory to search (default: working directory)", Required: false},
			{Name: "glob", ParamType: "string", Description: "Only search files matching this glob (e.g., '*.go')", Required: false},
			{Name: "case_insensitive", ParamType: "boolean", Description: "Case insensitive search (default: false)", Required: false},
			{Name: "limit", ParamType: "integer", Description: fmt.Sprintf("Maximum matching lines (default: %d, max: %d)", DefaultGrepLimit, MaxGrepLimit), Required: false},
			{Name: "context", ParamType: "integer", Description: fmt.Sprintf("Lines of context around matches (max: %d)", MaxGrepContext), Required: false},
		},
		ReadOnly: true,
		Kind:     TypeGrep,
	}
}

type grepArgs struct {
	Pattern         string `json:"pattern"`
	Path            string `json:"path"`
	Glob            string `json:"glob"`
	CaseInsensitive bool   `json:"case_insensitive"`
	Limit           int    `json:"limit"`
	Context         int    `json:"context"`
}

// Validate validates the arguments.
func (t *GrepTool) Validate(args json.RawMessage) error {
	var a grepArgs
	if err := decodeArgs("grep", args, &a); err != nil {
		return err
	}
	if strings.TrimSpace(a.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if _, err := regexp.Compile(a.Pattern); err != nil {
		return fmt.Errorf("invalid regular expression: %v", err)
	}
	if a.Path != "" {
		if err := requireAbsolute(a.Path); err != nil {
			return err
		}
	}
	if a.Limit < 0 || a.Limit > MaxGrepLimit {
		return fmt.Errorf("limit must be between 1 and %d", MaxGrepLimit)
	}
	if a.Context < 0 || a.Context > MaxGrepContext {
		return fmt.Errorf("context must be between 0 and %d", MaxGrepContext)
	}
	return nil
}

// Execute runs the search.
func (t *GrepTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a grepArgs
	if err := decodeArgs("grep", args, &a); err != nil {
		return FailureResult(err), nil
	}
	if a.Limit == 0 {
		a.Limit = DefaultGrepLimit
	}
	if a.Path == "" {
		a.Path = t.workDir
	}
	if _, err := os.Stat(a.Path); err != nil {
		return FailureResultf("no such file or directory: %s", a.Path), nil
	}

	var (
		lines []string
		err   error
	)
	if t.rgPath != "" {
		lines, err = t.ripgrep(ctx, a)
	} else {
		lines, err = walkGrep(ctx, a)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ToolResult{}, ctx.Err()
		}
		return FailureResult(err), nil
	}

	if len(lines) == 0 {
		return SuccessResult(fmt.Sprintf("No matches for %q", a.Pattern)), nil
	}
	total := len(lines)
	if total > a.Limit {
		lines = lines[:a.Limit]
	}
	out := strings.Join(lines, "\n")
	if total > a.Limit {
		out += fmt.Sprintf("\n\n(Showing first %d matching lines; narrow the pattern or path)", a.Limit)
	}
	return SuccessResult(out), nil
}

func (t *GrepTool) ripgrep(ctx context.Context, a grepArgs) ([]string, error) {
	rgArgs := []string{"--no-messages", "--color=never", "--line-number", "--no-heading", "--with-filename"}
	if a.CaseInsensitive {
		rgArgs = append(rgArgs, "-i")
	}
	if a.Context > 0 {
		rgArgs = append(rgArgs, "-C", fmt.Sprintf("%d", a.Context))
	}
	if strings.TrimSpace(a.Glob) != "" {
		rgArgs = append(rgArgs, "-g", a.Glob)
	}
	rgArgs = append(rgArgs, "--", a.Pattern, a.Path)

	cmd := exec.CommandContext(ctx, t.rgPath, rgArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// rg returns exit code 1 when no matches are found
			if exitErr.ExitCode() == 1 {
				return nil, nil
			}
			return nil, fmt.Errorf("rg failed with exit code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("failed to execute rg: %w", err)
	}

	// Overfetch by one line so the caller can tell the result was cut.
	return splitLimit(string(output), a.Limit+1), nil
}

func splitLimit(output string, max int) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= max {
			break
		}
	}
	return lines
}

// walkGrep is the in-process search used when rg is not installed.
// Context lines are not supported here.
func walkGrep(ctx context.Context, a grepArgs) ([]string, error) {
	expr := a.Pattern
	if a.CaseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression: %v", err)
	}

	var lines []string
	errLimit := errors.New("limit reached")

	err = filepath.WalkDir(a.Path, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != a.Path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if a.Glob != "" {
			if ok, _ := doublestar.Match(a.Glob, d.Name()); !ok {
				return nil
			}
		}

		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()

		head := make([]byte, binarySniffSize)
		n, _ := f.Read(head)
		if isBinary(head[:n]) {
			return nil
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil
		}

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for lineNo := 1; scanner.Scan(); lineNo++ {
			if re.MatchString(scanner.Text()) {
				lines = append(lines, fmt.Sprintf("%s:%d:%s", path, lineNo, scanner.Text()))
				if len(lines) > a.Limit {
					return errLimit
				}
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, err
	}
	return lines, nil
}
