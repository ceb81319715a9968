// Filesystem Tools - Read, Write, Update operations.
//
// Information Hiding:
// - File I/O implementation details hidden
// - Binary detection and line windowing hidden
// - Atomic replacement of written files hidden

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	// MaxReadFileSize is the largest file read_file will load.
	MaxReadFileSize = 10 * 1024 * 1024
	// DefaultReadLimit is the default number of lines returned.
	DefaultReadLimit = 2000
	// MaxReadLimit caps the limit argument.
	MaxReadLimit = 10000
	// MaxLineLength truncates long lines in read_file output.
	MaxLineLength = 500

	binarySniffSize = 8 * 1024
)

func requireAbsolute(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s is not an absolute path", path)
	}
	return nil
}

// ReadFileTool reads a window of lines from a text file.
type ReadFileTool struct {
	maxSizeBytes int64
}

// NewReadFileTool creates a new read file tool.
func NewReadFileTool() *ReadFileTool {
	return &ReadFileTool{maxSizeBytes: MaxReadFileSize}
}

// Metadata returns the tool metadata.
func (t *ReadFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "read_file",
		Description: "Read a text file. Lines are numbered as L<n>: and long lines are truncated. Use offset and limit to page through large files.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Absolute path to the file to read", Required: true},
			{Name: "offset", ParamType: "integer", Description: "1-based line to start from (default: 1)", Required: false},
			{Name: "limit", ParamType: "integer", Description: fmt.Sprintf("Maximum lines to return (default: %d, max: %d)", DefaultReadLimit, MaxReadLimit), Required: false},
		},
		ReadOnly: true,
		Kind:     TypeReadFile,
	}
}

type readFileArgs struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// Validate validates the arguments.
func (t *ReadFileTool) Validate(args json.RawMessage) error {
	var a readFileArgs
	if err := decodeArgs("read_file", args, &a); err != nil {
		return err
	}
	if err := requireAbsolute(a.Path); err != nil {
		return err
	}
	if a.Offset < 0 {
		return fmt.Errorf("offset must be >= 1")
	}
	if a.Limit < 0 || a.Limit > MaxReadLimit {
		return fmt.Errorf("limit must be between 1 and %d", MaxReadLimit)
	}
	return nil
}

// Execute reads the file.
func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a readFileArgs
	if err := decodeArgs("read_file", args, &a); err != nil {
		return FailureResult(err), nil
	}
	if a.Offset == 0 {
		a.Offset = 1
	}
	if a.Limit == 0 {
		a.Limit = DefaultReadLimit
	}

	info, err := os.Stat(a.Path)
	if os.IsNotExist(err) {
		return FailureResultf("no such file: %s", a.Path), nil
	}
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file metadata: %w", err)), nil
	}
	if info.IsDir() {
		return FailureResultf("%s is a directory, not a file; use list_dir", a.Path), nil
	}
	if info.Size() > t.maxSizeBytes {
		return FailureResultf("file too large: %d bytes (max: %d bytes)", info.Size(), t.maxSizeBytes), nil
	}

	content, err := os.ReadFile(a.Path)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file: %w", err)), nil
	}
	if isBinary(content) {
		return FailureResultf("binary file detected: %s", a.Path), nil
	}
	if len(content) == 0 {
		return SuccessResult(""), nil
	}

	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	if a.Offset > len(lines) {
		return FailureResultf("offset %d exceeds file length of %d lines", a.Offset, len(lines)), nil
	}

	end := a.Offset - 1 + a.Limit
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := a.Offset - 1; i < end; i++ {
		if ctx.Err() != nil {
			return ToolResult{}, ctx.Err()
		}
		line := lines[i]
		if len(line) > MaxLineLength {
			line = line[:MaxLineLength] + "..."
		}
		fmt.Fprintf(&b, "L%d: %s\n", i+1, line)
	}
	if end < len(lines) {
		fmt.Fprintf(&b, "\n(%d more lines; continue with offset=%d)", len(lines)-end, end+1)
	}

	return SuccessResult(strings.TrimSuffix(b.String(), "\n")), nil
}

func isBinary(content []byte) bool {
	sniff := content
	if len(sniff) > binarySniffSize {
		sniff = sniff[:binarySniffSize]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}

// WriteFileTool writes content to a file, replacing it atomically.
type WriteFileTool struct{}

// NewWriteFileTool creates a new write file tool.
func NewWriteFileTool() *WriteFileTool {
	return &WriteFileTool{}
}

// Metadata returns the tool metadata.
func (t *WriteFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "write_file",
		Description: "Write content to a file, replacing any existing content",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Absolute path to the file to write", Required: true},
			{Name: "content", ParamType: "string", Description: "Content to write", Required: true},
			{Name: "create_dirs", ParamType: "boolean", Description: "Create missing parent directories (default: false)", Required: false},
		},
		Kind: TypeWriteFile,
	}
}

type writeFileArgs struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	CreateDirs bool   `json:"create_dirs"`
}

// Validate validates the arguments.
func (t *WriteFileTool) Validate(args json.RawMessage) error {
	var a writeFileArgs
	if err := decodeArgs("write_file", args, &a); err != nil {
		return err
	}
	return requireAbsolute(a.Path)
}

// Execute writes to the file.
func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a writeFileArgs
	if err := decodeArgs("write_file", args, &a); err != nil {
		return FailureResult(err), nil
	}

	dir := filepath.Dir(a.Path)
	if info, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return FailureResult(fmt.Errorf("failed to stat parent directory: %w", err)), nil
		}
		if !a.CreateDirs {
			return FailureResultf("parent directory does not exist: %s", dir), nil
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return FailureResult(fmt.Errorf("failed to create directory: %w", err)), nil
		}
	} else if !info.IsDir() {
		return FailureResultf("%s is not a directory", dir), nil
	}

	existed := true
	if _, err := os.Stat(a.Path); os.IsNotExist(err) {
		existed = false
	}

	if err := writeAtomic(a.Path, []byte(a.Content)); err != nil {
		return FailureResult(fmt.Errorf("failed to write file: %w", err)), nil
	}

	verb := "Created"
	if existed {
		verb = "Overwrote"
	}
	return SuccessResult(fmt.Sprintf("%s %s (%d bytes)", verb, a.Path, len(a.Content))), nil
}

// writeAtomic writes data to a temp file in the target directory and
// renames it over path, keeping the original mode when the file exists.
func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// UpdateFileTool performs search/replace operations on files.
type UpdateFileTool struct {
	maxSizeBytes int64
}

// NewUpdateFileTool creates a new update file tool.
func NewUpdateFileTool() *UpdateFileTool {
	return &UpdateFileTool{maxSizeBytes: MaxReadFileSize}
}

// Metadata returns the tool metadata.
func (t *UpdateFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "update_file",
		Description: "Edit a file by replacing an exact string. old_string must be unique unless replace_all is set. Returns a diff of the change.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Absolute path to the file to edit", Required: true},
			{Name: "old_string", ParamType: "string", Description: "Exact text to replace", Required: true},
			{Name: "new_string", ParamType: "string", Description: "Replacement text", Required: true},
			{Name: "replace_all", ParamType: "boolean", Description: "Replace all occurrences (default: false)", Required: false},
		},
		Kind: TypeUpdateFile,
	}
}

type updateFileArgs struct {
	Path       string `json:"path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

// Validate validates the arguments.
func (t *UpdateFileTool) Validate(args json.RawMessage) error {
	var a updateFileArgs
	if err := decodeArgs("update_file", args, &a); err != nil {
		return err
	}
	if err := requireAbsolute(a.Path); err != nil {
		return err
	}
	if a.OldString == "" {
		return fmt.Errorf("old_string cannot be empty")
	}
	if a.OldString == a.NewString {
		return fmt.Errorf("old_string and new_string are identical")
	}
	return nil
}

// Execute performs the edit.
func (t *UpdateFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a updateFileArgs
	if err := decodeArgs("update_file", args, &a); err != nil {
		return FailureResult(err), nil
	}

	info, err := os.Stat(a.Path)
	if os.IsNotExist(err) {
		return FailureResultf("no such file: %s", a.Path), nil
	}
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file metadata: %w", err)), nil
	}
	if info.Size() > t.maxSizeBytes {
		return FailureResultf("file too large: %d bytes (max: %d bytes)", info.Size(), t.maxSizeBytes), nil
	}

	content, err := os.ReadFile(a.Path)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file: %w", err)), nil
	}
	if isBinary(content) {
		return FailureResultf("binary file detected: %s", a.Path), nil
	}

	before := string(content)
	occurrences := strings.Count(before, a.OldString)
	if occurrences == 0 {
		return FailureResultf("old_string not found in %s", a.Path), nil
	}
	if !a.ReplaceAll && occurrences > 1 {
		return FailureResultf("old_string occurs %d times in %s; add surrounding context or set replace_all=true", occurrences, a.Path), nil
	}

	var after string
	replaced := 1
	if a.ReplaceAll {
		after = strings.ReplaceAll(before, a.OldString, a.NewString)
		replaced = occurrences
	} else {
		after = strings.Replace(before, a.OldString, a.NewString, 1)
	}

	if err := writeAtomic(a.Path, []byte(after)); err != nil {
		return FailureResult(fmt.Errorf("failed to write file: %w", err)), nil
	}

	return SuccessResult(fmt.Sprintf("Replaced %d occurrence(s) in %s\n\n%s", replaced, a.Path, unifiedDiff(a.Path, before, after))), nil
}

// unifiedDiff renders a line-level patch between before and after.
func unifiedDiff(path, before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patch := dmp.PatchToText(dmp.PatchMake(before, diffs))
	if patch == "" {
		return ""
	}
	return fmt.Sprintf("--- %s\n+++ %s\n%s", path, path, patch)
}
