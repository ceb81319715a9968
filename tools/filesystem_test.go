package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawArgs(t *testing.T, v map[string]interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadFileNumbersLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "one\ntwo\nthree\n")

	res, err := NewReadFileTool().Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": path}))
	require.NoError(t, err)
	require.True(t, res.Success(), "%v", res.Error)
	assert.Equal(t, "L1: one\nL2: two\nL3: three", res.Output)
}

func TestReadFileWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	writeFile(t, path, strings.Join(lines, "\n"))

	res, _ := NewReadFileTool().Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": path, "offset": 3, "limit": 2}))
	require.True(t, res.Success())
	assert.Equal(t, "L3: line 3\nL4: line 4\n\n(6 more lines; continue with offset=5)", res.Output)

	res, _ = NewReadFileTool().Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": path, "offset": 11}))
	assert.False(t, res.Success())
}

func TestReadFileTruncatesLongLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.txt")
	writeFile(t, path, strings.Repeat("a", MaxLineLength+20))

	res, _ := NewReadFileTool().Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": path}))
	require.True(t, res.Success())
	assert.Equal(t, "L1: "+strings.Repeat("a", MaxLineLength)+"...", res.Output)
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "bin")
	writeFile(t, bin, "abc\x00def")

	tool := NewReadFileTool()

	res, _ := tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": bin}))
	assert.Contains(t, res.Error.Error(), "binary file")

	res, _ = tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": filepath.Join(dir, "missing")}))
	assert.Contains(t, res.Error.Error(), "no such file")

	err := tool.Validate(rawArgs(t, map[string]interface{}{"path": "relative.txt"}))
	assert.ErrorContains(t, err, "must be absolute")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.txt")
	tool := NewWriteFileTool()

	res, _ := tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": path, "content": "x"}))
	require.False(t, res.Success())
	assert.Contains(t, res.Error.Error(), "parent directory does not exist")

	res, _ = tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": path, "content": "hello", "create_dirs": true}))
	require.True(t, res.Success(), "%v", res.Error)
	assert.True(t, strings.HasPrefix(res.Output, "Created"))

	res, _ = tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": path, "content": "bye"}))
	require.True(t, res.Success())
	assert.True(t, strings.HasPrefix(res.Output, "Overwrote"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestUpdateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	writeFile(t, path, "a := 1\nb := 1\n")
	tool := NewUpdateFileTool()
	ctx := context.Background()

	res, _ := tool.Execute(ctx, rawArgs(t, map[string]interface{}{"path": path, "old_string": ":= 1", "new_string": ":= 2"}))
	require.False(t, res.Success())
	assert.Contains(t, res.Error.Error(), "occurs 2 times")

	res, _ = tool.Execute(ctx, rawArgs(t, map[string]interface{}{"path": path, "old_string": "missing", "new_string": "x"}))
	require.False(t, res.Success())
	assert.Contains(t, res.Error.Error(), "not found")

	res, _ = tool.Execute(ctx, rawArgs(t, map[string]interface{}{"path": path, "old_string": "a := 1", "new_string": "a := 3"}))
	require.True(t, res.Success(), "%v", res.Error)
	assert.Contains(t, res.Output, "Replaced 1 occurrence(s)")
	assert.Contains(t, res.Output, "--- "+path)

	res, _ = tool.Execute(ctx, rawArgs(t, map[string]interface{}{"path": path, "old_string": "b", "new_string": "c", "replace_all": true}))
	require.True(t, res.Success())

	got, _ := os.ReadFile(path)
	assert.Equal(t, "a := 3\nc := 1\n", string(got))

	assert.Error(t, tool.Validate(rawArgs(t, map[string]interface{}{"path": path, "old_string": "same", "new_string": "same"})))
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "")
	writeFile(t, filepath.Join(dir, "a", "inner.txt"), "")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "")

	tool := NewListDirTool()

	res, _ := tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": dir}))
	require.True(t, res.Success(), "%v", res.Error)
	assert.Equal(t, "a/\nb.txt", res.Output)

	res, _ = tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": dir, "depth": 2}))
	assert.Equal(t, "a/\n  inner.txt\nb.txt", res.Output)

	res, _ = tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": filepath.Join(dir, "b.txt")}))
	assert.Contains(t, res.Error.Error(), "not a directory")

	assert.Error(t, tool.Validate(rawArgs(t, map[string]interface{}{"path": dir, "depth": MaxListDepth + 1})))
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "")
	writeFile(t, filepath.Join(dir, "pkg", "util.go"), "")
	writeFile(t, filepath.Join(dir, "pkg", "README.md"), "")
	writeFile(t, filepath.Join(dir, ".hidden", "skip.go"), "")

	tool := NewGlobTool(dir)

	res, _ := tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"pattern": "**/*.go"}))
	require.True(t, res.Success(), "%v", res.Error)
	assert.Equal(t, filepath.Join(dir, "main.go")+"\n"+filepath.Join(dir, "pkg", "util.go"), res.Output)

	res, _ = tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"pattern": "**/*", "limit": 1}))
	assert.Contains(t, res.Output, "(Showing 1 of 3 files)")

	res, _ = tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"pattern": "*.rs"}))
	assert.Contains(t, res.Output, "No files matched")

	assert.Error(t, tool.Validate(rawArgs(t, map[string]interface{}{"pattern": "[unclosed"})))
}

func TestGrepFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package a\nfunc Hello() {}\n")
	writeFile(t, filepath.Join(dir, "b.txt"), "hello world\n")
	writeFile(t, filepath.Join(dir, "c.bin"), "hello\x00")

	tool := &GrepTool{workDir: dir}

	res, _ := tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"pattern": "hello", "case_insensitive": true}))
	require.True(t, res.Success(), "%v", res.Error)
	assert.Equal(t,
		filepath.Join(dir, "a.go")+":2:func Hello() {}\n"+filepath.Join(dir, "b.txt")+":1:hello world",
		res.Output)

	res, _ = tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"pattern": "hello", "glob": "*.go", "case_insensitive": true}))
	assert.Equal(t, filepath.Join(dir, "a.go")+":2:func Hello() {}", res.Output)

	res, _ = tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"pattern": "nothing-here"}))
	assert.Contains(t, res.Output, "No matches")

	assert.ErrorContains(t, tool.Validate(rawArgs(t, map[string]interface{}{"pattern": "("})), "invalid regular expression")
}

func TestBash(t *testing.T) {
	dir := t.TempDir()
	tool := NewBashTool(dir, 0)
	ctx := context.Background()

	res, _ := tool.Execute(ctx, rawArgs(t, map[string]interface{}{"command": "pwd"}))
	require.True(t, res.Success(), "%v", res.Error)
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, []string{dir, resolved}, strings.TrimSpace(res.Output))

	res, _ = tool.Execute(ctx, rawArgs(t, map[string]interface{}{"command": "true"}))
	assert.Equal(t, "(no output)", res.Output)

	res, _ = tool.Execute(ctx, rawArgs(t, map[string]interface{}{"command": "echo oops; exit 3"}))
	require.False(t, res.Success())
	assert.Contains(t, res.Error.Error(), "exit code 3")
	assert.Contains(t, res.Error.Error(), "oops")

	res, _ = tool.Execute(ctx, rawArgs(t, map[string]interface{}{"command": "sleep 5", "timeout_secs": 1}))
	require.False(t, res.Success())
	assert.Contains(t, res.Error.Error(), "timed out after 1 seconds")

	assert.Error(t, tool.Validate(rawArgs(t, map[string]interface{}{"command": "   "})))
}
