package permission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatches(t *testing.T) {
	tests := []struct {
		pattern Pattern
		target  string
		want    bool
	}{
		{Exact("test.txt"), "test.txt", true},
		{Exact("test.txt"), "other.txt", false},
		{Glob("*.txt"), "test.txt", true},
		{Glob("*.txt"), "test.rs", false},
		{Glob("src/**/*.rs"), "src/main.rs", true},
		{Glob("src/**/*.rs"), "src/core/mod.rs", true},
		{Glob("src/**/*.rs"), "src/main.txt", false},
		{Regex(`^test_\w+\.rs$`), "test_core.rs", true},
		{Regex(`^test_\w+\.rs$`), "main.rs", false},
		{Pattern{Kind: "Glob", Value: "*.md"}, "README.md", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern.String()+"/"+tt.target, func(t *testing.T) {
			got, err := tt.pattern.Matches(tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Regex("(").Matches("x")
	assert.Error(t, err)
	_, err = Pattern{Kind: "fuzzy", Value: "x"}.Matches("x")
	assert.Error(t, err)
}

func TestConfigLoadSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".smith", "permissions.json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.AllowedCommands)

	cfg.AllowedCommands = append(cfg.AllowedCommands, Glob("go test *"))
	cfg.CustomPermissions["deploy"] = []Pattern{Exact("staging")}
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []Pattern{Glob("go test *")}, loaded.AllowedCommands)
	assert.Equal(t, []Pattern{Exact("staging")}, loaded.CustomPermissions["deploy"])
}

func TestConfigLoadAcceptsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  // trusted commands
  "allowed_commands": [
    {"type": "exact", "pattern": "make"},
  ],
}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []Pattern{Exact("make")}, cfg.AllowedCommands)
}

func TestConfigIsAllowed(t *testing.T) {
	cfg := NewConfig()
	cfg.AllowedWritePaths = []Pattern{Glob("/work/**/*.go")}
	cfg.CustomPermissions["deploy"] = []Pattern{Exact(`{"env":"staging"}`)}

	ok, _ := cfg.IsAllowed(Request{Type: TypeFileRead, Target: "/anything"})
	assert.True(t, ok)

	ok, _ = cfg.IsAllowed(Request{Type: TypeFileWrite, Target: "/work/pkg/a.go"})
	assert.True(t, ok)

	ok, _ = cfg.IsAllowed(Request{Type: TypeFileWrite, Target: "/work/pkg/a.txt"})
	assert.False(t, ok)

	ok, _ = cfg.IsAllowed(Request{Type: TypeCommandExecute, Target: "rm -rf /"})
	assert.False(t, ok)

	ok, _ = cfg.IsAllowed(Request{ToolName: "deploy", Type: TypeSystemModification, Target: `{"env":"staging"}`})
	assert.True(t, ok)
}

func TestConfigIsAllowedChecksRedirects(t *testing.T) {
	cfg := NewConfig()
	cfg.AllowedCommands = []Pattern{Glob("echo *")}
	echo := []BashCommand{{Name: "echo", Args: []string{"hi"}}}

	ok, err := cfg.IsAllowed(Request{Type: TypeCommandExecute, Target: "echo hi", Commands: echo})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cfg.IsAllowed(Request{Type: TypeCommandExecute, Target: "echo hi > /etc/motd", Commands: echo, Writes: []string{"/etc/motd"}})
	require.NoError(t, err)
	assert.False(t, ok)

	cfg.AllowedWritePaths = []Pattern{Glob("/etc/motd")}
	ok, err = cfg.IsAllowed(Request{Type: TypeCommandExecute, Target: "echo hi > /etc/motd", Commands: echo, Writes: []string{"/etc/motd"}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cfg.IsAllowed(Request{Type: TypeCommandExecute, Target: "echo 'unterminated > x"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecurityValidator(t *testing.T) {
	work := t.TempDir()
	v, err := NewSecurityValidator(work)
	require.NoError(t, err)

	assert.NoError(t, v.ValidateWrite(filepath.Join(work, "new", "file.txt")))
	assert.NoError(t, v.ValidateWrite("relative.txt"))
	assert.ErrorContains(t, v.ValidateWrite("/etc/passwd"), "outside working directory")
	assert.ErrorContains(t, v.ValidateWrite(filepath.Join(work, "..", "escape.txt")), "outside working directory")
	assert.ErrorContains(t, v.ValidateDelete(work), "cannot delete working directory")

	v.AllowOutsideWorkDir(true)
	assert.ErrorContains(t, v.ValidateWrite("/etc/passwd"), "system directory")
	assert.NoError(t, v.ValidateWrite(filepath.Join(filepath.Dir(work), "sibling.txt")))
}

func TestSecurityValidatorFollowsSymlinks(t *testing.T) {
	work := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(work, "link")))

	v, err := NewSecurityValidator(work)
	require.NoError(t, err)

	assert.ErrorContains(t, v.ValidateWrite(filepath.Join(work, "link", "x.txt")), "outside working directory")
}

func TestIsSystemPath(t *testing.T) {
	assert.True(t, isSystemPath("/etc"))
	assert.True(t, isSystemPath("/bin/ls"))
	assert.True(t, isSystemPath("/"))
	assert.False(t, isSystemPath("/binaries/x"))
	assert.False(t, isSystemPath("/home/user"))
}
