package permission

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/smith/tools"
)

func TestParseBashCommand(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"ls -la", []string{"ls -la"}},
		{"git commit -m 'fix bug'", []string{"git commit -m fix bug"}},
		{"cat a.txt | grep foo && rm b.txt", []string{"cat a.txt", "grep foo", "rm b.txt"}},
		{`echo "$HOME"`, []string{"echo $HOME"}},
		{"echo $(whoami)", []string{"echo $()", "whoami"}},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmds, err := ParseBashCommand(tt.command)
			require.NoError(t, err)
			var got []string
			for _, c := range cmds {
				got = append(got, c.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}

	cmds, err := ParseBashCommand("git -C repo push origin")
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "repo", cmds[0].Subcommand)

	_, err = ParseBashCommand("echo 'unterminated")
	assert.Error(t, err)
}

func TestBashWriteTargets(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		command string
		want    []string
	}{
		{"ls -la", nil},
		{"echo hi > out.txt", []string{"out.txt"}},
		{"echo x >> /etc/passwd", []string{"/etc/passwd"}},
		{"echo hi > ~/.bashrc", []string{filepath.Join(home, ".bashrc")}},
		{"make &> build.log", []string{"build.log"}},
		{"date >| stamp", []string{"stamp"}},
		{"go test ./... 2>&1 | tee log", nil},
		{"grep foo a.txt 2>/dev/null", nil},
		{"echo a > one; (echo b >> two)", []string{"one", "two"}},
		{`echo x > "$HOME/.profile"`, []string{"$HOME/.profile"}},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got, err := BashWriteTargets(tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestForBash(t *testing.T) {
	meta := tools.NewBashTool("/w", 0).Metadata()

	req := RequestFor(meta, json.RawMessage(`{"command":"rm -rf build && go test ./..."}`))

	assert.Equal(t, TypeCommandExecute, req.Type)
	assert.Equal(t, "rm -rf build && go test ./...", req.Target)
	assert.Len(t, req.Commands, 2)
	assert.Contains(t, req.Description, "  - rm -rf build")
	assert.Contains(t, req.Description, "Modifies files: rm")
	assert.False(t, req.ReadOnly)
}

func TestTypeForTool(t *testing.T) {
	assert.Equal(t, TypeFileRead, TypeForTool(tools.TypeGrep))
	assert.Equal(t, TypeFileWrite, TypeForTool(tools.TypeUpdateFile))
	assert.Equal(t, TypeCommandExecute, TypeForTool(tools.TypeBash))
	assert.Equal(t, TypeSystemModification, TypeForTool(tools.TypeCustom))
	assert.Equal(t, "execute command", TypeCommandExecute.String())
}

func TestRequestForFetch(t *testing.T) {
	meta := tools.NewFetchTool(0).Metadata()

	req := RequestFor(meta, json.RawMessage(`{"url":"https://api.example.com/v1/items?q=1","method":"post"}`))
	assert.Equal(t, TypeNetworkAccess, req.Type)
	assert.Equal(t, "api.example.com", req.Target)
	assert.Equal(t, "POST https://api.example.com/v1/items?q=1", req.Description)
	assert.False(t, req.ReadOnly)

	cfg := NewConfig()
	cfg.AllowedNetworkHosts = []Pattern{Glob("*.example.com")}
	ok, err := cfg.IsAllowed(req)
	require.NoError(t, err)
	assert.True(t, ok)

	other := RequestFor(meta, json.RawMessage(`{"url":"https://evil.test/"}`))
	ok, err = cfg.IsAllowed(other)
	require.NoError(t, err)
	assert.False(t, ok)
}
