package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/smith/llm"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		SystemPrompt: "You are a careful engineer.",
		Messages: []llm.Message{
			llm.UserMessage("list the files"),
			{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
				llm.NewTextBlock("Looking."),
				llm.NewToolUseBlock("call_1", "list_dir", []byte(`{"path":"/w"}`)),
			}},
			llm.ToolResultMessage("call_1", "a.go\nb.go", false),
			llm.AssistantMessage("Two Go files."),
		},
	}
}

func backends(t *testing.T) map[string]ConversationStorage {
	t.Helper()
	mem, err := NewSqliteInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	file, err := OpenSqlite(filepath.Join(t.TempDir(), "nested", "smith.db"))
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	return map[string]ConversationStorage{
		"memory":        NewInMemoryStorage(),
		"sqlite-memory": mem,
		"sqlite-file":   file,
	}
}

func TestSaveAndLoad(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := sampleSnapshot()

			require.NoError(t, store.Save(ctx, "s1", want))

			got, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, want.SystemPrompt, got.SystemPrompt)
			require.Len(t, got.Messages, 4)
			assert.Equal(t, llm.RoleAssistant, got.Messages[1].Role)
			assert.Equal(t, "Looking.", got.Messages[1].Text())
			require.Len(t, got.Messages[1].ToolUses(), 1)
			assert.JSONEq(t, `{"path":"/w"}`, string(got.Messages[1].ToolUses()[0].Input))
			assert.Equal(t, "call_1", got.Messages[2].ToolResults()[0].ToolUseID)
		})
	}
}

func TestSaveReplaces(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, "s1", sampleSnapshot()))
			require.NoError(t, store.Save(ctx, "s1", Snapshot{Messages: []llm.Message{llm.UserMessage("hi")}}))

			got, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, got.SystemPrompt)
			assert.Len(t, got.Messages, 1)
		})
	}
}

func TestLoadMissingSession(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.Load(context.Background(), "nonexistent")
			require.NoError(t, err)
			assert.True(t, got.Empty())
			assert.NotNil(t, got.Messages)
		})
	}
}

func TestDeleteAndList(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, "a", sampleSnapshot()))
			require.NoError(t, store.Save(ctx, "b", Snapshot{}))

			ids, err := store.ListSessions(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"a", "b"}, ids)

			infos, err := store.Sessions(ctx)
			require.NoError(t, err)
			counts := map[string]int{}
			for _, info := range infos {
				counts[info.ID] = info.MessageCount
			}
			assert.Equal(t, map[string]int{"a": 4, "b": 0}, counts)

			require.NoError(t, store.Delete(ctx, "a"))
			exists, err := store.Exists(ctx, "a")
			require.NoError(t, err)
			assert.False(t, exists)

			got, err := store.Load(ctx, "a")
			require.NoError(t, err)
			assert.True(t, got.Empty())
		})
	}
}

func TestInMemoryStorageIsolatesCallers(t *testing.T) {
	store := NewInMemoryStorage()
	ctx := context.Background()
	snap := sampleSnapshot()
	require.NoError(t, store.Save(ctx, "s", snap))

	snap.Messages[0].Content[0].Text = "mutated"

	got, _ := store.Load(ctx, "s")
	assert.Equal(t, "list the files", got.Messages[0].Text())
}

func TestNewSessionID(t *testing.T) {
	assert.NotEqual(t, NewSessionID(), NewSessionID())
	assert.Len(t, NewSessionID(), 36)
}
