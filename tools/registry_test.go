package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLastRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	first := &stubTool{name: "dup", execute: func(context.Context, json.RawMessage) (ToolResult, error) { return SuccessResult("first"), nil }}
	second := &stubTool{name: "dup", execute: func(context.Context, json.RawMessage) (ToolResult, error) { return SuccessResult("second"), nil }}

	reg.Register(first)
	reg.Register(second)

	assert.Equal(t, 1, reg.Len())
	got, ok := reg.Get("dup")
	require.True(t, ok)
	res, _ := got.Execute(context.Background(), nil)
	assert.Equal(t, "second", res.Output)
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool())

	_, err := reg.Lookup("missing")
	var nf *ToolNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"echo"}, nf.Available)

	tool, err := reg.Lookup("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", tool.Metadata().Name)

	assert.True(t, reg.Unregister("echo"))
	assert.False(t, reg.Has("echo"))
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	reg := WithDefaults(t.TempDir())

	defs := reg.Definitions()
	require.Len(t, defs, 7)
	for i := 1; i < len(defs); i++ {
		assert.Less(t, defs[i-1].Name, defs[i].Name)
	}

	for _, d := range defs {
		assert.Equal(t, "object", d.Parameters["type"])
		assert.IsType(t, []string{}, d.Parameters["required"])
	}
}

func TestDefaultToolsReadOnlyFlags(t *testing.T) {
	reg := WithDefaults(t.TempDir())

	for _, meta := range reg.List() {
		assert.Equal(t, meta.Kind.IsReadOnly(), meta.ReadOnly, meta.Name)
	}
	assert.ElementsMatch(t,
		[]string{"bash", "glob", "grep", "list_dir", "read_file", "update_file", "write_file"},
		reg.Names())
}

func TestSchemaFromParameters(t *testing.T) {
	meta := ToolMetadata{Parameters: []ToolParameter{
		{Name: "path", ParamType: "string", Required: true},
		{Name: "tags", ParamType: "array"},
	}}

	schema := meta.Schema()
	props := schema["properties"].(map[string]interface{})
	assert.Equal(t, []string{"path"}, schema["required"])
	assert.Equal(t, map[string]interface{}{"type": "string"}, props["tags"].(map[string]interface{})["items"])
}

func TestValidateArgsIntegers(t *testing.T) {
	meta := ToolMetadata{Name: "t", Parameters: []ToolParameter{{Name: "n", ParamType: "integer"}}}

	assert.NoError(t, ValidateArgs(meta, json.RawMessage(`{"n": 3}`)))
	assert.Error(t, ValidateArgs(meta, json.RawMessage(`{"n": 3.5}`)))
	assert.Error(t, ValidateArgs(meta, json.RawMessage(`{"n": "3"}`)))
	assert.Error(t, ValidateArgs(meta, json.RawMessage(`[]`)))
}

func TestValidateArgsNumbers(t *testing.T) {
	meta := ToolMetadata{Name: "t", Parameters: []ToolParameter{{Name: "x", ParamType: "number"}}}

	assert.NoError(t, ValidateArgs(meta, json.RawMessage(`{"x": 2.5}`)))
	assert.NoError(t, ValidateArgs(meta, json.RawMessage(`{"x": -1e3}`)))
	assert.Error(t, ValidateArgs(meta, json.RawMessage(`{"x": "2.5"}`)))
	assert.Error(t, ValidateArgs(meta, json.RawMessage(`{"x": true}`)))
}

func TestSuggest(t *testing.T) {
	c := HintContext{WorkingDir: "/work", Timeout: 120}

	assert.Contains(t, Suggest(c, "No Such File or directory"), "Use list_dir to explore the directory")
	assert.Contains(t, Suggest(c, "operation timed out"), "The operation exceeded the timeout limit (120s)")
	assert.Contains(t, Suggest(c, "path must be absolute"), "Current working directory: /work")
	assert.Nil(t, Suggest(c, "something completely unknown"))
}
