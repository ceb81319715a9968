package tools

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			body, _ := io.ReadAll(r.Body)
			w.Write([]byte(r.Method + " " + string(body)))
		case "/big":
			w.Write([]byte(strings.Repeat("x", MaxFetchBytes+10)))
		default:
			http.Error(w, "nothing here", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tool := NewFetchTool(0)
	ctx := context.Background()

	res, err := tool.Execute(ctx, rawArgs(t, map[string]any{"url": srv.URL + "/echo"}))
	require.NoError(t, err)
	require.True(t, res.Success(), res.Content())
	assert.Contains(t, res.Output, "Status: 200 OK")
	assert.Contains(t, res.Output, "GET ")

	res, err = tool.Execute(ctx, rawArgs(t, map[string]any{"url": srv.URL + "/echo", "method": "post", "body": "hi"}))
	require.NoError(t, err)
	assert.Contains(t, res.Output, "POST hi")

	res, err = tool.Execute(ctx, rawArgs(t, map[string]any{"url": srv.URL + "/missing"}))
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Contains(t, res.Error.Error(), "404")

	res, err = tool.Execute(ctx, rawArgs(t, map[string]any{"url": srv.URL + "/big"}))
	require.NoError(t, err)
	assert.Contains(t, res.Output, "[Response truncated")
}

func TestFetchTool_Validate(t *testing.T) {
	tool := NewFetchTool(0)

	tests := []struct {
		name string
		args map[string]any
		ok   bool
	}{
		{"https", map[string]any{"url": "https://example.com/x"}, true},
		{"no host", map[string]any{"url": "/relative"}, false},
		{"file scheme", map[string]any{"url": "file:///etc/passwd"}, false},
		{"put", map[string]any{"url": "https://example.com", "method": "PUT"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tool.Validate(rawArgs(t, tt.args))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	meta := tool.Metadata()
	assert.Equal(t, TypeFetch, meta.Kind)
	assert.False(t, meta.ReadOnly)
}
