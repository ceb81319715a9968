// Package tools provides tool management and registration.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Replacement semantics hidden behind Register
// - Model-facing definitions derived on demand

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/richinex/smith/internal/logging"
	"github.com/richinex/smith/llm"
)

// Registry manages available tools with dynamic registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. A tool with the same name is
// replaced; the last registration wins.
func (r *Registry) Register(tool Tool) {
	name := tool.Metadata().Name

	r.mu.Lock()
	_, replaced := r.tools[name]
	r.tools[name] = tool
	r.mu.Unlock()

	if replaced {
		logging.Debug().Str("tool", name).Msg("replaced registered tool")
	}
}

// Unregister removes a tool. It reports whether the tool was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.tools[name]
	delete(r.tools, name)
	return exists
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Lookup returns a tool by name or a *ToolNotFoundError.
func (r *Registry) Lookup(name string) (Tool, error) {
	if tool, ok := r.Get(name); ok {
		return tool, nil
	}
	return nil, &ToolNotFoundError{Name: name, Available: r.Names()}
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns metadata for all registered tools, sorted by name.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	metadata := make([]ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		metadata = append(metadata, tool.Metadata())
	}
	r.mu.RUnlock()

	sort.Slice(metadata, func(i, j int) bool { return metadata[i].Name < metadata[j].Name })
	return metadata
}

// Definitions returns the tool definitions advertised to the model,
// sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	metadata := r.List()
	defs := make([]llm.ToolDefinition, len(metadata))
	for i, m := range metadata {
		defs[i] = m.Definition()
	}
	return defs
}

// Description returns a formatted description of all tools for prompts
// and the CLI.
func (r *Registry) Description() string {
	var descriptions []string
	for _, meta := range r.List() {
		var params []string
		for _, p := range meta.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			params = append(params, fmt.Sprintf("  - %s (%s): %s [%s]",
				p.Name, p.ParamType, p.Description, required))
		}

		access := "read-write"
		if meta.ReadOnly {
			access = "read-only"
		}
		descriptions = append(descriptions, fmt.Sprintf(
			"Tool: %s (%s)\nDescription: %s\nParameters:\n%s",
			meta.Name, access, meta.Description, strings.Join(params, "\n")))
	}

	return strings.Join(descriptions, "\n\n")
}

// WithDefaults creates a registry with the built-in tools rooted at workDir.
func WithDefaults(workDir string) *Registry {
	registry := NewRegistry()

	for _, t := range []Tool{
		NewReadFileTool(),
		NewWriteFileTool(),
		NewUpdateFileTool(),
		NewListDirTool(),
		NewGlobTool(workDir),
		NewGrepTool(workDir),
		NewBashTool(workDir, DefaultTimeout),
	} {
		registry.Register(t)
	}

	return registry
}
