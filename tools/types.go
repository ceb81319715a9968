package tools

// ToolType classifies a tool for permission purposes.
type ToolType string

const (
	TypeReadFile   ToolType = "read_file"
	TypeWriteFile  ToolType = "write_file"
	TypeUpdateFile ToolType = "update_file"
	TypeListDir    ToolType = "list_dir"
	TypeGlob       ToolType = "glob"
	TypeGrep       ToolType = "grep"
	TypeBash       ToolType = "bash"
	TypeFetch      ToolType = "fetch"
	TypeCustom     ToolType = "custom"
)

// IsReadOnly reports whether tools of this type never modify the host.
func (t ToolType) IsReadOnly() bool {
	switch t {
	case TypeReadFile, TypeListDir, TypeGlob, TypeGrep:
		return true
	default:
		return false
	}
}

func (t ToolType) String() string {
	if t == "" {
		return string(TypeCustom)
	}
	return string(t)
}
