package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValidateArgs checks args against the tool's declared parameters: the
// arguments must be a JSON object, required parameters must be present and
// non-null, and values must match their primitive type.
func ValidateArgs(meta ToolMetadata, args json.RawMessage) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &InvalidInputError{Tool: meta.Name, Reason: "arguments must be a JSON object"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return &InvalidInputError{Tool: meta.Name, Reason: fmt.Sprintf("arguments must be a JSON object: %v", err)}
	}

	var missing []string
	for _, p := range meta.Parameters {
		raw, ok := fields[p.Name]
		if !ok || isNull(raw) {
			if p.Required {
				missing = append(missing, p.Name)
			}
			continue
		}
		if err := checkType(p.ParamType, raw); err != nil {
			return &InvalidInputError{Tool: meta.Name, Reason: fmt.Sprintf("parameter %q: %v", p.Name, err)}
		}
	}
	if len(missing) > 0 {
		return &InvalidInputError{
			Tool:   meta.Name,
			Reason: fmt.Sprintf("missing required parameter(s): %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func checkType(paramType string, raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("empty value")
	}

	switch paramType {
	case "string":
		if raw[0] != '"' {
			return fmt.Errorf("expected string")
		}
	case "boolean":
		if !bytes.Equal(raw, []byte("true")) && !bytes.Equal(raw, []byte("false")) {
			return fmt.Errorf("expected boolean")
		}
	case "number":
		// json.Number also decodes quoted strings.
		var n json.Number
		if raw[0] == '"' || json.Unmarshal(raw, &n) != nil {
			return fmt.Errorf("expected number")
		}
	case "integer":
		var n json.Number
		if raw[0] == '"' || json.Unmarshal(raw, &n) != nil {
			return fmt.Errorf("expected integer")
		}
		if _, err := n.Int64(); err != nil {
			return fmt.Errorf("expected integer, got %s", n)
		}
	case "array":
		if raw[0] != '[' {
			return fmt.Errorf("expected array")
		}
	case "object":
		if raw[0] != '{' {
			return fmt.Errorf("expected object")
		}
	}
	return nil
}
