package permission

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/jsonc"
)

// DefaultConfigFile is the project-local permissions file.
const DefaultConfigFile = ".smith/permissions.json"

// PatternKind selects how a Pattern matches.
type PatternKind string

const (
	PatternExact PatternKind = "exact"
	PatternGlob  PatternKind = "glob"
	PatternRegex PatternKind = "regex"
)

// Pattern matches an operation target. Glob patterns use doublestar
// syntax, so ** crosses path separators.
type Pattern struct {
	Kind  PatternKind `json:"type"`
	Value string      `json:"pattern"`
}

// Exact, Glob and Regex build patterns.
func Exact(v string) Pattern { return Pattern{Kind: PatternExact, Value: v} }
func Glob(v string) Pattern  { return Pattern{Kind: PatternGlob, Value: v} }
func Regex(v string) Pattern { return Pattern{Kind: PatternRegex, Value: v} }

func (p Pattern) String() string {
	if p.kind() == PatternRegex {
		return "/" + p.Value + "/"
	}
	return p.Value
}

func (p Pattern) kind() PatternKind {
	return PatternKind(strings.ToLower(string(p.Kind)))
}

// Matches reports whether target matches the pattern.
func (p Pattern) Matches(target string) (bool, error) {
	switch p.kind() {
	case PatternExact, "":
		return target == p.Value, nil
	case PatternGlob:
		ok, err := doublestar.Match(p.Value, target)
		if err != nil {
			return false, fmt.Errorf("invalid glob pattern %q: %w", p.Value, err)
		}
		return ok, nil
	case PatternRegex:
		re, err := regexp.Compile(p.Value)
		if err != nil {
			return false, fmt.Errorf("invalid regex pattern %q: %w", p.Value, err)
		}
		return re.MatchString(target), nil
	default:
		return false, fmt.Errorf("unknown pattern type %q", p.Kind)
	}
}

// Config lists operations that are allowed without asking.
type Config struct {
	AllowedCommands     []Pattern            `json:"allowed_commands"`
	AllowedWritePaths   []Pattern            `json:"allowed_write_paths"`
	AllowedDeletePaths  []Pattern            `json:"allowed_delete_paths"`
	AllowedNetworkHosts []Pattern            `json:"allowed_network_hosts"`
	CustomPermissions   map[string][]Pattern `json:"custom_permissions"`
	CreatedAt           time.Time            `json:"created_at"`
	LastUpdated         time.Time            `json:"last_updated"`
}

// NewConfig returns an empty config.
func NewConfig() *Config {
	now := time.Now().UTC()
	return &Config{
		CustomPermissions: map[string][]Pattern{},
		CreatedAt:         now,
		LastUpdated:       now,
	}
}

// LoadConfig reads a config file. Comments and trailing commas are
// accepted. A missing file yields an empty config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read permissions file: %w", err)
	}

	cfg := NewConfig()
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, fmt.Errorf("parse permissions file %s: %w", path, err)
	}
	if cfg.CustomPermissions == nil {
		cfg.CustomPermissions = map[string][]Pattern{}
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	c.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write permissions file: %w", err)
	}
	return nil
}

// IsAllowed reports whether req is allowed by the configured patterns.
// A shell request is allowed only when every parsed sub-command matches
// and every redirection target matches the allowed write paths.
func (c *Config) IsAllowed(req Request) (bool, error) {
	switch req.Type {
	case TypeFileRead:
		return true, nil
	case TypeFileWrite:
		return matchesAny(req.Target, c.AllowedWritePaths)
	case TypeFileDelete:
		return matchesAny(req.Target, c.AllowedDeletePaths)
	case TypeNetworkAccess:
		return matchesAny(req.Target, c.AllowedNetworkHosts)
	case TypeCommandExecute:
		if len(c.AllowedCommands) == 0 {
			return false, nil
		}
		if len(req.Commands) == 0 {
			if strings.ContainsAny(req.Target, "<>") {
				return false, nil
			}
			return matchesAny(req.Target, c.AllowedCommands)
		}
		for _, cmd := range req.Commands {
			ok, err := matchesAny(cmd.String(), c.AllowedCommands)
			if err != nil || !ok {
				return false, err
			}
		}
		for _, target := range req.Writes {
			if dynamicTarget(target) {
				return false, nil
			}
			ok, err := matchesAny(target, c.AllowedWritePaths)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	default:
		return matchesAny(req.Target, c.CustomPermissions[req.ToolName])
	}
}

func matchesAny(target string, patterns []Pattern) (bool, error) {
	for _, p := range patterns {
		ok, err := p.Matches(target)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
