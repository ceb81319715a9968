package permission

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// BashCommand is one simple command found in a shell line.
type BashCommand struct {
	Name       string
	Args       []string
	Subcommand string // first non-flag argument, e.g. "commit" in "git commit"
}

func (c BashCommand) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// ParseBashCommand splits a shell line into its simple commands, including
// those inside pipelines, lists, subshells and substitutions.
func ParseBashCommand(command string) ([]BashCommand, error) {
	file, err := parseBash(command)
	if err != nil {
		return nil, err
	}

	var commands []BashCommand
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			if cmd := extractCommand(call); cmd != nil {
				commands = append(commands, *cmd)
			}
		}
		return true
	})

	return commands, nil
}

// BashWriteTargets returns the files a shell line writes through output
// redirections, in source order. A leading ~/ is expanded; /dev/null and
// the standard streams are left out. Targets built from expansions keep
// their $ or glob characters and never match a path pattern.
func BashWriteTargets(command string) ([]string, error) {
	file, err := parseBash(command)
	if err != nil {
		return nil, err
	}

	var targets []string
	syntax.Walk(file, func(node syntax.Node) bool {
		r, ok := node.(*syntax.Redirect)
		if !ok || r.Word == nil {
			return true
		}
		target := wordToString(r.Word)
		switch r.Op {
		case syntax.RdrOut, syntax.AppOut, syntax.ClbOut, syntax.RdrAll, syntax.AppAll, syntax.RdrInOut:
		case syntax.DplOut:
			// >&2 duplicates a descriptor, >&file writes one.
			if isDescriptor(target) {
				return true
			}
		default:
			return true
		}
		if target = expandHome(target); !harmlessTarget(target) {
			targets = append(targets, target)
		}
		return true
	})
	return targets, nil
}

func parseBash(command string) (*syntax.File, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	return file, nil
}

func isDescriptor(s string) bool {
	if s == "-" {
		return true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func harmlessTarget(path string) bool {
	switch path {
	case "/dev/null", "/dev/stdout", "/dev/stderr":
		return true
	}
	return false
}

// dynamicTarget reports whether a redirection target is only known once
// the shell expands it.
func dynamicTarget(path string) bool {
	return path == "" || strings.ContainsAny(path, "$~*?[")
}

func extractCommand(call *syntax.CallExpr) *BashCommand {
	if len(call.Args) == 0 {
		return nil
	}

	cmd := &BashCommand{Name: wordToString(call.Args[0])}
	if cmd.Name == "" {
		return nil
	}

	for _, arg := range call.Args[1:] {
		s := wordToString(arg)
		cmd.Args = append(cmd.Args, s)
		if cmd.Subcommand == "" && !strings.HasPrefix(s, "-") {
			cmd.Subcommand = s
		}
	}
	return cmd
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				switch q := qp.(type) {
				case *syntax.Lit:
					sb.WriteString(q.Value)
				case *syntax.ParamExp:
					sb.WriteString("$" + q.Param.Value)
				case *syntax.CmdSubst:
					sb.WriteString("$()")
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

var fileModifyingCommands = map[string]bool{
	"rm":    true,
	"rmdir": true,
	"mv":    true,
	"cp":    true,
	"mkdir": true,
	"touch": true,
	"chmod": true,
	"chown": true,
	"dd":    true,
	"ln":    true,
	"tee":   true,
}

// describeCommands renders the parsed commands for an approval prompt and
// names any that modify files.
func describeCommands(commands []BashCommand) string {
	var b strings.Builder
	b.WriteString("Commands:")
	modifying := map[string]bool{}
	for _, c := range commands {
		b.WriteString("\n  - ")
		b.WriteString(c.String())
		if fileModifyingCommands[c.Name] {
			modifying[c.Name] = true
		}
	}
	if len(modifying) > 0 {
		names := make([]string, 0, len(modifying))
		for n := range modifying {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "\nModifies files: %s", strings.Join(names, ", "))
	}
	return b.String()
}
