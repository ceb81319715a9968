package tools

import (
	"fmt"
	"strings"
)

// HintContext supplies dynamic values for suggestions.
type HintContext struct {
	Tool          string
	WorkingDir    string
	Timeout       int
	MaxOutputSize int
}

type hintPattern struct {
	needles []string
	hints   func(HintContext) []string
}

func static(hints ...string) func(HintContext) []string {
	return func(HintContext) []string { return hints }
}

// Ordered; the first matching pattern wins.
var hintPatterns = []hintPattern{
	{[]string{"no such file", "not found"}, static(
		"Verify the file path is correct",
		"Check if the file exists in the expected location",
		"Use list_dir to explore the directory",
	)},
	{[]string{"permission denied", "access denied"}, static(
		"Check file/directory permissions",
		"Ensure you have the necessary access rights",
		"Try using sudo if appropriate (for bash commands)",
	)},
	{[]string{"not an absolute path", "must be absolute"}, func(c HintContext) []string {
		return []string{
			"Use an absolute path instead of a relative path",
			fmt.Sprintf("Current working directory: %s", c.WorkingDir),
		}
	}},
	{[]string{"timeout", "timed out"}, func(c HintContext) []string {
		return []string{
			fmt.Sprintf("The operation exceeded the timeout limit (%ds)", c.Timeout),
			"Try breaking the operation into smaller steps",
			"Consider if the operation is hanging or stuck",
		}
	}},
	{[]string{"file too large", "exceeds limit"}, func(c HintContext) []string {
		return []string{
			fmt.Sprintf("Maximum file size is %d bytes", c.MaxOutputSize),
			"Try reading the file in chunks or processing it differently",
		}
	}},
	{[]string{"command not found", "not recognized"}, static(
		"Check if the command is installed and in PATH",
		"Verify the command spelling",
		"Use which or whereis to locate the command",
	)},
	{[]string{"invalid path", "bad path"}, static(
		"Ensure path is absolute (starts with /)",
		"Check for invalid characters in path",
	)},
	{[]string{"binary file", "not valid utf-8"}, static(
		"Cannot read binary files as text",
		"Use appropriate binary analysis tools",
		"Try file command to identify file type",
	)},
	{[]string{"not a directory"}, static(
		"Path exists but is not a directory",
		"Use read_file for files, list_dir for directories",
	)},
	{[]string{"invalid pattern", "invalid glob", "glob"}, static(
		"Check glob pattern syntax",
		"Examples: *.go, **/*.txt, src/**/*.{js,ts}",
	)},
	{[]string{"regex", "invalid regular expression"}, static(
		"Check regex pattern syntax",
		`Escape special characters: . * + ? [ ] ( ) { } ^ $ | \`,
	)},
	{[]string{"parent directory"}, static(
		"Parent directory does not exist",
		"Use create_dirs: true to create parent directories",
		"Or create the directory first using bash mkdir -p",
	)},
}

// Suggest returns recovery hints for an error message, or nil when no
// pattern matches. Matching is case-insensitive.
func Suggest(c HintContext, message string) []string {
	lower := strings.ToLower(message)
	for _, p := range hintPatterns {
		for _, needle := range p.needles {
			if strings.Contains(lower, needle) {
				return p.hints(c)
			}
		}
	}
	return nil
}
