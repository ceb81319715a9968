package permission

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var systemDirs = []string{
	"/bin",
	"/sbin",
	"/usr/bin",
	"/usr/sbin",
	"/etc",
	"/sys",
	"/proc",
	"/dev",
	"/boot",
}

// SecurityValidator rejects writes and deletes outside the working
// directory or under system directories, before any prompt.
type SecurityValidator struct {
	workDir      string
	allowOutside bool
}

// NewSecurityValidator creates a validator rooted at workDir.
func NewSecurityValidator(workDir string) (*SecurityValidator, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &SecurityValidator{workDir: abs}, nil
}

// AllowOutsideWorkDir lifts the working-directory containment check.
// System directories stay protected.
func (v *SecurityValidator) AllowOutsideWorkDir(allow bool) {
	v.allowOutside = allow
}

// ValidateWrite checks a write target.
func (v *SecurityValidator) ValidateWrite(path string) error {
	abs := v.resolve(path)
	if !v.allowOutside && !within(abs, v.workDir) {
		return fmt.Errorf("write access denied: path '%s' is outside working directory '%s'", abs, v.workDir)
	}
	if isSystemPath(abs) {
		return fmt.Errorf("write access denied: '%s' is a system directory", abs)
	}
	return nil
}

// ValidateDelete checks a delete target. The working directory itself
// cannot be deleted.
func (v *SecurityValidator) ValidateDelete(path string) error {
	abs := v.resolve(path)
	if !v.allowOutside && !within(abs, v.workDir) {
		return fmt.Errorf("delete access denied: path '%s' is outside working directory '%s'", abs, v.workDir)
	}
	if abs == v.workDir {
		return fmt.Errorf("delete access denied: cannot delete working directory")
	}
	if isSystemPath(abs) {
		return fmt.Errorf("delete access denied: '%s' is a system directory", abs)
	}
	return nil
}

// resolve makes path absolute and resolves symlinks on the longest
// existing prefix, so a link inside the working directory cannot point
// a write outside it.
func (v *SecurityValidator) resolve(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.workDir, path)
	}
	path = filepath.Clean(path)

	var rest []string
	dir := path
	for {
		if _, err := os.Lstat(dir); err == nil {
			if resolved, err := filepath.EvalSymlinks(dir); err == nil {
				dir = resolved
			}
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		rest = append([]string{filepath.Base(dir)}, rest...)
		dir = parent
	}
	return filepath.Join(append([]string{dir}, rest...)...)
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func isSystemPath(path string) bool {
	lower := strings.ToLower(filepath.Clean(path))
	if lower == "/" {
		return true
	}
	for _, d := range systemDirs {
		if lower == d || strings.HasPrefix(lower, d+"/") {
			return true
		}
	}
	return false
}
