// Package workspace confines the files written on behalf of browser
// sessions (screenshots, PDFs) to an output directory. Relative paths are
// resolved against the directory and paths escaping it are rejected.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideWorkspace is returned for paths that resolve outside the
// workspace and every whitelisted directory.
var ErrOutsideWorkspace = errors.New("path is outside the output directory")

// Guard enforces the output directory boundary on file paths.
type Guard struct {
	workspaceDir    string   // absolute, symlink-free output directory
	whitelistedDirs []string // additional allowed directories
}

// NewGuard creates a guard rooted at dir. The directory is created when it
// does not exist yet.
func NewGuard(dir string) (*Guard, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}

	absPath, err := filepath.Abs(expandHome(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate output directory symlinks: %w", err)
	}

	return &Guard{workspaceDir: evalPath}, nil
}

// Resolve turns path into an absolute path inside the workspace. Relative
// paths are joined to the workspace directory and ~/ is expanded.
func (g *Guard) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(expandHome(path))
	if !filepath.IsAbs(cleanPath) {
		cleanPath = filepath.Join(g.workspaceDir, cleanPath)
	}

	resolved := resolveSymlinks(cleanPath)
	if !g.IsWithinWorkspace(resolved) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, path)
	}
	return resolved, nil
}

// IsWithinWorkspace reports whether absPath is the workspace, a child of
// it, or inside a whitelisted directory.
func (g *Guard) IsWithinWorkspace(absPath string) bool {
	evalPath := resolveSymlinks(absPath)
	if within(evalPath, g.workspaceDir) {
		return true
	}
	for _, dir := range g.whitelistedDirs {
		if within(evalPath, dir) {
			return true
		}
	}
	return false
}

// AddWhitelist allows writes below dir even though it is outside the
// workspace.
func (g *Guard) AddWhitelist(dir string) error {
	if dir == "" {
		return fmt.Errorf("whitelist directory cannot be empty")
	}
	absPath, err := filepath.Abs(expandHome(dir))
	if err != nil {
		return fmt.Errorf("failed to resolve whitelist directory: %w", err)
	}

	evalPath := resolveSymlinks(absPath)
	for _, existing := range g.whitelistedDirs {
		if existing == evalPath {
			return nil
		}
	}
	g.whitelistedDirs = append(g.whitelistedDirs, evalPath)
	return nil
}

// Whitelist returns a copy of the whitelisted directories.
func (g *Guard) Whitelist() []string {
	return append([]string(nil), g.whitelistedDirs...)
}

// Dir returns the absolute workspace directory.
func (g *Guard) Dir() string {
	return g.workspaceDir
}

func within(path, dir string) bool {
	sep := string(filepath.Separator)
	return path == dir || strings.HasPrefix(path+sep, dir+sep)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// resolveSymlinks evaluates symlinks in path. For paths that do not exist
// yet the deepest existing ancestor is evaluated and the missing components
// are joined back on.
func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	var components []string
	current := path
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			for i := len(components) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, components[i])
			}
			return resolved
		}

		dir := filepath.Dir(current)
		if dir == current || dir == "." || dir == "/" {
			return filepath.Clean(path)
		}
		components = append(components, filepath.Base(current))
		current = dir
	}
}
