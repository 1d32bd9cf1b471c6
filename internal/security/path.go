// Package security confines document paths to the configured directories.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that escape every allowed directory
var ErrOutsideRoot = errors.New("path is outside the allowed directories")

// PathValidator resolves caller-supplied paths against a set of allowed
// directories. The first directory is the base for relative paths.
type PathValidator struct {
	roots []string
}

// NewPathValidator creates a validator for base plus any extra directories.
// Directories do not need to exist yet.
func NewPathValidator(base string, extra ...string) (*PathValidator, error) {
	if base == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	v := &PathValidator{}
	for _, dir := range append([]string{base}, extra...) {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve directory %s: %w", dir, err)
		}
		v.roots = append(v.roots, filepath.Clean(abs))
	}
	return v, nil
}

// Base returns the directory relative paths are resolved against
func (v *PathValidator) Base() string {
	return v.roots[0]
}

// Resolve returns the absolute, cleaned form of path after checking it
// stays within an allowed directory. Symlinks of existing paths are
// followed before the check.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.Base(), path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	abs = filepath.Clean(abs)

	if !v.within(abs) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil && !v.within(real) {
		return "", fmt.Errorf("%w: %s resolves to %s", ErrOutsideRoot, path, real)
	}
	return abs, nil
}

// ValidatePath checks that path stays within an allowed directory
func (v *PathValidator) ValidatePath(path string) error {
	_, err := v.Resolve(path)
	return err
}

func (v *PathValidator) within(path string) bool {
	for _, root := range v.roots {
		if isWithin(path, root) {
			return true
		}
		if real, err := filepath.EvalSymlinks(root); err == nil && isWithin(path, real) {
			return true
		}
	}
	return false
}

func isWithin(path, root string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// EnsureDirectories creates the allowed directories that do not exist
func (v *PathValidator) EnsureDirectories(perm os.FileMode) error {
	for _, root := range v.roots {
		if err := os.MkdirAll(root, perm); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", root, err)
		}
	}
	return nil
}
