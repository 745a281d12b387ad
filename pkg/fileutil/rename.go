package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReplaceFile moves src over dst with a single rename, so dst is always
// either the old file or the new one. src must live on the same filesystem
// as dst. On failure src is removed.
func ReplaceFile(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		_ = os.Remove(src)
		return fmt.Errorf("failed to replace %s: %w", dst, err)
	}
	return nil
}

// MoveAside renames path to aside, removing a stale aside left by an
// earlier run first.
func MoveAside(path, aside string) error {
	if err := os.Remove(aside); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale %s: %w", aside, err)
	}
	if err := os.Rename(path, aside); err != nil {
		return fmt.Errorf("failed to move %s aside: %w", path, err)
	}
	return nil
}

// ResolveRealPath returns the absolute path with every symlink in the chain
// resolved.
func ResolveRealPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlink: %w", err)
	}
	return resolved, nil
}

// RemoveMatching deletes files in dir whose names match pattern and reports
// how many were removed. Files that cannot be removed are skipped.
func RemoveMatching(dir, pattern string) int {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	removed := 0
	for _, m := range matches {
		if os.Remove(m) == nil {
			removed++
		}
	}
	return removed
}
