// Package pathutil checks run directories and the files resolved inside them.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path resolves outside its run directory.
var ErrOutsideRoot = errors.New("path escapes run directory")

// RedactPath reduces a full path to .../<parent>/<basename> for log lines.
// For example, "/home/user/runs/r1/manifest.json" becomes ".../r1/manifest.json".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	parent := filepath.Base(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ResolveIn joins name onto root and checks that the result, after cleaning
// and resolving symlinks, stays inside root. Names come from manifests and
// catalogs, which may have been edited by hand.
func ResolveIn(root, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("resolving artifact: empty name")
	}
	if strings.ContainsRune(name, '\x00') {
		return "", fmt.Errorf("resolving artifact: name contains null byte")
	}

	rootAbs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("resolving run directory: %w", err)
	}
	rootResolved, err := resolveExistingParent(rootAbs)
	if err != nil {
		return "", err
	}

	path := filepath.Join(rootAbs, name)
	resolvedDir, err := resolveExistingParent(filepath.Dir(path))
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(path))

	if resolved == rootResolved || !isSubpath(resolved, rootResolved) {
		return "", fmt.Errorf("%q: %w", name, ErrOutsideRoot)
	}
	return path, nil
}

// EnsureWritableDir creates dir if needed and checks that files can be
// created in it, so that a run fails before simulating rather than at the
// first flush.
func EnsureWritableDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", RedactPath(dir), err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("checking output directory %s: %w", RedactPath(dir), err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", RedactPath(dir))
	}

	probe, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", RedactPath(dir), err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// resolveExistingParent walks up the directory tree to find the deepest existing
// ancestor, resolves symlinks on it, then re-appends the non-existent tail.
func resolveExistingParent(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}

	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}

	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// isSubpath checks whether path is equal to or a subdirectory of base.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	// "/tmp/foo" must not match "/tmp/foobar"
	prefix := base + string(os.PathSeparator)
	return strings.HasPrefix(path, prefix)
}
