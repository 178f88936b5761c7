package davsync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/dav-sync/internal/errors"
)

const (
	// localDirPerm is the permission mode for directories created under
	// the sync root.
	localDirPerm = fs.FileMode(0o755)

	// localFilePerm is the permission mode for downloaded files.
	localFilePerm = fs.FileMode(0o644)
)

// LocalFS performs filesystem operations under a sync root. Every
// method takes a slash-separated path relative to the root ("/a/b.txt")
// and refuses paths that resolve outside it, including the root itself.
type LocalFS struct {
	dir string
}

// NewLocalFS opens the sync root. When create is true a missing root is
// created; otherwise it must already exist. The root must be a
// directory either way.
func NewLocalFS(dir string, create bool) (*LocalFS, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty path", apperrors.ErrLocalRoot)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) && create {
		if err := os.MkdirAll(abs, localDirPerm); err != nil {
			return nil, fmt.Errorf("creating local root %s: %w", abs, err)
		}

		info, err = os.Stat(abs)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrLocalRoot, abs, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrLocalRoot, abs)
	}

	// Resolve symlinks so the traversal checks compare real paths.
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving symlinks for %s: %w", abs, err)
	}

	return &LocalFS{dir: real}, nil
}

// Dir returns the absolute root directory.
func (l *LocalFS) Dir() string {
	return l.dir
}

// Abs returns the absolute path for rel after traversal checks.
func (l *LocalFS) Abs(rel string) (string, error) {
	return l.resolve(rel)
}

// Mkdir creates a directory and any missing parents. An existing
// directory is not an error.
func (l *LocalFS) Mkdir(rel string) error {
	abs, err := l.resolve(rel)
	if err != nil {
		return err
	}

	return os.MkdirAll(abs, localDirPerm)
}

// RemoveAll removes a directory tree. A missing path is not an error.
func (l *LocalFS) RemoveAll(rel string) error {
	abs, err := l.resolve(rel)
	if err != nil {
		return err
	}

	return os.RemoveAll(abs)
}

// ReadFile returns the content of a file.
func (l *LocalFS) ReadFile(rel string) ([]byte, error) {
	abs, err := l.resolve(rel)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(abs) //nolint:gosec // G304: abs validated by resolve
}

// WriteFile replaces a file's content, creating parent directories as
// needed, and then sets its modification time to mtime.
func (l *LocalFS) WriteFile(rel string, data []byte, mtime time.Time) error {
	abs, err := l.resolve(rel)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(abs), localDirPerm); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}

	if err := os.WriteFile(abs, data, localFilePerm); err != nil {
		return err
	}

	if err := os.Chtimes(abs, mtime, mtime); err != nil {
		return fmt.Errorf("setting mtime for %s: %w", rel, err)
	}

	return nil
}

// Remove deletes a single file.
func (l *LocalFS) Remove(rel string) error {
	abs, err := l.resolve(rel)
	if err != nil {
		return err
	}

	return os.Remove(abs)
}

// Chtimes sets both access and modification time of rel to mtime.
func (l *LocalFS) Chtimes(rel string, mtime time.Time) error {
	abs, err := l.resolve(rel)
	if err != nil {
		return err
	}

	return os.Chtimes(abs, mtime, mtime)
}

// resolve converts a root-relative path to an absolute one, rejecting
// null bytes, ".." segments, the root itself, and symlinked parents
// that escape the root.
func (l *LocalFS) resolve(rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("%w: path contains null byte: %q", apperrors.ErrPathTraversal, rel)
	}

	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: path contains ..: %q", apperrors.ErrPathTraversal, rel)
		}
	}

	abs := filepath.Join(l.dir, filepath.FromSlash(rel))
	if !strings.HasPrefix(abs, l.dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q resolves outside %s", apperrors.ErrPathTraversal, rel, l.dir)
	}

	// The final element may be a symlink, which Remove and RemoveAll
	// handle without following, so only the parent chain is checked.
	parent := filepath.Dir(abs)

	realParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		// A parent that does not exist yet will be created by MkdirAll
		// beneath a checked prefix.
		if errors.Is(err, fs.ErrNotExist) {
			return abs, nil
		}

		return "", fmt.Errorf("resolving symlinks for %q: %w", rel, err)
	}

	if realParent != l.dir && !strings.HasPrefix(realParent, l.dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: parent of %q resolves to %s", apperrors.ErrPathTraversal, rel, realParent)
	}

	return abs, nil
}
