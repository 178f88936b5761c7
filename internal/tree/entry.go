// Package tree holds the in-memory model of a directory tree: entries,
// the immutable Index built from them, and the path helpers both sides
// of a sync share.
package tree

import (
	"sort"
	"strings"
)

// Kind distinguishes directories from files.
type Kind int

const (
	KindDir Kind = iota + 1
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Entry is one file or directory record. MTime is epoch milliseconds.
// Size is only set for remote files and is informational.
type Entry struct {
	Path  string
	Kind  Kind
	MTime int64
	Size  int64
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// Seconds returns the modification time truncated to whole seconds.
// The remote side only stores second resolution, so every cross-side
// comparison goes through this.
func (e Entry) Seconds() int64 {
	return e.MTime / 1000
}

// Index is an immutable snapshot of a tree, keyed by root-relative
// path. Directory keys end in "/". The zero value is an empty index.
type Index struct {
	dirs  map[string]Entry
	files map[string]Entry
}

// Dir returns the directory entry at path.
func (ix Index) Dir(path string) (Entry, bool) {
	e, ok := ix.dirs[DirKey(path)]
	return e, ok
}

// File returns the file entry at path.
func (ix Index) File(path string) (Entry, bool) {
	e, ok := ix.files[Normalize(path)]
	return e, ok
}

// HasDir reports whether a directory exists at path.
func (ix Index) HasDir(path string) bool {
	_, ok := ix.Dir(path)
	return ok
}

// HasFile reports whether a file exists at path.
func (ix Index) HasFile(path string) bool {
	_, ok := ix.File(path)
	return ok
}

// DirPaths returns all directory keys in lexical order, which puts
// every parent before its children.
func (ix Index) DirPaths() []string {
	return sortedKeys(ix.dirs)
}

// FilePaths returns all file keys in lexical order.
func (ix Index) FilePaths() []string {
	return sortedKeys(ix.files)
}

// Dirs returns the number of directories.
func (ix Index) Dirs() int {
	return len(ix.dirs)
}

// Files returns the number of files.
func (ix Index) Files() int {
	return len(ix.files)
}

func sortedKeys(m map[string]Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Builder accumulates entries for a new Index. It is not safe for
// concurrent use.
type Builder struct {
	dirs  map[string]Entry
	files map[string]Entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		dirs:  make(map[string]Entry),
		files: make(map[string]Entry),
	}
}

// AddDir records a directory. Later additions for the same path win.
func (b *Builder) AddDir(path string, mtime int64) {
	key := DirKey(path)
	b.dirs[key] = Entry{Path: key, Kind: KindDir, MTime: mtime}
}

// AddFile records a file. A trailing slash on path is dropped.
func (b *Builder) AddFile(path string, mtime, size int64) {
	key := Normalize(path)
	if key != "/" {
		key = strings.TrimSuffix(key, "/")
	}

	b.files[key] = Entry{Path: key, Kind: KindFile, MTime: mtime, Size: size}
}

// Build returns the Index. The root entry "/" is dropped from both
// maps, and the maps are copied so the Builder can be reused without
// aliasing the returned Index.
func (b *Builder) Build() Index {
	ix := Index{
		dirs:  make(map[string]Entry, len(b.dirs)),
		files: make(map[string]Entry, len(b.files)),
	}

	for k, e := range b.dirs {
		if k == "/" {
			continue
		}

		ix.dirs[k] = e
	}

	for k, e := range b.files {
		if k == "/" {
			continue
		}

		ix.files[k] = e
	}

	return ix
}
