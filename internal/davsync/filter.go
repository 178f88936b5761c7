package davsync

import (
	"fmt"
	"path"
	"strings"
)

// Filter hides paths from both trees. A hidden path is never created,
// updated or deleted on either side. A hidden directory hides its
// whole subtree because neither walker descends into it.
type Filter struct {
	patterns []string
}

// NewFilter compiles exclude patterns. Each pattern uses path.Match
// syntax and is tested against the base name and against the relative
// path without leading or trailing slashes, so "*.tmp" and
// "build/cache" both work. Empty patterns are ignored.
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{}

	for _, p := range patterns {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}

		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}

		f.patterns = append(f.patterns, p)
	}

	return f, nil
}

// Allow reports whether rel takes part in the sync. A nil Filter
// allows everything.
func (f *Filter) Allow(rel string) bool {
	if f == nil || len(f.patterns) == 0 {
		return true
	}

	trimmed := strings.Trim(rel, "/")
	if trimmed == "" {
		return true
	}

	name := path.Base(trimmed)

	for _, p := range f.patterns {
		if ok, _ := path.Match(p, name); ok {
			return false
		}

		if ok, _ := path.Match(p, trimmed); ok {
			return false
		}
	}

	return true
}

// Patterns returns the compiled patterns.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}

	return append([]string(nil), f.patterns...)
}
