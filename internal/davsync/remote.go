package davsync

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/alexjbarnes/dav-sync/internal/errors"
	"github.com/alexjbarnes/dav-sync/internal/tree"
	"github.com/alexjbarnes/dav-sync/internal/webdav"
)

//go:generate mockgen -source=remote.go -destination=mock_remote_test.go -package=davsync

// Remote is the subset of the WebDAV client the sync engine calls.
// *webdav.Client satisfies it. Paths are decoded and relative to the
// DAV root.
type Remote interface {
	PropFind(ctx context.Context, path string) ([]webdav.Resource, error)
	Mkcol(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte) error
	SetModTime(ctx context.Context, path string, mtime time.Time) error
}

// remoteWalker lists one directory per request. Servers commonly
// refuse Depth: infinity, so the tree is always walked level by level.
type remoteWalker struct {
	remote  Remote
	base    string
	filter  *Filter
	logger  *slog.Logger
	builder *tree.Builder
	visited map[string]bool
}

// BuildRemoteIndex lists the remote tree under base and returns it
// keyed relative to base. A failure of the top-level listing returns
// an error wrapping errors.ErrRemoteListing and an empty index. Nested
// listing failures are logged and the subtree is skipped.
func BuildRemoteIndex(ctx context.Context, remote Remote, base string, filter *Filter, logger *slog.Logger) (tree.Index, error) {
	w := &remoteWalker{
		remote:  remote,
		base:    tree.DirKey(base),
		filter:  filter,
		logger:  logger,
		builder: tree.NewBuilder(),
		visited: make(map[string]bool),
	}

	logger.Debug("updating remote tree", slog.String("base", w.base))

	if err := w.list(ctx, w.base, true); err != nil {
		return tree.Index{}, err
	}

	ix := w.builder.Build()

	logger.Debug("remote tree updated",
		slog.String("base", w.base),
		slog.Int("dirs", ix.Dirs()),
		slog.Int("files", ix.Files()),
	)

	return ix, nil
}

func (w *remoteWalker) list(ctx context.Context, dir string, top bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.visited[dir] = true

	resources, err := w.remote.PropFind(ctx, dir)
	if err != nil {
		if top {
			return fmt.Errorf("%w: %s: %w", apperrors.ErrRemoteListing, dir, err)
		}

		w.logger.Error("listing remote directory, skipping subtree",
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)

		return nil
	}

	var subdirs []string

	for _, r := range resources {
		rel, ok := tree.Rel(w.base, r.Path)
		if !ok {
			continue
		}

		mtime := w.parseMTime(r)

		if r.HasLength {
			if rel == "/" || !w.filter.Allow(rel) {
				continue
			}

			size, _ := strconv.ParseInt(r.ContentLength, 10, 64)
			w.builder.AddFile(rel, mtime, size)

			continue
		}

		if rel != "/" && !w.filter.Allow(tree.DirKey(rel)) {
			continue
		}

		w.builder.AddDir(rel, mtime)

		key := tree.DirKey(r.Path)
		if key != dir && !w.visited[key] {
			subdirs = append(subdirs, key)
		}
	}

	for _, sub := range subdirs {
		if err := w.list(ctx, sub, false); err != nil {
			return err
		}
	}

	return nil
}

// parseMTime converts getlastmodified to epoch milliseconds. A missing
// or unparseable value yields 0.
func (w *remoteWalker) parseMTime(r webdav.Resource) int64 {
	if r.LastModified == "" {
		return 0
	}

	t, err := http.ParseTime(r.LastModified)
	if err != nil {
		w.logger.Error("problem converting time stamp",
			slog.String("path", r.Path),
			slog.String("value", r.LastModified),
		)

		return 0
	}

	return t.UnixMilli()
}
