package davsync

import (
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/alexjbarnes/dav-sync/internal/tree"
)

// BuildLocalIndex walks the local root and returns its tree. The walk
// is best effort: entries that cannot be read are logged and skipped,
// and an unreadable directory drops its whole subtree. Symlinks and
// non-regular files are never recorded.
func BuildLocalIndex(local *LocalFS, filter *Filter, logger *slog.Logger) tree.Index {
	b := tree.NewBuilder()
	dir := local.Dir()

	logger.Debug("updating local tree", slog.String("root", dir))

	_ = filepath.WalkDir(dir, func(absPath string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("skipping unreadable local entry",
				slog.String("path", absPath),
				slog.String("error", err.Error()),
			)

			if d != nil && d.IsDir() && absPath != dir {
				return filepath.SkipDir
			}

			return nil
		}

		relPath, err := filepath.Rel(dir, absPath)
		if err != nil || relPath == "." {
			return nil
		}

		rel := tree.Normalize(filepath.ToSlash(relPath))

		if d.Type()&fs.ModeSymlink != 0 {
			logger.Debug("skipping symlink during scan", slog.String("path", rel))
			return nil
		}

		if d.IsDir() {
			if !filter.Allow(tree.DirKey(rel)) {
				return filepath.SkipDir
			}
		} else if !d.Type().IsRegular() || !filter.Allow(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Debug("stat failed during scan",
				slog.String("path", rel),
				slog.String("error", err.Error()),
			)

			return nil
		}

		if d.IsDir() {
			b.AddDir(rel, info.ModTime().UnixMilli())
			return nil
		}

		b.AddFile(rel, info.ModTime().UnixMilli(), info.Size())

		return nil
	})

	ix := b.Build()

	logger.Debug("local tree updated",
		slog.String("root", dir),
		slog.Int("dirs", ix.Dirs()),
		slog.Int("files", ix.Files()),
	)

	return ix
}
