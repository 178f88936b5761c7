package davsync

import (
	"context"
	"fmt"
	"log/slog"
)

// Result counts the outcome of applying a plan.
type Result struct {
	Applied int
	Failed  int
	Skipped int
}

// Executor turns planned ops into collaborator calls. Each op is
// attempted exactly once; a failure is logged and the pass continues.
type Executor struct {
	remote Remote
	local  *LocalFS
	logger *slog.Logger
}

// NewExecutor creates an Executor over the given sides.
func NewExecutor(remote Remote, local *LocalFS, logger *slog.Logger) *Executor {
	return &Executor{remote: remote, local: local, logger: logger}
}

// Apply runs ops in order. It only stops early when ctx is cancelled,
// in which case the remaining ops count as skipped.
func (e *Executor) Apply(ctx context.Context, ops []Op) Result {
	var res Result

	// A SetRemoteMTime is pointless once its upload failed.
	failedUploads := make(map[string]bool)

	for i, op := range ops {
		if ctx.Err() != nil {
			res.Skipped += len(ops) - i
			break
		}

		if op.Kind == OpSetRemoteMTime && failedUploads[op.Path] {
			e.logger.Debug("skipping mtime update after failed upload", slog.String("path", op.Path))
			res.Skipped++

			continue
		}

		err := e.apply(ctx, op)

		switch {
		case err == nil:
			res.Applied++
		case op.Kind == OpMkdirLocal || op.Kind == OpRmdirLocal:
			// Local directory changes are best effort.
			e.logger.Debug("ignoring local directory failure",
				slog.Any("op", op),
				slog.String("error", err.Error()),
			)

			res.Skipped++
		default:
			e.logger.Error("operation failed",
				slog.Any("op", op),
				slog.String("error", err.Error()),
			)

			if op.Kind == OpUpload {
				failedUploads[op.Path] = true
			}

			res.Failed++
		}
	}

	return res
}

func (e *Executor) apply(ctx context.Context, op Op) error {
	switch op.Kind {
	case OpMkdirRemote:
		e.logger.Debug("creating remote directory", slog.String("path", op.Remote))
		return e.remote.Mkcol(ctx, op.Remote)

	case OpRmdirRemote:
		e.logger.Info("removing remote directory", slog.String("path", op.Remote))
		return e.remote.Delete(ctx, op.Remote)

	case OpDeleteRemote:
		e.logger.Info("deleting remote file", slog.String("path", op.Remote))
		return e.remote.Delete(ctx, op.Remote)

	case OpUpload:
		e.logger.Info("uploading", slog.String("path", op.Path))

		data, err := e.local.ReadFile(op.Path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", op.Path, err)
		}

		return e.remote.Put(ctx, op.Remote, data)

	case OpSetRemoteMTime:
		e.logger.Debug("setting remote mtime",
			slog.String("path", op.Remote),
			slog.Int64("mtime", op.MTime/1000),
		)

		return e.remote.SetModTime(ctx, op.Remote, op.Time())

	case OpDownload:
		e.logger.Info("downloading", slog.String("path", op.Path))

		data, err := e.remote.Get(ctx, op.Remote)
		if err != nil {
			return err
		}

		return e.local.WriteFile(op.Path, data, op.Time())

	case OpMkdirLocal:
		e.logger.Debug("creating local directory", slog.String("path", op.Path))
		return e.local.Mkdir(op.Path)

	case OpRmdirLocal:
		e.logger.Info("removing local directory", slog.String("path", op.Path))
		return e.local.RemoveAll(op.Path)

	case OpDeleteLocal:
		e.logger.Info("deleting local file", slog.String("path", op.Path))
		return e.local.Remove(op.Path)

	default:
		return fmt.Errorf("unknown operation %d", op.Kind)
	}
}
