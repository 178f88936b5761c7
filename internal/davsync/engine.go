// Package davsync reconciles a local directory tree with a WebDAV
// collection under one of three policies: mirror up, mirror down, or a
// non-destructive merge where the newer side wins.
package davsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/dav-sync/internal/errors"
	"github.com/alexjbarnes/dav-sync/internal/tree"
)

// Policy selects the sync direction.
type Policy string

const (
	PolicyTo   Policy = "to"
	PolicyFrom Policy = "from"
	PolicyBoth Policy = "both"
)

// ParsePolicy accepts "to", "from" or "both" in any case. An empty
// string selects PolicyBoth.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyBoth):
		return PolicyBoth, nil
	case string(PolicyTo):
		return PolicyTo, nil
	case string(PolicyFrom):
		return PolicyFrom, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidPolicy, s)
	}
}

// Options tunes an Engine.
type Options struct {
	// DryRun logs the plan of every pass without executing it.
	DryRun bool

	// Filter hides matching paths from both trees. Nil allows all.
	Filter *Filter
}

// Report summarises one run.
type Report struct {
	Policy   Policy
	Started  time.Time
	Duration time.Duration
	Planned  int
	Applied  int
	Failed   int
	Skipped  int
	// Ops counts planned operations by kind name.
	Ops     map[string]int
	Aborted bool
	DryRun  bool
}

// Engine runs sync passes against one remote.
type Engine struct {
	remote Remote
	logger *slog.Logger
	opts   Options
}

// NewEngine creates an Engine.
func NewEngine(remote Remote, logger *slog.Logger, opts Options) *Engine {
	return &Engine{remote: remote, logger: logger, opts: opts}
}

type run struct {
	*Engine
	base   string
	exec   *Executor
	report *Report
}

// Run syncs localRoot with remoteBase under policy. The returned error
// is non-nil only when the run was aborted: the top-level remote
// listing failed, the local root was unusable, or a remote refresh
// between passes failed. Individual operation failures are counted in
// the report instead.
func (e *Engine) Run(ctx context.Context, policy Policy, localRoot, remoteBase string) (*Report, error) {
	report := &Report{
		Policy:  policy,
		Started: time.Now(),
		Ops:     make(map[string]int),
		DryRun:  e.opts.DryRun,
	}

	defer func() {
		report.Duration = time.Since(report.Started)
	}()

	base := tree.DirKey(remoteBase)

	remote, err := BuildRemoteIndex(ctx, e.remote, base, e.opts.Filter, e.logger)
	if err != nil {
		report.Aborted = true
		return report, err
	}

	local, localIx, err := e.openLocal(localRoot, policy)
	if err != nil {
		report.Aborted = true
		return report, err
	}

	r := &run{
		Engine: e,
		base:   base,
		report: report,
	}
	if local != nil {
		r.exec = NewExecutor(e.remote, local, e.logger)
	}

	e.logger.Info("sync started",
		slog.String("policy", string(policy)),
		slog.String("local", localRoot),
		slog.String("remote", base),
		slog.Int("local_files", localIx.Files()),
		slog.Int("remote_files", remote.Files()),
		slog.Bool("dry_run", e.opts.DryRun),
	)

	switch policy {
	case PolicyTo:
		err = r.syncTo(ctx, localIx, remote)
	case PolicyFrom:
		err = r.syncFrom(ctx, local, localIx, remote)
	case PolicyBoth:
		err = r.syncBoth(ctx, localIx, remote)
	default:
		err = fmt.Errorf("%w: %q", apperrors.ErrInvalidPolicy, policy)
	}

	if err != nil {
		report.Aborted = true
		return report, err
	}

	e.logger.Info("sync finished",
		slog.String("policy", string(policy)),
		slog.Int("planned", report.Planned),
		slog.Int("applied", report.Applied),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		slog.Duration("duration", time.Since(report.Started)),
	)

	return report, nil
}

// openLocal opens the local root and indexes it. TO never creates the
// root: an empty local tree would wipe the remote one. A dry run never
// creates it either and treats a missing root as empty.
func (e *Engine) openLocal(root string, policy Policy) (*LocalFS, tree.Index, error) {
	create := policy != PolicyTo && !e.opts.DryRun

	local, err := NewLocalFS(root, create)
	if err != nil {
		if e.opts.DryRun && policy != PolicyTo && errors.Is(err, fs.ErrNotExist) {
			e.logger.Info("local root does not exist yet", slog.String("path", root))
			return nil, tree.Index{}, nil
		}

		return nil, tree.Index{}, err
	}

	return local, BuildLocalIndex(local, e.opts.Filter, e.logger), nil
}

func (r *run) syncTo(ctx context.Context, local, remote tree.Index) error {
	r.pass(ctx, "directories", planToDirs(local, remote, r.base))

	if !r.opts.DryRun {
		var err error

		remote, err = r.refreshRemote(ctx)
		if err != nil {
			return err
		}
	}

	r.pass(ctx, "files", planToFiles(local, remote, r.base))

	return nil
}

func (r *run) syncFrom(ctx context.Context, fsys *LocalFS, local, remote tree.Index) error {
	r.pass(ctx, "directories", planFromDirs(local, remote, r.base))

	if !r.opts.DryRun && fsys != nil {
		local = BuildLocalIndex(fsys, r.opts.Filter, r.logger)
	}

	r.pass(ctx, "files", planFromFiles(local, remote, r.base))

	return nil
}

func (r *run) syncBoth(ctx context.Context, local, remote tree.Index) error {
	r.pass(ctx, "upload", planBothUpload(local, remote, r.base))

	if !r.opts.DryRun {
		var err error

		remote, err = r.refreshRemote(ctx)
		if err != nil {
			return err
		}
	}

	r.pass(ctx, "download", planBothDownload(local, remote, r.base))

	return nil
}

func (r *run) refreshRemote(ctx context.Context) (tree.Index, error) {
	ix, err := BuildRemoteIndex(ctx, r.remote, r.base, r.opts.Filter, r.logger)
	if err != nil {
		return tree.Index{}, fmt.Errorf("refreshing remote tree: %w", err)
	}

	return ix, nil
}

// pass executes one plan, or only logs it in a dry run.
func (r *run) pass(ctx context.Context, name string, ops []Op) {
	r.report.Planned += len(ops)
	countByKind(ops, r.report.Ops)

	r.logger.Debug("pass planned", slog.String("pass", name), slog.Int("ops", len(ops)))

	if r.opts.DryRun || r.exec == nil {
		for _, op := range ops {
			r.logger.Info("would apply", slog.Any("op", op))
		}

		return
	}

	res := r.exec.Apply(ctx, ops)

	r.report.Applied += res.Applied
	r.report.Failed += res.Failed
	r.report.Skipped += res.Skipped
}
