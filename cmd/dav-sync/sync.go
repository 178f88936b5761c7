package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexjbarnes/dav-sync/internal/config"
	"github.com/alexjbarnes/dav-sync/internal/davsync"
	"github.com/alexjbarnes/dav-sync/internal/logging"
	"github.com/alexjbarnes/dav-sync/internal/state"
	"github.com/alexjbarnes/dav-sync/internal/tree"
	"github.com/alexjbarnes/dav-sync/internal/watch"
	"github.com/alexjbarnes/dav-sync/internal/webdav"
	"golang.org/x/sync/errgroup"
)

// syncer runs the engine for one profile and records each run.
type syncer struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *davsync.Engine
	policy  davsync.Policy
	history *state.State
	profile string
}

func runSync(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewLogger(cfg.Environment, cfg.Verbose)

	davURL := webdav.CompleteURL(cfg.URL)

	logger.Info("dav-sync starting",
		slog.String("version", Version),
		slog.String("url", davURL),
		slog.String("local", cfg.LocalDir),
		slog.String("rpath", cfg.RemotePath),
		slog.String("type", cfg.Type),
		slog.Bool("watch", cfg.Watch),
	)

	hc := webdav.NewHTTPClient(cfg.Insecure, cfg.Timeout)

	if err := webdav.Probe(ctx, hc, davURL, cfg.Realm); err != nil {
		return fmt.Errorf("checking server: %w", err)
	}

	logServerStatus(ctx, hc, davURL, logger)

	password, err := resolvePassword(ctx, cfg, promptPassword)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	client, err := webdav.NewClient(davURL, webdav.Options{
		User:       cfg.User,
		Password:   password,
		HTTPClient: hc,
	})
	if err != nil {
		return fmt.Errorf("creating webdav client: %w", err)
	}

	filter, err := davsync.NewFilter(cfg.Exclude)
	if err != nil {
		return err
	}

	policy, err := davsync.ParsePolicy(cfg.Type)
	if err != nil {
		return err
	}

	s := &syncer{
		cfg:    cfg,
		logger: logger,
		engine: davsync.NewEngine(client, logger, davsync.Options{
			DryRun: cfg.DryRun,
			Filter: filter,
		}),
		policy:  policy,
		history: openHistory(cfg.StatePath, logger),
		profile: profileKey(cfg),
	}

	if s.history != nil {
		defer s.history.Close()
	}

	s.runOnce(ctx)

	if !cfg.Watch {
		return nil
	}

	return s.watch(ctx, filter)
}

// logServerStatus reports what status.php says about the server. It
// never fails the run.
func logServerStatus(ctx context.Context, hc *http.Client, davURL string, logger *slog.Logger) {
	info, err := webdav.ServerStatus(ctx, hc, davURL)
	if err != nil {
		logger.Debug("server status unavailable", slog.String("error", err.Error()))
		return
	}

	logger.Info("server reachable", slog.Any("server", info))

	if info.Maintenance {
		logger.Warn("server is in maintenance mode, operations will likely fail")
	}
}

// openHistory returns nil when the database cannot be opened, for
// example while another dav-sync holds its lock.
func openHistory(path string, logger *slog.Logger) *state.State {
	st, err := openState(path)
	if err != nil {
		logger.Warn("run history disabled", slog.String("error", err.Error()))
		return nil
	}

	return st
}

func profileKey(cfg *config.Config) string {
	return state.ProfileKey(webdav.CompleteURL(cfg.URL), cfg.User, cfg.LocalDir, tree.DirKey(cfg.RemotePath))
}

// runOnce performs one sync. An aborted run is logged and recorded but
// is not an error for the process.
func (s *syncer) runOnce(ctx context.Context) {
	report, err := s.engine.Run(ctx, s.policy, s.cfg.LocalDir, s.cfg.RemotePath)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Info("sync interrupted")
		} else {
			s.logger.Error("sync aborted", slog.String("error", err.Error()))
		}
	}

	s.record(report, err)
}

func (s *syncer) record(report *davsync.Report, runErr error) {
	if s.history == nil || report == nil {
		return
	}

	rec := state.RunRecord{
		Started:  report.Started,
		Duration: report.Duration,
		Policy:   string(report.Policy),
		Planned:  report.Planned,
		Applied:  report.Applied,
		Failed:   report.Failed,
		Skipped:  report.Skipped,
		Ops:      report.Ops,
		Aborted:  report.Aborted,
		DryRun:   report.DryRun,
	}

	if runErr != nil {
		rec.Error = runErr.Error()
	}

	if err := s.history.RecordRun(s.profile, rec); err != nil {
		s.logger.Warn("recording run", slog.String("error", err.Error()))
	}
}

// watch re-syncs after local changes settle and, when an interval is
// set, on every tick. Remote changes are only noticed on ticks.
func (s *syncer) watch(ctx context.Context, filter *davsync.Filter) error {
	w := watch.New(s.cfg.LocalDir, filter.Allow, s.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(gctx)
	})

	g.Go(func() error {
		var tick <-chan time.Time

		if s.cfg.Interval > 0 {
			ticker := time.NewTicker(s.cfg.Interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-w.Triggers():
				s.runOnce(gctx)
			case <-tick:
				s.runOnce(gctx)
			}
		}
	})

	err := g.Wait()
	if ctx.Err() != nil {
		s.logger.Info("shutting down")
		return nil
	}

	return err
}
