package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexjbarnes/dav-sync/internal/config"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return newRootCmd(os.Stdout, &flagValues{}).ExecuteContext(ctx)
}

// flagValues mirrors the config fields that can be set on the command
// line. Only flags the user actually passed override the loaded config.
type flagValues struct {
	configFile      string
	url             string
	user            string
	local           string
	rpath           string
	syncType        string
	passwordCommand string
	insecure        bool
	realm           string
	exclude         []string
	dryRun          bool
	watch           bool
	interval        time.Duration
	timeout         time.Duration
	statePath       string
	verbose         bool
}

func newRootCmd(out io.Writer, fv *flagValues) *cobra.Command {
	root := &cobra.Command{
		Use:   "dav-sync",
		Short: "Synchronise a local directory with an ownCloud WebDAV folder",
		Long: `dav-sync mirrors a local directory tree to or from an ownCloud
WebDAV folder, or merges the two so the newer copy of each file wins.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, fv)
			if err != nil {
				return err
			}

			return runSync(cmd.Context(), cfg)
		},
	}

	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&fv.configFile, "config", "", "YAML profile file (or DAVSYNC_CONFIG)")
	pf.StringVar(&fv.url, "url", "", "server URL, completed to .../remote.php/webdav")
	pf.StringVar(&fv.user, "user", "", "user name")
	pf.StringVar(&fv.local, "local", "", "local sync root")
	pf.StringVar(&fv.rpath, "rpath", "/", "remote base path below the WebDAV root")
	pf.StringVar(&fv.statePath, "state", "", "run history database (default ~/.dav-sync/state.db)")
	pf.BoolVarP(&fv.verbose, "verbose", "v", false, "debug logging in production mode")

	f := root.Flags()
	f.StringVarP(&fv.syncType, "type", "t", "both", "sync type: to, from or both")
	f.StringVar(&fv.passwordCommand, "password-command", "", "shell command printing the password")
	f.BoolVar(&fv.insecure, "insecure", false, "skip TLS certificate verification")
	f.StringVar(&fv.realm, "realm", "ownCloud", "realm expected in the server's auth challenge")
	f.StringArrayVarP(&fv.exclude, "exclude", "x", nil, "glob of paths to leave alone (repeatable)")
	f.BoolVarP(&fv.dryRun, "dry-run", "n", false, "log the planned operations without applying them")
	f.BoolVarP(&fv.watch, "watch", "w", false, "keep running and re-sync on local changes")
	f.DurationVar(&fv.interval, "interval", 0, "in watch mode, also re-sync this often")
	f.DurationVar(&fv.timeout, "timeout", 5*time.Minute, "per-request HTTP timeout")

	root.AddCommand(newHistoryCmd(fv), newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// loadConfig layers the flags the user passed over config.Load and
// validates the result.
func loadConfig(cmd *cobra.Command, fv *flagValues) (*config.Config, error) {
	cfg, err := config.Load(fv.configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	applyFlags(cmd, fv, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyFlags(cmd *cobra.Command, fv *flagValues, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("url") {
		cfg.URL = fv.url
	}
	if changed("user") {
		cfg.User = fv.user
	}
	if changed("local") {
		cfg.LocalDir = fv.local
	}
	if changed("rpath") {
		cfg.RemotePath = fv.rpath
	}
	if changed("state") {
		cfg.StatePath = fv.statePath
	}
	if changed("verbose") {
		cfg.Verbose = fv.verbose
	}
	if changed("type") {
		cfg.Type = fv.syncType
	}
	if changed("password-command") {
		cfg.PasswordCommand = fv.passwordCommand
	}
	if changed("insecure") {
		cfg.Insecure = fv.insecure
	}
	if changed("realm") {
		cfg.Realm = fv.realm
	}
	if changed("exclude") {
		cfg.Exclude = fv.exclude
	}
	if changed("dry-run") {
		cfg.DryRun = fv.dryRun
	}
	if changed("watch") {
		cfg.Watch = fv.watch
	}
	if changed("interval") {
		cfg.Interval = fv.interval
	}
	if changed("timeout") {
		cfg.Timeout = fv.timeout
	}
}
