package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alexjbarnes/dav-sync/internal/config"
	"github.com/alexjbarnes/dav-sync/internal/state"
	"github.com/spf13/cobra"
)

func newHistoryCmd(fv *flagValues) *cobra.Command {
	var (
		limit int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded sync runs for a profile",
		Long: `history prints the most recent runs recorded for the profile
selected by --url, --user, --local and --rpath. With --all it lists
every known profile and when it last ran.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				cfg *config.Config
				err error
			)

			if all {
				cfg, err = config.Load(fv.configFile)
				if err == nil {
					applyFlags(cmd, fv, cfg)
				}
			} else {
				cfg, err = loadConfig(cmd, fv)
			}

			if err != nil {
				return err
			}

			st, err := openState(cfg.StatePath)
			if err != nil {
				return err
			}
			defer st.Close()

			if all {
				return printProfiles(cmd.OutOrStdout(), st)
			}

			return printRuns(cmd.OutOrStdout(), st, profileKey(cfg), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of runs to show, 0 for all")
	cmd.Flags().BoolVar(&all, "all", false, "list all profiles instead")

	return cmd
}

func openState(path string) (*state.State, error) {
	if path != "" {
		return state.LoadAt(path)
	}

	return state.Load()
}

func printRuns(out io.Writer, st *state.State, profile string, limit int) error {
	runs, err := st.Runs(profile, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTYPE\tPLANNED\tAPPLIED\tFAILED\tSKIPPED\tDURATION\tNOTE")

	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.Started.Local().Format(time.DateTime),
			r.Policy,
			r.Planned,
			r.Applied,
			r.Failed,
			r.Skipped,
			r.Duration.Round(time.Millisecond),
			runNote(r),
		)
	}

	return tw.Flush()
}

func runNote(r state.RunRecord) string {
	var notes []string

	if r.DryRun {
		notes = append(notes, "dry run")
	}

	if r.Aborted {
		if r.Error != "" {
			notes = append(notes, "aborted: "+r.Error)
		} else {
			notes = append(notes, "aborted")
		}
	}

	return strings.Join(notes, ", ")
}

func printProfiles(out io.Writer, st *state.State) error {
	profiles, err := st.Profiles()
	if err != nil {
		return err
	}

	if len(profiles) == 0 {
		fmt.Fprintln(out, "no profiles recorded")
		return nil
	}

	keys := make([]string, 0, len(profiles))
	for k := range profiles {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LAST RUN\tPROFILE")

	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", profiles[k].Local().Format(time.DateTime), k)
	}

	return tw.Flush()
}
