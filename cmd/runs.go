package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/scorer"
	"github.com/sells-group/dining-hotspots/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect hotspot run history",
	Long:  "Commands for listing and viewing recorded hotspot runs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("runs")
	},
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hotspot runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")

		filter := store.RunFilter{Limit: limit}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its ranked hotspots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}
		top, _ := cmd.Flags().GetInt("top")
		formatRun(os.Stdout, run, top)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Duration("since", 0, "only runs newer than this (e.g. 24h, 168h)")

	runsShowCmd.Flags().Bool("json", false, "print the full run as JSON")
	runsShowCmd.Flags().Int("top", 10, "number of hotspots to print (0 prints all)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tHOTSPOTS\tMAX_SCORE\tDINING\tARRIVAL")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t---------\t------\t-------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%d\t%d\n",
			truncateID(r.ID),
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Summary.TotalHotspots,
			r.Summary.MaxCombinedScore,
			r.Summary.DiningZones,
			r.Summary.ArrivalAreas,
		)
	}
	_ = w.Flush()
}

// formatRun writes a run summary followed by its top hotspots.
func formatRun(out io.Writer, r *model.Run, top int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	s := r.Summary
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.ID)
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", r.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Hotspots:\t%d\n", s.TotalHotspots)
	_, _ = fmt.Fprintf(w, "Dining zones:\t%d (%d contributing)\n", s.DiningZones, s.ContributingDiningZones)
	_, _ = fmt.Fprintf(w, "Arrival areas:\t%d (%d contributing)\n", s.ArrivalAreas, s.ContributingArrivalAreas)
	if s.TotalHotspots > 0 {
		_, _ = fmt.Fprintf(w, "Score range:\t%.1f - %.1f (avg %.1f)\n", s.MinCombinedScore, s.MaxCombinedScore, s.MeanCombinedScore)
		_, _ = fmt.Fprintf(w, "Total area:\t%.3f km2\n", s.TotalAreaKM2)
	}
	_ = w.Flush()

	if len(r.Hotspots) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSCORE\tRESTAURANTS\tPOPULARITY\tAREA_KM2")
	for _, h := range scorer.TopK(r.Hotspots, top) {
		_, _ = fmt.Fprintf(w, "%s\t%.1f\t%d\t%.1f\t%.4f\n",
			scorer.Name(h.Rank),
			h.CombinedScore,
			h.RestaurantCount,
			h.PopularityScore,
			scorer.AreaKM2(h),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
