package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/model"
)

// statsScanLimit caps how many recent runs `runs stats` reads.
const statsScanLimit = 10000

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect enrichment run history",
	Long:  "Commands for listing, viewing, and summarizing enrichment runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrichment runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, err := st.ListRuns(ctx, model.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:     "show <run-id>",
	Aliases: []string{"get"},
	Short:   "Show full details of a run",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		var after time.Time
		if since > 0 {
			after = time.Now().Add(-since)
		}

		runs, err := st.ListRuns(ctx, model.RunFilter{Limit: statsScanLimit})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(cmd.OutOrStdout(), computeRunStats(runs, after))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, done, degraded)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h; 0 = all)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total         int
	Done          int
	Degraded      int
	Running       int
	AvgConfidence float64
	AvgDurSecs    float64
}

// computeRunStats aggregates runs created at or after since. A zero since
// includes every run.
func computeRunStats(runs []model.Run, since time.Time) runStats {
	var (
		s        runStats
		confSum  float64
		totalDur time.Duration
		finished int
	)

	for _, r := range runs {
		if !since.IsZero() && r.CreatedAt.Before(since) {
			continue
		}
		s.Total++
		switch r.Status {
		case model.RunStatusDone:
			s.Done++
		case model.RunStatusDegraded:
			s.Degraded++
		default:
			s.Running++
			continue
		}
		finished++
		confSum += r.Confidence
		totalDur += r.UpdatedAt.Sub(r.CreatedAt)
	}

	if finished > 0 {
		s.AvgConfidence = confSum / float64(finished)
		s.AvgDurSecs = totalDur.Seconds() / float64(finished)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tREFERENCE\tSTATUS\tCONFIDENCE\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t----------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		ref := r.Reference.Label()
		if len(ref) > 30 {
			ref = ref[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
			truncateID(r.ID),
			ref,
			r.Status,
			r.Confidence,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Done:\t%d\n", s.Done)
	_, _ = fmt.Fprintf(w, "Degraded:\t%d\n", s.Degraded)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	if finished := s.Done + s.Degraded; finished > 0 {
		_, _ = fmt.Fprintf(w, "Avg confidence:\t%.2f\n", s.AvgConfidence)
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
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
