package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	decayThreshold float64
	decayDryRun    bool
)

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Mark low-retention memories as cold",
	Long: `Mark low-retention memories as cold.

Retention is (access_count + 1) / (1 + age_days * 0.05). Active memories
scoring below the threshold become cold: kept on disk, hidden from search
and context. Cold memories are never revived.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		threshold := e.cfg.Decay.Threshold
		if cmd.Flags().Changed("threshold") {
			threshold = decayThreshold
		}

		n, err := e.db.Decay(cmd.Context(), threshold, decayDryRun)
		if err != nil {
			return err
		}
		if decayDryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "%d memories would be marked cold (threshold: %.2f) [dry-run, no changes made]\n", n, threshold)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%d memories marked cold (threshold: %.2f)\n", n, threshold)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		s, err := e.db.Stats(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Memories : %d (%d active, %d cold)\n", s.MemoryCount, s.ActiveCount, s.ColdCount)
		fmt.Fprintf(w, "Sessions : %d\n", s.SessionCount)
		fmt.Fprintf(w, "Projects : %d\n", s.ProjectCount)
		fmt.Fprintf(w, "Files    : %d\n", s.FileCount)
		fmt.Fprintf(w, "DB size  : %s\n", humanize.Bytes(uint64(s.DBSizeBytes)))
		fmt.Fprintf(w, "DB path  : %s\n", e.db.Path)
		return nil
	},
}

var gainCmd = &cobra.Command{
	Use:   "gain",
	Short: "Summarize token usage across recorded sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		g, err := e.db.GainStats(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if g.SessionCount == 0 {
			fmt.Fprintln(w, "No session analytics yet. Run a session with the Stop hook configured.")
			return nil
		}

		fmt.Fprintf(w, "Sessions       : %d\n", g.SessionCount)
		fmt.Fprintf(w, "Total time     : %s\n", secs(g.TotalSecs))
		fmt.Fprintf(w, "Avg turns      : %.1f\n", g.AvgTurns)
		fmt.Fprintf(w, "Avg duration   : %s\n", secs(int64(g.AvgSecs)))
		fmt.Fprintf(w, "Input tokens   : %s\n", humanize.Comma(g.TotalInput))
		fmt.Fprintf(w, "Output tokens  : %s\n", humanize.Comma(g.TotalOutput))
		fmt.Fprintf(w, "Cache read     : %s\n", humanize.Comma(g.TotalCacheRead))
		fmt.Fprintf(w, "Cache creation : %s\n", humanize.Comma(g.TotalCacheCreation))
		fmt.Fprintf(w, "Cache hit rate : %.1f%%\n", g.CacheEfficiencyPct())

		if len(g.TopProjects) > 0 {
			fmt.Fprintln(w, "\nTop projects:")
			for _, p := range g.TopProjects {
				fmt.Fprintf(w, "  %-40s %4d sessions  %s tokens\n", p.Project, p.Sessions, humanize.Comma(p.TotalTokens))
			}
		}
		return nil
	},
}

func init() {
	decayCmd.Flags().Float64Var(&decayThreshold, "threshold", 0.1, "retention score below which memories go cold")
	decayCmd.Flags().BoolVar(&decayDryRun, "dry-run", false, "report the count without changing anything")
}

func secs(n int64) string {
	return (time.Duration(n) * time.Second).String()
}
