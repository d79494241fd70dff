package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/mem/internal/suggest"
)

// maxSuggestLimit bounds how many auto memories one analysis reads.
const maxSuggestLimit = 500

var suggestLimit int

var suggestRulesCmd = &cobra.Command{
	Use:   "suggest-rules",
	Short: "Suggest CLAUDE.md rules from recurring patterns in auto-captured memories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := suggestLimit
		if limit <= 0 {
			limit = 20
		}
		if limit > maxSuggestLimit {
			limit = maxSuggestLimit
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		memories, err := e.db.RecentAutoMemories(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(memories) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No auto-captured memories found. Run some sessions with the Stop hook first.")
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), suggest.Rules(memories, time.Now()))
		return nil
	},
}

func init() {
	suggestRulesCmd.Flags().IntVar(&suggestLimit, "limit", 20, "number of recent auto-captured memories to analyse")
}
