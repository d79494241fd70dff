package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lazypower/mem/internal/indexer"
)

var (
	indexProject string
	indexWatch   bool
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index project documentation for search",
	Long: `Index project documentation for search.

Files matching the configured patterns (CLAUDE.md, README.md, docs/**/*.md
by default) are upserted by modification time: unchanged files are skipped.
With --watch, matching files are re-indexed as they change until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		ix := indexer.New(e.db, e.cfg.Indexer.Patterns, e.log.Logger)
		res, err := ix.Scan(cmd.Context(), root, indexProject)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s: %d new, %d updated, %d unchanged", root, res.New, res.Updated, res.Unchanged)
		if res.Failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), ", %d failed", res.Failed)
		}
		fmt.Fprintln(cmd.OutOrStdout())

		if !indexWatch {
			return nil
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.ErrOrStderr(), "watching %s (ctrl-c to stop)\n", root)
		return ix.Watch(ctx, root, indexProject)
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexProject, "project", "", "project name (default: directory name)")
	indexCmd.Flags().BoolVar(&indexWatch, "watch", false, "keep running and re-index files as they change")
}
