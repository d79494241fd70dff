package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/mem/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle assistant hook events",
	Long: `Handle assistant hook events.

Hooks read the event payload as JSON on stdin. They always exit 0: failures
are reported on stderr so a broken store never blocks the assistant.`,
}

func hookRun(event string) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := runHook(cmd, event); err != nil {
			hooks.ReportError(os.Stderr, err)
		}
	}
}

func runHook(cmd *cobra.Command, event string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	h := hooks.New(e.db, cmd.OutOrStdout(), e.log.Logger)
	h.ContextLimit = e.cfg.Context.Limit
	return h.Handle(cmd.Context(), event, cmd.InOrStdin())
}

var hookStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Handle SessionStart: record the session and inject recent memories",
	Args:  cobra.NoArgs,
	Run:   hookRun("start"),
}

var hookStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Handle Stop: record analytics and save an auto memory",
	Args:  cobra.NoArgs,
	Run:   hookRun("stop"),
}

var hookCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Handle PreCompact: re-inject recent memories",
	Args:  cobra.NoArgs,
	Run:   hookRun("compact"),
}

var hookEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Handle SessionEnd: mark the session ended",
	Args:  cobra.NoArgs,
	Run:   hookRun("end"),
}

func init() {
	hookCmd.AddCommand(hookStartCmd)
	hookCmd.AddCommand(hookStopCmd)
	hookCmd.AddCommand(hookCompactCmd)
	hookCmd.AddCommand(hookEndCmd)
}
