package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	sessionID      string
	sessionProject string
	sessionGoal    string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Record session boundaries",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session and print its id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := absProject(sessionProject)
		if err != nil {
			return err
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		id, err := e.db.StartSession(cmd.Context(), sessionID, project, sessionGoal)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <id>",
	Short: "Mark a session ended",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.db.EndSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s ended.\n", args[0])
		return nil
	},
}

func init() {
	sessionStartCmd.Flags().StringVar(&sessionID, "id", "", "session id (default: generated)")
	sessionStartCmd.Flags().StringVar(&sessionProject, "project", "", "project path")
	sessionStartCmd.Flags().StringVar(&sessionGoal, "goal", "", "what the session is for")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionEndCmd)
}
