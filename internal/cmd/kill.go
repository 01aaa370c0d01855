package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var killCmd = &cobra.Command{
	Use:     "kill <session-id>",
	GroupID: GroupSessions,
	Short:   "Tear down a session",
	Long: `Tear down a session: destroy its tmux session and worktree, then
archive its metadata.

The runtime and worktree teardown are best-effort; the metadata archive
always happens so the session stops appearing in listings.

Examples:
  ao kill app-1`,
	Args: cobra.ExactArgs(1),
	RunE: runKill,
}

func init() {
	rootCmd.AddCommand(killCmd)
}

func runKill(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	if err := a.sessions.Kill(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Killed %s\n", args[0])
	return nil
}
