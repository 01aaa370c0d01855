package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupProject string

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	GroupID: GroupSessions,
	Short:   "Reap finished sessions",
	Long: `Kill every session whose PR is merged or closed, whose issue is
completed, or whose runtime has died.

One session failing to clean up never aborts the rest of the batch.

Examples:
  ao cleanup
  ao cleanup --project my-app`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().StringVarP(&cleanupProject, "project", "p", "", "restrict to one project")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	report, err := a.sessions.Cleanup(cmd.Context(), cleanupProject)
	if err != nil {
		return err
	}
	for _, id := range report.Killed {
		fmt.Printf("Killed %s\n", id)
	}
	for id, err := range report.Errors {
		fmt.Printf("Failed %s: %v\n", id, err)
	}
	fmt.Printf("%d killed, %d skipped, %d errors\n",
		len(report.Killed), len(report.Skipped), len(report.Errors))
	return nil
}
