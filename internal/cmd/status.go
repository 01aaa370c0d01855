package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentops/overseer/internal/style"
)

var statusCmd = &cobra.Command{
	Use:     "status <session-id>",
	GroupID: GroupSessions,
	Short:   "Show one session in detail",
	Long: `Show everything known about a session: status, branch, worktree,
issue, PR, runtime handle, and the agent's latest summary.

Examples:
  ao status app-1`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	sess, err := a.sessions.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", style.Bold.Render(sess.ID))
	fmt.Printf("  Project:  %s\n", sess.ProjectID)
	fmt.Printf("  Status:   %s\n", style.RenderStatus(sess.Status))
	if sess.Activity != "" {
		fmt.Printf("  Activity: %s\n", sess.Activity)
	}
	fmt.Printf("  Branch:   %s\n", sess.Branch)
	if sess.IssueID != "" {
		fmt.Printf("  Issue:    %s\n", sess.IssueID)
	}
	if sess.PR != nil {
		fmt.Printf("  PR:       %s\n", sess.PR.URL)
	}
	if sess.WorkspacePath != "" {
		fmt.Printf("  Worktree: %s\n", sess.WorkspacePath)
	}
	if sess.RuntimeHandle != nil {
		fmt.Printf("  Runtime:  %s (%s)\n", sess.RuntimeHandle.RuntimeName, sess.RuntimeHandle.ID)
	}
	fmt.Printf("  Created:  %s\n", sess.CreatedAt.Local().Format(time.RFC822))
	if sess.AgentInfo != nil && sess.AgentInfo.Summary != "" {
		fmt.Printf("  Summary:  %s\n", sess.AgentInfo.Summary)
	}
	return nil
}
