package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentops/overseer/internal/manager"
)

var (
	spawnProject string
	spawnIssue   string
	spawnIssues  []string
	spawnBranch  string
	spawnPrompt  string
)

var spawnCmd = &cobra.Command{
	Use:     "spawn",
	GroupID: GroupSessions,
	Short:   "Spawn agent sessions",
	Long: `Spawn one or more agent sessions for a project.

Each session gets its own git worktree and tmux session. With --issue the
agent is prompted from the issue body; --issues spawns a batch, skipping
issues that already have a live session.

Examples:
  ao spawn --project my-app
  ao spawn --project my-app --issue 42
  ao spawn --project my-app --issues 42,57,61
  ao spawn --project my-app --branch feat/login --prompt "Add login flow"`,
	RunE: runSpawn,
}

func init() {
	spawnCmd.Flags().StringVarP(&spawnProject, "project", "p", "", "project id (required)")
	spawnCmd.Flags().StringVarP(&spawnIssue, "issue", "i", "", "issue id to work on")
	spawnCmd.Flags().StringSliceVar(&spawnIssues, "issues", nil, "spawn one session per issue id")
	spawnCmd.Flags().StringVarP(&spawnBranch, "branch", "b", "", "branch name (default derived from issue)")
	spawnCmd.Flags().StringVar(&spawnPrompt, "prompt", "", "prompt override for the agent")
	_ = spawnCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(spawnCmd)
}

func runSpawn(cmd *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if len(spawnIssues) == 0 {
		sess, err := a.sessions.Spawn(ctx, manager.SpawnConfig{
			ProjectID: spawnProject,
			IssueID:   spawnIssue,
			Branch:    spawnBranch,
			Prompt:    spawnPrompt,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Spawned %s on %s\n", sess.ID, sess.Branch)
		return nil
	}

	var failed int
	for _, issue := range spawnIssues {
		issue = strings.TrimSpace(issue)
		if issue == "" {
			continue
		}
		if id := a.sessions.SessionForIssue(spawnProject, issue); id != "" {
			fmt.Printf("Skipping %s: already has session: %s\n", issue, id)
			continue
		}
		sess, err := a.sessions.Spawn(ctx, manager.SpawnConfig{
			ProjectID: spawnProject,
			IssueID:   issue,
		})
		if err != nil {
			fmt.Printf("Failed %s: %v\n", issue, err)
			failed++
			continue
		}
		fmt.Printf("Spawned %s for issue %s on %s\n", sess.ID, issue, sess.Branch)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d spawns failed", failed, len(spawnIssues))
	}
	return nil
}
