package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentops/overseer/internal/session"
	"github.com/agentops/overseer/internal/style"
)

var listProject string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	GroupID: GroupSessions,
	Short:   "List sessions",
	Long: `List live sessions with their status, branch, and PR.

Sessions whose runtime has died since the last poll are shown as killed.

Examples:
  ao list
  ao list --project my-app`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listProject, "project", "p", "", "filter by project id")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	sessions, err := a.sessions.List(cmd.Context(), listProject)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	// the branch column absorbs whatever width the terminal has left
	branchWidth := style.FitWidth(28, 14+12+18+6+7+7, 12)
	table := style.NewTable(
		style.Column{Name: "SESSION", Width: 14},
		style.Column{Name: "PROJECT", Width: 12},
		style.Column{Name: "STATUS", Width: 18},
		style.Column{Name: "BRANCH", Width: branchWidth},
		style.Column{Name: "PR", Width: 6, Right: true},
		style.Column{Name: "AGE", Width: 7, Right: true},
	)
	for _, s := range sessions {
		pr := ""
		if s.PR != nil && s.PR.Number > 0 {
			pr = fmt.Sprintf("#%d", s.PR.Number)
		}
		table.AddRow(s.ID, s.ProjectID, style.RenderStatus(s.Status), s.Branch, pr, age(s))
	}
	fmt.Print(table.Render())
	return nil
}

// age renders how long ago the session was created, coarsely.
func age(s *session.Session) string {
	d := time.Since(s.CreatedAt)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours())/24)
	}
}
