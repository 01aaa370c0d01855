package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:     "send <session-id> <message...>",
	GroupID: GroupSessions,
	Short:   "Send a message to a session's agent",
	Long: `Type a message into the session's agent as if you were at the keyboard.

Examples:
  ao send app-1 "Fix the failing test in auth_test.go"
  ao send app-2 continue`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	message := strings.Join(args[1:], " ")
	if err := a.sessions.Send(cmd.Context(), args[0], message); err != nil {
		return err
	}
	fmt.Printf("Sent to %s\n", args[0])
	return nil
}
