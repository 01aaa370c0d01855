package gemini

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/agentops/overseer/internal/session"
)

const probeTimeout = 5 * time.Second

var errNoPane = errors.New("no pane for handle")

// paneCommand resolves the foreground command of the session's pane,
// asking tmux directly when the handle names a tmux session and falling
// back to a process-table scan otherwise.
func paneCommand(ctx context.Context, handle *session.RuntimeHandle) (string, error) {
	if handle == nil {
		return "", errNoPane
	}
	if target, ok := handle.Data["tmuxSession"]; ok && target != "" {
		return tmuxPaneCommand(ctx, target)
	}
	return pgrepCommand(ctx, handle.ID)
}

func tmuxPaneCommand(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "tmux", "list-panes", "-t", "="+target, "-F", "#{pane_current_command}")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(strings.TrimSpace(out.String()), "\n")
	return first, nil
}

func pgrepCommand(ctx context.Context, sessionID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "pgrep", "-f", "-l", "AO_SESSION="+sessionID)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
			return "", nil // no match
		}
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out.String()), "\n")
	_, name, found := strings.Cut(line, " ")
	if !found {
		return "", nil
	}
	return name, nil
}
