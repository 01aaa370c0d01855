package claude

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/agentops/overseer/internal/session"
)

// versionPattern matches Claude Code reporting its version as the pane
// command (e.g. "2.0.76").
var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+`)

const probeTimeout = 5 * time.Second

// paneCommand resolves the foreground command of the session's pane.
//
// For tmux-hosted sessions the handle carries the tmux session name and the
// probe asks tmux directly. For other runtimes it falls back to scanning the
// process table for the AO_SESSION correlation variable.
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

// pgrepCommand looks for any process whose command line carries the
// session's correlation variable. Returns the matched command name, or ""
// when nothing matches (pgrep exits 1).
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
