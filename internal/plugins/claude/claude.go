// Package claude implements the agent plugin slot for Claude Code.
//
// Launch commands and environment are composed from the project's agent
// config; activity is classified from raw terminal text; deeper probes read
// the pane's foreground command and Claude's own JSONL session log.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

// Agent is the Claude Code agent plugin.
type Agent struct{}

// Module returns the builtin module descriptor for registration.
func Module() *plugin.Module {
	return &plugin.Module{
		Manifest: plugin.Manifest{
			Slot:        plugin.SlotAgent,
			Name:        "claude",
			Description: "Claude Code agent adapter",
		},
		New: func(map[string]any) (any, error) { return New(), nil },
	}
}

// New creates the Claude agent plugin.
func New() *Agent { return &Agent{} }

// Name implements plugin.Agent.
func (a *Agent) Name() string { return "claude" }

// LaunchCommand builds the claude invocation. The prompt rides as the
// positional argument; agentConfig may override the binary and model and
// add extra flags.
func (a *Agent) LaunchCommand(spec plugin.LaunchSpec) (string, error) {
	binary := "claude"
	var flags []string

	if spec.AgentConfig != nil {
		if b, ok := spec.AgentConfig["binary"].(string); ok && b != "" {
			binary = b
		}
		if model, ok := spec.AgentConfig["model"].(string); ok && model != "" {
			flags = append(flags, "--model", model)
		}
		if skip, ok := spec.AgentConfig["skipPermissions"].(bool); ok && skip {
			flags = append(flags, "--dangerously-skip-permissions")
		}
		if extra, ok := spec.AgentConfig["extraArgs"].(string); ok && extra != "" {
			flags = append(flags, extra)
		}
	}

	parts := append([]string{binary}, flags...)
	if spec.Prompt != "" {
		parts = append(parts, shellQuote(spec.Prompt))
	}
	return strings.Join(parts, " "), nil
}

// Environment returns the variables the runtime must set for the session.
// AO_SESSION is the correlation key external hooks rely on; it is always
// present.
func (a *Agent) Environment(spec plugin.LaunchSpec) map[string]string {
	env := map[string]string{
		"AO_SESSION": spec.SessionID,
		"AO_PROJECT": spec.ProjectID,
	}
	if spec.IssueID != "" {
		env["AO_ISSUE"] = spec.IssueID
	}
	if spec.Branch != "" {
		env["AO_BRANCH"] = spec.Branch
	}
	return env
}

// Terminal markers for activity classification. Spinner and interrupt hints
// only appear while Claude is processing; permission dialogs and numbered
// choices mean it is waiting on the human.
var (
	activeMarkers = []string{
		"esc to interrupt",
		"ctrl+b to run in background",
		"✻", "✢", "✳",
	}
	waitingMarkers = []string{
		"Do you want",
		"Would you like",
		"(y/n)",
		"❯ 1.",
		"Bypass Permissions mode",
		"permission to",
	}
	blockedMarkers = []string{
		"usage limit reached",
		"rate limit",
		"overloaded_error",
		"API Error",
	}
)

// DetectActivity classifies recent terminal output. Callers must not trust
// the result for empty output; an empty capture is a probe failure, not an
// idle agent.
func (a *Agent) DetectActivity(terminal string) session.Activity {
	if terminal == "" {
		return session.ActivityIdle
	}
	for _, m := range waitingMarkers {
		if strings.Contains(terminal, m) {
			return session.ActivityWaitingInput
		}
	}
	for _, m := range blockedMarkers {
		if strings.Contains(terminal, m) {
			return session.ActivityBlocked
		}
	}
	for _, m := range activeMarkers {
		if strings.Contains(terminal, m) {
			return session.ActivityActive
		}
	}
	// An empty input box at the bottom means Claude is up and ready for a
	// prompt but doing nothing.
	if strings.Contains(terminal, "❯") {
		return session.ActivityReady
	}
	return session.ActivityIdle
}

// IsProcessRunning reports whether the Claude process itself is alive in
// the runtime. The pane's foreground command is the only reliable signal:
// scrollback markers linger after a crash. Claude reports as "node",
// "claude", or a bare version string.
func (a *Agent) IsProcessRunning(ctx context.Context, handle *session.RuntimeHandle) (bool, error) {
	cmd, err := paneCommand(ctx, handle)
	if err != nil {
		return false, err
	}
	return isClaudeCommand(cmd), nil
}

func isClaudeCommand(cmd string) bool {
	switch cmd {
	case "node", "claude":
		return true
	}
	return versionPattern.MatchString(cmd)
}

// IsProcessing consults Claude's session log for in-flight work: a log that
// advanced within the stale window means the agent is still doing something
// even when the terminal looks quiet.
func (a *Agent) IsProcessing(ctx context.Context, sess *session.Session) (bool, error) {
	info, err := a.SessionInfo(ctx, sess)
	if err != nil || info == nil {
		return false, err
	}
	if info.LastLogTime.IsZero() {
		return false, nil
	}
	return timeSince(info.LastLogTime) < logStaleAfter, nil
}

// PostLaunchSetup implements plugin.Agent. Claude needs no post-launch
// work; settings ship with the workspace.
func (a *Agent) PostLaunchSetup(context.Context, *session.Session) error { return nil }

// shellQuote single-quotes a prompt for sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// errNoPane is returned when the handle cannot be resolved to a pane.
var errNoPane = fmt.Errorf("no pane for handle")
