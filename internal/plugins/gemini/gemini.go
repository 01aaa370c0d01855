// Package gemini implements the agent plugin slot for the Gemini CLI.
//
// The adapter mirrors the claude package: launch command and environment
// from the project's agent config, activity classified from terminal text.
// Gemini has no --settings flag, so per-workspace settings are installed
// into the worktree during post-launch setup.
package gemini

import (
	"context"
	"strings"

	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

// Agent is the Gemini CLI agent plugin.
type Agent struct{}

// Module returns the builtin module descriptor for registration.
func Module() *plugin.Module {
	return &plugin.Module{
		Manifest: plugin.Manifest{
			Slot:        plugin.SlotAgent,
			Name:        "gemini",
			Description: "Gemini CLI agent adapter",
		},
		New: func(map[string]any) (any, error) { return New(), nil },
	}
}

// New creates the Gemini agent plugin.
func New() *Agent { return &Agent{} }

// Name implements plugin.Agent.
func (a *Agent) Name() string { return "gemini" }

// LaunchCommand builds the gemini invocation. Unlike claude, the prompt is
// passed via -i so the CLI stays interactive after the opening turn.
func (a *Agent) LaunchCommand(spec plugin.LaunchSpec) (string, error) {
	binary := "gemini"
	var flags []string

	if spec.AgentConfig != nil {
		if b, ok := spec.AgentConfig["binary"].(string); ok && b != "" {
			binary = b
		}
		if model, ok := spec.AgentConfig["model"].(string); ok && model != "" {
			flags = append(flags, "--model", model)
		}
		if yolo, ok := spec.AgentConfig["autoAccept"].(bool); ok && yolo {
			flags = append(flags, "--yolo")
		}
		if extra, ok := spec.AgentConfig["extraArgs"].(string); ok && extra != "" {
			flags = append(flags, extra)
		}
	}

	parts := append([]string{binary}, flags...)
	if spec.Prompt != "" {
		parts = append(parts, "-i", shellQuote(spec.Prompt))
	}
	return strings.Join(parts, " "), nil
}

// Environment returns the variables the runtime must set for the session.
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

// Terminal markers for activity classification.
var (
	activeMarkers = []string{
		"(esc to cancel)",
		"esc to interrupt",
	}
	waitingMarkers = []string{
		"Apply this change?",
		"Allow execution",
		"Do you want",
		"● 1.",
		"(y/n)",
	}
	blockedMarkers = []string{
		"RESOURCE_EXHAUSTED",
		"Quota exceeded",
		"rate limit",
		"429",
	}
)

// DetectActivity classifies recent terminal output. As with claude, an
// empty capture is a probe failure upstream, not an idle agent.
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
	if strings.Contains(terminal, "Type your message") {
		return session.ActivityReady
	}
	return session.ActivityIdle
}

// IsProcessRunning reports whether the gemini process is alive in the
// runtime pane. Gemini reports as "node" or "gemini".
func (a *Agent) IsProcessRunning(ctx context.Context, handle *session.RuntimeHandle) (bool, error) {
	cmd, err := paneCommand(ctx, handle)
	if err != nil {
		return false, err
	}
	return isGeminiCommand(cmd), nil
}

func isGeminiCommand(cmd string) bool {
	switch cmd {
	case "node", "gemini":
		return true
	}
	return false
}

// IsProcessing implements plugin.Agent. Gemini keeps no session log the
// engine can read, so the terminal signal is all there is.
func (a *Agent) IsProcessing(context.Context, *session.Session) (bool, error) {
	return false, nil
}

// SessionInfo implements plugin.Agent. No out-of-band session metadata.
func (a *Agent) SessionInfo(context.Context, *session.Session) (*session.AgentInfo, error) {
	return nil, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
