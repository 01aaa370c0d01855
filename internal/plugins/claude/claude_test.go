package claude

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

func TestDetectActivity(t *testing.T) {
	a := New()
	tests := []struct {
		name     string
		terminal string
		want     session.Activity
	}{
		{"spinner", "✻ Thinking… (esc to interrupt)", session.ActivityActive},
		{"interrupt hint", "Running tests… esc to interrupt", session.ActivityActive},
		{"permission dialog", "Do you want to make this edit?\n❯ 1. Yes", session.ActivityWaitingInput},
		{"numbered choice", "❯ 1. Yes  2. No", session.ActivityWaitingInput},
		{"bypass prompt", "Bypass Permissions mode", session.ActivityWaitingInput},
		{"rate limited", "usage limit reached · resets at 4pm", session.ActivityBlocked},
		{"api error", "API Error: overloaded", session.ActivityBlocked},
		{"ready prompt", "❯ ", session.ActivityReady},
		{"plain scrollback", "done editing files\n$ ", session.ActivityIdle},
		{"empty", "", session.ActivityIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.DetectActivity(tt.terminal))
		})
	}
}

func TestDetectActivityWaitingBeatsActive(t *testing.T) {
	// a permission dialog can appear while the spinner is still on screen
	a := New()
	out := "✻ Working… esc to interrupt\nDo you want to proceed?"
	assert.Equal(t, session.ActivityWaitingInput, a.DetectActivity(out))
}

func TestLaunchCommand(t *testing.T) {
	a := New()

	cmd, err := a.LaunchCommand(plugin.LaunchSpec{})
	assert.NoError(t, err)
	assert.Equal(t, "claude", cmd)

	cmd, err = a.LaunchCommand(plugin.LaunchSpec{
		Prompt: "Fix the auth bug",
		AgentConfig: map[string]any{
			"model":           "opus",
			"skipPermissions": true,
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, "claude --model opus --dangerously-skip-permissions 'Fix the auth bug'", cmd)
}

func TestLaunchCommandQuotesPrompt(t *testing.T) {
	a := New()
	cmd, err := a.LaunchCommand(plugin.LaunchSpec{Prompt: "don't break"})
	assert.NoError(t, err)
	assert.Equal(t, `claude 'don'\''t break'`, cmd)
}

func TestEnvironment(t *testing.T) {
	a := New()
	env := a.Environment(plugin.LaunchSpec{
		SessionID: "app-3",
		ProjectID: "my-app",
		IssueID:   "42",
		Branch:    "feat/issue-42",
	})
	assert.Equal(t, "app-3", env["AO_SESSION"])
	assert.Equal(t, "my-app", env["AO_PROJECT"])
	assert.Equal(t, "42", env["AO_ISSUE"])
	assert.Equal(t, "feat/issue-42", env["AO_BRANCH"])

	env = a.Environment(plugin.LaunchSpec{SessionID: "app-3"})
	_, hasIssue := env["AO_ISSUE"]
	assert.False(t, hasIssue)
}

func TestIsClaudeCommand(t *testing.T) {
	assert.True(t, isClaudeCommand("node"))
	assert.True(t, isClaudeCommand("claude"))
	assert.True(t, isClaudeCommand("2.1.0"))
	assert.False(t, isClaudeCommand("bash"))
	assert.False(t, isClaudeCommand("vim"))
	assert.False(t, isClaudeCommand(""))
}

func TestEncodeProjectDir(t *testing.T) {
	assert.Equal(t, "-home-me-src-my-app", encodeProjectDir("/home/me/src/my.app"))
	assert.Equal(t, "-tmp-a-b", encodeProjectDir("/tmp/a_b"))
}
