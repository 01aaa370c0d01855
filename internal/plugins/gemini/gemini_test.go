package gemini

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
		{"cancellable work", "Generating… (esc to cancel)", session.ActivityActive},
		{"tool confirmation", "Apply this change?\n● 1. Yes", session.ActivityWaitingInput},
		{"shell confirmation", "Allow execution of rm -rf build?", session.ActivityWaitingInput},
		{"quota", "Error: RESOURCE_EXHAUSTED", session.ActivityBlocked},
		{"ready prompt", "Type your message or @path/to/file", session.ActivityReady},
		{"plain scrollback", "done\n$ ", session.ActivityIdle},
		{"empty", "", session.ActivityIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.DetectActivity(tt.terminal))
		})
	}
}

func TestLaunchCommand(t *testing.T) {
	a := New()

	cmd, err := a.LaunchCommand(plugin.LaunchSpec{})
	assert.NoError(t, err)
	assert.Equal(t, "gemini", cmd)

	cmd, err = a.LaunchCommand(plugin.LaunchSpec{
		Prompt: "Fix the auth bug",
		AgentConfig: map[string]any{
			"model":      "gemini-2.5-pro",
			"autoAccept": true,
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, "gemini --model gemini-2.5-pro --yolo -i 'Fix the auth bug'", cmd)
}

func TestEnsureSettings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ensureSettings(dir))

	path := filepath.Join(dir, ".gemini", "settings.json")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "checkpointing")

	// existing settings survive a respawn
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	require.NoError(t, ensureSettings(dir))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(content))
}

func TestIsGeminiCommand(t *testing.T) {
	assert.True(t, isGeminiCommand("node"))
	assert.True(t, isGeminiCommand("gemini"))
	assert.False(t, isGeminiCommand("bash"))
	assert.False(t, isGeminiCommand(""))
}
