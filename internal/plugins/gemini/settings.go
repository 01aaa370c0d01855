package gemini

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentops/overseer/internal/session"
)

//go:embed config/settings.json
var configFS embed.FS

const (
	settingsDir  = ".gemini"
	settingsFile = "settings.json"
)

// PostLaunchSetup installs default Gemini settings into the session's
// worktree. An existing settings file is left untouched so per-workspace
// customization survives respawns.
func (a *Agent) PostLaunchSetup(_ context.Context, sess *session.Session) error {
	if sess == nil || sess.WorkspacePath == "" {
		return nil
	}
	return ensureSettings(sess.WorkspacePath)
}

func ensureSettings(workDir string) error {
	dir := filepath.Join(workDir, settingsDir)
	path := filepath.Join(dir, settingsFile)

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	content, err := configFS.ReadFile("config/" + settingsFile)
	if err != nil {
		return fmt.Errorf("reading settings template: %w", err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
