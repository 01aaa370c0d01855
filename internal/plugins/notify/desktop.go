// Package notify ships the builtin notifier plugins: desktop notifications,
// JSON webhooks, and a zap-backed log notifier for headless hosts.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/agentops/overseer/internal/events"
	"github.com/agentops/overseer/internal/plugin"
)

const notifyTimeout = 10 * time.Second

// Desktop delivers native desktop notifications: osascript on macOS,
// notify-send elsewhere.
type Desktop struct{}

// DesktopModule returns the builtin module descriptor.
func DesktopModule() *plugin.Module {
	return &plugin.Module{
		Manifest: plugin.Manifest{
			Slot:        plugin.SlotNotifier,
			Name:        "desktop",
			Description: "Native desktop notifications",
		},
		New: func(map[string]any) (any, error) { return &Desktop{}, nil },
	}
}

// Name implements plugin.Notifier.
func (d *Desktop) Name() string { return "desktop" }

// Notify implements plugin.Notifier.
func (d *Desktop) Notify(ctx context.Context, event *events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	title := titleFor(event)
	body := event.Message

	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = exec.CommandContext(ctx, "osascript", "-e", script)
	} else {
		urgency := "normal"
		if event.Priority == events.PriorityUrgent {
			urgency = "critical"
		}
		cmd = exec.CommandContext(ctx, "notify-send", "-u", urgency, title, body)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("desktop notification: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// titleFor builds a short notification title from the event.
func titleFor(event *events.Event) string {
	var b strings.Builder
	b.WriteString("overseer")
	if event.SessionID != "" {
		b.WriteString(" · ")
		b.WriteString(event.SessionID)
	}
	b.WriteString(" · ")
	b.WriteString(string(event.Type))
	return b.String()
}
