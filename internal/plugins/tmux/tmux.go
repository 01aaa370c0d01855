// Package tmux implements the runtime plugin slot on top of the tmux CLI.
//
// Every operation shells out to tmux with a bounded timeout. Sessions are
// created detached with the agent launch command as the pane's initial
// process, which avoids the race where send-keys fires before the shell
// prompt exists.
package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

// Common errors mapped from tmux stderr.
var (
	ErrNoServer        = errors.New("no tmux server running")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

const (
	// commandTimeout bounds every tmux invocation.
	commandTimeout = 30 * time.Second

	// probeTimeout bounds cheap availability checks.
	probeTimeout = 5 * time.Second

	// sendDebounce is the pause between pasting text and pressing Enter.
	// Shorter delays lose the Enter on loaded hosts.
	sendDebounce = 500 * time.Millisecond

	// sessionPrefix namespaces overseer sessions on a shared tmux server.
	sessionPrefix = "ao-"

	// defaultCaptureLines is the capture-pane window when the caller does
	// not specify one.
	defaultCaptureLines = 50
)

// Runtime is the tmux-backed runtime plugin.
type Runtime struct{}

// Module returns the builtin module descriptor for registration.
func Module() *plugin.Module {
	return &plugin.Module{
		Manifest: plugin.Manifest{
			Slot:        plugin.SlotRuntime,
			Name:        "tmux",
			Description: "Hosts sessions in detached tmux sessions",
		},
		New: func(map[string]any) (any, error) {
			if !Available() {
				return nil, errors.New("tmux binary not found")
			}
			return New(), nil
		},
	}
}

// New creates the tmux runtime.
func New() *Runtime { return &Runtime{} }

// Name implements plugin.Runtime.
func (r *Runtime) Name() string { return "tmux" }

// Available checks whether tmux is installed and can be invoked.
func Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, "tmux", "-V").Run() == nil
}

// run executes one tmux command and returns trimmed stdout.
func (r *Runtime) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", wrapError(err, stderr.String(), args)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// wrapError maps tmux stderr to sentinel errors where recognizable.
func wrapError(err error, stderr string, args []string) error {
	stderr = strings.TrimSpace(stderr)
	switch {
	case strings.Contains(stderr, "no server running"),
		strings.Contains(stderr, "error connecting to"):
		return ErrNoServer
	case strings.Contains(stderr, "duplicate session"):
		return ErrSessionExists
	case strings.Contains(stderr, "session not found"),
		strings.Contains(stderr, "can't find session"):
		return ErrSessionNotFound
	}
	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	}
	return fmt.Errorf("tmux %s: %w", args[0], err)
}

// target returns the tmux session name for a handle. Handles synthesized
// from bare session ids get the prefix added here.
func target(handle *session.RuntimeHandle) string {
	if handle == nil {
		return ""
	}
	if t, ok := handle.Data["tmuxSession"]; ok && t != "" {
		return t
	}
	return sessionPrefix + handle.ID
}

// Create starts a detached tmux session running the launch command as the
// pane's initial process, with the environment prepended via env(1) so the
// agent inherits it from the first exec.
func (r *Runtime) Create(ctx context.Context, spec plugin.CreateSpec) (*session.RuntimeHandle, error) {
	name := sessionPrefix + spec.SessionID
	command := prependEnv(spec.LaunchCommand, spec.Environment)

	args := []string{"new-session", "-d", "-s", name}
	if spec.WorkspacePath != "" {
		args = append(args, "-c", spec.WorkspacePath)
	}
	args = append(args, command)
	if _, err := r.run(ctx, args...); err != nil {
		return nil, fmt.Errorf("creating tmux session %s: %w", name, err)
	}

	// Mirror the environment into the tmux session so respawned panes and
	// attached shells see it too. Non-fatal: the initial process already
	// has the env.
	for _, k := range sortedKeys(spec.Environment) {
		_, _ = r.run(ctx, "set-environment", "-t", name, k, spec.Environment[k])
	}

	return &session.RuntimeHandle{
		ID:          spec.SessionID,
		RuntimeName: "tmux",
		Data:        map[string]string{"tmuxSession": name},
	}, nil
}

// Destroy kills the tmux session. Already-dead sessions are not an error.
func (r *Runtime) Destroy(ctx context.Context, handle *session.RuntimeHandle) error {
	_, err := r.run(ctx, "kill-session", "-t", "="+target(handle))
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
		return nil
	}
	return err
}

// SendMessage delivers a message to the session's pane: literal paste,
// debounce, then Enter with retries. The Enter keystroke is what submits
// the message to the agent, so it gets three attempts.
func (r *Runtime) SendMessage(ctx context.Context, handle *session.RuntimeHandle, message string) error {
	t := target(handle)
	if _, err := r.run(ctx, "send-keys", "-t", t, "-l", message); err != nil {
		return fmt.Errorf("pasting message: %w", err)
	}

	sleepCtx(ctx, sendDebounce)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			sleepCtx(ctx, 200*time.Millisecond)
		}
		if _, err := r.run(ctx, "send-keys", "-t", t, "Enter"); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("sending Enter after 3 attempts: %w", lastErr)
}

// Output captures the last n lines of the session's pane.
func (r *Runtime) Output(ctx context.Context, handle *session.RuntimeHandle, lines int) (string, error) {
	if lines <= 0 {
		lines = defaultCaptureLines
	}
	out, err := r.run(ctx, "capture-pane", "-t", target(handle), "-p", "-S", "-"+strconv.Itoa(lines))
	if err != nil {
		return "", fmt.Errorf("capturing pane: %w", err)
	}
	return out, nil
}

// IsAlive reports whether the tmux session exists. The "=" prefix forces
// exact matching so "ao-app-1" does not match "ao-app-10".
func (r *Runtime) IsAlive(ctx context.Context, handle *session.RuntimeHandle) (bool, error) {
	_, err := r.run(ctx, "has-session", "-t", "="+target(handle))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PanePID returns the pid of the pane's foreground process. Used by agent
// plugins to probe process liveness.
func (r *Runtime) PanePID(ctx context.Context, handle *session.RuntimeHandle) (int, error) {
	out, err := r.run(ctx, "display-message", "-t", target(handle), "-p", "#{pane_pid}")
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parsing pane pid %q: %w", out, err)
	}
	return pid, nil
}

// ListSessions returns the overseer-owned tmux session names.
func (r *Runtime) ListSessions(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil // no server, no sessions
		}
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var names []string
	for _, name := range strings.Split(out, "\n") {
		if strings.HasPrefix(name, sessionPrefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

// prependEnv prefixes a shell command with env(1) assignments.
func prependEnv(command string, env map[string]string) string {
	if len(env) == 0 {
		return command
	}
	parts := []string{"env"}
	for _, k := range sortedKeys(env) {
		parts = append(parts, k+"="+shellQuote(env[k]))
	}
	parts = append(parts, command)
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// shellQuote single-quotes a value for sh, escaping embedded quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// sleepCtx sleeps for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
