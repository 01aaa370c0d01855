package lifecycle

import (
	"context"
	"strings"
	"sync"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/events"
	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

// fakeRuntime serves scripted liveness and terminal output, and records
// messages sent to the agent.
type fakeRuntime struct {
	mu        sync.Mutex
	alive     bool
	aliveErr  error
	output    string
	outputErr error
	sent      map[string][]string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{alive: true, output: "agent humming along", sent: make(map[string][]string)}
}

func (f *fakeRuntime) Name() string { return "tmux" }

func (f *fakeRuntime) Create(_ context.Context, spec plugin.CreateSpec) (*session.RuntimeHandle, error) {
	return &session.RuntimeHandle{ID: spec.SessionID, RuntimeName: "tmux"}, nil
}

func (f *fakeRuntime) Destroy(context.Context, *session.RuntimeHandle) error { return nil }

func (f *fakeRuntime) SendMessage(_ context.Context, handle *session.RuntimeHandle, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[handle.ID] = append(f.sent[handle.ID], message)
	return nil
}

func (f *fakeRuntime) sentTo(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[id]...)
}

func (f *fakeRuntime) Output(context.Context, *session.RuntimeHandle, int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.output, f.outputErr
}

func (f *fakeRuntime) IsAlive(context.Context, *session.RuntimeHandle) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive, f.aliveErr
}

// fakeAgent classifies output by marker substrings.
type fakeAgent struct {
	processRunning bool
}

func (f *fakeAgent) Name() string                                    { return "claude" }
func (f *fakeAgent) LaunchCommand(plugin.LaunchSpec) (string, error) { return "claude", nil }
func (f *fakeAgent) Environment(plugin.LaunchSpec) map[string]string { return nil }

func (f *fakeAgent) DetectActivity(terminal string) session.Activity {
	switch {
	case strings.Contains(terminal, "WAITING"):
		return session.ActivityWaitingInput
	case strings.Contains(terminal, "IDLE"):
		return session.ActivityIdle
	default:
		return session.ActivityActive
	}
}

func (f *fakeAgent) IsProcessRunning(context.Context, *session.RuntimeHandle) (bool, error) {
	return f.processRunning, nil
}
func (f *fakeAgent) IsProcessing(context.Context, *session.Session) (bool, error) { return false, nil }
func (f *fakeAgent) SessionInfo(context.Context, *session.Session) (*session.AgentInfo, error) {
	return nil, nil
}
func (f *fakeAgent) PostLaunchSetup(context.Context, *session.Session) error { return nil }

// fakeSCM serves scripted PR signals.
type fakeSCM struct {
	mu       sync.Mutex
	prState  plugin.PRState
	ci       plugin.CISummary
	review   plugin.ReviewDecision
	mergeOK  bool
	scmErr   error
	detected *session.PRInfo
}

func newFakeSCM() *fakeSCM {
	return &fakeSCM{prState: plugin.PROpen, ci: plugin.CINone, review: plugin.ReviewNone}
}

func (f *fakeSCM) set(fn func(*fakeSCM)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeSCM) Name() string { return "github" }

func (f *fakeSCM) DetectPR(context.Context, *session.Session, *config.Project) (*session.PRInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detected, f.scmErr
}

func (f *fakeSCM) GetPRState(context.Context, *session.PRInfo) (plugin.PRState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prState, f.scmErr
}

func (f *fakeSCM) MergePR(context.Context, *session.PRInfo, string) error { return nil }
func (f *fakeSCM) ClosePR(context.Context, *session.PRInfo) error         { return nil }

func (f *fakeSCM) GetCIChecks(context.Context, *session.PRInfo) ([]plugin.CICheck, error) {
	return nil, nil
}

func (f *fakeSCM) GetCISummary(context.Context, *session.PRInfo) (plugin.CISummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ci, f.scmErr
}

func (f *fakeSCM) GetReviews(context.Context, *session.PRInfo) ([]plugin.Review, error) {
	return nil, nil
}

func (f *fakeSCM) GetReviewDecision(context.Context, *session.PRInfo) (plugin.ReviewDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.review, f.scmErr
}

func (f *fakeSCM) GetPendingComments(context.Context, *session.PRInfo) ([]plugin.Comment, error) {
	return nil, nil
}

func (f *fakeSCM) GetAutomatedComments(context.Context, *session.PRInfo) ([]plugin.Comment, error) {
	return nil, nil
}

func (f *fakeSCM) GetMergeability(context.Context, *session.PRInfo) (*plugin.Mergeability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &plugin.Mergeability{Mergeable: f.mergeOK}, f.scmErr
}

// captureNotifier records every delivered event.
type captureNotifier struct {
	mu     sync.Mutex
	events []*events.Event
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Notify(_ context.Context, ev *events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureNotifier) all() []*events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*events.Event(nil), c.events...)
}

func (c *captureNotifier) ofType(t events.Type) []*events.Event {
	var out []*events.Event
	for _, ev := range c.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
