package manager

import (
	"context"
	"errors"
	"sync"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

// fakeRuntime records calls and serves configurable liveness.
type fakeRuntime struct {
	mu        sync.Mutex
	alive     bool
	aliveErr  error
	createErr error
	destroyed []string
	sent      map[string][]string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{alive: true, sent: make(map[string][]string)}
}

func (f *fakeRuntime) Name() string { return "tmux" }

func (f *fakeRuntime) Create(_ context.Context, spec plugin.CreateSpec) (*session.RuntimeHandle, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &session.RuntimeHandle{
		ID:          spec.SessionID,
		RuntimeName: "tmux",
		Data:        map[string]string{"tmuxSession": "ao-" + spec.SessionID},
	}, nil
}

func (f *fakeRuntime) Destroy(_ context.Context, handle *session.RuntimeHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, handle.ID)
	return nil
}

func (f *fakeRuntime) SendMessage(_ context.Context, handle *session.RuntimeHandle, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[handle.ID] = append(f.sent[handle.ID], message)
	return nil
}

func (f *fakeRuntime) Output(context.Context, *session.RuntimeHandle, int) (string, error) {
	return "", errors.New("no output in fake")
}

func (f *fakeRuntime) IsAlive(context.Context, *session.RuntimeHandle) (bool, error) {
	return f.alive, f.aliveErr
}

// fakeAgent launches a fixed command and never detects anything.
type fakeAgent struct{}

func (fakeAgent) Name() string                                    { return "claude" }
func (fakeAgent) LaunchCommand(plugin.LaunchSpec) (string, error) { return "claude", nil }
func (fakeAgent) Environment(spec plugin.LaunchSpec) map[string]string {
	return map[string]string{"AO_SESSION": spec.SessionID}
}
func (fakeAgent) DetectActivity(string) session.Activity { return session.ActivityActive }
func (fakeAgent) IsProcessRunning(context.Context, *session.RuntimeHandle) (bool, error) {
	return true, nil
}
func (fakeAgent) IsProcessing(context.Context, *session.Session) (bool, error) { return false, nil }
func (fakeAgent) SessionInfo(context.Context, *session.Session) (*session.AgentInfo, error) {
	return nil, nil
}
func (fakeAgent) PostLaunchSetup(context.Context, *session.Session) error { return nil }

// fakeWorkspace creates paths under a temp base and records destroys.
type fakeWorkspace struct {
	mu        sync.Mutex
	base      string
	branch    string // served by CurrentBranch; empty means probe failure
	createErr error
	destroyed []string
}

func (f *fakeWorkspace) Name() string { return "worktree" }

func (f *fakeWorkspace) Create(_ context.Context, spec plugin.WorkspaceSpec) (*plugin.WorkspaceInfo, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &plugin.WorkspaceInfo{
		Path:      f.base + "/" + spec.ProjectID + "/" + spec.SessionID,
		Branch:    spec.Branch,
		SessionID: spec.SessionID,
	}, nil
}

func (f *fakeWorkspace) Destroy(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, path)
	return nil
}

func (f *fakeWorkspace) List(context.Context, string) ([]*plugin.WorkspaceInfo, error) {
	return nil, nil
}

func (f *fakeWorkspace) CurrentBranch(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.branch == "" {
		return "", errors.New("not a worktree in fake")
	}
	return f.branch, nil
}

func (f *fakeWorkspace) PostCreate(context.Context, *plugin.WorkspaceInfo, *config.Project) error {
	return nil
}

// fakeSCM serves a fixed PR state.
type fakeSCM struct {
	prState plugin.PRState
}

func (f *fakeSCM) Name() string { return "github" }
func (f *fakeSCM) DetectPR(context.Context, *session.Session, *config.Project) (*session.PRInfo, error) {
	return nil, nil
}
func (f *fakeSCM) GetPRState(context.Context, *session.PRInfo) (plugin.PRState, error) {
	return f.prState, nil
}
func (f *fakeSCM) MergePR(context.Context, *session.PRInfo, string) error { return nil }
func (f *fakeSCM) ClosePR(context.Context, *session.PRInfo) error         { return nil }
func (f *fakeSCM) GetCIChecks(context.Context, *session.PRInfo) ([]plugin.CICheck, error) {
	return nil, nil
}
func (f *fakeSCM) GetCISummary(context.Context, *session.PRInfo) (plugin.CISummary, error) {
	return plugin.CINone, nil
}
func (f *fakeSCM) GetReviews(context.Context, *session.PRInfo) ([]plugin.Review, error) {
	return nil, nil
}
func (f *fakeSCM) GetReviewDecision(context.Context, *session.PRInfo) (plugin.ReviewDecision, error) {
	return plugin.ReviewNone, nil
}
func (f *fakeSCM) GetPendingComments(context.Context, *session.PRInfo) ([]plugin.Comment, error) {
	return nil, nil
}
func (f *fakeSCM) GetAutomatedComments(context.Context, *session.PRInfo) ([]plugin.Comment, error) {
	return nil, nil
}
func (f *fakeSCM) GetMergeability(context.Context, *session.PRInfo) (*plugin.Mergeability, error) {
	return &plugin.Mergeability{}, nil
}
