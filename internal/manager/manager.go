// Package manager implements session CRUD: spawning, listing, inspection,
// message delivery, teardown, and bulk cleanup. Everything goes through
// plugin interfaces; the manager knows nothing about tmux, git, or gh.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/logger"
	"github.com/agentops/overseer/internal/metadata"
	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

// maxReserveAttempts bounds id-reservation retries under concurrent spawns.
const maxReserveAttempts = 10

// ErrSessionNotFound is returned when no live metadata exists for an id.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns session lifecycle CRUD over the metadata store and the
// plugin registry.
type Manager struct {
	cfg      *config.Config
	store    *metadata.Store
	registry *plugin.Registry
	log      *logger.Logger
}

// New creates a Manager.
func New(cfg *config.Config, store *metadata.Store, registry *plugin.Registry, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		registry: registry,
		log:      log.Named("manager"),
	}
}

// Store exposes the metadata store for the lifecycle loop's merge updates.
func (m *Manager) Store() *metadata.Store { return m.store }

// SpawnConfig is the input to Spawn.
type SpawnConfig struct {
	ProjectID string
	IssueID   string
	Branch    string
	Prompt    string
}

// Spawn creates one session: reserve an id, create the workspace, start the
// runtime with the agent's launch command, persist metadata. Every step
// rolls back everything allocated before it on failure.
func (m *Manager) Spawn(ctx context.Context, sc SpawnConfig) (*session.Session, error) {
	project, err := m.cfg.Project(sc.ProjectID)
	if err != nil {
		return nil, err
	}

	runtime, ok := plugin.Lookup[plugin.Runtime](m.registry, plugin.SlotRuntime, m.cfg.RuntimeFor(project))
	if !ok {
		return nil, fmt.Errorf("runtime plugin %q not available", m.cfg.RuntimeFor(project))
	}
	agent, ok := plugin.Lookup[plugin.Agent](m.registry, plugin.SlotAgent, m.cfg.AgentFor(project))
	if !ok {
		return nil, fmt.Errorf("agent plugin %q not available", m.cfg.AgentFor(project))
	}
	// Workspace, tracker and SCM are optional.
	workspace, hasWorkspace := plugin.Lookup[plugin.Workspace](m.registry, plugin.SlotWorkspace, m.cfg.WorkspaceFor(project))
	tracker, hasTracker := plugin.Lookup[plugin.Tracker](m.registry, plugin.SlotTracker, m.cfg.TrackerFor(project))

	sessionID, err := m.reserveID(sc.ProjectID, project.SessionPrefix, metadata.Record{
		metadata.KeyStatus:  string(session.StatusSpawning),
		metadata.KeyProject: sc.ProjectID,
	})
	if err != nil {
		return nil, err
	}

	branch := sc.Branch
	if branch == "" {
		switch {
		case sc.IssueID != "" && hasTracker:
			branch = tracker.BranchName(sc.IssueID, project)
		case sc.IssueID != "":
			branch = "feat/" + sc.IssueID
		default:
			branch = project.DefaultBranch
		}
	}

	workspacePath := project.Path
	var created *plugin.WorkspaceInfo
	if hasWorkspace {
		created, err = workspace.Create(ctx, plugin.WorkspaceSpec{
			ProjectID: sc.ProjectID,
			Project:   project,
			SessionID: sessionID,
			Branch:    branch,
		})
		if err != nil {
			_ = m.store.Release(sc.ProjectID, sessionID)
			return nil, fmt.Errorf("creating workspace: %w", err)
		}
		workspacePath = created.Path
		if err := workspace.PostCreate(ctx, created, project); err != nil {
			_ = workspace.Destroy(ctx, created.Path)
			_ = m.store.Release(sc.ProjectID, sessionID)
			return nil, fmt.Errorf("workspace post-create: %w", err)
		}
	}

	// rollback unwinds workspace and reservation; extended below once the
	// runtime exists.
	rollback := func() {
		if created != nil {
			_ = workspace.Destroy(ctx, created.Path)
		}
		_ = m.store.Release(sc.ProjectID, sessionID)
	}

	prompt := sc.Prompt
	if prompt == "" && sc.IssueID != "" && hasTracker {
		if p, err := tracker.GeneratePrompt(ctx, sc.IssueID, project); err == nil {
			prompt = p
		} else {
			m.log.Warn("prompt generation failed, launching without prompt",
				zap.String("session", sessionID), zap.Error(err))
		}
	}

	launch := plugin.LaunchSpec{
		SessionID:     sessionID,
		ProjectID:     sc.ProjectID,
		Project:       project,
		WorkspacePath: workspacePath,
		Branch:        branch,
		IssueID:       sc.IssueID,
		Prompt:        prompt,
		AgentConfig:   project.AgentConfig,
	}
	command, err := agent.LaunchCommand(launch)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("composing launch command: %w", err)
	}

	handle, err := runtime.Create(ctx, plugin.CreateSpec{
		SessionID:     sessionID,
		WorkspacePath: workspacePath,
		LaunchCommand: command,
		Environment:   agent.Environment(launch),
	})
	if err != nil {
		rollback()
		return nil, fmt.Errorf("creating runtime: %w", err)
	}

	handleJSON, err := json.Marshal(handle)
	if err != nil {
		_ = runtime.Destroy(ctx, handle)
		rollback()
		return nil, fmt.Errorf("encoding runtime handle: %w", err)
	}

	now := time.Now().UTC()
	rec := metadata.Record{
		metadata.KeyStatus:        string(session.StatusSpawning),
		metadata.KeyProject:       sc.ProjectID,
		metadata.KeyBranch:        branch,
		metadata.KeyWorktree:      workspacePath,
		metadata.KeyIssue:         sc.IssueID,
		metadata.KeyCreatedAt:     now.Format(time.RFC3339),
		metadata.KeyRuntimeHandle: string(handleJSON),
	}
	if err := m.store.Write(sc.ProjectID, sessionID, rec); err != nil {
		_ = runtime.Destroy(ctx, handle)
		rollback()
		return nil, fmt.Errorf("persisting session metadata: %w", err)
	}

	sess := &session.Session{
		ID:            sessionID,
		ProjectID:     sc.ProjectID,
		Status:        session.StatusSpawning,
		Activity:      session.ActivityActive,
		Branch:        branch,
		IssueID:       sc.IssueID,
		WorkspacePath: workspacePath,
		RuntimeHandle: handle,
		CreatedAt:     now,
		Metadata:      rec,
	}
	if err := agent.PostLaunchSetup(ctx, sess); err != nil {
		_ = runtime.Destroy(ctx, handle)
		rollback()
		return nil, fmt.Errorf("agent post-launch setup: %w", err)
	}

	m.log.Info("spawned session",
		zap.String("session", sessionID),
		zap.String("project", sc.ProjectID),
		zap.String("branch", branch))
	return sess, nil
}

// reserveID allocates <prefix>-<N> with N = max(existing)+1, claiming it via
// the store's exclusive-create. Collisions from concurrent spawns increment
// and retry.
func (m *Manager) reserveID(projectID, prefix string, rec metadata.Record) (string, error) {
	existing, err := m.store.List(projectID)
	if err != nil {
		return "", fmt.Errorf("listing sessions: %w", err)
	}
	id := session.NextID(prefix, existing)
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		err := m.store.Reserve(projectID, id, rec)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, metadata.ErrExists) {
			return "", err
		}
		id = session.FormatID(prefix, session.Number(id, prefix)+1)
	}
	return "", fmt.Errorf("could not reserve a session id for %s after %d attempts", prefix, maxReserveAttempts)
}

// List reconstructs every live session, optionally filtered by project.
// Sessions whose runtime is confirmed dead are reported as killed; liveness
// probe failures assume alive.
func (m *Manager) List(ctx context.Context, projectID string) ([]*session.Session, error) {
	projects := []string{projectID}
	if projectID == "" {
		var err error
		projects, err = m.store.ListProjects()
		if err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}
	}

	var sessions []*session.Session
	for _, pid := range projects {
		ids, err := m.store.List(pid)
		if err != nil {
			return nil, fmt.Errorf("listing sessions for %s: %w", pid, err)
		}
		for _, id := range ids {
			rec, err := m.store.Read(pid, id)
			if err != nil {
				m.log.Warn("unreadable session record", zap.String("session", id), zap.Error(err))
				continue
			}
			sess := m.reconstruct(pid, id, rec)
			m.applyLiveness(ctx, sess)
			m.applyLiveBranch(ctx, sess)
			sessions = append(sessions, sess)
		}
	}
	return sessions, nil
}

// applyLiveness downgrades a session to killed when its runtime is
// confirmed gone.
func (m *Manager) applyLiveness(ctx context.Context, sess *session.Session) {
	if sess.RuntimeHandle == nil || sess.Status.IsTerminal() {
		return
	}
	runtime, ok := plugin.Lookup[plugin.Runtime](m.registry, plugin.SlotRuntime, sess.RuntimeHandle.RuntimeName)
	if !ok {
		return
	}
	alive, err := runtime.IsAlive(ctx, sess.RuntimeHandle)
	if err != nil {
		return // assume alive
	}
	if !alive {
		sess.Status = session.StatusKilled
		sess.Activity = session.ActivityExited
	}
}

// applyLiveBranch overrides the cached branch with whatever the workspace
// has checked out right now. Best-effort: probe failures keep the cache.
func (m *Manager) applyLiveBranch(ctx context.Context, sess *session.Session) {
	if sess.WorkspacePath == "" || sess.Status.IsTerminal() {
		return
	}
	project, err := m.cfg.Project(sess.ProjectID)
	if err != nil || sess.WorkspacePath == project.Path {
		return
	}
	workspace, ok := plugin.Lookup[plugin.Workspace](m.registry, plugin.SlotWorkspace, m.cfg.WorkspaceFor(project))
	if !ok {
		return
	}
	if branch, err := workspace.CurrentBranch(ctx, sess.WorkspacePath); err == nil && branch != "" {
		sess.Branch = branch
	}
}

// Get returns the session for an id, or ErrSessionNotFound. The project is
// discovered by scanning, since ids are unique per host prefix.
func (m *Manager) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	pid, rec, err := m.find(sessionID)
	if err != nil {
		return nil, err
	}
	sess := m.reconstruct(pid, sessionID, rec)
	m.applyLiveness(ctx, sess)
	m.applyLiveBranch(ctx, sess)
	return sess, nil
}

// find locates the project holding a session id.
func (m *Manager) find(sessionID string) (string, metadata.Record, error) {
	projects, err := m.store.ListProjects()
	if err != nil {
		return "", nil, err
	}
	for _, pid := range projects {
		if !m.store.Exists(pid, sessionID) {
			continue
		}
		rec, err := m.store.Read(pid, sessionID)
		if err != nil {
			return "", nil, err
		}
		return pid, rec, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

// Send delivers a message to the session's agent through its runtime. The
// stored handle's runtime wins; without a handle one is synthesized against
// the project's (or default) runtime.
func (m *Manager) Send(ctx context.Context, sessionID, message string) error {
	pid, rec, err := m.find(sessionID)
	if err != nil {
		return err
	}
	sess := m.reconstruct(pid, sessionID, rec)

	runtimeName := ""
	if sess.RuntimeHandle != nil {
		runtimeName = sess.RuntimeHandle.RuntimeName
	}
	if runtimeName == "" {
		project, _ := m.cfg.Project(pid)
		runtimeName = m.cfg.RuntimeFor(project)
	}
	runtime, ok := plugin.Lookup[plugin.Runtime](m.registry, plugin.SlotRuntime, runtimeName)
	if !ok {
		return fmt.Errorf("runtime plugin %q not available", runtimeName)
	}

	handle := sess.RuntimeHandle
	if handle == nil {
		handle = &session.RuntimeHandle{ID: sessionID, RuntimeName: runtimeName, Data: map[string]string{}}
	}
	return runtime.SendMessage(ctx, handle, message)
}

// SessionForIssue returns the id of the live session already working an
// issue, or empty. Unreadable records are skipped; batch spawns use this to
// avoid doubling up on an issue.
func (m *Manager) SessionForIssue(projectID, issueID string) string {
	if issueID == "" {
		return ""
	}
	ids, err := m.store.List(projectID)
	if err != nil {
		return ""
	}
	for _, id := range ids {
		rec, err := m.store.Read(projectID, id)
		if err != nil {
			continue
		}
		if rec[metadata.KeyIssue] == issueID {
			return id
		}
	}
	return ""
}

// Kill tears a session down: destroy runtime and workspace best-effort,
// then archive the metadata. The archive is mandatory; destroy failures are
// logged and swallowed.
func (m *Manager) Kill(ctx context.Context, sessionID string) error {
	pid, rec, err := m.find(sessionID)
	if err != nil {
		return err
	}
	sess := m.reconstruct(pid, sessionID, rec)
	project, _ := m.cfg.Project(pid)

	if sess.RuntimeHandle != nil {
		if runtime, ok := plugin.Lookup[plugin.Runtime](m.registry, plugin.SlotRuntime, sess.RuntimeHandle.RuntimeName); ok {
			if err := runtime.Destroy(ctx, sess.RuntimeHandle); err != nil {
				m.log.Warn("runtime destroy failed", zap.String("session", sessionID), zap.Error(err))
			}
		}
	}

	if sess.WorkspacePath != "" && (project == nil || sess.WorkspacePath != project.Path) {
		if workspace, ok := plugin.Lookup[plugin.Workspace](m.registry, plugin.SlotWorkspace, m.cfg.WorkspaceFor(project)); ok {
			if err := workspace.Destroy(ctx, sess.WorkspacePath); err != nil {
				m.log.Warn("workspace destroy failed", zap.String("session", sessionID), zap.Error(err))
			}
		}
	}

	dest, err := m.store.Archive(pid, sessionID)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", sessionID, err)
	}
	m.log.Info("killed session", zap.String("session", sessionID), zap.String("archive", dest))
	return nil
}

// CleanupReport summarizes one Cleanup pass.
type CleanupReport struct {
	Killed  []string
	Skipped []string
	Errors  map[string]error
}

// Cleanup kills every session whose PR is merged or closed, whose issue is
// completed, or whose runtime is dead. One session's failure never aborts
// the batch.
func (m *Manager) Cleanup(ctx context.Context, projectID string) (*CleanupReport, error) {
	sessions, err := m.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	report := &CleanupReport{Errors: make(map[string]error)}
	for _, sess := range sessions {
		finished, why := m.isFinished(ctx, sess)
		if !finished {
			report.Skipped = append(report.Skipped, sess.ID)
			continue
		}
		if err := m.Kill(ctx, sess.ID); err != nil {
			report.Errors[sess.ID] = err
			continue
		}
		m.log.Info("cleanup", zap.String("session", sess.ID), zap.String("reason", why))
		report.Killed = append(report.Killed, sess.ID)
	}
	return report, nil
}

// isFinished decides whether Cleanup may reap a session.
func (m *Manager) isFinished(ctx context.Context, sess *session.Session) (bool, string) {
	if sess.Status == session.StatusKilled {
		return true, "runtime dead"
	}
	project, err := m.cfg.Project(sess.ProjectID)
	if err != nil {
		return false, ""
	}
	if sess.PR != nil {
		if scm, ok := plugin.Lookup[plugin.SCM](m.registry, plugin.SlotSCM, m.cfg.SCMFor(project)); ok {
			if state, err := scm.GetPRState(ctx, sess.PR); err == nil {
				if state == plugin.PRMerged || state == plugin.PRClosed {
					return true, "pr " + string(state)
				}
			}
		}
	}
	if sess.IssueID != "" {
		if tracker, ok := plugin.Lookup[plugin.Tracker](m.registry, plugin.SlotTracker, m.cfg.TrackerFor(project)); ok {
			if done, err := tracker.IsCompleted(ctx, sess.IssueID, project); err == nil && done {
				return true, "issue completed"
			}
		}
	}
	return false, ""
}

// reconstruct builds a Session from its metadata record. Malformed fields
// coerce to safe defaults rather than failing the whole listing.
func (m *Manager) reconstruct(projectID, sessionID string, rec metadata.Record) *session.Session {
	sess := &session.Session{
		ID:            sessionID,
		ProjectID:     projectID,
		Status:        session.ParseStatus(rec[metadata.KeyStatus]),
		Branch:        rec[metadata.KeyBranch],
		IssueID:       rec[metadata.KeyIssue],
		WorkspacePath: rec[metadata.KeyWorktree],
		Metadata:      rec,
	}

	if raw := rec[metadata.KeyPR]; raw != "" {
		sess.PR = session.ParsePRURL(raw)
	}
	if raw := rec[metadata.KeyRuntimeHandle]; raw != "" {
		var handle session.RuntimeHandle
		if err := json.Unmarshal([]byte(raw), &handle); err == nil {
			// Only a parse failure nulls the handle; a record missing the id
			// gets it backfilled, same as the synthesized-handle path in Send.
			if handle.ID == "" {
				handle.ID = sessionID
			}
			sess.RuntimeHandle = &handle
		}
	}
	if summary := rec[metadata.KeySummary]; summary != "" {
		sess.AgentInfo = &session.AgentInfo{Summary: summary}
	}
	if raw := rec[metadata.KeyCreatedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			sess.CreatedAt = t
		}
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	return sess
}
