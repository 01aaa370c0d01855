// Package lifecycle implements the periodic control loop: poll every
// session's signals (runtime liveness, agent activity, PR state), derive
// status transitions, persist them, and dispatch reactions and
// notifications.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/events"
	"github.com/agentops/overseer/internal/logger"
	"github.com/agentops/overseer/internal/manager"
	"github.com/agentops/overseer/internal/metadata"
	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

// outputLines is how much terminal scrollback the activity classifier sees.
const outputLines = 50

// Manager runs the polling loop and owns the per-session transition state.
type Manager struct {
	cfg      *config.Config
	sessions *manager.Manager
	registry *plugin.Registry
	engine   *Engine
	log      *logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// polling guards tick non-reentrancy: a timer firing while a tick is
	// still in flight is a no-op.
	polling atomic.Bool

	// tracked is the last status this loop processed per session id.
	tracked map[string]session.Status

	// allCompleteEmitted guards the one-shot all-complete summary. Reset
	// whenever any session transitions to a non-terminal status.
	allCompleteEmitted bool
}

// New creates a lifecycle manager.
func New(cfg *config.Config, sessions *manager.Manager, registry *plugin.Registry, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	log = log.Named("lifecycle")
	m := &Manager{
		cfg:      cfg,
		sessions: sessions,
		registry: registry,
		log:      log,
		tracked:  make(map[string]session.Status),
	}
	m.engine = newEngine(cfg, sessions, registry, log)
	return m
}

// Start begins the repeating poll. A second Start while running is a no-op.
func (m *Manager) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.loop(ctx, interval)
	m.log.Info("lifecycle loop started", zap.Duration("interval", interval))
}

// Stop cancels the next scheduled tick; an in-flight tick runs to
// completion. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.log.Info("lifecycle loop stopped")
}

func (m *Manager) loop(ctx context.Context, interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one poll pass. Non-reentrant: overlapping calls are no-ops.
func (m *Manager) Tick(ctx context.Context) {
	if !m.polling.CompareAndSwap(false, true) {
		return
	}
	defer m.polling.Store(false)

	sessions, err := m.sessions.List(ctx, "")
	if err != nil {
		m.log.Error("listing sessions", zap.Error(err))
		return
	}

	selected := m.selectSessions(sessions)

	var g errgroup.Group
	for _, sess := range selected {
		sess := sess
		g.Go(func() error {
			if err := m.check(ctx, sess); err != nil {
				m.log.Warn("check failed", zap.String("session", sess.ID), zap.Error(err))
			}
			return nil // one session's failure never cancels another
		})
	}
	_ = g.Wait()

	m.prune(sessions)
	m.maybeEmitAllComplete(ctx, sessions)
}

// selectSessions picks the sessions this tick must process: every
// non-terminal session, plus any whose listed status differs from the last
// processed status. The latter catches runtime-dead transitions surfaced by
// List even though the observed status is already terminal.
func (m *Manager) selectSessions(sessions []*session.Session) []*session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*session.Session
	for _, sess := range sessions {
		prev, seen := m.tracked[sess.ID]
		if !sess.Status.IsTerminal() || (seen && prev != sess.Status) || (!seen && !recordedStatus(sess).IsTerminal()) {
			out = append(out, sess)
		}
	}
	return out
}

// recordedStatus is the status persisted in metadata, before List's
// liveness downgrade.
func recordedStatus(sess *session.Session) session.Status {
	return session.ParseStatus(sess.Metadata[metadata.KeyStatus])
}

// prune drops loop state for sessions no longer listed.
func (m *Manager) prune(sessions []*session.Session) {
	live := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		live[s.ID] = true
	}
	m.mu.Lock()
	for id := range m.tracked {
		if !live[id] {
			delete(m.tracked, id)
		}
	}
	m.mu.Unlock()
	m.engine.pruneSessions(live)
}

// maybeEmitAllComplete emits the one-shot summary when every session has
// reached merged or killed and an all-complete reaction is configured.
func (m *Manager) maybeEmitAllComplete(ctx context.Context, sessions []*session.Session) {
	if len(sessions) == 0 {
		return
	}
	for _, s := range sessions {
		if !s.Status.IsTerminal() {
			return
		}
	}
	if _, ok := m.cfg.Reactions["all-complete"]; !ok {
		return
	}
	m.mu.Lock()
	if m.allCompleteEmitted {
		m.mu.Unlock()
		return
	}
	m.allCompleteEmitted = true
	m.mu.Unlock()

	ev := events.New(events.SummaryAllComplete, "", "",
		fmt.Sprintf("all %d sessions are merged or killed", len(sessions)))
	result := m.engine.Dispatch(ctx, ev, nil)
	if !result.Handled && ev.Priority != events.PriorityInfo {
		m.engine.notifyHuman(ctx, ev)
	}
}

// check derives the session's new status, persists a change, and dispatches
// the resulting event.
func (m *Manager) check(ctx context.Context, sess *session.Session) error {
	m.mu.Lock()
	prev, seen := m.tracked[sess.ID]
	m.mu.Unlock()
	if !seen {
		prev = recordedStatus(sess)
	}

	next := m.determineStatus(ctx, sess, prev)
	m.enrich(ctx, sess)

	m.mu.Lock()
	m.tracked[sess.ID] = next
	m.mu.Unlock()

	if next == prev {
		// No transition, but a reaction-bearing status keeps triggering its
		// reaction every tick: that is what drives retry counting and
		// duration-based escalation while CI stays red or an agent stays
		// stuck.
		m.redispatch(ctx, sess, next)
		return nil
	}
	return m.transition(ctx, sess, prev, next)
}

// redispatch re-triggers the reaction for a status that persisted across
// ticks. Humans are not re-notified here; escalation inside the engine is
// the only path that pages on a steady state.
func (m *Manager) redispatch(ctx context.Context, sess *session.Session, status session.Status) {
	evType, ok := events.ForStatus(status)
	if !ok {
		return
	}
	if _, ok := events.ReactionKey(evType); !ok {
		return
	}
	ev := events.New(evType, sess.ID, sess.ProjectID, statusMessage(sess, status))
	m.engine.Dispatch(ctx, ev, sess)
}

// transition persists the status change and runs reactions/notifications.
func (m *Manager) transition(ctx context.Context, sess *session.Session, prev, next session.Status) error {
	if err := m.sessions.Store().Merge(sess.ProjectID, sess.ID, metadata.Record{
		metadata.KeyStatus: string(next),
	}); err != nil {
		return fmt.Errorf("persisting status: %w", err)
	}
	sess.Status = next
	m.log.Info("status transition",
		zap.String("session", sess.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)))

	if !next.IsTerminal() {
		m.mu.Lock()
		m.allCompleteEmitted = false
		m.mu.Unlock()
	}

	// The old status's reaction no longer applies once the session has
	// moved on; its retry counter starts fresh if the state recurs.
	if evOld, ok := events.ForStatus(prev); ok {
		if key, ok := events.ReactionKey(evOld); ok {
			m.engine.clearTracker(sess.ID, key)
		}
	}

	evType, ok := events.ForStatus(next)
	if !ok {
		return nil
	}
	ev := events.New(evType, sess.ID, sess.ProjectID, statusMessage(sess, next))
	result := m.engine.Dispatch(ctx, ev, sess)
	if !result.Handled && ev.Priority != events.PriorityInfo {
		m.engine.notifyHuman(ctx, ev)
	}
	return nil
}

// determineStatus derives the next status from the three signal sources in
// priority order: runtime liveness, agent activity, PR state. Probe errors
// never invent transitions; a session stuck or waiting for input keeps that
// status until a probe succeeds.
func (m *Manager) determineStatus(ctx context.Context, sess *session.Session, current session.Status) session.Status {
	preserved := current == session.StatusStuck || current == session.StatusNeedsInput

	runtime, hasRuntime := m.runtimeFor(sess)
	if hasRuntime && sess.RuntimeHandle != nil {
		alive, err := runtime.IsAlive(ctx, sess.RuntimeHandle)
		switch {
		case err != nil:
			if preserved {
				return current
			}
			// Probe failure; assume alive and keep reading signals.
		case !alive:
			return session.StatusKilled
		}
		if s, decided := m.statusFromActivity(ctx, sess, runtime, current, preserved); decided {
			return s
		}
	}

	if s, decided := m.statusFromPR(ctx, sess); decided {
		return s
	}

	switch current {
	case session.StatusSpawning, session.StatusStuck, session.StatusNeedsInput:
		return session.StatusWorking
	default:
		return current
	}
}

// statusFromActivity classifies recent terminal output. Empty output is a
// probe failure, not idleness.
func (m *Manager) statusFromActivity(ctx context.Context, sess *session.Session, runtime plugin.Runtime, current session.Status, preserved bool) (session.Status, bool) {
	out, err := runtime.Output(ctx, sess.RuntimeHandle, outputLines)
	if err != nil || out == "" {
		if preserved {
			return current, true
		}
		return "", false
	}

	agent, ok := m.agentFor(sess)
	if !ok {
		return "", false
	}
	activity := agent.DetectActivity(out)
	sess.Activity = activity
	if activity != session.ActivityIdle {
		sess.LastActivityAt = time.Now().UTC()
	}
	switch activity {
	case session.ActivityWaitingInput:
		return session.StatusNeedsInput, true
	case session.ActivityIdle:
		running, err := agent.IsProcessRunning(ctx, sess.RuntimeHandle)
		if err != nil {
			if preserved {
				return current, true
			}
			return "", false
		}
		if !running {
			return session.StatusKilled, true
		}
		return "", false
	default:
		return "", false
	}
}

// statusFromPR maps the PR's platform state to a session status. Every SCM
// call is wrapped: any failure skips this signal source entirely.
func (m *Manager) statusFromPR(ctx context.Context, sess *session.Session) (session.Status, bool) {
	scm, ok := m.scmFor(sess)
	if !ok {
		return "", false
	}
	project, err := m.cfg.Project(sess.ProjectID)
	if err != nil {
		return "", false
	}

	if sess.PR == nil {
		pr, err := scm.DetectPR(ctx, sess, project)
		if err != nil || pr == nil {
			return "", false
		}
		sess.PR = pr
		if pr.URL != "" {
			_ = m.sessions.Store().Merge(sess.ProjectID, sess.ID, metadata.Record{
				metadata.KeyPR: pr.URL,
			}) // best-effort; re-detected next tick if lost
		}
	}

	state, err := scm.GetPRState(ctx, sess.PR)
	if err != nil {
		return "", false
	}
	switch state {
	case plugin.PRMerged:
		return session.StatusMerged, true
	case plugin.PRClosed:
		return session.StatusKilled, true
	}

	ci, err := scm.GetCISummary(ctx, sess.PR)
	if err != nil {
		return "", false
	}
	if ci == plugin.CIFailing {
		return session.StatusCIFailed, true
	}

	decision, err := scm.GetReviewDecision(ctx, sess.PR)
	if err != nil {
		return "", false
	}
	switch decision {
	case plugin.ReviewChangesRequested:
		return session.StatusChangesRequested, true
	case plugin.ReviewApproved:
		mrg, err := scm.GetMergeability(ctx, sess.PR)
		if err != nil {
			return "", false
		}
		if mrg != nil && mrg.Mergeable {
			return session.StatusMergeable, true
		}
		return session.StatusApproved, true
	case plugin.ReviewPending:
		return session.StatusReviewPending, true
	}
	return session.StatusPROpen, true
}

// enrich refreshes the agent's summary in metadata when the agent log has
// one. Best-effort; never affects the derived status.
func (m *Manager) enrich(ctx context.Context, sess *session.Session) {
	agent, ok := m.agentFor(sess)
	if !ok {
		return
	}
	info, err := agent.SessionInfo(ctx, sess)
	if err != nil || info == nil {
		return
	}
	sess.AgentInfo = info
	if info.Summary != "" && info.Summary != sess.Metadata[metadata.KeySummary] {
		_ = m.sessions.Store().Merge(sess.ProjectID, sess.ID, metadata.Record{
			metadata.KeySummary: info.Summary,
		})
	}
}

func (m *Manager) runtimeFor(sess *session.Session) (plugin.Runtime, bool) {
	name := ""
	if sess.RuntimeHandle != nil {
		name = sess.RuntimeHandle.RuntimeName
	}
	if name == "" {
		project, _ := m.cfg.Project(sess.ProjectID)
		name = m.cfg.RuntimeFor(project)
	}
	return plugin.Lookup[plugin.Runtime](m.registry, plugin.SlotRuntime, name)
}

func (m *Manager) agentFor(sess *session.Session) (plugin.Agent, bool) {
	project, _ := m.cfg.Project(sess.ProjectID)
	return plugin.Lookup[plugin.Agent](m.registry, plugin.SlotAgent, m.cfg.AgentFor(project))
}

func (m *Manager) scmFor(sess *session.Session) (plugin.SCM, bool) {
	project, err := m.cfg.Project(sess.ProjectID)
	if err != nil {
		return nil, false
	}
	return plugin.Lookup[plugin.SCM](m.registry, plugin.SlotSCM, m.cfg.SCMFor(project))
}

// statusMessage renders the human-readable transition line used in events.
func statusMessage(sess *session.Session, next session.Status) string {
	switch next {
	case session.StatusWorking:
		return fmt.Sprintf("%s is working", sess.ID)
	case session.StatusPROpen:
		if sess.PR != nil && sess.PR.URL != "" {
			return fmt.Sprintf("%s opened a pull request: %s", sess.ID, sess.PR.URL)
		}
		return fmt.Sprintf("%s opened a pull request", sess.ID)
	case session.StatusCIFailed:
		return fmt.Sprintf("%s has failing CI checks", sess.ID)
	case session.StatusReviewPending:
		return fmt.Sprintf("%s is awaiting review", sess.ID)
	case session.StatusChangesRequested:
		return fmt.Sprintf("%s has changes requested", sess.ID)
	case session.StatusApproved:
		return fmt.Sprintf("%s is approved", sess.ID)
	case session.StatusMergeable:
		return fmt.Sprintf("%s is approved with green CI and ready to merge", sess.ID)
	case session.StatusMerged:
		return fmt.Sprintf("%s merged", sess.ID)
	case session.StatusNeedsInput:
		return fmt.Sprintf("%s is waiting for input", sess.ID)
	case session.StatusStuck:
		return fmt.Sprintf("%s appears stuck", sess.ID)
	case session.StatusErrored:
		return fmt.Sprintf("%s hit an error", sess.ID)
	case session.StatusKilled:
		return fmt.Sprintf("%s exited", sess.ID)
	default:
		return fmt.Sprintf("%s is now %s", sess.ID, next)
	}
}
