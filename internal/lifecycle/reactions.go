package lifecycle

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/events"
	"github.com/agentops/overseer/internal/logger"
	"github.com/agentops/overseer/internal/manager"
	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

// Result reports what the reaction engine did with an event.
type Result struct {
	// Handled means a reaction claimed the event; the caller must not emit
	// its own human notification for the same transition.
	Handled bool
	// Escalated means the retry budget is exhausted and humans were paged.
	Escalated bool
	// Success is false when the action ran but failed; the next tick
	// retries without escalating.
	Success bool
}

type trackerKey struct {
	sessionID string
	reaction  string
}

// tracker counts attempts for one (session, reaction key) pair. Cleared on
// status transition; pruned when the session disappears.
type tracker struct {
	attempts       int
	firstTriggered time.Time
}

// Engine turns triggered reaction keys into actions, counting attempts and
// escalating to humans on exhaustion.
type Engine struct {
	cfg      *config.Config
	sessions *manager.Manager
	registry *plugin.Registry
	log      *logger.Logger

	mu       sync.Mutex
	trackers map[trackerKey]*tracker
}

func newEngine(cfg *config.Config, sessions *manager.Manager, registry *plugin.Registry, log *logger.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		sessions: sessions,
		registry: registry,
		log:      log.Named("reactions"),
		trackers: make(map[trackerKey]*tracker),
	}
}

// clearTracker resets the retry counter for one reaction on one session.
func (e *Engine) clearTracker(sessionID, reaction string) {
	e.mu.Lock()
	delete(e.trackers, trackerKey{sessionID, reaction})
	e.mu.Unlock()
}

// pruneSessions drops trackers for session ids no longer live.
func (e *Engine) pruneSessions(live map[string]bool) {
	e.mu.Lock()
	for k := range e.trackers {
		if k.sessionID != "" && !live[k.sessionID] {
			delete(e.trackers, k)
		}
	}
	e.mu.Unlock()
}

// Dispatch runs the reaction configured for the event's key, if any.
// sess may be nil for summary events.
func (e *Engine) Dispatch(ctx context.Context, ev *events.Event, sess *session.Session) Result {
	key, ok := events.ReactionKey(ev.Type)
	if !ok {
		return Result{}
	}
	var projectID string
	if sess != nil {
		projectID = sess.ProjectID
	}
	rc := e.cfg.ReactionsFor(projectID)[key]
	if rc == nil {
		return Result{}
	}
	// Disabled reactions still run when the action is notify: turning off
	// automation never turns off telling a human.
	if !rc.Auto && rc.Action != config.ActionNotify {
		return Result{}
	}

	attempts, first := e.bump(ev.SessionID, key, rc.Retries)
	if e.shouldEscalate(rc, attempts, first) {
		e.escalate(ctx, ev, rc, key, attempts)
		return Result{Handled: true, Escalated: true}
	}

	switch rc.Action {
	case config.ActionSendToAgent:
		return e.sendToAgent(ctx, ev, rc, sess)
	case config.ActionNotify:
		e.notifyReaction(ctx, ev, rc, sess, events.PriorityInfo)
		return Result{Handled: true, Success: true}
	case config.ActionAutoMerge:
		// Merge execution stays with the operator for now; surface the
		// ready-to-merge state at action priority.
		e.notifyReaction(ctx, ev, rc, sess, events.PriorityAction)
		return Result{Handled: true, Success: true}
	default:
		e.log.Warn("unknown reaction action",
			zap.String("reaction", key), zap.String("action", rc.Action))
		return Result{}
	}
}

// bump increments the attempt counter, creating the tracker on first use.
// The stored count saturates at retries+1 so an exhausted reaction keeps
// escalating without the counter growing unboundedly.
func (e *Engine) bump(sessionID, reaction string, retries int) (int, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := trackerKey{sessionID, reaction}
	t, ok := e.trackers[k]
	if !ok {
		t = &tracker{firstTriggered: time.Now()}
		e.trackers[k] = t
	}
	if retries <= 0 || t.attempts <= retries {
		t.attempts++
	}
	return t.attempts, t.firstTriggered
}

// shouldEscalate applies the retry budget: attempts past retries, an
// escalateAfter attempt count exceeded, or an escalateAfter duration
// elapsed since the first trigger. Whichever trips first wins.
func (e *Engine) shouldEscalate(rc *config.ReactionConfig, attempts int, first time.Time) bool {
	if rc.Retries > 0 && attempts > rc.Retries {
		return true
	}
	if rc.EscalateAfter == "" {
		return false
	}
	if n, err := strconv.Atoi(rc.EscalateAfter); err == nil {
		return n < attempts
	}
	if d := parseEscalation(rc.EscalateAfter); d > 0 {
		return time.Since(first) >= d
	}
	return false
}

func (e *Engine) escalate(ctx context.Context, ev *events.Event, rc *config.ReactionConfig, key string, attempts int) {
	esc := events.New(events.ReactionEscalated, ev.SessionID, ev.ProjectID,
		"escalating "+key+" after "+strconv.Itoa(attempts)+" attempts: "+ev.Message)
	esc.Priority = events.PriorityUrgent
	if rc.Priority != "" {
		esc.Priority = rc.Priority
	}
	e.log.Warn("reaction escalated",
		zap.String("session", ev.SessionID),
		zap.String("reaction", key),
		zap.Int("attempts", attempts))
	e.notifyHuman(ctx, esc)
}

func (e *Engine) sendToAgent(ctx context.Context, ev *events.Event, rc *config.ReactionConfig, sess *session.Session) Result {
	if sess == nil {
		return Result{}
	}
	message := rc.Message
	if message == "" {
		message = ev.Message
	}
	if err := e.sessions.Send(ctx, sess.ID, message); err != nil {
		e.log.Warn("send-to-agent failed; will retry next tick",
			zap.String("session", sess.ID), zap.Error(err))
		return Result{Handled: true, Success: false}
	}
	e.log.Info("sent reaction message to agent",
		zap.String("session", sess.ID), zap.String("event", string(ev.Type)))
	return Result{Handled: true, Success: true}
}

// notifyReaction emits reaction.triggered and fans it out to humans at the
// configured priority.
func (e *Engine) notifyReaction(ctx context.Context, ev *events.Event, rc *config.ReactionConfig, sess *session.Session, fallback events.Priority) {
	message := ev.Message
	if rc.Message != "" {
		message = rc.Message
	}
	if rc.IncludeSummary && sess != nil && sess.AgentInfo != nil && sess.AgentInfo.Summary != "" {
		message += "\n" + sess.AgentInfo.Summary
	}
	out := events.New(events.ReactionTriggered, ev.SessionID, ev.ProjectID, message)
	out.Priority = fallback
	if rc.Priority != "" {
		out.Priority = rc.Priority
	}
	e.notifyHuman(ctx, out)
}
