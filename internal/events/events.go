// Package events defines the engine's event vocabulary: the closed set of
// event types emitted on session transitions, notification priorities, and
// the static maps from status to event and from event to reaction key.
package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentops/overseer/internal/session"
)

// Type identifies what happened. The set is closed; plugins never invent
// their own types.
type Type string

const (
	SessionSpawned    Type = "session.spawned"
	SessionWorking    Type = "session.working"
	SessionNeedsInput Type = "session.needs_input"
	SessionStuck      Type = "session.stuck"
	SessionErrored    Type = "session.errored"
	SessionKilled     Type = "session.killed"

	PRCreated Type = "pr.created"
	CIFailing Type = "ci.failing"
	CIPassing Type = "ci.passing"

	ReviewPending          Type = "review.pending"
	ReviewChangesRequested Type = "review.changes_requested"
	ReviewApproved         Type = "review.approved"
	AutomatedReviewFound   Type = "automated_review.found"

	MergeReady     Type = "merge.ready"
	MergeConflicts Type = "merge.conflicts"
	MergeCompleted Type = "merge.completed"

	ReactionTriggered Type = "reaction.triggered"
	ReactionEscalated Type = "reaction.escalated"

	SummaryAllComplete Type = "summary.all_complete"
)

// Priority routes an event to the right notifiers.
type Priority string

const (
	PriorityUrgent  Priority = "urgent"
	PriorityAction  Priority = "action"
	PriorityWarning Priority = "warning"
	PriorityInfo    Priority = "info"
)

// Event is one observation dispatched to reactions and notifiers.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Priority  Priority       `json:"priority"`
	SessionID string         `json:"sessionId,omitempty"`
	ProjectID string         `json:"projectId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// New builds an event with a fresh id and the current time. Priority is
// inferred from the type unless overridden by the caller afterward.
func New(t Type, sessionID, projectID, message string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Priority:  InferPriority(t),
		SessionID: sessionID,
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
		Message:   message,
	}
}

// InferPriority derives a notification priority from the event type when
// neither the reaction config nor the caller specifies one.
func InferPriority(t Type) Priority {
	s := string(t)
	switch {
	case strings.Contains(s, "stuck"), strings.Contains(s, "needs_input"), strings.Contains(s, "errored"):
		return PriorityUrgent
	case strings.HasPrefix(s, "summary."):
		return PriorityInfo
	case strings.Contains(s, "approved"), strings.Contains(s, "ready"),
		strings.Contains(s, "merged"), strings.Contains(s, "completed"):
		return PriorityAction
	case strings.Contains(s, "fail"), strings.Contains(s, "changes_requested"), strings.Contains(s, "conflicts"):
		return PriorityWarning
	default:
		return PriorityInfo
	}
}

// statusEvents maps a newly observed status to the event announcing it.
// Statuses absent here (spawning, cleanup, done, terminated, approved's
// display-only siblings) yield no event.
var statusEvents = map[session.Status]Type{
	session.StatusWorking:          SessionWorking,
	session.StatusPROpen:           PRCreated,
	session.StatusCIFailed:         CIFailing,
	session.StatusReviewPending:    ReviewPending,
	session.StatusChangesRequested: ReviewChangesRequested,
	session.StatusApproved:         ReviewApproved,
	session.StatusMergeable:        MergeReady,
	session.StatusMerged:           MergeCompleted,
	session.StatusNeedsInput:       SessionNeedsInput,
	session.StatusStuck:            SessionStuck,
	session.StatusErrored:          SessionErrored,
	session.StatusKilled:           SessionKilled,
}

// ForStatus returns the event type for a status transition, if any.
func ForStatus(s session.Status) (Type, bool) {
	t, ok := statusEvents[s]
	return t, ok
}

// reactionKeys maps event types to configured reaction keys.
var reactionKeys = map[Type]string{
	CIFailing:              "ci-failed",
	ReviewChangesRequested: "changes-requested",
	AutomatedReviewFound:   "bugbot-comments",
	MergeConflicts:         "merge-conflicts",
	MergeReady:             "approved-and-green",
	SessionStuck:           "agent-stuck",
	SessionNeedsInput:      "agent-needs-input",
	SessionKilled:          "agent-exited",
	SummaryAllComplete:     "all-complete",
}

// ReactionKey returns the reaction key for an event type, if one is defined.
func ReactionKey(t Type) (string, bool) {
	k, ok := reactionKeys[t]
	return k, ok
}
