package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentops/overseer/internal/session"
)

func TestInferPriority(t *testing.T) {
	tests := []struct {
		event Type
		want  Priority
	}{
		{SessionStuck, PriorityUrgent},
		{SessionNeedsInput, PriorityUrgent},
		{SessionErrored, PriorityUrgent},
		{SummaryAllComplete, PriorityInfo},
		{ReviewApproved, PriorityAction},
		{MergeReady, PriorityAction},
		{MergeCompleted, PriorityAction},
		{CIFailing, PriorityWarning},
		{ReviewChangesRequested, PriorityWarning},
		{MergeConflicts, PriorityWarning},
		{SessionWorking, PriorityInfo},
		{PRCreated, PriorityInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferPriority(tt.event), "event=%s", tt.event)
	}
}

func TestForStatus(t *testing.T) {
	ev, ok := ForStatus(session.StatusCIFailed)
	assert.True(t, ok)
	assert.Equal(t, CIFailing, ev)

	ev, ok = ForStatus(session.StatusMergeable)
	assert.True(t, ok)
	assert.Equal(t, MergeReady, ev)

	// spawning and the display-only terminals never announce themselves
	for _, s := range []session.Status{session.StatusSpawning, session.StatusCleanup, session.StatusDone, session.StatusTerminated} {
		_, ok := ForStatus(s)
		assert.False(t, ok, "status=%s", s)
	}
}

func TestReactionKey(t *testing.T) {
	key, ok := ReactionKey(CIFailing)
	assert.True(t, ok)
	assert.Equal(t, "ci-failed", key)

	key, ok = ReactionKey(MergeReady)
	assert.True(t, ok)
	assert.Equal(t, "approved-and-green", key)

	key, ok = ReactionKey(SessionKilled)
	assert.True(t, ok)
	assert.Equal(t, "agent-exited", key)

	_, ok = ReactionKey(SessionWorking)
	assert.False(t, ok)
	_, ok = ReactionKey(PRCreated)
	assert.False(t, ok)
}

func TestNewEvent(t *testing.T) {
	ev := New(SessionStuck, "app-1", "my-app", "app-1 appears stuck")
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, PriorityUrgent, ev.Priority)
	assert.Equal(t, "app-1", ev.SessionID)
	assert.Equal(t, "my-app", ev.ProjectID)
	assert.False(t, ev.Timestamp.IsZero())
}
