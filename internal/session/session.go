// Package session defines the session model shared by the manager, the
// lifecycle engine, and the plugins: lifecycle status, agent activity,
// runtime handles, and PR records.
package session

import (
	"time"
)

// Status is the persisted lifecycle position of a session.
type Status string

const (
	StatusSpawning         Status = "spawning"
	StatusWorking          Status = "working"
	StatusPROpen           Status = "pr_open"
	StatusCIFailed         Status = "ci_failed"
	StatusReviewPending    Status = "review_pending"
	StatusChangesRequested Status = "changes_requested"
	StatusApproved         Status = "approved"
	StatusMergeable        Status = "mergeable"
	StatusMerged           Status = "merged"
	StatusCleanup          Status = "cleanup"
	StatusNeedsInput       Status = "needs_input"
	StatusStuck            Status = "stuck"
	StatusErrored          Status = "errored"
	StatusKilled           Status = "killed"
	StatusDone             Status = "done"
	StatusTerminated       Status = "terminated"
)

// knownStatuses is the closed set accepted when reconstructing from metadata.
var knownStatuses = map[Status]bool{
	StatusSpawning: true, StatusWorking: true, StatusPROpen: true,
	StatusCIFailed: true, StatusReviewPending: true, StatusChangesRequested: true,
	StatusApproved: true, StatusMergeable: true, StatusMerged: true,
	StatusCleanup: true, StatusNeedsInput: true, StatusStuck: true,
	StatusErrored: true, StatusKilled: true, StatusDone: true,
	StatusTerminated: true,
}

// ParseStatus maps a raw metadata value to a Status.
// Unknown strings become spawning; the legacy "starting" maps to working.
func ParseStatus(raw string) Status {
	if raw == "starting" {
		return StatusWorking
	}
	s := Status(raw)
	if !knownStatuses[s] {
		return StatusSpawning
	}
	return s
}

// IsTerminal reports whether the engine's polling loop should skip this
// session. Only merged and killed are absorbing for the engine; done,
// terminated and cleanup are display-only terminals.
func (s Status) IsTerminal() bool {
	return s == StatusMerged || s == StatusKilled
}

// Activity is the instantaneous classification of what the agent is doing,
// derived from terminal output. Distinct from Status: activity is never
// persisted.
type Activity string

const (
	ActivityActive       Activity = "active"
	ActivityReady        Activity = "ready"
	ActivityIdle         Activity = "idle"
	ActivityWaitingInput Activity = "waiting_input"
	ActivityBlocked      Activity = "blocked"
	ActivityExited       Activity = "exited"
)

// RuntimeHandle is the opaque address the runtime plugin uses to reach a
// session's process host. Data is plugin-defined.
type RuntimeHandle struct {
	ID          string            `json:"id"`
	RuntimeName string            `json:"runtimeName"`
	Data        map[string]string `json:"data,omitempty"`
}

// PRInfo describes the pull request a session is driving toward merge.
type PRInfo struct {
	Number     int    `json:"number"`
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Repo       string `json:"repo,omitempty"`
	Branch     string `json:"branch,omitempty"`
	BaseBranch string `json:"baseBranch,omitempty"`
	IsDraft    bool   `json:"isDraft,omitempty"`
}

// AgentInfo is the summary the agent plugin extracts from the agent's own
// session log (summary line, accumulated cost, last log activity).
type AgentInfo struct {
	Summary     string    `json:"summary,omitempty"`
	CostUSD     float64   `json:"costUSD,omitempty"`
	LastLogTime time.Time `json:"lastLogTime,omitempty"`
}

// Session is the central entity: one agent working in isolation toward
// closing one issue. Reconstructed from the metadata record plus live
// plugin probes; never cached between ticks.
type Session struct {
	ID             string
	ProjectID      string
	Status         Status
	Activity       Activity // empty when unknown
	Branch         string
	IssueID        string
	PR             *PRInfo
	WorkspacePath  string
	RuntimeHandle  *RuntimeHandle
	AgentInfo      *AgentInfo
	CreatedAt      time.Time
	LastActivityAt time.Time

	// Metadata is the raw record this session was reconstructed from.
	Metadata map[string]string
}
