package plugin

import (
	"context"
	"time"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/events"
	"github.com/agentops/overseer/internal/session"
)

// CreateSpec is what a runtime needs to host one session.
type CreateSpec struct {
	SessionID     string
	WorkspacePath string
	LaunchCommand string
	Environment   map[string]string
}

// Runtime is the process-host abstraction (terminal multiplexer, container,
// child process). All calls shell out or hit remote APIs and must respect
// the context deadline.
type Runtime interface {
	Name() string
	Create(ctx context.Context, spec CreateSpec) (*session.RuntimeHandle, error)
	Destroy(ctx context.Context, handle *session.RuntimeHandle) error
	SendMessage(ctx context.Context, handle *session.RuntimeHandle, message string) error
	// Output captures the last n lines of terminal output.
	Output(ctx context.Context, handle *session.RuntimeHandle, lines int) (string, error)
	IsAlive(ctx context.Context, handle *session.RuntimeHandle) (bool, error)
}

// LaunchSpec carries everything an agent plugin needs to compose its launch
// command and environment.
type LaunchSpec struct {
	SessionID     string
	ProjectID     string
	Project       *config.Project
	WorkspacePath string
	Branch        string
	IssueID       string
	Prompt        string
	AgentConfig   map[string]any
}

// Agent is the AI coding tool running inside the runtime.
type Agent interface {
	Name() string
	LaunchCommand(spec LaunchSpec) (string, error)
	Environment(spec LaunchSpec) map[string]string

	// DetectActivity classifies recent terminal output. It is only trusted
	// when the output is non-empty.
	DetectActivity(terminal string) session.Activity

	// IsProcessRunning checks whether the agent process itself is alive
	// inside the runtime (deeper than runtime liveness).
	IsProcessRunning(ctx context.Context, handle *session.RuntimeHandle) (bool, error)

	// IsProcessing consults the agent's own log for in-flight work.
	IsProcessing(ctx context.Context, sess *session.Session) (bool, error)

	// SessionInfo extracts summary/cost/last-activity from the agent's log.
	// Returns nil when no log is found.
	SessionInfo(ctx context.Context, sess *session.Session) (*session.AgentInfo, error)

	// PostLaunchSetup runs after the runtime is created and metadata is
	// persisted. Implementations without setup return nil.
	PostLaunchSetup(ctx context.Context, sess *session.Session) error
}

// WorkspaceSpec describes the isolated checkout to create.
type WorkspaceSpec struct {
	ProjectID string
	Project   *config.Project
	SessionID string
	Branch    string
}

// WorkspaceInfo describes a created workspace.
type WorkspaceInfo struct {
	Path      string
	Branch    string
	SessionID string
}

// Workspace is the isolated code checkout (git worktree or clone).
type Workspace interface {
	Name() string
	Create(ctx context.Context, spec WorkspaceSpec) (*WorkspaceInfo, error)
	Destroy(ctx context.Context, path string) error
	List(ctx context.Context, projectID string) ([]*WorkspaceInfo, error)
	// CurrentBranch reports the branch checked out at path. Agents switch
	// branches; the live checkout outranks any cached branch name.
	CurrentBranch(ctx context.Context, path string) (string, error)
	// PostCreate runs the project's post-create hook (symlinks, setup script).
	PostCreate(ctx context.Context, info *WorkspaceInfo, project *config.Project) error
}

// Issue is a work item from the tracker.
type Issue struct {
	ID    string
	Title string
	Body  string
	State string
	URL   string
}

// Tracker is the issue source (GitHub Issues, Linear).
type Tracker interface {
	Name() string
	Issue(ctx context.Context, issueID string, project *config.Project) (*Issue, error)
	IsCompleted(ctx context.Context, issueID string, project *config.Project) (bool, error)
	IssueURL(issueID string, project *config.Project) string
	BranchName(issueID string, project *config.Project) string
	GeneratePrompt(ctx context.Context, issueID string, project *config.Project) (string, error)
	ListIssues(ctx context.Context, project *config.Project) ([]*Issue, error)
}

// PRState is the coarse pull request state.
type PRState string

const (
	PROpen    PRState = "open"
	PRClosed  PRState = "closed"
	PRMerged  PRState = "merged"
	PRUnknown PRState = "unknown"
)

// CISummary aggregates a PR's check runs.
type CISummary string

const (
	CIPassing CISummary = "passing"
	CIFailing CISummary = "failing"
	CIPending CISummary = "pending"
	CINone    CISummary = "none"
)

// ReviewDecision is the platform's aggregate review verdict.
type ReviewDecision string

const (
	ReviewApproved         ReviewDecision = "approved"
	ReviewChangesRequested ReviewDecision = "changes_requested"
	ReviewPending          ReviewDecision = "pending"
	ReviewNone             ReviewDecision = "none"
)

// CICheck is a single check run on a PR head.
type CICheck struct {
	Name       string
	Status     string // queued, in_progress, completed
	Conclusion string // success, failure, cancelled, ...
	URL        string
}

// Review is one submitted PR review.
type Review struct {
	Author      string
	State       string // APPROVED, CHANGES_REQUESTED, COMMENTED
	Body        string
	SubmittedAt time.Time
}

// Comment is one review comment.
type Comment struct {
	Author    string
	Body      string
	Path      string
	Line      int
	CreatedAt time.Time
	Automated bool
}

// Mergeability is the full merge-readiness verdict.
type Mergeability struct {
	Mergeable   bool
	CIPassing   bool
	Approved    bool
	NoConflicts bool
	Blockers    []string
}

// SCM is the source-platform adapter covering PRs, CI, reviews, and merge
// readiness.
type SCM interface {
	Name() string
	DetectPR(ctx context.Context, sess *session.Session, project *config.Project) (*session.PRInfo, error)
	GetPRState(ctx context.Context, pr *session.PRInfo) (PRState, error)
	MergePR(ctx context.Context, pr *session.PRInfo, method string) error
	ClosePR(ctx context.Context, pr *session.PRInfo) error
	GetCIChecks(ctx context.Context, pr *session.PRInfo) ([]CICheck, error)
	GetCISummary(ctx context.Context, pr *session.PRInfo) (CISummary, error)
	GetReviews(ctx context.Context, pr *session.PRInfo) ([]Review, error)
	GetReviewDecision(ctx context.Context, pr *session.PRInfo) (ReviewDecision, error)
	GetPendingComments(ctx context.Context, pr *session.PRInfo) ([]Comment, error)
	GetAutomatedComments(ctx context.Context, pr *session.PRInfo) ([]Comment, error)
	GetMergeability(ctx context.Context, pr *session.PRInfo) (*Mergeability, error)
}

// Notifier is an outbound channel to humans. Notify is fire-and-forget from
// the engine's perspective; failures are logged and swallowed.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event *events.Event) error
}
