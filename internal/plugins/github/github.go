// Package github implements the SCM plugin slot over the gh CLI.
//
// All queries go through `gh ... --json` so the plugin needs no token
// handling of its own; gh's keyring auth applies. Every invocation is
// bounded by a 30 second timeout.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

const (
	commandTimeout = 30 * time.Second
	probeTimeout   = 5 * time.Second
)

// SCM is the gh-CLI-backed SCM plugin.
type SCM struct{}

// Module returns the builtin module descriptor for registration.
func Module() *plugin.Module {
	return &plugin.Module{
		Manifest: plugin.Manifest{
			Slot:        plugin.SlotSCM,
			Name:        "github",
			Description: "GitHub PR/CI/review state via the gh CLI",
		},
		New: func(map[string]any) (any, error) {
			if !Available() {
				return nil, errors.New("gh binary not found")
			}
			return New(), nil
		},
	}
}

// New creates the GitHub SCM plugin.
func New() *SCM { return &SCM{} }

// Name implements plugin.SCM.
func (s *SCM) Name() string { return "github" }

// Available checks whether the gh CLI is installed.
func Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, "gh", "--version").Run() == nil
}

// run executes one gh command and returns stdout.
func (s *SCM) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "gh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("gh %s: %s", args[0], msg)
		}
		return nil, fmt.Errorf("gh %s: %w", args[0], err)
	}
	return stdout.Bytes(), nil
}

// repoSlug resolves "owner/repo" for a PR, falling back to the project
// config when the PR record has no owner.
func repoSlug(pr *session.PRInfo, project *config.Project) (string, error) {
	if pr != nil && pr.Owner != "" && pr.Repo != "" {
		return pr.Owner + "/" + pr.Repo, nil
	}
	if project != nil && project.Repo != "" {
		return project.Repo, nil
	}
	return "", errors.New("no repository for PR")
}

// prSlug is repoSlug for calls that only get the PR.
func prSlug(pr *session.PRInfo) (string, error) {
	return repoSlug(pr, nil)
}

// ghPR is the JSON shape of gh pr list/view.
type ghPR struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	State       string `json:"state"`
	HeadRefName string `json:"headRefName"`
	BaseRefName string `json:"baseRefName"`
	IsDraft     bool   `json:"isDraft"`
}

// DetectPR finds the open PR for the session's branch, if any.
func (s *SCM) DetectPR(ctx context.Context, sess *session.Session, project *config.Project) (*session.PRInfo, error) {
	if sess == nil || sess.Branch == "" || project == nil || project.Repo == "" {
		return nil, nil
	}
	out, err := s.run(ctx, "pr", "list",
		"--repo", project.Repo,
		"--head", sess.Branch,
		"--state", "open",
		"--json", "number,title,url,state,headRefName,baseRefName,isDraft",
		"--limit", "1")
	if err != nil {
		return nil, fmt.Errorf("detecting PR for branch %q: %w", sess.Branch, err)
	}
	var prs []ghPR
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("parsing PR list: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	owner, repo, _ := strings.Cut(project.Repo, "/")
	p := prs[0]
	return &session.PRInfo{
		Number:     p.Number,
		URL:        p.URL,
		Title:      p.Title,
		Owner:      owner,
		Repo:       repo,
		Branch:     p.HeadRefName,
		BaseBranch: p.BaseRefName,
		IsDraft:    p.IsDraft,
	}, nil
}

// GetPRState returns the coarse PR state.
func (s *SCM) GetPRState(ctx context.Context, pr *session.PRInfo) (plugin.PRState, error) {
	slug, err := prSlug(pr)
	if err != nil {
		return plugin.PRUnknown, err
	}
	out, err := s.run(ctx, "pr", "view", strconv.Itoa(pr.Number), "--repo", slug, "--json", "state")
	if err != nil {
		return plugin.PRUnknown, fmt.Errorf("PR #%d state: %w", pr.Number, err)
	}
	var v struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(out, &v); err != nil {
		return plugin.PRUnknown, fmt.Errorf("parsing PR state: %w", err)
	}
	switch v.State {
	case "OPEN":
		return plugin.PROpen, nil
	case "CLOSED":
		return plugin.PRClosed, nil
	case "MERGED":
		return plugin.PRMerged, nil
	default:
		return plugin.PRUnknown, nil
	}
}

// MergePR merges the PR with the given method (squash by default).
func (s *SCM) MergePR(ctx context.Context, pr *session.PRInfo, method string) error {
	slug, err := prSlug(pr)
	if err != nil {
		return err
	}
	flag := "--squash"
	switch method {
	case "merge":
		flag = "--merge"
	case "rebase":
		flag = "--rebase"
	}
	_, err = s.run(ctx, "pr", "merge", strconv.Itoa(pr.Number), "--repo", slug, flag)
	if err != nil {
		return fmt.Errorf("merging PR #%d: %w", pr.Number, err)
	}
	return nil
}

// ClosePR closes the PR without merging.
func (s *SCM) ClosePR(ctx context.Context, pr *session.PRInfo) error {
	slug, err := prSlug(pr)
	if err != nil {
		return err
	}
	_, err = s.run(ctx, "pr", "close", strconv.Itoa(pr.Number), "--repo", slug)
	if err != nil {
		return fmt.Errorf("closing PR #%d: %w", pr.Number, err)
	}
	return nil
}

// ghCheck is one statusCheckRollup entry.
type ghCheck struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	DetailsURL string `json:"detailsUrl"`
}

// GetCIChecks returns the check runs on the PR head.
func (s *SCM) GetCIChecks(ctx context.Context, pr *session.PRInfo) ([]plugin.CICheck, error) {
	slug, err := prSlug(pr)
	if err != nil {
		return nil, err
	}
	out, err := s.run(ctx, "pr", "view", strconv.Itoa(pr.Number), "--repo", slug, "--json", "statusCheckRollup")
	if err != nil {
		return nil, fmt.Errorf("PR #%d checks: %w", pr.Number, err)
	}
	var v struct {
		StatusCheckRollup []ghCheck `json:"statusCheckRollup"`
	}
	if err := json.Unmarshal(out, &v); err != nil {
		return nil, fmt.Errorf("parsing checks: %w", err)
	}
	checks := make([]plugin.CICheck, 0, len(v.StatusCheckRollup))
	for _, c := range v.StatusCheckRollup {
		checks = append(checks, plugin.CICheck{
			Name:       c.Name,
			Status:     strings.ToLower(c.Status),
			Conclusion: strings.ToLower(c.Conclusion),
			URL:        c.DetailsURL,
		})
	}
	return checks, nil
}

// GetCISummary collapses the check runs into one verdict. Any hard failure
// wins; otherwise anything still running means pending.
func (s *SCM) GetCISummary(ctx context.Context, pr *session.PRInfo) (plugin.CISummary, error) {
	checks, err := s.GetCIChecks(ctx, pr)
	if err != nil {
		return plugin.CINone, err
	}
	return SummarizeChecks(checks), nil
}

// SummarizeChecks derives the aggregate CI verdict from check runs.
func SummarizeChecks(checks []plugin.CICheck) plugin.CISummary {
	if len(checks) == 0 {
		return plugin.CINone
	}
	pending := false
	for _, c := range checks {
		switch c.Conclusion {
		case "failure", "timed_out", "cancelled", "action_required":
			return plugin.CIFailing
		}
		if c.Status != "completed" {
			pending = true
		}
	}
	if pending {
		return plugin.CIPending
	}
	return plugin.CIPassing
}

// ghReview is one reviews entry.
type ghReview struct {
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
	State       string    `json:"state"`
	Body        string    `json:"body"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// GetReviews returns submitted reviews on the PR.
func (s *SCM) GetReviews(ctx context.Context, pr *session.PRInfo) ([]plugin.Review, error) {
	slug, err := prSlug(pr)
	if err != nil {
		return nil, err
	}
	out, err := s.run(ctx, "pr", "view", strconv.Itoa(pr.Number), "--repo", slug, "--json", "reviews")
	if err != nil {
		return nil, fmt.Errorf("PR #%d reviews: %w", pr.Number, err)
	}
	var v struct {
		Reviews []ghReview `json:"reviews"`
	}
	if err := json.Unmarshal(out, &v); err != nil {
		return nil, fmt.Errorf("parsing reviews: %w", err)
	}
	reviews := make([]plugin.Review, 0, len(v.Reviews))
	for _, r := range v.Reviews {
		reviews = append(reviews, plugin.Review{
			Author:      r.Author.Login,
			State:       r.State,
			Body:        r.Body,
			SubmittedAt: r.SubmittedAt,
		})
	}
	return reviews, nil
}

// GetReviewDecision returns the platform's aggregate review verdict.
func (s *SCM) GetReviewDecision(ctx context.Context, pr *session.PRInfo) (plugin.ReviewDecision, error) {
	slug, err := prSlug(pr)
	if err != nil {
		return plugin.ReviewNone, err
	}
	out, err := s.run(ctx, "pr", "view", strconv.Itoa(pr.Number), "--repo", slug, "--json", "reviewDecision")
	if err != nil {
		return plugin.ReviewNone, fmt.Errorf("PR #%d review decision: %w", pr.Number, err)
	}
	var v struct {
		ReviewDecision string `json:"reviewDecision"`
	}
	if err := json.Unmarshal(out, &v); err != nil {
		return plugin.ReviewNone, fmt.Errorf("parsing review decision: %w", err)
	}
	switch v.ReviewDecision {
	case "APPROVED":
		return plugin.ReviewApproved, nil
	case "CHANGES_REQUESTED":
		return plugin.ReviewChangesRequested, nil
	case "REVIEW_REQUIRED":
		return plugin.ReviewPending, nil
	default:
		return plugin.ReviewNone, nil
	}
}

// ghComment is one review comment from the REST API.
type ghComment struct {
	User struct {
		Login string `json:"login"`
		Type  string `json:"type"`
	} `json:"user"`
	Body      string    `json:"body"`
	Path      string    `json:"path"`
	Line      int       `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *SCM) comments(ctx context.Context, pr *session.PRInfo) ([]plugin.Comment, error) {
	slug, err := prSlug(pr)
	if err != nil {
		return nil, err
	}
	out, err := s.run(ctx, "api", fmt.Sprintf("repos/%s/pulls/%d/comments", slug, pr.Number))
	if err != nil {
		return nil, fmt.Errorf("PR #%d comments: %w", pr.Number, err)
	}
	var raw []ghComment
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parsing comments: %w", err)
	}
	comments := make([]plugin.Comment, 0, len(raw))
	for _, c := range raw {
		comments = append(comments, plugin.Comment{
			Author:    c.User.Login,
			Body:      c.Body,
			Path:      c.Path,
			Line:      c.Line,
			CreatedAt: c.CreatedAt,
			Automated: c.User.Type == "Bot" || strings.HasSuffix(c.User.Login, "[bot]"),
		})
	}
	return comments, nil
}

// GetPendingComments returns review comments left by humans.
func (s *SCM) GetPendingComments(ctx context.Context, pr *session.PRInfo) ([]plugin.Comment, error) {
	all, err := s.comments(ctx, pr)
	if err != nil {
		return nil, err
	}
	var humans []plugin.Comment
	for _, c := range all {
		if !c.Automated {
			humans = append(humans, c)
		}
	}
	return humans, nil
}

// GetAutomatedComments returns review comments left by bots (bugbot,
// CI annotators).
func (s *SCM) GetAutomatedComments(ctx context.Context, pr *session.PRInfo) ([]plugin.Comment, error) {
	all, err := s.comments(ctx, pr)
	if err != nil {
		return nil, err
	}
	var bots []plugin.Comment
	for _, c := range all {
		if c.Automated {
			bots = append(bots, c)
		}
	}
	return bots, nil
}

// GetMergeability computes the full merge-readiness verdict.
func (s *SCM) GetMergeability(ctx context.Context, pr *session.PRInfo) (*plugin.Mergeability, error) {
	slug, err := prSlug(pr)
	if err != nil {
		return nil, err
	}
	out, err := s.run(ctx, "pr", "view", strconv.Itoa(pr.Number), "--repo", slug,
		"--json", "mergeable,mergeStateStatus,reviewDecision,statusCheckRollup,isDraft")
	if err != nil {
		return nil, fmt.Errorf("PR #%d mergeability: %w", pr.Number, err)
	}
	var v struct {
		Mergeable         string    `json:"mergeable"`
		MergeStateStatus  string    `json:"mergeStateStatus"`
		ReviewDecision    string    `json:"reviewDecision"`
		StatusCheckRollup []ghCheck `json:"statusCheckRollup"`
		IsDraft           bool      `json:"isDraft"`
	}
	if err := json.Unmarshal(out, &v); err != nil {
		return nil, fmt.Errorf("parsing mergeability: %w", err)
	}

	checks := make([]plugin.CICheck, 0, len(v.StatusCheckRollup))
	for _, c := range v.StatusCheckRollup {
		checks = append(checks, plugin.CICheck{
			Name: c.Name, Status: strings.ToLower(c.Status), Conclusion: strings.ToLower(c.Conclusion),
		})
	}
	ci := SummarizeChecks(checks)

	m := &plugin.Mergeability{
		CIPassing:   ci == plugin.CIPassing || ci == plugin.CINone,
		Approved:    v.ReviewDecision == "APPROVED",
		NoConflicts: v.Mergeable != "CONFLICTING",
	}
	if !m.CIPassing {
		m.Blockers = append(m.Blockers, "ci "+string(ci))
	}
	if !m.Approved {
		m.Blockers = append(m.Blockers, "not approved")
	}
	if !m.NoConflicts {
		m.Blockers = append(m.Blockers, "merge conflicts")
	}
	if v.IsDraft {
		m.Blockers = append(m.Blockers, "draft")
	}
	m.Mergeable = len(m.Blockers) == 0
	return m, nil
}
