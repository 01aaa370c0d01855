// Package ghissues implements the tracker plugin slot over GitHub Issues,
// using the gh CLI like its SCM sibling.
package ghissues

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/plugin"
)

const commandTimeout = 30 * time.Second

// Tracker is the gh-CLI-backed issue tracker plugin.
type Tracker struct{}

// Module returns the builtin module descriptor for registration.
func Module() *plugin.Module {
	return &plugin.Module{
		Manifest: plugin.Manifest{
			Slot:        plugin.SlotTracker,
			Name:        "github-issues",
			Description: "GitHub Issues tracker via the gh CLI",
		},
		New: func(map[string]any) (any, error) { return New(), nil },
	}
}

// New creates the tracker plugin.
func New() *Tracker { return &Tracker{} }

// Name implements plugin.Tracker.
func (t *Tracker) Name() string { return "github-issues" }

func (t *Tracker) run(ctx context.Context, args ...string) ([]byte, error) {
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

type ghIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	URL    string `json:"url"`
}

// issueNumber strips an optional leading '#'.
func issueNumber(issueID string) string {
	return strings.TrimPrefix(issueID, "#")
}

// Issue fetches one issue.
func (t *Tracker) Issue(ctx context.Context, issueID string, project *config.Project) (*plugin.Issue, error) {
	if project == nil || project.Repo == "" {
		return nil, errors.New("project repo is required")
	}
	out, err := t.run(ctx, "issue", "view", issueNumber(issueID),
		"--repo", project.Repo,
		"--json", "number,title,body,state,url")
	if err != nil {
		return nil, fmt.Errorf("issue %s: %w", issueID, err)
	}
	var raw ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parsing issue: %w", err)
	}
	return &plugin.Issue{
		ID:    fmt.Sprintf("%d", raw.Number),
		Title: raw.Title,
		Body:  raw.Body,
		State: strings.ToLower(raw.State),
		URL:   raw.URL,
	}, nil
}

// IsCompleted reports whether the issue is closed.
func (t *Tracker) IsCompleted(ctx context.Context, issueID string, project *config.Project) (bool, error) {
	issue, err := t.Issue(ctx, issueID, project)
	if err != nil {
		return false, err
	}
	return issue.State == "closed", nil
}

// IssueURL builds the issue's web URL without a network call.
func (t *Tracker) IssueURL(issueID string, project *config.Project) string {
	if project == nil || project.Repo == "" {
		return ""
	}
	return fmt.Sprintf("https://github.com/%s/issues/%s", project.Repo, issueNumber(issueID))
}

var branchUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._/-]+`)

// BranchName derives the working branch for an issue. No network call:
// spawn needs this even when GitHub is unreachable.
func (t *Tracker) BranchName(issueID string, _ *config.Project) string {
	safe := branchUnsafe.ReplaceAllString(issueNumber(issueID), "-")
	return "feat/issue-" + safe
}

// GeneratePrompt composes the agent's opening prompt from the issue.
func (t *Tracker) GeneratePrompt(ctx context.Context, issueID string, project *config.Project) (string, error) {
	issue, err := t.Issue(ctx, issueID, project)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Work on issue #%s: %s\n\n", issue.ID, issue.Title)
	if issue.Body != "" {
		fmt.Fprintf(&b, "%s\n\n", issue.Body)
	}
	fmt.Fprintf(&b, "When done, open a pull request that closes #%s.", issue.ID)
	return b.String(), nil
}

// ListIssues returns the project's open issues.
func (t *Tracker) ListIssues(ctx context.Context, project *config.Project) ([]*plugin.Issue, error) {
	if project == nil || project.Repo == "" {
		return nil, errors.New("project repo is required")
	}
	out, err := t.run(ctx, "issue", "list",
		"--repo", project.Repo,
		"--state", "open",
		"--json", "number,title,body,state,url")
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	var raw []ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parsing issues: %w", err)
	}
	issues := make([]*plugin.Issue, 0, len(raw))
	for _, r := range raw {
		issues = append(issues, &plugin.Issue{
			ID:    fmt.Sprintf("%d", r.Number),
			Title: r.Title,
			Body:  r.Body,
			State: strings.ToLower(r.State),
			URL:   r.URL,
		})
	}
	return issues, nil
}
