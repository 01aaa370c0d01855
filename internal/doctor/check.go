// Package doctor runs environment diagnostics for the ao CLI.
//
// Each check inspects one external requirement (a binary on PATH, a
// writable directory, the daemon's lock state) and reports a status with
// an optional fix hint. Checks never mutate anything.
package doctor

import (
	"context"

	"github.com/agentops/overseer/internal/config"
)

// Status is the outcome of one check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Category groups checks in the report output.
type Category string

const (
	CategoryInfrastructure Category = "infrastructure"
	CategoryConfig         Category = "config"
	CategoryDaemon         Category = "daemon"
)

// CheckContext carries the shared inputs every check may consult.
type CheckContext struct {
	Ctx    context.Context
	Config *config.Config
}

// CheckResult is one check's report entry.
type CheckResult struct {
	Name    string
	Status  Status
	Message string
	Details []string
	FixHint string
}

// Check is a single diagnostic.
type Check interface {
	Name() string
	Description() string
	Category() Category
	Run(ctx *CheckContext) *CheckResult
}

// BaseCheck supplies the metadata accessors so checks only implement Run.
type BaseCheck struct {
	CheckName        string
	CheckDescription string
	CheckCategory    Category
}

func (b BaseCheck) Name() string        { return b.CheckName }
func (b BaseCheck) Description() string { return b.CheckDescription }
func (b BaseCheck) Category() Category  { return b.CheckCategory }

// All returns the full diagnostic suite in report order.
func All() []Check {
	return []Check{
		NewBinaryCheck("tmux", "tmux hosts agent sessions", "Install tmux via your package manager"),
		NewBinaryCheck("git", "git backs worktree workspaces", "Install git via your package manager"),
		NewBinaryCheck("gh", "gh serves PR and issue state", "Install gh: https://cli.github.com"),
		NewDataDirCheck(),
		NewProjectPathsCheck(),
		NewDaemonCheck(),
	}
}

// Run executes every check and reports whether any errored.
func Run(ctx *CheckContext, checks []Check) ([]*CheckResult, bool) {
	results := make([]*CheckResult, 0, len(checks))
	healthy := true
	for _, c := range checks {
		r := c.Run(ctx)
		if r.Status == StatusError {
			healthy = false
		}
		results = append(results, r)
	}
	return results, healthy
}
