package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/agentops/overseer/internal/config"
)

// ProjectPathsCheck verifies every configured project points at an
// existing git repository.
type ProjectPathsCheck struct {
	BaseCheck
}

// NewProjectPathsCheck creates the project repository check.
func NewProjectPathsCheck() *ProjectPathsCheck {
	return &ProjectPathsCheck{
		BaseCheck: BaseCheck{
			CheckName:        "project-paths",
			CheckDescription: "Check that each project path is a git repository",
			CheckCategory:    CategoryConfig,
		},
	}
}

// Run inspects each project path for a .git entry.
func (c *ProjectPathsCheck) Run(ctx *CheckContext) *CheckResult {
	if len(ctx.Config.Projects) == 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "no projects configured",
			FixHint: "Add a projects entry to the config before spawning sessions",
		}
	}

	ids := make([]string, 0, len(ctx.Config.Projects))
	for id := range ctx.Config.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var details []string
	for _, id := range ids {
		p := ctx.Config.Projects[id]
		path := config.ExpandHome(p.Path)
		if _, err := os.Stat(path); err != nil {
			details = append(details, fmt.Sprintf("%s: path %s does not exist", id, path))
			continue
		}
		if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
			details = append(details, fmt.Sprintf("%s: %s is not a git repository", id, path))
		}
	}
	if len(details) > 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("%d of %d project paths are broken", len(details), len(ids)),
			Details: details,
			FixHint: "Fix the path entries or clone the repositories",
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: fmt.Sprintf("%d projects", len(ids)),
	}
}
