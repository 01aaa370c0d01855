package doctor

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDirCheck verifies the session metadata directory exists and is
// writable, since every spawn and status transition persists there.
type DataDirCheck struct {
	BaseCheck
}

// NewDataDirCheck creates the metadata directory check.
func NewDataDirCheck() *DataDirCheck {
	return &DataDirCheck{
		BaseCheck: BaseCheck{
			CheckName:        "data-dir",
			CheckDescription: "Check that the session metadata directory is writable",
			CheckCategory:    CategoryConfig,
		},
	}
}

// Run probes the data dir with a throwaway file.
func (c *DataDirCheck) Run(ctx *CheckContext) *CheckResult {
	dir := ctx.Config.DataDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("cannot create %s: %v", dir, err),
			FixHint: "Set dataDir in the config to a writable path",
		}
	}

	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("%s is not writable: %v", dir, err),
			FixHint: "Fix permissions on the data directory",
		}
	}
	_ = os.Remove(probe) // best effort

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: dir,
	}
}
