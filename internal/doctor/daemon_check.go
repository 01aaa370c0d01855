package doctor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentops/overseer/internal/lock"
)

// DaemonCheck reports whether the polling daemon is running and flags a
// stale pidfile left behind by a crash.
type DaemonCheck struct {
	BaseCheck
}

// NewDaemonCheck creates the daemon liveness check.
func NewDaemonCheck() *DaemonCheck {
	return &DaemonCheck{
		BaseCheck: BaseCheck{
			CheckName:        "daemon",
			CheckDescription: "Check the polling daemon's lock state",
			CheckCategory:    CategoryDaemon,
		},
	}
}

// Run reads the pidfile next to the data dir and probes the process.
func (c *DaemonCheck) Run(ctx *CheckContext) *CheckResult {
	runDir := filepath.Dir(ctx.Config.DataDir)

	pid, err := lock.ReadPID(runDir)
	if errors.Is(err, os.ErrNotExist) {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "daemon not running",
			FixHint: "Start it with: ao daemon start",
		}
	}
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("reading pidfile: %v", err),
		}
	}

	if running, _ := lock.IsRunning(runDir); !running {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: fmt.Sprintf("stale pidfile for pid %d", pid),
			Details: []string{lock.PIDPath(runDir)},
			FixHint: "Remove the pidfile or run: ao daemon start",
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: fmt.Sprintf("running (pid %d)", pid),
	}
}
