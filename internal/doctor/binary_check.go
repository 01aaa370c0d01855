package doctor

import (
	"fmt"
	"os/exec"
	"strings"
)

// BinaryCheck verifies one required binary is installed and responds to
// --version.
type BinaryCheck struct {
	BaseCheck
	binary  string
	fixHint string
}

// NewBinaryCheck creates a PATH availability check for a binary.
func NewBinaryCheck(binary, description, fixHint string) *BinaryCheck {
	return &BinaryCheck{
		BaseCheck: BaseCheck{
			CheckName:        binary + "-binary",
			CheckDescription: description,
			CheckCategory:    CategoryInfrastructure,
		},
		binary:  binary,
		fixHint: fixHint,
	}
}

// Run looks up the binary and reports its version line.
func (c *BinaryCheck) Run(_ *CheckContext) *CheckResult {
	path, err := exec.LookPath(c.binary)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("%s not found in PATH", c.binary),
			Details: []string{c.Description()},
			FixHint: c.fixHint,
		}
	}

	versionArg := "--version"
	if c.binary == "tmux" {
		versionArg = "-V"
	}
	output, err := exec.Command(path, versionArg).CombinedOutput()
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("%s found at %s but %q failed: %v", c.binary, path, versionArg, err),
			Details: []string{strings.TrimSpace(string(output))},
			FixHint: c.fixHint,
		}
	}

	version, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: version,
	}
}
