package claude

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentops/overseer/internal/session"
)

// logStaleAfter is how long the session log may be quiet before the agent
// is considered not-processing.
const logStaleAfter = 2 * time.Minute

// maxLogScanBytes bounds how much of a session log one probe will read.
const maxLogScanBytes = 4 << 20

// logLine is the subset of Claude's JSONL session log the engine reads.
type logLine struct {
	Type      string  `json:"type"`
	Summary   string  `json:"summary,omitempty"`
	CostUSD   float64 `json:"costUSD,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// SessionInfo extracts summary, accumulated cost, and last log activity
// from the newest JSONL log under ~/.claude/projects for the session's
// workspace. Returns nil when no log exists.
func (a *Agent) SessionInfo(_ context.Context, sess *session.Session) (*session.AgentInfo, error) {
	if sess == nil || sess.WorkspacePath == "" {
		return nil, nil
	}
	path, modTime, err := newestSessionLog(sess.WorkspacePath)
	if err != nil || path == "" {
		return nil, err
	}

	info := &session.AgentInfo{LastLogTime: modTime}

	f, err := os.Open(path)
	if err != nil {
		return info, nil // mtime alone is still useful
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var scanned int
	for scanner.Scan() {
		scanned += len(scanner.Bytes())
		if scanned > maxLogScanBytes {
			break
		}
		var line logLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Type == "summary" && line.Summary != "" {
			info.Summary = line.Summary
		}
		info.CostUSD += line.CostUSD
	}
	return info, nil
}

// newestSessionLog finds the most recently modified .jsonl log for a
// workspace. Claude encodes the workspace path into the project directory
// name by replacing path separators and dots with dashes.
func newestSessionLog(workspacePath string) (string, time.Time, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", time.Time{}, err
	}
	dir := filepath.Join(home, ".claude", "projects", encodeProjectDir(workspacePath))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", time.Time{}, nil
		}
		return "", time.Time{}, err
	}

	var newest string
	var newestTime time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().After(newestTime) {
			newest = filepath.Join(dir, e.Name())
			newestTime = fi.ModTime()
		}
	}
	return newest, newestTime, nil
}

// encodeProjectDir mirrors Claude Code's project directory naming.
func encodeProjectDir(path string) string {
	replaced := strings.NewReplacer("/", "-", ".", "-", "_", "-").Replace(path)
	return replaced
}

func timeSince(t time.Time) time.Duration { return time.Since(t) }
