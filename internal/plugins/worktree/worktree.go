// Package worktree implements the workspace plugin slot with git worktrees.
//
// Each session gets its own worktree under <worktreeDir>/<projectID>/ so
// agents never contend for a checkout. The project's main clone stays
// untouched.
package worktree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/plugin"
)

const gitTimeout = 30 * time.Second

// Workspace is the git-worktree workspace plugin.
type Workspace struct {
	baseDir string
}

// Module returns the builtin module descriptor for registration.
func Module() *plugin.Module {
	return &plugin.Module{
		Manifest: plugin.Manifest{
			Slot:        plugin.SlotWorkspace,
			Name:        "worktree",
			Description: "Per-session git worktrees",
		},
		New: func(options map[string]any) (any, error) {
			base, _ := options["worktreeDir"].(string)
			if base == "" {
				return nil, errors.New("worktreeDir is required")
			}
			return New(base), nil
		},
	}
}

// New creates a worktree workspace plugin rooted at baseDir.
func New(baseDir string) *Workspace {
	return &Workspace{baseDir: baseDir}
}

// Name implements plugin.Workspace.
func (w *Workspace) Name() string { return "worktree" }

// git runs one git command against a repository with a bounded timeout.
func (w *Workspace) git(ctx context.Context, repo string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	full := append([]string{"-C", repo}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("git %s: %s", args[0], msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Create adds a worktree for the session on the requested branch. A new
// branch is forked from the project's default branch; an existing branch is
// checked out as-is.
func (w *Workspace) Create(ctx context.Context, spec plugin.WorkspaceSpec) (*plugin.WorkspaceInfo, error) {
	if spec.Project == nil || spec.Project.Path == "" {
		return nil, errors.New("project path is required")
	}
	if spec.Branch == "" {
		return nil, errors.New("branch is required")
	}

	path := filepath.Join(w.baseDir, spec.ProjectID, spec.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating worktree parent: %w", err)
	}

	repo := spec.Project.Path
	_, err := w.git(ctx, repo, "worktree", "add", "-b", spec.Branch, path, spec.Project.DefaultBranch)
	if err != nil && strings.Contains(err.Error(), "already exists") {
		// Branch exists from an earlier session; attach to it instead.
		_, err = w.git(ctx, repo, "worktree", "add", path, spec.Branch)
	}
	if err != nil {
		return nil, fmt.Errorf("adding worktree: %w", err)
	}

	return &plugin.WorkspaceInfo{
		Path:      path,
		Branch:    spec.Branch,
		SessionID: spec.SessionID,
	}, nil
}

// Destroy removes a worktree and prunes stale registrations. The directory
// is force-removed even with uncommitted changes: the branch keeps the
// agent's pushed work, the worktree is disposable.
func (w *Workspace) Destroy(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	repo, err := w.mainRepo(ctx, path)
	if err != nil {
		// Not a live worktree anymore; fall back to removing the directory.
		return os.RemoveAll(path)
	}
	if _, err := w.git(ctx, repo, "worktree", "remove", "--force", path); err != nil {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("removing worktree: %w", err)
		}
	}
	_, _ = w.git(ctx, repo, "worktree", "prune") // best-effort
	return nil
}

// List returns the worktrees this plugin owns for a project.
func (w *Workspace) List(_ context.Context, projectID string) ([]*plugin.WorkspaceInfo, error) {
	dir := filepath.Join(w.baseDir, projectID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var infos []*plugin.WorkspaceInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		infos = append(infos, &plugin.WorkspaceInfo{
			Path:      filepath.Join(dir, e.Name()),
			SessionID: e.Name(),
		})
	}
	return infos, nil
}

// CurrentBranch reports the branch checked out in a worktree.
func (w *Workspace) CurrentBranch(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	return w.git(ctx, path, "rev-parse", "--abbrev-ref", "HEAD")
}

// PostCreate links configured untracked files from the main checkout into
// the worktree (env files, local settings), then runs the project's
// post-create command inside the worktree.
func (w *Workspace) PostCreate(ctx context.Context, info *plugin.WorkspaceInfo, project *config.Project) error {
	if project == nil {
		return nil
	}
	for _, name := range project.Symlinks {
		src := filepath.Join(project.Path, name)
		dst := filepath.Join(info.Path, name)
		if _, err := os.Stat(src); err != nil {
			continue // nothing to link
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating symlink parent for %s: %w", name, err)
		}
		_ = os.Remove(dst)
		if err := os.Symlink(src, dst); err != nil {
			return fmt.Errorf("linking %s: %w", name, err)
		}
	}

	if project.PostCreate != "" {
		ctx, cancel := context.WithTimeout(ctx, gitTimeout)
		defer cancel()
		cmd := exec.CommandContext(ctx, "sh", "-c", project.PostCreate)
		cmd.Dir = info.Path
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("postCreate hook: %s: %w", strings.TrimSpace(stderr.String()), err)
		}
	}
	return nil
}

// mainRepo resolves the main repository a worktree belongs to.
func (w *Workspace) mainRepo(ctx context.Context, worktreePath string) (string, error) {
	out, err := w.git(ctx, worktreePath, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil {
		return "", err
	}
	// The common dir is <mainRepo>/.git.
	return filepath.Dir(out), nil
}
