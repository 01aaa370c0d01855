// Package metadata implements the filesystem-backed session records that are
// the engine's only durable state.
//
// One flat key=value file per session lives at
// <dataDir>/<projectID>-sessions/<sessionID>. On teardown the file is
// renamed into archive/ with a UTC second-resolution timestamp suffix;
// archived files are never read back by the engine.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Keys read by the engine core. Plugins may stash extra keys; the store
// round-trips anything.
const (
	KeyWorktree      = "worktree"
	KeyBranch        = "branch"
	KeyStatus        = "status"
	KeyIssue         = "issue"
	KeyPR            = "pr"
	KeySummary       = "summary"
	KeyProject       = "project"
	KeyCreatedAt     = "createdAt"
	KeyRuntimeHandle = "runtimeHandle"
)

// canonicalOrder fixes the serialization order of known keys so records
// diff cleanly; unknown keys follow, sorted.
var canonicalOrder = []string{
	KeyStatus, KeyProject, KeyIssue, KeyBranch, KeyWorktree,
	KeyPR, KeySummary, KeyCreatedAt, KeyRuntimeHandle,
}

// ErrExists is returned by Reserve when the session id is already taken.
var ErrExists = errors.New("session metadata already exists")

// Record is a flat key=value session record. Empty values are treated as
// absent and never written.
type Record map[string]string

// Store reads and writes session metadata under a data directory.
type Store struct {
	dataDir string
}

// NewStore creates a store rooted at dataDir. The directory is created on
// first write, not here.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// DataDir returns the store's root directory.
func (s *Store) DataDir() string { return s.dataDir }

// sessionDir returns the per-project session directory.
func (s *Store) sessionDir(projectID string) string {
	return filepath.Join(s.dataDir, projectID+"-sessions")
}

// Path returns the live metadata path for a session.
func (s *Store) Path(projectID, sessionID string) string {
	return filepath.Join(s.sessionDir(projectID), sessionID)
}

// Encode renders a record in the on-disk format: one key=value per line,
// LF-terminated, empty values omitted, one trailing LF.
func Encode(rec Record) []byte {
	var b strings.Builder
	seen := make(map[string]bool, len(rec))
	write := func(k string) {
		v := rec[k]
		if v == "" || seen[k] {
			return
		}
		seen[k] = true
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	for _, k := range canonicalOrder {
		write(k)
	}
	extra := make([]string, 0, len(rec))
	for k := range rec {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		write(k)
	}
	return []byte(b.String())
}

// Decode parses the on-disk format. Only the first '=' separates key from
// value, so values may themselves contain '='. Empty lines are ignored.
func Decode(data []byte) Record {
	rec := make(Record)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		k, v, found := strings.Cut(line, "=")
		if !found || k == "" {
			continue
		}
		rec[k] = v
	}
	return rec
}

// Read loads a session record. Returns os.ErrNotExist-wrapped errors for
// missing sessions.
func (s *Store) Read(projectID, sessionID string) (Record, error) {
	data, err := os.ReadFile(s.Path(projectID, sessionID))
	if err != nil {
		return nil, err
	}
	return Decode(data), nil
}

// Exists reports whether a live record is present.
func (s *Store) Exists(projectID, sessionID string) bool {
	_, err := os.Stat(s.Path(projectID, sessionID))
	return err == nil
}

// Reserve atomically claims a session id by creating its metadata file with
// O_CREAT|O_EXCL. Concurrent spawns contend here; the loser gets ErrExists.
func (s *Store) Reserve(projectID, sessionID string, rec Record) error {
	dir := s.sessionDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	f, err := os.OpenFile(s.Path(projectID, sessionID), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrExists, sessionID)
		}
		return fmt.Errorf("reserving session id: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(Encode(rec)); err != nil {
		return fmt.Errorf("writing reservation: %w", err)
	}
	return nil
}

// Release removes a reserved id. Used only to roll back a failed spawn;
// missing files are fine.
func (s *Store) Release(projectID, sessionID string) error {
	err := os.Remove(s.Path(projectID, sessionID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Write replaces the whole record atomically (temp file + rename).
func (s *Store) Write(projectID, sessionID string, rec Record) error {
	dir := s.sessionDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	path := s.Path(projectID, sessionID)
	tmp, err := os.CreateTemp(dir, "."+sessionID+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(Encode(rec)); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing record: %w", err)
	}
	return nil
}

// Merge applies updates on top of the stored record and writes the result.
// An empty value in updates deletes the key. The whole-file replace keeps
// a record internally consistent for concurrent readers.
func (s *Store) Merge(projectID, sessionID string, updates Record) error {
	rec, err := s.Read(projectID, sessionID)
	if err != nil {
		return err
	}
	for k, v := range updates {
		if v == "" {
			delete(rec, k)
			continue
		}
		rec[k] = v
	}
	return s.Write(projectID, sessionID, rec)
}

// List returns the live session ids for a project, sorted.
func (s *Store) List(projectID string) ([]string, error) {
	entries, err := os.ReadDir(s.sessionDir(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// ListProjects returns every project id that has a session directory.
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var projects []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if p, ok := strings.CutSuffix(e.Name(), "-sessions"); ok {
			projects = append(projects, p)
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// Archive moves a session's record into archive/<id>_<timestamp> atomically.
// The archived file is never read again by the engine.
func (s *Store) Archive(projectID, sessionID string) (string, error) {
	dir := filepath.Join(s.sessionDir(projectID), "archive")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating archive dir: %w", err)
	}
	stamp := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	dest := filepath.Join(dir, sessionID+"_"+stamp)
	if err := os.Rename(s.Path(projectID, sessionID), dest); err != nil {
		return "", fmt.Errorf("archiving session record: %w", err)
	}
	return dest, nil
}
