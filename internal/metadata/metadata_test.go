package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestEncodeCanonicalOrder(t *testing.T) {
	rec := Record{
		KeyWorktree: "/tmp/wt",
		KeyStatus:   "working",
		"zebra":     "extra",
		KeyProject:  "my-app",
		"alpha":     "extra2",
	}
	got := string(Encode(rec))
	assert.Equal(t, "status=working\nproject=my-app\nworktree=/tmp/wt\nalpha=extra2\nzebra=extra\n", got)
}

func TestEncodeSkipsEmptyValues(t *testing.T) {
	rec := Record{KeyStatus: "working", KeyBranch: ""}
	assert.Equal(t, "status=working\n", string(Encode(rec)))
}

func TestDecodeEqualsInValue(t *testing.T) {
	rec := Decode([]byte("status=working\nprompt=FOO=bar=baz\n\n"))
	assert.Equal(t, "working", rec[KeyStatus])
	assert.Equal(t, "FOO=bar=baz", rec["prompt"])
}

func TestRoundTripPreservesUnknownKeys(t *testing.T) {
	s := newTestStore(t)
	in := Record{KeyStatus: "working", "pluginStash": "anything"}
	require.NoError(t, s.Write("p", "p-1", in))
	out, err := s.Read("p", "p-1")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReserveCollision(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Reserve("p", "p-1", Record{KeyStatus: "spawning"}))
	err := s.Reserve("p", "p-1", Record{KeyStatus: "spawning"})
	assert.ErrorIs(t, err, ErrExists)
}

func TestReleaseMissingIsNil(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Release("p", "never-created"))
}

func TestMergeDeletesEmptyValues(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("p", "p-1", Record{KeyStatus: "working", KeyPR: "url"}))
	require.NoError(t, s.Merge("p", "p-1", Record{KeyStatus: "merged", KeyPR: ""}))
	rec, err := s.Read("p", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "merged", rec[KeyStatus])
	_, has := rec[KeyPR]
	assert.False(t, has)
}

func TestListSkipsDirsAndDotfiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("p", "p-2", Record{KeyStatus: "working"}))
	require.NoError(t, s.Write("p", "p-1", Record{KeyStatus: "working"}))
	require.NoError(t, os.MkdirAll(filepath.Join(s.DataDir(), "p-sessions", "archive"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.DataDir(), "p-sessions", ".p-1.tmp-x"), nil, 0o644))

	ids, err := s.List("p")
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1", "p-2"}, ids)
}

func TestListMissingProject(t *testing.T) {
	s := newTestStore(t)
	ids, err := s.List("nope")
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListProjects(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("alpha", "a-1", Record{KeyStatus: "working"}))
	require.NoError(t, s.Write("beta", "b-1", Record{KeyStatus: "working"}))
	require.NoError(t, os.MkdirAll(filepath.Join(s.DataDir(), "unrelated"), 0o755))

	projects, err := s.ListProjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, projects)
}

func TestArchive(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("p", "p-1", Record{KeyStatus: "merged"}))

	dest, err := s.Archive("p", "p-1")
	require.NoError(t, err)

	assert.False(t, s.Exists("p", "p-1"))
	assert.Regexp(t, `archive/p-1_\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, dest)
	_, err = os.Stat(dest)
	assert.NoError(t, err)

	ids, err := s.List("p")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
