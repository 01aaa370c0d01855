package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/events"
	"github.com/agentops/overseer/internal/logger"
	"github.com/agentops/overseer/internal/manager"
	"github.com/agentops/overseer/internal/metadata"
	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

type testEnv struct {
	lm       *Manager
	store    *metadata.Store
	runtime  *fakeRuntime
	agent    *fakeAgent
	scm      *fakeSCM
	notifier *captureNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(`
dataDir: ` + filepath.Join(dir, "sessions") + `
defaults:
  runtime: tmux
  agent: claude
  scm: github
  notifiers: [capture]
projects:
  my-app:
    repo: acme/my-app
    path: ` + filepath.Join(dir, "repo") + `
    sessionPrefix: app
reactions:
  ci-failed:
    auto: true
    action: send-to-agent
    message: "Fix CI"
    retries: 3
    escalateAfter: "3"
  all-complete:
    auto: true
    action: notify
`))
	require.NoError(t, err)

	env := &testEnv{
		runtime:  newFakeRuntime(),
		agent:    &fakeAgent{processRunning: true},
		scm:      newFakeSCM(),
		notifier: &captureNotifier{},
	}
	registry := plugin.NewRegistry(logger.Nop())
	register := func(slot plugin.Slot, name string, inst any) {
		require.NoError(t, registry.Register(&plugin.Module{
			Manifest: plugin.Manifest{Slot: slot, Name: name},
			New:      func(map[string]any) (any, error) { return inst, nil },
		}, nil))
	}
	register(plugin.SlotRuntime, "tmux", env.runtime)
	register(plugin.SlotAgent, "claude", env.agent)
	register(plugin.SlotSCM, "github", env.scm)
	register(plugin.SlotNotifier, "capture", env.notifier)

	env.store = metadata.NewStore(cfg.DataDir)
	sessions := manager.New(cfg, env.store, registry, logger.Nop())
	env.lm = New(cfg, sessions, registry, logger.Nop())
	return env
}

// seed writes a session record with a live tmux handle.
func (env *testEnv) seed(t *testing.T, id string, status session.Status, extra metadata.Record) {
	t.Helper()
	rec := metadata.Record{
		metadata.KeyStatus:        string(status),
		metadata.KeyProject:       "my-app",
		metadata.KeyRuntimeHandle: `{"id":"` + id + `","runtimeName":"tmux"}`,
	}
	for k, v := range extra {
		rec[k] = v
	}
	require.NoError(t, env.store.Write("my-app", id, rec))
}

func (env *testEnv) status(t *testing.T, id string) string {
	t.Helper()
	rec, err := env.store.Read("my-app", id)
	require.NoError(t, err)
	return rec[metadata.KeyStatus]
}

func TestCIFailureTriggersSendToAgent(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusPROpen, metadata.Record{
		metadata.KeyPR: "https://github.com/acme/my-app/pull/7",
	})
	env.scm.set(func(s *fakeSCM) { s.ci = plugin.CIFailing })

	env.lm.Tick(context.Background())

	assert.Equal(t, "ci_failed", env.status(t, "app-1"))
	assert.Equal(t, []string{"Fix CI"}, env.runtime.sentTo("app-1"))
	// the reaction handled the transition; no human notification
	assert.Empty(t, env.notifier.all())
}

func TestEscalationAfterRetriesExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusPROpen, metadata.Record{
		metadata.KeyPR: "https://github.com/acme/my-app/pull/7",
	})
	env.scm.set(func(s *fakeSCM) { s.ci = plugin.CIFailing })
	ctx := context.Background()

	// CI stays red: three send attempts, then the fourth trigger escalates
	for i := 0; i < 4; i++ {
		env.lm.Tick(ctx)
	}

	assert.Len(t, env.runtime.sentTo("app-1"), 3)
	escalated := env.notifier.ofType(events.ReactionEscalated)
	require.Len(t, escalated, 1)
	assert.Equal(t, events.PriorityUrgent, escalated[0].Priority)
}

func TestProbeFailurePreservesStuck(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusStuck, nil)
	env.runtime.outputErr = assert.AnError

	env.lm.Tick(context.Background())

	assert.Equal(t, "stuck", env.status(t, "app-1"))
	assert.Empty(t, env.notifier.all())
	assert.Empty(t, env.runtime.sentTo("app-1"))
}

func TestProbeFailurePreservesNeedsInput(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusNeedsInput, nil)
	env.runtime.aliveErr = assert.AnError

	env.lm.Tick(context.Background())
	assert.Equal(t, "needs_input", env.status(t, "app-1"))
}

func TestWaitingInputTransitionNotifies(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusWorking, nil)
	env.runtime.output = "WAITING: Do you want to proceed?"

	env.lm.Tick(context.Background())

	assert.Equal(t, "needs_input", env.status(t, "app-1"))
	// no agent-needs-input reaction configured: the urgent event reaches humans
	got := env.notifier.ofType(events.SessionNeedsInput)
	require.Len(t, got, 1)
	assert.Equal(t, events.PriorityUrgent, got[0].Priority)
}

func TestIdleWithDeadProcessKills(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusWorking, nil)
	env.runtime.output = "IDLE"
	env.agent.processRunning = false

	env.lm.Tick(context.Background())
	assert.Equal(t, "killed", env.status(t, "app-1"))
}

func TestSpawningPromotedToWorking(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusSpawning, nil)

	env.lm.Tick(context.Background())
	assert.Equal(t, "working", env.status(t, "app-1"))
}

func TestReviewLadder(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusPROpen, metadata.Record{
		metadata.KeyPR: "https://github.com/acme/my-app/pull/7",
	})
	ctx := context.Background()

	env.scm.set(func(s *fakeSCM) { s.review = plugin.ReviewPending })
	env.lm.Tick(ctx)
	assert.Equal(t, "review_pending", env.status(t, "app-1"))

	env.scm.set(func(s *fakeSCM) { s.review = plugin.ReviewApproved; s.mergeOK = false })
	env.lm.Tick(ctx)
	assert.Equal(t, "approved", env.status(t, "app-1"))

	env.scm.set(func(s *fakeSCM) { s.mergeOK = true })
	env.lm.Tick(ctx)
	assert.Equal(t, "mergeable", env.status(t, "app-1"))

	env.scm.set(func(s *fakeSCM) { s.prState = plugin.PRMerged })
	env.lm.Tick(ctx)
	assert.Equal(t, "merged", env.status(t, "app-1"))
}

func TestSCMFailureSkipsPRSignals(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusCIFailed, metadata.Record{
		metadata.KeyPR: "https://github.com/acme/my-app/pull/7",
	})
	env.scm.set(func(s *fakeSCM) { s.scmErr = assert.AnError })

	env.lm.Tick(context.Background())
	// ci_failed is not in the reset set; it holds until a probe succeeds
	assert.Equal(t, "ci_failed", env.status(t, "app-1"))
}

func TestTrackerClearedOnTransitionAway(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusPROpen, metadata.Record{
		metadata.KeyPR: "https://github.com/acme/my-app/pull/7",
	})
	ctx := context.Background()

	// two failing ticks, then CI recovers, then fails again
	env.scm.set(func(s *fakeSCM) { s.ci = plugin.CIFailing })
	env.lm.Tick(ctx)
	env.lm.Tick(ctx)
	env.scm.set(func(s *fakeSCM) { s.ci = plugin.CIPassing })
	env.lm.Tick(ctx)
	assert.Equal(t, "pr_open", env.status(t, "app-1"))
	env.scm.set(func(s *fakeSCM) { s.ci = plugin.CIFailing })
	env.lm.Tick(ctx)
	env.lm.Tick(ctx)

	// five failing ticks total, but the counter restarted after recovery
	assert.Len(t, env.runtime.sentTo("app-1"), 4)
	assert.Empty(t, env.notifier.ofType(events.ReactionEscalated))
}

func TestAllCompleteFiresOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusWorking, metadata.Record{
		metadata.KeyPR: "https://github.com/acme/my-app/pull/1",
	})
	env.seed(t, "app-2", session.StatusWorking, metadata.Record{
		metadata.KeyPR: "https://github.com/acme/my-app/pull/2",
	})
	env.scm.set(func(s *fakeSCM) { s.prState = plugin.PRMerged })
	ctx := context.Background()

	env.lm.Tick(ctx)
	env.lm.Tick(ctx)
	env.lm.Tick(ctx)

	assert.Equal(t, "merged", env.status(t, "app-1"))
	assert.Equal(t, "merged", env.status(t, "app-2"))

	summary := env.notifier.ofType(events.ReactionTriggered)
	require.Len(t, summary, 1)
	assert.Contains(t, summary[0].Message, "2 sessions")
}

func TestAllCompleteGuardResetsOnNewSession(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusWorking, metadata.Record{
		metadata.KeyPR: "https://github.com/acme/my-app/pull/1",
	})
	env.seed(t, "app-2", session.StatusWorking, metadata.Record{
		metadata.KeyPR: "https://github.com/acme/my-app/pull/2",
	})
	env.scm.set(func(s *fakeSCM) { s.prState = plugin.PRMerged })
	ctx := context.Background()

	// the summary fires on the tick after the listing shows all terminal
	env.lm.Tick(ctx)
	env.lm.Tick(ctx)
	require.Len(t, env.notifier.ofType(events.ReactionTriggered), 1)

	// a new session joins after the fleet completed; its transition back to
	// a non-terminal status re-arms the summary
	env.scm.set(func(s *fakeSCM) { s.prState = plugin.PROpen })
	env.seed(t, "app-3", session.StatusWorking, metadata.Record{
		metadata.KeyPR: "https://github.com/acme/my-app/pull/3",
	})
	env.lm.Tick(ctx)
	assert.Equal(t, "pr_open", env.status(t, "app-3"))
	require.Len(t, env.notifier.ofType(events.ReactionTriggered), 1)

	env.scm.set(func(s *fakeSCM) { s.prState = plugin.PRMerged })
	env.lm.Tick(ctx)
	assert.Equal(t, "merged", env.status(t, "app-3"))
	env.lm.Tick(ctx)

	summaries := env.notifier.ofType(events.ReactionTriggered)
	require.Len(t, summaries, 2)
	assert.Contains(t, summaries[1].Message, "3 sessions")
}

func TestRuntimeDeadObservedByList(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "app-1", session.StatusWorking, nil)
	env.runtime.alive = false

	env.lm.Tick(context.Background())

	// the list-observed death is persisted even though the observed status
	// was already terminal
	assert.Equal(t, "killed", env.status(t, "app-1"))
	// session.killed infers info priority: no human notification without an
	// agent-exited reaction
	assert.Empty(t, env.notifier.ofType(events.SessionKilled))
}

func TestActivityProbeStampsLastActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	newSess := func() *session.Session {
		return &session.Session{
			ID:            "app-1",
			ProjectID:     "my-app",
			Status:        session.StatusWorking,
			RuntimeHandle: &session.RuntimeHandle{ID: "app-1", RuntimeName: "tmux"},
		}
	}

	sess := newSess()
	next := env.lm.determineStatus(ctx, sess, session.StatusWorking)
	assert.Equal(t, session.StatusWorking, next)
	assert.Equal(t, session.ActivityActive, sess.Activity)
	assert.WithinDuration(t, time.Now(), sess.LastActivityAt, 5*time.Second)

	// an idle terminal is not activity
	env.runtime.output = "IDLE"
	sess = newSess()
	env.lm.determineStatus(ctx, sess, session.StatusWorking)
	assert.Equal(t, session.ActivityIdle, sess.Activity)
	assert.True(t, sess.LastActivityAt.IsZero())
}

func TestStartStopIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.lm.Start(50 * time.Millisecond)
	env.lm.Start(50 * time.Millisecond) // no-op
	env.lm.Stop()
	env.lm.Stop() // no-op
}
