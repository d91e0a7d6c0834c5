package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twinaos/installer/internal/nats/natstest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	env := natstest.Start(t)
	return NewStore(env.JS, env.Stream)
}

func TestLoadState_Empty(t *testing.T) {
	s := newTestStore(t)

	st, err := s.LoadState(context.Background(), "lab")
	require.NoError(t, err)
	require.Equal(t, StatusReady, st.Status)
	require.Empty(t, st.Config)
	require.Zero(t, st.Runs)
}

func TestMergeConfig_ShallowMerge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MergeConfig(ctx, "lab", map[string]any{"language": "en", "languageName": "English"}))
	require.NoError(t, s.MergeConfig(ctx, "lab", map[string]any{"keyboard": "us"}))
	require.NoError(t, s.MergeConfig(ctx, "lab", map[string]any{"language": "de", "languageName": "Deutsch"}))
	require.NoError(t, s.MergeConfig(ctx, "lab", nil))
	require.NoError(t, s.MergeConfig(ctx, "other", map[string]any{"keyboard": "fr"}))

	st, err := s.LoadState(ctx, "lab")
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"language":     "de",
		"languageName": "Deutsch",
		"keyboard":     "us",
	}, st.Config)
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRunStarted(ctx, "lab", "r1"))
	require.NoError(t, s.RecordRunProgress(ctx, "lab", "r1", 30, "Installing base system..."))

	st, err := s.LoadState(ctx, "lab")
	require.NoError(t, err)
	require.Equal(t, StatusInstalling, st.Status)
	require.Equal(t, "r1", st.RunID)
	require.Equal(t, 30, st.Progress)
	require.Equal(t, "Installing base system...", st.Message)

	require.NoError(t, s.RecordRunFailed(ctx, "lab", "r1", "disk busy"))
	st, err = s.LoadState(ctx, "lab")
	require.NoError(t, err)
	require.Equal(t, StatusError, st.Status)
	require.Equal(t, "disk busy", st.Error)

	require.NoError(t, s.RecordRunStarted(ctx, "lab", "r2"))
	// Late progress from the failed run must not leak into the new one.
	require.NoError(t, s.RecordRunProgress(ctx, "lab", "r1", 90, "stale"))
	require.NoError(t, s.RecordRunCompleted(ctx, "lab", "r2"))

	st, err = s.LoadState(ctx, "lab")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, st.Status)
	require.Equal(t, 100, st.Progress)
	require.Empty(t, st.Error)
	require.Equal(t, 2, st.Runs)
	require.False(t, st.FinishedAt.IsZero())
}

func TestRedacted(t *testing.T) {
	st := newState("lab")
	st.Config["password"] = "Secret#1"
	st.Config["username"] = "ada"

	r := st.Redacted()
	require.Equal(t, "********", r.Config["password"])
	require.Equal(t, "ada", r.Config["username"])
	require.Equal(t, "Secret#1", st.Config["password"], "original untouched")
}
