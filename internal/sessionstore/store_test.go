package sessionstore_test

import (
	"context"
	"github.com/medcircle/medresident/internal/sessionstore"
	"github.com/medcircle/medresident/internal/simulation"
	"github.com/medcircle/medresident/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

func newStore(t *testing.T, size int, clock *testhelpers.ManualClock) *sessionstore.Store {
	t.Helper()
	store, err := sessionstore.New(size, func(id string, _ string) *simulation.Session {
		return simulation.NewSession(simulation.WithID(id), simulation.WithClock(clock))
	}, testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	return store
}

func TestStore_GetOrCreate(t *testing.T) {
	store := newStore(t, 4, testhelpers.NewManualClock())

	first := store.GetOrCreate("", "learner")
	require.NotEmpty(t, first.ID())
	require.Equal(t, 1, store.Len())

	again := store.GetOrCreate(first.ID(), "learner")
	require.Same(t, first, again)

	unknown := store.GetOrCreate("forgotten-after-restart", "learner")
	require.NotSame(t, first, unknown)
	require.NotEqual(t, "forgotten-after-restart", unknown.ID())
	require.Equal(t, 2, store.Len())

	got, ok := store.Get(first.ID(), "learner")
	require.True(t, ok)
	require.Same(t, first, got)
	_, ok = store.Get("", "learner")
	require.False(t, ok)

	_, ok = store.Get(first.ID(), "someone-else")
	require.False(t, ok)
	other := store.GetOrCreate(first.ID(), "someone-else")
	require.NotSame(t, first, other)
}

func TestStore_EvictionStopsCountdown(t *testing.T) {
	clock := testhelpers.NewManualClock()
	store := newStore(t, 1, clock)
	scenario, err := simulation.MustLoadCatalog().Get("trauma-polytrauma")
	require.NoError(t, err)

	evicted := store.GetOrCreate("", "learner")
	require.NoError(t, evicted.Start(context.Background(), scenario))
	ticker := clock.NextTicker(t)

	store.GetOrCreate("", "learner")
	ticker.WaitStopped(t)

	require.Equal(t, 1, store.Len())
	require.Equal(t, simulation.StateNotStarted, evicted.State())
	_, ok := store.Get(evicted.ID(), "learner")
	require.False(t, ok)
}

func TestStore_Delete(t *testing.T) {
	clock := testhelpers.NewManualClock()
	store := newStore(t, 2, clock)
	scenario, err := simulation.MustLoadCatalog().Get("pediatric-meningitis")
	require.NoError(t, err)

	session := store.GetOrCreate("", "learner")
	require.NoError(t, session.Start(context.Background(), scenario))
	ticker := clock.NextTicker(t)

	store.Delete(session.ID())
	ticker.WaitStopped(t)
	require.Equal(t, 0, store.Len())
	require.Equal(t, simulation.StateNotStarted, session.State())

	require.NotPanics(t, func() { store.Delete("missing") })
}

func TestNew_RejectsInvalidSize(t *testing.T) {
	_, err := sessionstore.New(0, nil, testhelpers.NewLogger(io.Discard))
	require.Error(t, err)
}
