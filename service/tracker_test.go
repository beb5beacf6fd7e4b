package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofwatch/proofwatch/adapters/store"
	"github.com/proofwatch/proofwatch/core"
)

func TestUpsertMergesByIDOrURL(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, store.NewMemoryStore())

	tracker.UpsertItem(ctx, core.MediaItem{
		ID: "yt-1", Platform: "youtube", Kind: core.KindMovie,
		Title: "Movie X", URL: "https://example.com/x",
		Progress: 0.2, WatchedSeconds: 120, UpdatedAt: 1000,
	})
	tracker.UpsertItem(ctx, core.MediaItem{
		ID: "yt-1", Progress: 0.5, WatchedSeconds: 180, UpdatedAt: 2000,
	})
	// Same URL, no ID: still the same item.
	tracker.UpsertItem(ctx, core.MediaItem{
		URL: "https://example.com/x", Progress: 0.6, WatchedSeconds: 60, UpdatedAt: 3000,
	})

	state := tracker.State()
	require.Len(t, state.Active, 1)
	item := state.Active[0]
	assert.Equal(t, "yt-1", item.ID)
	assert.Equal(t, 0.6, item.Progress)
	assert.Equal(t, int64(360), item.WatchedSeconds)
	assert.Equal(t, int64(3000), item.UpdatedAt)

	// A different item does not merge.
	tracker.UpsertItem(ctx, core.MediaItem{ID: "yt-2", URL: "https://example.com/y", Progress: 0.1})
	assert.Len(t, tracker.State().Active, 2)
}

func TestCompletionEntersPendingMintQueue(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, store.NewMemoryStore())

	tracker.UpsertItem(ctx, core.MediaItem{ID: "yt-1", URL: "https://example.com/x", Progress: 0.9})
	assert.Empty(t, tracker.State().PendingMints)

	tracker.UpsertItem(ctx, core.MediaItem{ID: "yt-1", Progress: 1.0, Completed: true})
	state := tracker.State()
	require.Len(t, state.PendingMints, 1)
	assert.Equal(t, "yt-1", state.PendingMints[0].Item.ID)

	// A further progress tick on a completed item does not enqueue twice.
	tracker.UpsertItem(ctx, core.MediaItem{ID: "yt-1", Progress: 1.0, Completed: true})
	assert.Len(t, tracker.State().PendingMints, 1)
}

func TestMintInitiatedMovesItemOut(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, store.NewMemoryStore())

	item := core.MediaItem{ID: "yt-1", URL: "https://example.com/x", Completed: true}
	tracker.UpsertItem(ctx, item)

	tracker.MintInitiated(ctx, item, "deadbeef")

	state := tracker.State()
	assert.Empty(t, state.Active, "minting removes the item from active tracking")
	assert.Empty(t, state.PendingMints)
	require.Len(t, state.Completions, 1)
	assert.Equal(t, "deadbeef", state.Completions[0].DeployHash)
}

func TestStatePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	first := NewTracker(ctx, st)
	first.SetTrackingEnabled(ctx, true)
	first.MarkPermissionAsked(ctx)
	first.UpsertItem(ctx, core.MediaItem{ID: "yt-1", URL: "https://example.com/x", Progress: 0.4})

	second := NewTracker(ctx, st)
	state := second.State()
	assert.True(t, state.TrackingEnabled)
	assert.True(t, state.PermissionAsked)
	require.Len(t, state.Active, 1)
	assert.Equal(t, "yt-1", state.Active[0].ID)
}

func TestSubscribersNotifiedPerAction(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, store.NewMemoryStore())

	var seen []TrackerState
	cancel := tracker.Subscribe(func(state TrackerState) { seen = append(seen, state) })

	tracker.SetTrackingEnabled(ctx, true)
	tracker.SetSession(ctx, core.Session{Connected: true, Account: core.Account{Address: "0203abc"}, UpdatedAt: 1})
	require.Len(t, seen, 2)
	assert.True(t, seen[1].Session.Connected)
	assert.NotZero(t, seen[1].JoinedAt)

	cancel()
	tracker.SetTrackingEnabled(ctx, false)
	assert.Len(t, seen, 2)
}
