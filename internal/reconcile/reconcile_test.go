package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueprintlabs/blueprint/internal/artifact"
	"github.com/blueprintlabs/blueprint/internal/delta"
	"github.com/blueprintlabs/blueprint/internal/document"
)

func seedHistory(t *testing.T, contents ...string) *document.MemoryStore {
	t.Helper()
	store := document.NewMemoryStore()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	for i, content := range contents {
		require.NoError(t, store.SaveVersion(t.Context(), document.Version{
			ID:        "doc1",
			Title:     "Essay",
			Kind:      artifact.KindText,
			Content:   content,
			UserID:    "u1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return store
}

func TestReconcilerNavigation(t *testing.T) {
	t.Parallel()

	store := seedHistory(t, "v1", "v2", "v3")
	live := artifact.NewStore(artifact.DefaultReveal())
	r := NewReconciler(live, store, nil)
	require.NoError(t, r.Load(t.Context(), "doc1"))

	assert.True(t, r.IsCurrentVersion())

	r.Navigate(DirectionPrev)
	assert.False(t, r.IsCurrentVersion())
	assert.Equal(t, "v2", r.Content())

	r.Navigate(DirectionPrev)
	assert.Equal(t, "v1", r.Content())

	// Prev clamps at the oldest version.
	r.Navigate(DirectionPrev)
	assert.Equal(t, "v1", r.Content())

	r.Navigate(DirectionNext)
	assert.Equal(t, "v2", r.Content())

	r.Navigate(DirectionLatest)
	assert.True(t, r.IsCurrentVersion())

	// Next clamps at the newest version.
	r.Navigate(DirectionNext)
	assert.True(t, r.IsCurrentVersion())
}

func TestReconcilerToggleDiff(t *testing.T) {
	t.Parallel()

	store := seedHistory(t, "v1", "v2")
	r := NewReconciler(artifact.NewStore(artifact.DefaultReveal()), store, nil)
	require.NoError(t, r.Load(t.Context(), "doc1"))

	assert.Equal(t, ModeEdit, r.Mode())
	_, _, ok := r.Diff()
	assert.False(t, ok)

	r.Navigate(DirectionToggle)
	assert.Equal(t, ModeDiff, r.Mode())

	before, after, ok := r.Diff()
	require.True(t, ok)
	assert.Equal(t, "v1", before)
	assert.Equal(t, "v2", after)

	r.Navigate(DirectionToggle)
	assert.Equal(t, ModeEdit, r.Mode())
}

func TestReconcilerDiffNeedsEarlierVersion(t *testing.T) {
	t.Parallel()

	store := seedHistory(t, "only")
	r := NewReconciler(artifact.NewStore(artifact.DefaultReveal()), store, nil)
	require.NoError(t, r.Load(t.Context(), "doc1"))

	r.Navigate(DirectionToggle)
	_, _, ok := r.Diff()
	assert.False(t, ok)
}

func TestReconcilerLiveStateWinsWhileStreaming(t *testing.T) {
	t.Parallel()

	store := seedHistory(t, "v1", "v2")
	live := artifact.NewStore(artifact.DefaultReveal())
	r := NewReconciler(live, store, nil)
	require.NoError(t, r.Load(t.Context(), "doc1"))

	r.Navigate(DirectionPrev)
	assert.Equal(t, "v1", r.Content())

	// A new episode starts streaming: the cursor is bypassed.
	live.Consume(delta.ID("doc1"))
	live.Consume(delta.Text("live draft"))
	assert.Equal(t, "live draft", r.Content())

	// Streaming ends: the cursor applies again.
	live.Consume(delta.Finish())
	assert.Equal(t, "v1", r.Content())
}

func TestReconcilerIdleShowsPersistedVersion(t *testing.T) {
	t.Parallel()

	store := seedHistory(t, "v1", "v2")
	live := artifact.NewStore(artifact.DefaultReveal())
	r := NewReconciler(live, store, nil)
	require.NoError(t, r.Load(t.Context(), "doc1"))

	// Nothing has streamed yet: the cursor at the latest version shows
	// the persisted content, not the fresh live artifact.
	assert.True(t, r.IsCurrentVersion())
	assert.Equal(t, "v2", r.Content())

	// After an episode ends the latest version keeps winning over the
	// now-idle live state.
	live.Consume(delta.ID("doc1"))
	live.Consume(delta.Text("draft"))
	live.Consume(delta.Finish())
	require.NoError(t, r.Refresh(t.Context()))
	assert.Equal(t, "v2", r.Content())
}

func TestReconcilerViewReclassifies(t *testing.T) {
	t.Parallel()

	store := seedHistory(t, "plain prose", `{"sequencediagram":"A->B","markdownContent":"d"}`)
	r := NewReconciler(artifact.NewStore(artifact.DefaultReveal()), store, nil)
	require.NoError(t, r.Load(t.Context(), "doc1"))

	assert.Equal(t, artifact.ViewSequenceDesign, r.View())
	r.Navigate(DirectionPrev)
	assert.Equal(t, artifact.ViewRaw, r.View())
}

func TestReconcilerEmptyHistory(t *testing.T) {
	t.Parallel()

	store := document.NewMemoryStore()
	live := artifact.NewStore(artifact.DefaultReveal())
	r := NewReconciler(live, store, nil)
	require.NoError(t, r.Load(t.Context(), "doc1"))

	assert.True(t, r.IsCurrentVersion())
	assert.Zero(t, r.VersionCount())

	// With no history the live artifact is all there is.
	live.Consume(delta.ID("doc1"))
	live.Consume(delta.Text("draft"))
	assert.Equal(t, "draft", r.Content())
}

func TestReconcilerRefresh(t *testing.T) {
	t.Parallel()

	store := seedHistory(t, "v1", "v2")
	r := NewReconciler(artifact.NewStore(artifact.DefaultReveal()), store, nil)
	require.NoError(t, r.Load(t.Context(), "doc1"))

	require.NoError(t, store.SaveVersion(t.Context(), document.Version{
		ID: "doc1", Content: "v3",
	}))

	// The cursor was at the latest version, so it follows the new one.
	require.NoError(t, r.Refresh(t.Context()))
	assert.Equal(t, 3, r.VersionCount())
	assert.True(t, r.IsCurrentVersion())
}
