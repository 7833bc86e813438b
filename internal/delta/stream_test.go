package delta

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan Delta, n int) []Delta {
	t.Helper()

	out := make([]Delta, 0, n)
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case d, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, d)
		case <-timeout:
			t.Fatalf("timed out after %d of %d deltas", len(out), n)
		}
	}
	return out
}

func TestStreamPreservesOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStream()
	ch, cancel := s.Subscribe(0)
	defer cancel()

	seq := []Delta{Clear(), ID("doc1"), Title("T"), Kind("text"), Text("Hello "), Text("world"), Finish()}
	for _, d := range seq {
		require.NoError(t, s.Append(ctx, d))
	}
	require.NoError(t, s.Close(ctx))

	got := collect(t, ch, len(seq))
	assert.Equal(t, seq, got)

	// Channel closes after drain.
	_, ok := <-ch
	assert.False(t, ok)
}

func TestStreamSnapshotReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStream()

	require.NoError(t, s.Append(ctx, ID("doc1")))
	require.NoError(t, s.Append(ctx, Text("early")))

	// A late subscriber starting from 0 still sees the full prefix.
	ch, cancel := s.Subscribe(0)
	defer cancel()

	require.NoError(t, s.Append(ctx, Finish()))
	require.NoError(t, s.Close(ctx))

	got := collect(t, ch, 3)
	require.Len(t, got, 3)
	assert.Equal(t, TypeID, got[0].Type)
	assert.Equal(t, TypeText, got[1].Type)
	assert.Equal(t, TypeFinish, got[2].Type)
}

func TestStreamAppendAfterClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStream()
	require.NoError(t, s.Close(ctx))
	assert.ErrorIs(t, s.Append(ctx, Text("late")), ErrClosed)

	// Close is idempotent.
	assert.NoError(t, s.Close(ctx))
}

func TestStreamCancelStopsDelivery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStream()
	ch, cancel := s.Subscribe(0)

	require.NoError(t, s.Append(ctx, Text("a")))
	got := collect(t, ch, 1)
	require.Len(t, got, 1)

	cancel()
	cancel() // safe twice

	// The subscription channel closes even though the stream stays open.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription did not close after cancel")
		}
	}
}
