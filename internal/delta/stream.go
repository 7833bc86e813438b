package delta

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Append after the stream has been closed.
var ErrClosed = errors.New("delta stream closed")

// Sink delivers deltas to a consumer in the exact order they are
// appended. Implementations must be safe for use from the single
// producing goroutine of a turn; they are not required to tolerate
// concurrent producers, because episode ordering is only meaningful
// from one producer.
type Sink interface {
	// Append queues one delta for delivery. Delivery preserves append
	// order; a sink must never reorder or drop deltas for a live
	// consumer.
	Append(ctx context.Context, d Delta) error

	// Close marks the end of the stream. After Close, Append returns
	// ErrClosed. Close is idempotent.
	Close(ctx context.Context) error
}

// Stream is an in-process, append-only delta channel with replay.
//
// A subscriber receives a snapshot of everything appended so far plus a
// live channel for the rest, so a consumer attaching at any point sees
// the full ordered sequence exactly once. Delivery to each subscriber is
// strictly FIFO; slow subscribers delay only themselves.
type Stream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []Delta
	closed bool
}

// NewStream returns an empty open stream.
func NewStream() *Stream {
	s := &Stream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Append implements Sink.
func (s *Stream) Append(_ context.Context, d Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.buf = append(s.buf, d)
	s.cond.Broadcast()
	return nil
}

// Close implements Sink.
func (s *Stream) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}

// Len returns the number of deltas appended so far.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Snapshot returns a copy of everything appended so far.
func (s *Stream) Snapshot() []Delta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delta, len(s.buf))
	copy(out, s.buf)
	return out
}

// Subscribe returns a channel that yields every delta from position from
// (0 for the whole stream) in append order, then closes once the stream
// is closed and drained. cancel releases the subscription; it is safe to
// call more than once.
func (s *Stream) Subscribe(from int) (<-chan Delta, func()) {
	ch := make(chan Delta)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		})
	}

	go func() {
		defer close(ch)
		next := from
		if next < 0 {
			next = 0
		}
		for {
			s.mu.Lock()
			for next >= len(s.buf) && !s.closed {
				select {
				case <-done:
					s.mu.Unlock()
					return
				default:
				}
				s.cond.Wait()
			}
			if next >= len(s.buf) && s.closed {
				s.mu.Unlock()
				return
			}
			d := s.buf[next]
			next++
			s.mu.Unlock()

			select {
			case ch <- d:
			case <-done:
				return
			}
		}
	}()
	return ch, cancel
}
