package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blueprintlabs/blueprint/internal/document"
)

// DefaultSaveDelay collapses rapid manual edits into one version.
const DefaultSaveDelay = 2 * time.Second

const saveTimeout = 10 * time.Second

// Saver debounces manual-edit saves for one document. A queued save
// that matches the last persisted content is dropped, so cursor blinks
// and no-op edits never append versions.
type Saver struct {
	store  document.Store
	meta   document.Version
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	last    string
	stopped bool
}

// NewSaver creates a saver for the document described by meta (ID,
// Title, Kind, UserID); meta.Content seeds the equality check.
func NewSaver(store document.Store, meta document.Version, delay time.Duration, logger *slog.Logger) *Saver {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{
		store:  store,
		meta:   meta,
		delay:  delay,
		logger: logger,
		last:   meta.Content,
	}
}

// Queue schedules content to be saved after the debounce delay. A newer
// queue restarts the clock and supersedes the pending content.
func (s *Saver) Queue(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = content
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

func (s *Saver) fire() {
	s.mu.Lock()
	content := s.pending
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.Flush(ctx, content); err != nil {
		s.logger.Warn("debounced save failed", "id", s.meta.ID, "error", err)
	}
}

// Flush saves content immediately, bypassing the debounce. Unchanged
// content is a no-op.
func (s *Saver) Flush(ctx context.Context, content string) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if content == s.last {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	v := s.meta
	v.Content = content
	v.CreatedAt = time.Now().UTC()
	if err := s.store.SaveVersion(ctx, v); err != nil {
		return err
	}

	s.mu.Lock()
	s.last = content
	s.mu.Unlock()
	return nil
}

// Stop cancels any pending save.
func (s *Saver) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
