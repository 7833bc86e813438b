// Package reconcile keeps the live streamed artifact coherent with its
// persisted version history: a cursor over the append-only versions,
// a live-state-wins rule while streaming, and a debounced saver for
// manual edits.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blueprintlabs/blueprint/internal/artifact"
	"github.com/blueprintlabs/blueprint/internal/document"
)

// Mode selects how a historical version is presented.
type Mode string

const (
	ModeEdit Mode = "edit"
	ModeDiff Mode = "diff"
)

// Direction is one navigation request over the version history.
type Direction string

const (
	DirectionPrev   Direction = "prev"
	DirectionNext   Direction = "next"
	DirectionToggle Direction = "toggle"
	DirectionLatest Direction = "latest"
)

// Reconciler holds the version cursor for one document. While the live
// artifact is streaming, the cursor is bypassed: the reader always sees
// the in-flight content.
type Reconciler struct {
	mu       sync.Mutex
	live     *artifact.Store
	store    document.Store
	logger   *slog.Logger
	id       string
	versions []document.Version
	index    int
	mode     Mode
}

// NewReconciler creates a reconciler over the live artifact store.
func NewReconciler(live *artifact.Store, store document.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{live: live, store: store, logger: logger, mode: ModeEdit}
}

// Load fetches the history for id and points the cursor at the latest
// version. A document with no saved versions yet is not an error.
func (r *Reconciler) Load(ctx context.Context, id string) error {
	versions, err := r.store.ListVersions(ctx, id)
	if err != nil {
		return fmt.Errorf("load versions for %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
	r.versions = versions
	r.index = len(versions) - 1
	if r.index < 0 {
		r.index = 0
	}
	r.mode = ModeEdit
	return nil
}

// Navigate moves the cursor. Prev and next clamp at the history bounds,
// toggle flips diff presentation, latest jumps to the newest version in
// edit mode.
func (r *Reconciler) Navigate(dir Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch dir {
	case DirectionPrev:
		if r.index > 0 {
			r.index--
		}
	case DirectionNext:
		if r.index < len(r.versions)-1 {
			r.index++
		}
	case DirectionToggle:
		if r.mode == ModeEdit {
			r.mode = ModeDiff
		} else {
			r.mode = ModeEdit
		}
	case DirectionLatest:
		r.index = len(r.versions) - 1
		if r.index < 0 {
			r.index = 0
		}
		r.mode = ModeEdit
	default:
		r.logger.Warn("ignoring unknown navigation direction", "direction", string(dir))
	}
}

// IsCurrentVersion reports whether the cursor sits on the newest saved
// version (or the history is still empty).
func (r *Reconciler) IsCurrentVersion() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isCurrentLocked()
}

func (r *Reconciler) isCurrentLocked() bool {
	return len(r.versions) == 0 || r.index == len(r.versions)-1
}

// Mode returns the current presentation mode.
func (r *Reconciler) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Content resolves what the reader should see right now: the live
// artifact while streaming, otherwise the version under the cursor.
// The live artifact is the fallback only when no version was ever
// saved.
func (r *Reconciler) Content() string {
	a := r.live.Artifact()

	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Status == artifact.StatusStreaming || len(r.versions) == 0 {
		return a.Content
	}
	return r.versions[r.index].Content
}

// View classifies the resolved content. Navigation re-classifies, so an
// old raw-text version renders raw even when the latest version is a
// structured design.
func (r *Reconciler) View() artifact.ViewKind {
	return artifact.Classify(r.Content())
}

// Diff returns the version pair a diff presentation compares: the
// version before the cursor against the version at the cursor. ok is
// false outside diff mode or when there is no earlier version.
func (r *Reconciler) Diff() (before, after string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode != ModeDiff || r.index == 0 || len(r.versions) < 2 {
		return "", "", false
	}
	return r.versions[r.index-1].Content, r.versions[r.index].Content, true
}

// Refresh re-reads the history, keeping the cursor on the latest
// version when it was there before and clamping it otherwise.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	id := r.id
	wasCurrent := r.isCurrentLocked()
	r.mu.Unlock()

	versions, err := r.store.ListVersions(ctx, id)
	if err != nil {
		return fmt.Errorf("refresh versions for %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions = versions
	if wasCurrent || r.index > len(versions)-1 {
		r.index = len(versions) - 1
		if r.index < 0 {
			r.index = 0
		}
	}
	return nil
}

// VersionCount returns the number of loaded versions.
func (r *Reconciler) VersionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.versions)
}
