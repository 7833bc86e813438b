// Package turn orchestrates one conversational turn: the planner runs
// the model's agentic loop, tools stream artifact episodes through an
// Emitter, and the registry gives every tool one canonical shape.
package turn

import (
	"context"
	"log/slog"

	"github.com/blueprintlabs/blueprint/internal/artifact"
	"github.com/blueprintlabs/blueprint/internal/delta"
	"github.com/blueprintlabs/blueprint/internal/document"
)

// Emitter writes one artifact episode to a delta sink. Begin brackets
// the episode open, the append/replace methods accumulate the draft,
// and Finish closes the episode and persists the draft.
//
// Finish and Abort are idempotent and mutually exclusive: tools defer
// Abort as the episode guarantee and call Finish explicitly on success,
// so a failed episode never persists its draft. An Emitter serves a
// single episode on a single goroutine.
type Emitter struct {
	sink   delta.Sink
	store  document.Store
	logger *slog.Logger
	userID string

	id       string
	title    string
	kind     artifact.Kind
	draft    string
	began    bool
	finished bool
}

// NewEmitter creates an emitter for one episode. store may be nil when
// nothing should be persisted on finish.
func NewEmitter(sink delta.Sink, store document.Store, logger *slog.Logger, userID string) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{sink: sink, store: store, logger: logger, userID: userID}
}

// Begin opens a fresh episode: it announces the document identity and
// resets the client's buffer before any content flows.
func (e *Emitter) Begin(ctx context.Context, id, title string, kind artifact.Kind) error {
	e.id, e.title, e.kind = id, title, kind
	e.began = true
	for _, d := range []delta.Delta{
		delta.ID(id),
		delta.Title(title),
		delta.Kind(string(kind)),
		delta.Clear(),
	} {
		if err := e.sink.Append(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Resume opens an episode over an existing document: the client already
// knows the identity, so only the buffer is reset.
func (e *Emitter) Resume(ctx context.Context, doc document.Version) error {
	e.id, e.title, e.kind = doc.ID, doc.Title, doc.Kind
	e.began = true
	return e.sink.Append(ctx, delta.Clear())
}

// AppendText streams one text chunk and grows the draft.
func (e *Emitter) AppendText(ctx context.Context, chunk string) error {
	e.draft += chunk
	return e.sink.Append(ctx, delta.Text(chunk))
}

// AppendMermaid streams one diagram-markup chunk and grows the draft.
func (e *Emitter) AppendMermaid(ctx context.Context, chunk string) error {
	e.draft += chunk
	return e.sink.Append(ctx, delta.Mermaid(chunk))
}

// ReplaceCode sends a full code snapshot; the draft becomes it.
func (e *Emitter) ReplaceCode(ctx context.Context, content string) error {
	e.draft = content
	return e.sink.Append(ctx, delta.Code(content))
}

// ReplaceDesign sends a full structured design; the draft becomes it.
func (e *Emitter) ReplaceDesign(ctx context.Context, content string) error {
	e.draft = content
	return e.sink.Append(ctx, delta.Design(content))
}

// ReplaceDiagram sends a full service graph; the draft becomes it.
func (e *Emitter) ReplaceDiagram(ctx context.Context, content string) error {
	e.draft = content
	return e.sink.Append(ctx, delta.Diagram(content))
}

// Suggest streams one suggestion on the side channel. Suggestions never
// touch the draft.
func (e *Emitter) Suggest(ctx context.Context, s delta.Suggestion) error {
	return e.sink.Append(ctx, delta.Suggest(s))
}

// Draft returns the accumulated episode content.
func (e *Emitter) Draft() string { return e.draft }

// Abort closes a failed episode: the finish delta still goes out so the
// client leaves streaming state, but the draft is discarded instead of
// persisted. After a successful Finish it is a no-op, so tools defer it
// as the episode guarantee and call Finish explicitly on success.
func (e *Emitter) Abort(ctx context.Context) error {
	if e.finished || !e.began {
		return nil
	}
	e.finished = true
	return e.sink.Append(ctx, delta.Finish())
}

// Finish closes the episode and persists the draft. The finish delta
// goes out even when the episode produced nothing, and a persistence
// failure never propagates: the stream already told the client the turn
// is over.
func (e *Emitter) Finish(ctx context.Context) error {
	if e.finished || !e.began {
		return nil
	}
	e.finished = true

	if err := e.sink.Append(ctx, delta.Finish()); err != nil {
		return err
	}

	if e.store != nil && e.id != "" && e.userID != "" {
		err := e.store.SaveVersion(ctx, document.Version{
			ID:      e.id,
			Title:   e.title,
			Kind:    e.kind,
			Content: e.draft,
			UserID:  e.userID,
		})
		if err != nil {
			e.logger.Warn("failed to save document after episode",
				"id", e.id, "title", e.title, "error", err)
		}
	}
	return nil
}
