package artifact

import (
	"github.com/blueprintlabs/blueprint/internal/delta"
)

// Reveal configures when a streaming artifact becomes visible. The panel
// is revealed once, early, while still streaming, after enough content
// has accumulated to be meaningfully non-empty. The values are product
// tuning, not protocol.
type Reveal struct {
	// Text is the accumulated length at which text-delta content reveals.
	Text int
	// Code is the snapshot length at which code-delta content reveals.
	Code int
	// Mermaid is the accumulated length at which mermaid content reveals.
	Mermaid int
}

// DefaultReveal mirrors the historical tuning of the web client.
func DefaultReveal() Reveal {
	return Reveal{Text: 400, Code: 300, Mermaid: 100}
}

// Reducer folds an ordered delta sequence into one Artifact. It is a
// pure state machine over arrival order: no delta is reordered, and
// re-delivery of an already-seen prefix is a no-op (Fold tracks the last
// processed index).
//
// Reducer is not safe for concurrent use; Store adds locking and
// subscriber notification on top.
type Reducer struct {
	reveal      Reveal
	artifact    Artifact
	suggestions []delta.Suggestion
	next        int
}

// NewReducer returns a reducer in the initial idle state.
func NewReducer(reveal Reveal) *Reducer {
	return &Reducer{reveal: reveal, artifact: New()}
}

// Artifact returns the current projection.
func (r *Reducer) Artifact() Artifact { return r.artifact }

// Suggestions returns the side-channel suggestion list accumulated so
// far, in arrival order.
func (r *Reducer) Suggestions() []delta.Suggestion { return r.suggestions }

// Fold applies every delta of seq past the last processed index, in
// order. Folding the same sequence twice yields the same state.
func (r *Reducer) Fold(seq []delta.Delta) {
	for ; r.next < len(seq); r.next++ {
		r.Apply(seq[r.next])
	}
}

// Apply performs one unconditional transition. Unknown delta types leave
// the state untouched so newer producers do not break older consumers.
func (r *Reducer) Apply(d delta.Delta) {
	a := &r.artifact
	switch d.Type {
	case delta.TypeID:
		a.DocumentID = d.Content
		a.Status = StatusStreaming

	case delta.TypeTitle:
		a.Title = d.Content
		a.Status = StatusStreaming

	case delta.TypeKind:
		a.Kind = Kind(d.Content)
		a.Status = StatusStreaming

	case delta.TypeClear:
		a.Content = ""
		a.IsVisible = false
		a.Status = StatusStreaming

	case delta.TypeText:
		a.Content += d.Content
		r.maybeReveal(len(a.Content), r.reveal.Text)
		a.Status = StatusStreaming

	case delta.TypeMermaid:
		a.Content += d.Content
		r.maybeReveal(len(a.Content), r.reveal.Mermaid)
		a.Status = StatusStreaming

	case delta.TypeCode:
		a.Content = d.Content
		r.maybeReveal(len(a.Content), r.reveal.Code)
		a.Status = StatusStreaming

	case delta.TypeImage:
		a.Content = d.Content
		a.IsVisible = true
		a.Status = StatusStreaming

	case delta.TypeDiagram, delta.TypeDesign:
		a.Content = d.Content
		if a.Content != "" && a.Status == StatusStreaming {
			a.IsVisible = true
		}
		a.Status = StatusStreaming

	case delta.TypeSuggestion:
		if d.Suggestion != nil {
			r.suggestions = append(r.suggestions, *d.Suggestion)
		}

	case delta.TypeFinish:
		a.Status = StatusIdle
	}
}

// maybeReveal flips visibility once the accumulated length crosses the
// threshold while still streaming. Already-visible artifacts stay
// visible until the next clear.
func (r *Reducer) maybeReveal(length, threshold int) {
	a := &r.artifact
	if a.IsVisible {
		return
	}
	if a.Status == StatusStreaming && length > threshold {
		a.IsVisible = true
	}
}
