// Package delta defines the wire-level unit of the artifact streaming
// protocol and the ordered channel it travels on.
//
// One assistant turn produces an ordered sequence of Deltas. The sequence
// for a single artifact episode is: optional clear, the control deltas
// (id, kind, title), zero or more content deltas of one family, and
// exactly one finish. Consumers fold the sequence in arrival order;
// producers must never interleave content deltas of two episodes without
// an intervening clear/id pair.
//
// The envelope is a two-field tagged union. Content is a string for every
// tag except "suggestion", which carries a structured record. Unknown tags
// decode without error so old consumers survive new producers.
package delta

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type discriminates the delta union.
type Type string

const (
	// TypeID assigns the episode's document ID. Must precede any
	// persistence call that references the ID.
	TypeID Type = "id"

	// TypeTitle sets the artifact title.
	TypeTitle Type = "title"

	// TypeKind sets the artifact kind (text, code, image, sheet).
	TypeKind Type = "kind"

	// TypeClear resets the accumulated content and marks the artifact
	// streaming. It must precede new accumulation within an episode,
	// never follow it.
	TypeClear Type = "clear"

	// TypeText appends a text chunk to the accumulated content.
	TypeText Type = "text-delta"

	// TypeCode replaces the accumulated content with a code snapshot.
	TypeCode Type = "code-delta"

	// TypeImage replaces the accumulated content with image data.
	TypeImage Type = "image-delta"

	// TypeMermaid appends a mermaid-markup chunk to the accumulated
	// content.
	TypeMermaid Type = "mermaid"

	// TypeDiagram replaces the accumulated content with a
	// service-interface graph payload.
	TypeDiagram Type = "diagram"

	// TypeDesign replaces the accumulated content with a sequence-design
	// payload (diagram code plus description).
	TypeDesign Type = "design"

	// TypeSuggestion carries one structured edit suggestion. It is a side
	// channel: reducers append it to a suggestion list instead of folding
	// it into content.
	TypeSuggestion Type = "suggestion"

	// TypeFinish terminates the episode and returns the artifact to idle.
	TypeFinish Type = "finish"
)

// Suggestion is the structured content of a TypeSuggestion delta. It
// proposes replacing one span of a document with new text.
// DocumentCreatedAt pins the suggestion to the document version that was
// current when it was generated.
type Suggestion struct {
	ID                string    `json:"id"`
	DocumentID        string    `json:"documentId"`
	DocumentCreatedAt time.Time `json:"documentCreatedAt"`
	OriginalText      string    `json:"originalText"`
	SuggestedText     string    `json:"suggestedText"`
	Description       string    `json:"description"`
	IsResolved        bool      `json:"isResolved"`
}

// Delta is one typed event in the streaming protocol. Immutable and
// single-use; ordering within a stream is significant and total.
//
// Suggestion is non-nil only when Type is TypeSuggestion, in which case
// Content is empty.
type Delta struct {
	Type       Type
	Content    string
	Suggestion *Suggestion
}

// Appends reports whether deltas of type t accumulate by appending to the
// existing content. All other content deltas replace it.
func Appends(t Type) bool {
	return t == TypeText || t == TypeMermaid
}

// envelope is the wire shape of Delta.
type envelope struct {
	Type    Type            `json:"type"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes the union as {"type": ..., "content": ...} with
// content a string for every tag except suggestion.
func (d Delta) MarshalJSON() ([]byte, error) {
	var content any = d.Content
	if d.Type == TypeSuggestion {
		if d.Suggestion == nil {
			return nil, fmt.Errorf("suggestion delta without record")
		}
		content = d.Suggestion
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal delta content: %w", err)
	}
	return json.Marshal(envelope{Type: d.Type, Content: raw})
}

// UnmarshalJSON decodes the union. Unknown tags are preserved as-is with
// a best-effort string content so that forward-compatible consumers can
// skip them; malformed JSON is an error.
func (d *Delta) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal delta: %w", err)
	}
	d.Type = env.Type
	d.Content = ""
	d.Suggestion = nil

	if len(env.Content) == 0 {
		return nil
	}
	if env.Type == TypeSuggestion {
		var s Suggestion
		if err := json.Unmarshal(env.Content, &s); err != nil {
			return fmt.Errorf("unmarshal suggestion content: %w", err)
		}
		d.Suggestion = &s
		return nil
	}
	// Tolerate non-string content on unknown tags: the reducer ignores
	// the delta either way.
	var s string
	if err := json.Unmarshal(env.Content, &s); err == nil {
		d.Content = s
	}
	return nil
}

// ID, Title, Kind, Clear, Text, Code, Image, Mermaid, Diagram, Design,
// Suggest and Finish construct well-formed deltas.

func ID(id string) Delta           { return Delta{Type: TypeID, Content: id} }
func Title(title string) Delta     { return Delta{Type: TypeTitle, Content: title} }
func Kind(kind string) Delta       { return Delta{Type: TypeKind, Content: kind} }
func Clear() Delta                 { return Delta{Type: TypeClear} }
func Text(chunk string) Delta      { return Delta{Type: TypeText, Content: chunk} }
func Code(snapshot string) Delta   { return Delta{Type: TypeCode, Content: snapshot} }
func Image(data string) Delta      { return Delta{Type: TypeImage, Content: data} }
func Mermaid(chunk string) Delta   { return Delta{Type: TypeMermaid, Content: chunk} }
func Diagram(payload string) Delta { return Delta{Type: TypeDiagram, Content: payload} }
func Design(payload string) Delta  { return Delta{Type: TypeDesign, Content: payload} }
func Finish() Delta                { return Delta{Type: TypeFinish} }

func Suggest(s Suggestion) Delta {
	return Delta{Type: TypeSuggestion, Suggestion: &s}
}
