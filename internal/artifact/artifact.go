// Package artifact holds the client-side projection of one in-progress
// or completed generated item, the reducer state machine that folds the
// delta stream into it, and the content classifier that decides which
// structured view a given content blob projects to.
package artifact

// InitialDocumentID marks an artifact that has not yet been assigned a
// persisted document ID by an id delta.
const InitialDocumentID = "init"

// Kind is the artifact content kind carried by kind deltas.
type Kind string

const (
	KindText  Kind = "text"
	KindCode  Kind = "code"
	KindImage Kind = "image"
	KindSheet Kind = "sheet"
)

// Status tracks whether an episode is accumulating into the artifact.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
)

// BoundingBox is the screen geometry the client animates the artifact
// panel from. The server never writes it; it rides along so one value
// round-trips through the store.
type BoundingBox struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Artifact is the live projection of one artifact episode. It is mutated
// exclusively by the reducer, one delta at a time.
type Artifact struct {
	DocumentID  string      `json:"documentId"`
	Title       string      `json:"title"`
	Kind        Kind        `json:"kind"`
	Content     string      `json:"content"`
	IsVisible   bool        `json:"isVisible"`
	Status      Status      `json:"status"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// New returns the initial artifact: unassigned ID, empty content, idle.
func New() Artifact {
	return Artifact{
		DocumentID: InitialDocumentID,
		Kind:       KindText,
		Status:     StatusIdle,
	}
}
