// Package document persists artifact content as an append-only version
// history, plus the edit suggestions attached to a version.
//
// There is no "latest" pointer: a save appends a row, and the current
// version is derived as the last row for a given id ordered by creation
// time. Concurrent writers to one id are last-write-wins by design.
package document

import (
	"context"
	"errors"
	"time"

	"github.com/blueprintlabs/blueprint/internal/artifact"
)

// ErrNotFound is returned when no version exists for a document id.
var ErrNotFound = errors.New("document not found")

// Version is one persisted, immutable snapshot of an artifact's content.
type Version struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Kind      artifact.Kind `json:"kind"`
	Content   string        `json:"content"`
	UserID    string        `json:"userId"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Suggestion is one persisted edit suggestion, tied to the document
// version that existed when it was requested.
type Suggestion struct {
	ID                string    `json:"id"`
	DocumentID        string    `json:"documentId"`
	DocumentCreatedAt time.Time `json:"documentCreatedAt"`
	OriginalText      string    `json:"originalText"`
	SuggestedText     string    `json:"suggestedText"`
	Description       string    `json:"description"`
	IsResolved        bool      `json:"isResolved"`
	UserID            string    `json:"userId"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Store is the persistence collaborator of the streaming core.
//
// SaveVersion appends; it never mutates an existing row. GetByID returns
// the current (last) version. ListVersions is ordered ascending by
// creation time.
type Store interface {
	SaveVersion(ctx context.Context, v Version) error
	GetByID(ctx context.Context, id string) (Version, error)
	ListVersions(ctx context.Context, id string) ([]Version, error)
	SaveSuggestions(ctx context.Context, suggestions []Suggestion) error
	ListSuggestions(ctx context.Context, documentID string) ([]Suggestion, error)
}
