package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueprintlabs/blueprint/internal/artifact"
	"github.com/blueprintlabs/blueprint/internal/document"
	"github.com/blueprintlabs/blueprint/internal/log"
)

func newDocumentMux(store document.Store, saveDelay time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	NewDocumentHandler(store, saveDelay, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func postSave(t *testing.T, mux *http.ServeMux, target string, body saveRequest) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestDocumentHandler_GetHistory(t *testing.T) {
	t.Parallel()

	store := document.NewMemoryStore()
	base := time.Now().UTC()
	for i, content := range []string{"one", "two"} {
		require.NoError(t, store.SaveVersion(t.Context(), document.Version{
			ID:        "doc-1",
			Title:     "Notes",
			Kind:      artifact.KindText,
			Content:   content,
			UserID:    "user-1",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	mux := newDocumentMux(store, time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/document?id=doc-1", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var versions []document.Version
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &versions))
	require.Len(t, versions, 2)
	assert.Equal(t, "one", versions[0].Content)
	assert.Equal(t, "two", versions[1].Content)
}

func TestDocumentHandler_GetMissing(t *testing.T) {
	t.Parallel()

	mux := newDocumentMux(document.NewMemoryStore(), time.Minute)

	t.Run("unknown document", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/document?id=nope", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/document", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDocumentHandler_SaveFlush(t *testing.T) {
	t.Parallel()

	store := document.NewMemoryStore()
	mux := newDocumentMux(store, time.Minute)

	w := postSave(t, mux, "/api/document?id=doc-1&flush=1", saveRequest{
		Content: "manual edit",
		Title:   "Notes",
		Kind:    "text",
		UserID:  "user-1",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	versions, err := store.ListVersions(t.Context(), "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "manual edit", versions[0].Content)
	assert.Equal(t, "Notes", versions[0].Title)

	// Re-saving identical content appends nothing.
	w = postSave(t, mux, "/api/document?id=doc-1&flush=1", saveRequest{Content: "manual edit"})
	assert.Equal(t, http.StatusOK, w.Code)

	versions, err = store.ListVersions(t.Context(), "doc-1")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestDocumentHandler_SaveDebounced(t *testing.T) {
	t.Parallel()

	store := document.NewMemoryStore()
	mux := newDocumentMux(store, 20*time.Millisecond)

	// Rapid autosaves collapse into the final content.
	for _, content := range []string{"a", "ab", "abc"} {
		w := postSave(t, mux, "/api/document?id=doc-1", saveRequest{
			Content: content,
			Title:   "Draft",
			Kind:    "text",
			UserID:  "user-1",
		})
		assert.Equal(t, http.StatusAccepted, w.Code)
	}

	require.Eventually(t, func() bool {
		versions, err := store.ListVersions(t.Context(), "doc-1")
		return err == nil && len(versions) == 1
	}, 2*time.Second, 5*time.Millisecond)

	versions, err := store.ListVersions(t.Context(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "abc", versions[0].Content)
}

func TestDocumentHandler_SaveKeepsExistingMetadata(t *testing.T) {
	t.Parallel()

	store := document.NewMemoryStore()
	require.NoError(t, store.SaveVersion(t.Context(), document.Version{
		ID:        "doc-1",
		Title:     "Original title",
		Kind:      artifact.KindText,
		Content:   "original",
		UserID:    "author",
		CreatedAt: time.Now().UTC(),
	}))
	mux := newDocumentMux(store, time.Minute)

	// The request's title is ignored once the document exists.
	w := postSave(t, mux, "/api/document?id=doc-1&flush=1", saveRequest{
		Content: "edited",
		Title:   "Renamed",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	versions, err := store.ListVersions(t.Context(), "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "Original title", versions[1].Title)
	assert.Equal(t, "author", versions[1].UserID)
	assert.Equal(t, "edited", versions[1].Content)
}

func TestDocumentHandler_Suggestions(t *testing.T) {
	t.Parallel()

	store := document.NewMemoryStore()
	now := time.Now().UTC()
	require.NoError(t, store.SaveSuggestions(t.Context(), []document.Suggestion{{
		ID:                "sug-1",
		DocumentID:        "doc-1",
		DocumentCreatedAt: now,
		OriginalText:      "teh",
		SuggestedText:     "the",
		Description:       "typo",
		UserID:            "user-1",
	}}))
	mux := newDocumentMux(store, time.Minute)

	t.Run("existing suggestions", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/suggestions?documentId=doc-1", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var suggestions []document.Suggestion
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &suggestions))
		require.Len(t, suggestions, 1)
		assert.Equal(t, "the", suggestions[0].SuggestedText)
	})

	t.Run("no suggestions is an empty array", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/suggestions?documentId=doc-2", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]\n", w.Body.String())
	})

	t.Run("missing documentId", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/suggestions", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDocumentHandler_NilStoreSkipsRoutes(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	NewDocumentHandler(nil, time.Minute, log.NewNop()).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/document?id=doc-1", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
