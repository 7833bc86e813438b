package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/blueprintlabs/blueprint/internal/artifact"
	"github.com/blueprintlabs/blueprint/internal/document"
	"github.com/blueprintlabs/blueprint/internal/log"
	"github.com/blueprintlabs/blueprint/internal/reconcile"
)

// DocumentHandler handles document version and suggestion endpoints.
//
// Endpoints:
//   - GET  /api/document?id=     - full version history, oldest first
//   - POST /api/document?id=     - save a manual edit (debounced)
//   - GET  /api/suggestions?documentId= - suggestions for a document
//
// Manual edits go through a per-document reconcile.Saver, so rapid
// autosave POSTs collapse into one version and unchanged content never
// appends a row. A POST with flush=1 persists immediately.
type DocumentHandler struct {
	store     document.Store
	saveDelay time.Duration
	logger    log.Logger

	mu     sync.Mutex
	savers map[string]*reconcile.Saver
}

// NewDocumentHandler creates a document handler over the given store.
func NewDocumentHandler(store document.Store, saveDelay time.Duration, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{
		store:     store,
		saveDelay: saveDelay,
		logger:    logger,
		savers:    make(map[string]*reconcile.Saver),
	}
}

// RegisterRoutes registers document routes on the given mux. A nil store
// leaves the endpoints unregistered.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.store == nil {
		if h.logger != nil {
			h.logger.Warn("document endpoints not registered", "reason", "no store")
		}
		return
	}
	mux.HandleFunc("GET /api/document", h.getDocument)
	mux.HandleFunc("POST /api/document", h.saveDocument)
	mux.HandleFunc("GET /api/suggestions", h.getSuggestions)
}

func (h *DocumentHandler) getDocument(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_id", "id query parameter is required")
		return
	}

	versions, err := h.store.ListVersions(r.Context(), id)
	if err != nil {
		h.logger.Error("list versions failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load document")
		return
	}
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "document not found")
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// saveRequest is the body of POST /api/document.
type saveRequest struct {
	Content string `json:"content"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	UserID  string `json:"userId"`
}

func (h *DocumentHandler) saveDocument(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_id", "id query parameter is required")
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	saver, err := h.saverFor(r.Context(), id, req)
	if err != nil {
		h.logger.Error("save failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save document")
		return
	}

	if r.URL.Query().Get("flush") != "" {
		if err := saver.Flush(r.Context(), req.Content); err != nil {
			h.logger.Error("save failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to save document")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id})
		return
	}

	saver.Queue(req.Content)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// saverFor returns the document's saver, creating it from the latest
// persisted version when the document exists, or from the request when
// it doesn't.
func (h *DocumentHandler) saverFor(ctx context.Context, id string, req saveRequest) (*reconcile.Saver, error) {
	h.mu.Lock()
	if s, ok := h.savers[id]; ok {
		h.mu.Unlock()
		return s, nil
	}
	h.mu.Unlock()

	meta := document.Version{
		ID:     id,
		Title:  req.Title,
		Kind:   artifact.Kind(req.Kind),
		UserID: req.UserID,
	}
	latest, err := h.store.GetByID(ctx, id)
	switch {
	case err == nil:
		meta.Title = latest.Title
		meta.Kind = latest.Kind
		meta.UserID = latest.UserID
		meta.Content = latest.Content
	case !errors.Is(err, document.ErrNotFound):
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.savers[id]; ok {
		return s, nil
	}
	s := reconcile.NewSaver(h.store, meta, h.saveDelay, h.logger)
	h.savers[id] = s
	return s, nil
}

func (h *DocumentHandler) getSuggestions(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("documentId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_id", "documentId query parameter is required")
		return
	}

	suggestions, err := h.store.ListSuggestions(r.Context(), id)
	if err != nil {
		h.logger.Error("list suggestions failed", "documentId", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load suggestions")
		return
	}
	if suggestions == nil {
		suggestions = []document.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}
