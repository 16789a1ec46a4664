package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/feedsource/config"
	"github.com/ruteri/feedsource/interfaces"
	"github.com/ruteri/feedsource/storage"
)

// Handler serves read-only views of the configured feed sources.
type Handler struct {
	doc            *config.Document
	storageFactory interfaces.StorageBackendFactory
	log            *slog.Logger
}

// NewHandler creates a handler resolving sources of doc with storageFactory.
func NewHandler(doc *config.Document, storageFactory interfaces.StorageBackendFactory, log *slog.Logger) *Handler {
	return &Handler{
		doc:            doc,
		storageFactory: storageFactory,
		log:            log,
	}
}

// HandleListSources returns the names of all configured sources.
//
// URL format: GET /api/sources
func (h *Handler) HandleListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, map[string][]string{
		"sources": config.SourceNames(h.doc),
	})
}

// HandleResolveSource resolves one source and reports its paths and, for
// object stores, the credential strategy that was used. No feed data is read.
//
// URL format: GET /api/sources/{name}
//
// Status codes:
//   - 404 when no source has that name
//   - 400 when the source entry is misconfigured
//   - 502 when the ambient credentials fail the identity check
func (h *Handler) HandleResolveSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		http.Error(w, "Missing source name in URL", http.StatusBadRequest)
		return
	}

	src, err := config.FindSource(h.doc, name, h.log)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	backend, err := h.storageFactory.BackendFor(r.Context(), src)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, storage.Describe(src, backend))
}

func (h *Handler) writeError(w http.ResponseWriter, name string, err error) {
	var (
		cfgErr  *interfaces.ConfigError
		credErr *interfaces.CredentialError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interfaces.ErrSourceNotFound):
		status = http.StatusNotFound
	case errors.As(err, &cfgErr):
		status = http.StatusBadRequest
	case errors.As(err, &credErr):
		status = http.StatusBadGateway
	}

	h.log.Warn("Source resolution failed",
		slog.String("source", name),
		slog.Int("status", status),
		"err", err)
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}
