package drive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/safety-stock/internal/domain"
	"github.com/andresuchdata/safety-stock/internal/pipeline"
	"github.com/andresuchdata/safety-stock/internal/service"
)

// FolderResolver maps a folder path to its Drive id.
type FolderResolver interface {
	FindFolderByPath(ctx context.Context, path string) (string, error)
}

type Handler struct {
	source   Source
	folders  FolderResolver
	importer *ImportService
}

func NewHandler(source Source, folders FolderResolver, importer *ImportService) *Handler {
	return &Handler{
		source:   source,
		folders:  folders,
		importer: importer,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods("GET")
	router.HandleFunc("/api/drive/import", h.ImportFolder).Methods("POST")
}

// resolveFolder reads folderId, falling back to a path lookup.
func (h *Handler) resolveFolder(r *http.Request) (string, error) {
	query := r.URL.Query()
	folderID := query.Get("folderId")
	if folderPath := query.Get("path"); folderPath != "" && h.folders != nil {
		return h.folders.FindFolderByPath(r.Context(), folderPath)
	}
	return folderID, nil
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.resolveFolder(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	files, err := h.source.ListFiles(r.Context(), folderID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) ImportFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.resolveFolder(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if folderID == "" {
		http.Error(w, "folderId or path parameter is required", http.StatusBadRequest)
		return
	}

	start := true
	if raw := r.URL.Query().Get("start"); raw != "" {
		if start, err = strconv.ParseBool(raw); err != nil {
			http.Error(w, "start must be a boolean", http.StatusBadRequest)
			return
		}
	}

	job, err := h.importer.ImportFolder(r.Context(), folderID, start)
	if err != nil {
		http.Error(w, "import failed: "+err.Error(), importStatus(err))
		return
	}

	status := http.StatusCreated
	if start {
		status = http.StatusAccepted
	}
	writeJSON(w, status, domain.NewJobView(job))
}

func importStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrMissingUpload), errors.Is(err, service.ErrInvalidWorkbook):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrWorkerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
