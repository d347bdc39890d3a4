package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/martinbavio/photalabs/internal/storage"
)

// StorageHandler exposes the object store: presigned uploads for reference
// images and read-time URL resolution.
type StorageHandler struct {
	store  storage.ObjectStore
	logger *slog.Logger
}

func NewStorageHandler(store storage.ObjectStore, logger *slog.Logger) *StorageHandler {
	return &StorageHandler{
		store:  store,
		logger: logger,
	}
}

// HandleUploadURL returns a presigned PUT target. The client uploads the
// file directly to the object store and then refers to it by storage ID —
// image bytes never pass through this server.
//
// HTTP: POST /api/storage/upload-url
// BODY: {"contentType": "image/png"}
func (h *StorageHandler) HandleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentType string `json:"contentType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	target, err := h.store.GenerateUploadURL(r.Context(), req.ContentType)
	if err != nil {
		h.logger.Error("failed to presign upload", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, target)
}

// HandleGetURL resolves a storage ID to a time-limited display URL.
//
// HTTP: GET /api/storage/{id}/url
func (h *StorageHandler) HandleGetURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.store.GetURL(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to resolve storage URL",
			slog.String("storageID", r.PathValue("id")),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// HandleDelete removes an object from the store.
//
// HTTP: DELETE /api/storage/{id}
func (h *StorageHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.logger.Error("failed to delete object",
			slog.String("storageID", r.PathValue("id")),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
