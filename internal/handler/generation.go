package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/martinbavio/photalabs/internal/auth"
	"github.com/martinbavio/photalabs/internal/model"
	"github.com/martinbavio/photalabs/internal/service"
)

// DefaultRecentLimit and MaxHistoryLimit bound the history endpoints.
const (
	DefaultRecentLimit = 10
	MaxHistoryLimit    = 100
)

// GenerationHandler exposes the generation pipeline and per-user history.
type GenerationHandler struct {
	generations *service.GenerationService
	logger      *slog.Logger
}

func NewGenerationHandler(generations *service.GenerationService, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{
		generations: generations,
		logger:      logger,
	}
}

// HandleGenerate runs one image generation.
//
// HTTP: POST /api/generate
// BODY: {"prompt": "...", "model": "dall-e-3", "characterMentions": ["id1"], "referenceImageId": "..."}
func (h *GenerationHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Prompt            string          `json:"prompt"`
		Model             model.ModelType `json:"model"`
		CharacterMentions []string        `json:"characterMentions"`
		ReferenceImageID  string          `json:"referenceImageId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	result, err := h.generations.Generate(r.Context(), userID, service.GenerateRequest{
		Prompt:           req.Prompt,
		Model:            req.Model,
		CharacterIDs:     req.CharacterMentions,
		ReferenceImageID: req.ReferenceImageID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// HandleList returns the caller's full history, newest first.
//
// HTTP: GET /api/generations?limit=N (limit optional)
func (h *GenerationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	limit := parseLimit(r.URL.Query().Get("limit"), 0)
	views, err := h.generations.List(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleRecent returns the caller's most recent generations.
//
// HTTP: GET /api/generations/recent?limit=N (default 10)
func (h *GenerationHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	limit := parseLimit(r.URL.Query().Get("limit"), DefaultRecentLimit)
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	views, err := h.generations.List(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleGet returns one generation record with resolved URLs.
//
// HTTP: GET /api/generations/{id}
func (h *GenerationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	view, err := h.generations.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// parseLimit clamps a limit query parameter; fallback is used for missing
// or malformed values.
func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
