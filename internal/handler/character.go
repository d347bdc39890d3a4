package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/martinbavio/photalabs/internal/auth"
	"github.com/martinbavio/photalabs/internal/service"
)

// CharacterHandler manages CRUD and search for characters.
type CharacterHandler struct {
	characters *service.CharacterService
	logger     *slog.Logger
}

func NewCharacterHandler(characters *service.CharacterService, logger *slog.Logger) *CharacterHandler {
	return &CharacterHandler{
		characters: characters,
		logger:     logger,
	}
}

type characterRequest struct {
	Name     string   `json:"name"`
	ImageIDs []string `json:"imageIds"`
}

// HandleCreate saves a new character.
//
// HTTP: POST /api/characters
// BODY: {"name": "Sarah", "imageIds": ["...", "...", "..."]}
func (h *CharacterHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req characterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	character, err := h.characters.Create(r.Context(), userID, req.Name, req.ImageIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, character)
}

// HandleGet returns one character with resolved image URLs.
//
// HTTP: GET /api/characters/{id}
func (h *CharacterHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.characters.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleList returns the caller's characters, newest first. Anonymous
// callers get an empty list.
//
// HTTP: GET /api/characters
func (h *CharacterHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	views, err := h.characters.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleSearch returns compact character summaries matching the query, for
// @mention autocomplete.
//
// HTTP: GET /api/characters/search?q=sa
func (h *CharacterHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	summaries, err := h.characters.Search(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// HandleUpdate partially updates a character.
//
// HTTP: PATCH /api/characters/{id}
// BODY: {"name": "...", "imageIds": [...]} — both fields optional
func (h *CharacterHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req characterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	character, err := h.characters.Update(r.Context(), userID, r.PathValue("id"), req.Name, req.ImageIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, character)
}

// HandleDelete removes a character and its stored images.
//
// HTTP: DELETE /api/characters/{id}
func (h *CharacterHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.characters.Remove(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
