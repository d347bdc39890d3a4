package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/martinbavio/photalabs/internal/auth"
	"github.com/martinbavio/photalabs/internal/service"
)

// AuthHandler exposes the magic-link sign-in flow and the viewer endpoint.
type AuthHandler struct {
	auth   *service.AuthService
	secure bool // Secure flag on session cookies; off for local http
	logger *slog.Logger
}

func NewAuthHandler(authSvc *service.AuthService, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authSvc,
		secure: secure,
		logger: logger,
	}
}

// HandleMagicLink requests a sign-in email.
//
// HTTP: POST /auth/magic-link
// BODY: {"email": "user@example.com"}
//
// Always responds 202 on success — the response never reveals whether an
// account exists for the address.
func (h *AuthHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	if err := h.auth.RequestMagicLink(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// HandleVerify redeems a magic link from the emailed URL.
//
// HTTP: GET /auth/verify?id=...&token=...
//
// On success the session JWT is set as an HttpOnly cookie and the browser
// is redirected to the app root.
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	token := r.URL.Query().Get("token")

	session, _, err := h.auth.VerifyMagicLink(r.Context(), id, token)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(session, int(auth.SessionDuration.Seconds())))
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the authenticated user's profile with their credit
// balance, or null for anonymous callers.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Anonymous is a valid answer here: JSON null, not a 401.
		writeJSON(w, http.StatusOK, json.RawMessage("null"))
		return
	}

	viewer, err := h.auth.Viewer(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewer)
}

// HandleStatus reports whether the caller holds a valid session. Anonymous
// is a normal answer here, not an error.
//
// HTTP: GET /api/auth/status
func (h *AuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	_, ok := auth.UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"isAuthenticated": ok})
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
