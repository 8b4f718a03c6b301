package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nerloapp/nerlo/internal/auth"
	"github.com/nerloapp/nerlo/internal/elevation"
)

type ParentModeHandler struct {
	guard  *elevation.Guard
	logger *slog.Logger
}

func NewParentModeHandler(guard *elevation.Guard, logger *slog.Logger) *ParentModeHandler {
	return &ParentModeHandler{guard: guard, logger: logger}
}

// Enter checks the PIN and starts a parent session.
func (h *ParentModeHandler) Enter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	sess, err := h.guard.Elevate(auth.UserID(r.Context()), req.PIN)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active":     true,
		"expires_at": sess.ExpiresAt,
	})
}

// Status reports whether the user currently holds a valid parent session.
func (h *ParentModeHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess, err := h.guard.Check(auth.UserID(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}

	if sess == nil {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":     true,
		"expires_at": sess.ExpiresAt,
	})
}

// Extend re-checks the PIN and restarts the session clock.
func (h *ParentModeHandler) Extend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	sess, err := h.guard.Extend(auth.UserID(r.Context()), req.PIN)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active":     true,
		"expires_at": sess.ExpiresAt,
	})
}

// Exit ends parent mode. Succeeds even when no session is active.
func (h *ParentModeHandler) Exit(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.RevokeForUser(auth.UserID(r.Context())); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
