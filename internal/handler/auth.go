package handler

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nerloapp/nerlo/internal/auth"
	"github.com/nerloapp/nerlo/internal/elevation"
	"github.com/nerloapp/nerlo/internal/email"
	"github.com/nerloapp/nerlo/internal/middleware"
	"github.com/nerloapp/nerlo/internal/store"
)

// maxCodeAttempts caps wrong guesses before a login code is burned.
const maxCodeAttempts = 5

type AuthHandler struct {
	users    *store.UserStore
	sessions *store.SessionStore
	codes    *store.LoginCodeStore
	families *store.FamilyStore
	guard    *elevation.Guard
	email    *email.Client
	secure   bool
	logger   *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, cs *store.LoginCodeStore, fs *store.FamilyStore, guard *elevation.Guard, ec *email.Client, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:    us,
		sessions: ss,
		codes:    cs,
		families: fs,
		guard:    guard,
		email:    ec,
		secure:   secure,
		logger:   logger,
	}
}

// RequestCode issues a one-time sign-in code for an email address. The
// response is the same whether or not an account exists.
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "valid email is required"})
		return
	}

	code, err := h.codes.Create(req.Email)
	if err != nil {
		h.logger.Error("create login code", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create code"})
		return
	}

	if h.email.Configured() {
		if err := h.email.SendLoginCode(req.Email, code.Token); err != nil {
			h.logger.Error("send login code", "email", req.Email, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "failed to send email"})
			return
		}
	} else {
		// No mail transport in this deployment; surface the code in the log.
		h.logger.Info("login code issued", "email", req.Email, "code", code.Token)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// Verify exchanges an email and code for a session cookie. The account is
// created on first successful verification.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if req.Email == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and code are required"})
		return
	}

	code, err := h.codes.GetLatestByEmail(req.Email)
	if err != nil {
		h.logger.Error("lookup login code", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "verification failed"})
		return
	}
	if code == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired code"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(code.Token), []byte(req.Code)) != 1 {
		attempts, err := h.codes.IncrementAttempts(code.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if attempts >= maxCodeAttempts {
			h.codes.MarkUsed(code.ID)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired code"})
		return
	}

	if err := h.codes.MarkUsed(code.ID); err != nil {
		h.logger.Error("mark code used", "error", err)
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "verification failed"})
		return
	}
	if user == nil {
		name := req.Email[:strings.IndexByte(req.Email, '@')]
		user, err = h.users.Create(req.Email, name)
		if err != nil {
			h.logger.Error("create user", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "verification failed"})
			return
		}
	}

	sess, err := h.sessions.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "verification failed"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	family, err := h.families.GetByOwner(user.ID)
	if err != nil {
		h.logger.Error("lookup family", "error", err)
	}

	h.logger.Info("user signed in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       user,
		"has_family": family != nil,
	})
}

// Me returns the authenticated user and their family, if onboarded.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	user, err := h.users.GetByID(userID)
	if err != nil || user == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load user"})
		return
	}

	family, err := h.families.GetByOwner(userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load family"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"family": family,
	})
}

// Logout deletes the session and every parent elevation the user holds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if ok {
		if err := h.sessions.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
		if err := h.guard.RevokeForUser(ac.UserID); err != nil {
			h.logger.Error("revoke parent sessions", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}
