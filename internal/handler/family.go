package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nerloapp/nerlo/internal/auth"
	"github.com/nerloapp/nerlo/internal/elevation"
	"github.com/nerloapp/nerlo/internal/store"
	"github.com/nerloapp/nerlo/internal/websocket"
)

type FamilyHandler struct {
	families *store.FamilyStore
	kids     *store.KidStore
	guard    *elevation.Guard
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, ks *store.KidStore, guard *elevation.Guard, hub *websocket.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: fs, kids: ks, guard: guard, hub: hub, logger: logger}
}

type onboardKid struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type onboardRequest struct {
	FamilyName string       `json:"family_name"`
	Currency   string       `json:"currency"`
	PIN        string       `json:"pin"`
	Kids       []onboardKid `json:"kids"`
}

// Onboard creates the user's family, its parent PIN, and the initial kids in
// one step. A user can onboard only once.
func (h *FamilyHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	existing, err := h.families.GetByOwner(userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check family"})
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "family already exists"})
		return
	}

	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.FamilyName = strings.TrimSpace(req.FamilyName)
	if req.FamilyName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "family name is required"})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if err := elevation.ValidatePIN(req.PIN); err != nil {
		writeErr(w, err)
		return
	}
	if len(req.Kids) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one kid is required"})
		return
	}
	for _, k := range req.Kids {
		if strings.TrimSpace(k.Name) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kid name is required"})
			return
		}
	}

	pinHash, err := elevation.HashPIN(req.PIN)
	if err != nil {
		h.logger.Error("hash pin", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create family"})
		return
	}

	newKids := make([]store.NewKidParams, 0, len(req.Kids))
	for _, k := range req.Kids {
		newKids = append(newKids, store.NewKidParams{Name: strings.TrimSpace(k.Name), Age: k.Age})
	}

	// One transaction: a failed kid insert rolls the family back too.
	family, err := h.families.CreateWithKids(userID, req.FamilyName, req.Currency, pinHash, newKids)
	if err != nil {
		h.logger.Error("onboard family", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create family"})
		return
	}

	kids, err := h.kids.ListByFamily(family.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list kids"})
		return
	}

	h.logger.Info("family onboarded", "family_id", family.ID, "kids", len(kids))
	writeJSON(w, http.StatusCreated, map[string]any{
		"family": family,
		"kids":   kids,
	})
}

// Get returns the family and its kids.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	if familyID == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no family yet"})
		return
	}

	family, err := h.families.GetByID(familyID)
	if err != nil || family == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load family"})
		return
	}

	kids, err := h.kids.ListByFamily(familyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list kids"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"family": family,
		"kids":   kids,
	})
}

// UpdateCurrency changes the family's display currency. Parent-only.
func (h *FamilyHandler) UpdateCurrency(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if _, err := h.guard.Require(ac.UserID); err != nil {
		writeErr(w, err)
		return
	}

	var req struct {
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(req.Currency) != 3 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "currency must be a 3-letter code"})
		return
	}

	family, err := h.families.UpdateCurrency(ac.FamilyID, req.Currency)
	if err != nil {
		h.logger.Error("update currency", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update currency"})
		return
	}

	h.hub.Broadcast(ac.FamilyID, websocket.NewMessage("family", "updated", family.ID, nil))
	writeJSON(w, http.StatusOK, family)
}

// ChangePIN replaces the parent PIN. The current PIN is rechecked here even
// inside an active parent session.
func (h *FamilyHandler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if _, err := h.guard.Require(ac.UserID); err != nil {
		writeErr(w, err)
		return
	}

	var req struct {
		CurrentPIN string `json:"current_pin"`
		NewPIN     string `json:"new_pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := h.guard.VerifyPIN(ac.FamilyID, req.CurrentPIN); err != nil {
		writeErr(w, err)
		return
	}
	if err := elevation.ValidatePIN(req.NewPIN); err != nil {
		writeErr(w, err)
		return
	}

	pinHash, err := elevation.HashPIN(req.NewPIN)
	if err != nil {
		h.logger.Error("hash pin", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to change PIN"})
		return
	}

	if err := h.families.SetPIN(ac.FamilyID, pinHash); err != nil {
		h.logger.Error("set pin", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to change PIN"})
		return
	}

	h.logger.Info("parent pin changed", "family_id", ac.FamilyID)
	w.WriteHeader(http.StatusNoContent)
}
