package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nerloapp/nerlo/internal/apperr"
	"github.com/nerloapp/nerlo/internal/auth"
	"github.com/nerloapp/nerlo/internal/elevation"
	"github.com/nerloapp/nerlo/internal/model"
	"github.com/nerloapp/nerlo/internal/store"
	"github.com/nerloapp/nerlo/internal/websocket"
)

type GoalHandler struct {
	goals  *store.GoalStore
	kids   *store.KidStore
	guard  *elevation.Guard
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewGoalHandler(gs *store.GoalStore, ks *store.KidStore, guard *elevation.Guard, hub *websocket.Hub, logger *slog.Logger) *GoalHandler {
	return &GoalHandler{goals: gs, kids: ks, guard: guard, hub: hub, logger: logger}
}

type goalRequest struct {
	Name    string `json:"name"`
	Target  string `json:"target"`
	Current string `json:"current"`
}

func (req *goalRequest) amounts() (target, current decimal.Decimal, err error) {
	target, err = decimal.NewFromString(req.Target)
	if err != nil || target.IsNegative() {
		return decimal.Zero, decimal.Zero, errBadAmount
	}
	current = decimal.Zero
	if req.Current != "" {
		current, err = decimal.NewFromString(req.Current)
		if err != nil || current.IsNegative() {
			return decimal.Zero, decimal.Zero, errBadAmount
		}
	}
	return target, current, nil
}

// Create adds a savings goal for a kid.
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	kidID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	kid, err := h.kids.GetByID(kidID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check kid"})
		return
	}
	if kid == nil || kid.FamilyID != familyID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "kid not found"})
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	target, current, err := req.amounts()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amounts must be non-negative"})
		return
	}

	goal, err := h.goals.Create(kidID, req.Name, target, current)
	if err != nil {
		h.logger.Error("create goal", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create goal"})
		return
	}

	h.hub.Broadcast(familyID, websocket.NewMessage("goal", "created", goal.ID, nil))
	writeJSON(w, http.StatusCreated, goal)
}

// List returns a kid's goals.
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	kidID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	kid, err := h.kids.GetByID(kidID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check kid"})
		return
	}
	if kid == nil || kid.FamilyID != familyID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "kid not found"})
		return
	}

	goals, err := h.goals.ListByKid(kidID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list goals"})
		return
	}
	if goals == nil {
		goals = []model.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

// Update edits a goal's name, target, or saved amount.
func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	goal, err := h.familyGoal(familyID, r)
	if err != nil {
		writeErr(w, err)
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = goal.Name
	}
	if req.Target == "" {
		req.Target = goal.Target.String()
	}
	if req.Current == "" {
		req.Current = goal.Current.String()
	}
	target, current, err := req.amounts()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amounts must be non-negative"})
		return
	}

	updated, err := h.goals.Update(goal.ID, req.Name, target, current)
	if err != nil {
		h.logger.Error("update goal", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update goal"})
		return
	}

	h.hub.Broadcast(familyID, websocket.NewMessage("goal", "updated", updated.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a goal. Parent-only.
func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if _, err := h.guard.Require(ac.UserID); err != nil {
		writeErr(w, err)
		return
	}

	goal, err := h.familyGoal(ac.FamilyID, r)
	if err != nil {
		writeErr(w, err)
		return
	}

	if err := h.goals.Delete(goal.ID); err != nil {
		h.logger.Error("delete goal", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete goal"})
		return
	}

	h.hub.Broadcast(ac.FamilyID, websocket.NewMessage("goal", "deleted", goal.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *GoalHandler) familyGoal(familyID int64, r *http.Request) (*model.Goal, error) {
	id, err := parseIDParam(r)
	if err != nil {
		return nil, apperr.Validationf("invalid id")
	}
	goal, err := h.goals.GetByID(id)
	if err != nil {
		return nil, apperr.Unavailablef("load goal: %v", err)
	}
	if goal == nil {
		return nil, apperr.NotFoundf("goal %d", id)
	}
	kid, err := h.kids.GetByID(goal.KidID)
	if err != nil {
		return nil, apperr.Unavailablef("load kid: %v", err)
	}
	if kid == nil || kid.FamilyID != familyID {
		return nil, apperr.NotFoundf("goal %d", id)
	}
	return goal, nil
}
