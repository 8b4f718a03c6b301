package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nerloapp/nerlo/internal/apperr"
	"github.com/nerloapp/nerlo/internal/auth"
	"github.com/nerloapp/nerlo/internal/elevation"
	"github.com/nerloapp/nerlo/internal/model"
	"github.com/nerloapp/nerlo/internal/stats"
	"github.com/nerloapp/nerlo/internal/store"
	"github.com/nerloapp/nerlo/internal/websocket"
)

// finishedHistoryLimit caps the recent-history list on the kid dashboard.
const finishedHistoryLimit = 10

type KidHandler struct {
	kids   *store.KidStore
	tasks  *store.TaskStore
	goals  *store.GoalStore
	guard  *elevation.Guard
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewKidHandler(ks *store.KidStore, ts *store.TaskStore, gs *store.GoalStore, guard *elevation.Guard, hub *websocket.Hub, logger *slog.Logger) *KidHandler {
	return &KidHandler{kids: ks, tasks: ts, goals: gs, guard: guard, hub: hub, logger: logger}
}

func (h *KidHandler) List(w http.ResponseWriter, r *http.Request) {
	kids, err := h.kids.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list kids"})
		return
	}
	if kids == nil {
		kids = []model.Kid{}
	}
	writeJSON(w, http.StatusOK, kids)
}

// Create adds a kid to the family. Parent-only.
func (h *KidHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if _, err := h.guard.Require(ac.UserID); err != nil {
		writeErr(w, err)
		return
	}

	var req struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	kid, err := h.kids.Create(ac.FamilyID, req.Name, req.Age)
	if err != nil {
		h.logger.Error("create kid", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create kid"})
		return
	}

	h.hub.Broadcast(ac.FamilyID, websocket.NewMessage("kid", "created", kid.ID, nil))
	writeJSON(w, http.StatusCreated, kid)
}

// Dashboard returns everything a kid's home screen needs in one call:
// claimable tasks, tasks underway, recent history, goals, and their stats.
func (h *KidHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	kid, err := h.familyKid(familyID, r)
	if err != nil {
		writeErr(w, err)
		return
	}

	available, err := h.tasks.ListAvailableForKid(familyID, kid.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	inProgress, err := h.tasks.ListInProgressForKid(familyID, kid.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	finished, err := h.tasks.ListFinishedForKid(familyID, kid.ID, finishedHistoryLimit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	goals, err := h.goals.ListByKid(kid.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list goals"})
		return
	}

	// Available tasks count toward the weekly created-in-window denominator
	// even though they contribute no earnings or streak days.
	kidTasks := append([]model.Task{}, available...)
	kidTasks = append(kidTasks, inProgress...)
	kidTasks = append(kidTasks, finished...)
	summary := stats.Compute(kidTasks, time.Now())
	summary.Weekly.CurrentStreak = stats.Streak(kidTasks, time.Now())

	if available == nil {
		available = []model.Task{}
	}
	if inProgress == nil {
		inProgress = []model.Task{}
	}
	if finished == nil {
		finished = []model.Task{}
	}
	if goals == nil {
		goals = []model.Goal{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kid":         kid,
		"available":   available,
		"in_progress": inProgress,
		"finished":    finished,
		"goals":       goals,
		"stats":       summary,
	})
}

func (h *KidHandler) familyKid(familyID int64, r *http.Request) (*model.Kid, error) {
	id, err := parseIDParam(r)
	if err != nil {
		return nil, apperr.Validationf("invalid id")
	}
	kid, err := h.kids.GetByID(id)
	if err != nil {
		return nil, apperr.Unavailablef("load kid: %v", err)
	}
	if kid == nil || kid.FamilyID != familyID {
		return nil, apperr.NotFoundf("kid %d", id)
	}
	return kid, nil
}
