package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nerloapp/nerlo/internal/auth"
	"github.com/nerloapp/nerlo/internal/elevation"
	"github.com/nerloapp/nerlo/internal/model"
	"github.com/nerloapp/nerlo/internal/store"
	"github.com/nerloapp/nerlo/internal/task"
	"github.com/nerloapp/nerlo/internal/websocket"
)

type TaskHandler struct {
	tasks   *store.TaskStore
	service *task.Service
	guard   *elevation.Guard
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, svc *task.Service, guard *elevation.Guard, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, service: svc, guard: guard, hub: hub, logger: logger}
}

type taskRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Reward       string `json:"reward"`
	Difficulty   string `json:"difficulty"`
	TimeEstimate string `json:"time_estimate"`
	Deadline     string `json:"deadline"`
	Urgent       bool   `json:"urgent"`
	AssignedTo   *int64 `json:"assigned_to"`
}

// Create adds a task to the family board. Parent-only.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if _, err := h.guard.Require(ac.UserID); err != nil {
		writeErr(w, err)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	reward := decimal.Zero
	if req.Reward != "" {
		var err error
		reward, err = decimal.NewFromString(req.Reward)
		if err != nil || reward.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reward must be a non-negative amount"})
			return
		}
	}

	created, err := h.tasks.Create(store.CreateTaskParams{
		FamilyID:     ac.FamilyID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Reward:       reward,
		Difficulty:   req.Difficulty,
		TimeEstimate: req.TimeEstimate,
		Deadline:     req.Deadline,
		Urgent:       req.Urgent,
		AssignedTo:   req.AssignedTo,
	})
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create task"})
		return
	}

	h.hub.Broadcast(ac.FamilyID, websocket.NewMessage("task", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

// List serves both views of the board. Without parameters it returns every
// family task (parent view). With kid_id and view it returns that kid's
// slice: available, in_progress, or finished.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	kidIDStr := r.URL.Query().Get("kid_id")
	if kidIDStr == "" {
		tasks, err := h.tasks.ListByFamily(familyID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
			return
		}
		if tasks == nil {
			tasks = []model.Task{}
		}
		writeJSON(w, http.StatusOK, tasks)
		return
	}

	kidID, err := strconv.ParseInt(kidIDStr, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid kid_id"})
		return
	}

	var tasks []model.Task
	switch r.URL.Query().Get("view") {
	case "", "available":
		tasks, err = h.tasks.ListAvailableForKid(familyID, kidID)
	case "in_progress":
		tasks, err = h.tasks.ListInProgressForKid(familyID, kidID)
	case "finished":
		tasks, err = h.tasks.ListFinishedForKid(familyID, kidID, finishedHistoryLimit)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid view"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	t, err := h.tasks.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if t == nil || t.FamilyID != familyID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Start claims a task for a kid.
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		KidID int64 `json:"kid_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	t, err := h.service.Start(familyID, id, req.KidID)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.hub.Broadcast(familyID, websocket.NewMessage("task", "started", t.ID, map[string]any{"kid_id": req.KidID}))
	writeJSON(w, http.StatusOK, t)
}

// Pause stops the work timer without giving up the task.
func (h *TaskHandler) Pause(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	total, err := h.service.Pause(familyID, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"work_time_ms": total})
}

// Resume restarts the work timer on an in-progress task.
func (h *TaskHandler) Resume(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.service.Resume(familyID, id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Complete submits a finished task for parent review.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		WorkTimeMS int64    `json:"work_time_ms"`
		Notes      string   `json:"notes"`
		Photos     []string `json:"photos"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	t, err := h.service.Complete(familyID, id, req.WorkTimeMS, req.Notes, req.Photos)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.hub.Broadcast(familyID, websocket.NewMessage("task", "completed", t.ID, nil))
	writeJSON(w, http.StatusOK, t)
}

// Approve accepts a completed task and pays out its reward. Parent-only.
func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Approve, "approved")
}

// Reject declines a completed task. Parent-only.
func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Reject, "rejected")
}

func (h *TaskHandler) review(w http.ResponseWriter, r *http.Request, fn func(userID, familyID, taskID int64) (*model.Task, error), action string) {
	ac, _ := auth.FromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	t, err := fn(ac.UserID, ac.FamilyID, id)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.hub.Broadcast(ac.FamilyID, websocket.NewMessage("task", action, t.ID, nil))
	writeJSON(w, http.StatusOK, t)
}

// SaveWorkTime persists a running timer total mid-session.
func (h *TaskHandler) SaveWorkTime(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		WorkTimeMS int64 `json:"work_time_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := h.service.SaveWorkTime(familyID, id, req.WorkTimeMS); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
