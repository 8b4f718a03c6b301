package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nerloapp/nerlo/internal/auth"
	"github.com/nerloapp/nerlo/internal/model"
	"github.com/nerloapp/nerlo/internal/stats"
	"github.com/nerloapp/nerlo/internal/store"
)

type StatsHandler struct {
	tasks  *store.TaskStore
	kids   *store.KidStore
	cache  *stats.Cache
	logger *slog.Logger
}

func NewStatsHandler(ts *store.TaskStore, ks *store.KidStore, cache *stats.Cache, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{tasks: ts, kids: ks, cache: cache, logger: logger}
}

// Get returns family-wide stats, or one kid's stats with ?kid_id=.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	tasks, err := h.tasks.ListByFamily(familyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load tasks"})
		return
	}

	now := time.Now()

	if kidIDStr := r.URL.Query().Get("kid_id"); kidIDStr != "" {
		kidID, err := strconv.ParseInt(kidIDStr, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid kid_id"})
			return
		}

		var kidTasks []model.Task
		for _, t := range tasks {
			if t.AssignedTo != nil && *t.AssignedTo == kidID {
				kidTasks = append(kidTasks, t)
			}
		}
		summary := stats.Compute(kidTasks, now)
		summary.Weekly.CurrentStreak = stats.Streak(kidTasks, now)
		writeJSON(w, http.StatusOK, summary)
		return
	}

	writeJSON(w, http.StatusOK, stats.Compute(tasks, now))
}

// Public serves the unauthenticated landing-page figures through the cache.
func (h *StatsHandler) Public(w http.ResponseWriter, r *http.Request) {
	ps, err := h.cache.Get()
	if err != nil {
		h.logger.Error("load public stats", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "stats unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"families":        stats.FormatCount(ps.Families),
		"tasks_completed": stats.FormatCount(ps.TasksCompleted),
		"total_earned":    ps.TotalEarned.StringFixed(2),
	})
}
