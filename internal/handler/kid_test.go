package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nerloapp/nerlo/internal/auth"
	"github.com/nerloapp/nerlo/internal/stats"
	"github.com/nerloapp/nerlo/internal/store"
)

func TestDashboardWeeklyRateCountsAvailableTasks(t *testing.T) {
	f := newAPIFixture(t)
	userID, familyID, kidID := f.seedFamily(t, "p@example.com", "Testers", "Alex")

	// One task finished, one still on the board, both created this week:
	// the completion rate is 50, not 100.
	done, err := f.tasks.Create(store.CreateTaskParams{
		FamilyID: familyID,
		Title:    "Dishes",
		Reward:   decimal.RequireFromString("2"),
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := f.service.Start(familyID, done.ID, kidID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.service.Complete(familyID, done.ID, 1000, "", nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.tasks.Create(store.CreateTaskParams{
		FamilyID: familyID,
		Title:    "Still open",
		Reward:   decimal.RequireFromString("3"),
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	h := NewKidHandler(f.kids, f.tasks, f.goals, f.guard, f.hub, slog.Default())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/kids/{id}/dashboard", h.Dashboard)

	req := authedRequest("GET", fmt.Sprintf("/api/kids/%d/dashboard", kidID), "",
		auth.AuthContext{UserID: userID, FamilyID: familyID})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Stats stats.Summary `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stats.Weekly.CompletionRate != 50 {
		t.Errorf("completion rate = %d, want 50", resp.Stats.Weekly.CompletionRate)
	}
	if resp.Stats.Weekly.TasksCompleted != 1 {
		t.Errorf("tasks completed = %d, want 1", resp.Stats.Weekly.TasksCompleted)
	}
}
