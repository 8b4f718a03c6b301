// Package stats derives earnings, completion rate, and streaks from a task
// collection. Everything is recomputed from the rows on each load; nothing
// here is persisted.
package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nerloapp/nerlo/internal/model"
)

type Weekly struct {
	TasksCompleted int `json:"tasks_completed"`
	CompletionRate int `json:"completion_rate"`
	CurrentStreak  int `json:"current_streak"`
}

type Summary struct {
	TotalEarned     decimal.Decimal `json:"total_earned"`
	PendingEarnings decimal.Decimal `json:"pending_earnings"`
	Weekly          Weekly          `json:"weekly"`
}

// Compute aggregates a task collection. Each task counts toward at most one
// of earned (approved), pending (completed), or neither. The streak is the
// family streak: the max over every assignee's individual streak.
func Compute(tasks []model.Task, now time.Time) Summary {
	totalEarned := decimal.Zero
	pendingEarnings := decimal.Zero
	for _, t := range tasks {
		switch t.Status {
		case model.TaskApproved:
			totalEarned = totalEarned.Add(t.Reward)
		case model.TaskCompleted:
			pendingEarnings = pendingEarnings.Add(t.Reward)
		}
	}

	wkStart := weekStart(now)
	var completedThisWeek, createdThisWeek int
	for _, t := range tasks {
		if finished(t) && t.CompletedAt != nil && !t.CompletedAt.In(now.Location()).Before(wkStart) {
			completedThisWeek++
		}
		if !t.CreatedAt.In(now.Location()).Before(wkStart) {
			createdThisWeek++
		}
	}

	rate := 0
	if createdThisWeek > 0 {
		rate = int(float64(completedThisWeek)/float64(createdThisWeek)*100 + 0.5)
	}

	return Summary{
		TotalEarned:     totalEarned,
		PendingEarnings: pendingEarnings,
		Weekly: Weekly{
			TasksCompleted: completedThisWeek,
			CompletionRate: rate,
			CurrentStreak:  FamilyStreak(tasks, now),
		},
	}
}

// Streak counts consecutive calendar days ending today with at least one
// finished task. If today has no completion yet the count starts from
// yesterday, so the streak is not zeroed before the day ends.
func Streak(tasks []model.Task, now time.Time) int {
	days := make(map[string]bool)
	for _, t := range tasks {
		if finished(t) && t.CompletedAt != nil {
			days[dayKey(t.CompletedAt.In(now.Location()))] = true
		}
	}
	if len(days) == 0 {
		return 0
	}

	day := now
	if !days[dayKey(day)] {
		day = day.AddDate(0, 0, -1)
		if !days[dayKey(day)] {
			return 0
		}
	}

	streak := 0
	for days[dayKey(day)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// FamilyStreak is the max over each assignee's individual streak.
func FamilyStreak(tasks []model.Task, now time.Time) int {
	byKid := make(map[int64][]model.Task)
	for _, t := range tasks {
		if t.AssignedTo != nil && finished(t) {
			byKid[*t.AssignedTo] = append(byKid[*t.AssignedTo], t)
		}
	}

	max := 0
	for _, kidTasks := range byKid {
		if s := Streak(kidTasks, now); s > max {
			max = s
		}
	}
	return max
}

func finished(t model.Task) bool {
	return t.Status == model.TaskCompleted || t.Status == model.TaskApproved
}

// weekStart returns the most recent Sunday at 00:00 in now's location.
func weekStart(now time.Time) time.Time {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start.AddDate(0, 0, -int(now.Weekday()))
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
