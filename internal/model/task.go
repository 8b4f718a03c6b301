package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaskStatus string

const (
	TaskAvailable  TaskStatus = "available"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskApproved   TaskStatus = "approved"
	TaskRejected   TaskStatus = "rejected"
)

// Terminal reports whether no further transition leaves this status.
func (s TaskStatus) Terminal() bool {
	return s == TaskApproved || s == TaskRejected
}

// MaxWorkPhotos is the most photo references a task may carry.
const MaxWorkPhotos = 3

type Task struct {
	ID              int64           `json:"id"`
	FamilyID        int64           `json:"family_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Reward          decimal.Decimal `json:"reward"`
	Difficulty      string          `json:"difficulty"`
	TimeEstimate    string          `json:"time_estimate"`
	Deadline        string          `json:"deadline"`
	Urgent          bool            `json:"urgent"`
	Status          TaskStatus      `json:"status"`
	AssignedTo      *int64          `json:"assigned_to"`
	WorkTimeMS      int64           `json:"work_time_ms"`
	StartedAt       *time.Time      `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	CompletionNotes string          `json:"completion_notes"`
	WorkPhotos      []string        `json:"work_photos"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// AssigneeName is the one-hop kid name lookup, populated on list reads.
	AssigneeName string `json:"assignee_name,omitempty"`
}
