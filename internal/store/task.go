package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nerloapp/nerlo/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var reward, photos string
	var assignedTo sql.NullInt64
	var startedAt, completedAt sql.NullTime
	var assigneeName sql.NullString

	err := scanner.Scan(
		&t.ID, &t.FamilyID, &t.Title, &t.Description, &t.Category,
		&reward, &t.Difficulty, &t.TimeEstimate, &t.Deadline, &t.Urgent,
		&t.Status, &assignedTo, &t.WorkTimeMS, &startedAt, &completedAt,
		&t.CompletionNotes, &photos, &t.CreatedAt, &t.UpdatedAt, &assigneeName,
	)
	if err != nil {
		return nil, err
	}

	t.Reward, err = decimal.NewFromString(reward)
	if err != nil {
		return nil, fmt.Errorf("parse reward %q: %w", reward, err)
	}
	if err := json.Unmarshal([]byte(photos), &t.WorkPhotos); err != nil {
		return nil, fmt.Errorf("parse work photos: %w", err)
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.Int64
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if assigneeName.Valid {
		t.AssigneeName = assigneeName.String
	}
	return &t, nil
}

// The trailing kid-name join is the only multi-table read in the system.
const taskCols = `t.id, t.family_id, t.title, t.description, t.category,
	t.reward, t.difficulty, t.time_estimate, t.deadline, t.urgent,
	t.status, t.assigned_to, t.work_time_ms, t.started_at, t.completed_at,
	t.completion_notes, t.work_photos, t.created_at, t.updated_at, k.name`

const taskFrom = ` FROM tasks t LEFT JOIN kids k ON k.id = t.assigned_to `

type CreateTaskParams struct {
	FamilyID     int64
	Title        string
	Description  string
	Category     string
	Reward       decimal.Decimal
	Difficulty   string
	TimeEstimate string
	Deadline     string
	Urgent       bool
	AssignedTo   *int64
}

func (s *TaskStore) Create(p CreateTaskParams) (*model.Task, error) {
	var assignedTo sql.NullInt64
	if p.AssignedTo != nil {
		assignedTo = sql.NullInt64{Int64: *p.AssignedTo, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO tasks (family_id, title, description, category, reward,
		 difficulty, time_estimate, deadline, urgent, assigned_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.FamilyID, p.Title, p.Description, p.Category, p.Reward.String(),
		p.Difficulty, p.TimeEstimate, p.Deadline, p.Urgent, assignedTo,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+taskFrom+`WHERE t.id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) queryTasks(query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ListByFamily returns every task in a family, newest first. Parent-mode view.
func (s *TaskStore) ListByFamily(familyID int64) ([]model.Task, error) {
	return s.queryTasks(
		`SELECT `+taskCols+taskFrom+`WHERE t.family_id = ? ORDER BY t.created_at DESC`,
		familyID,
	)
}

// ListAvailableForKid returns available tasks a kid may claim: unassigned
// family tasks plus ones pre-assigned to them.
func (s *TaskStore) ListAvailableForKid(familyID, kidID int64) ([]model.Task, error) {
	return s.queryTasks(
		`SELECT `+taskCols+taskFrom+`
		 WHERE t.family_id = ? AND t.status = 'available'
		   AND (t.assigned_to IS NULL OR t.assigned_to = ?)
		 ORDER BY t.urgent DESC, t.created_at DESC`,
		familyID, kidID,
	)
}

// ListInProgressForKid returns the kid's tasks underway. The family predicate
// is part of the query so a foreign kid id never reads across the tenant
// boundary, matching every other kid-scoped read.
func (s *TaskStore) ListInProgressForKid(familyID, kidID int64) ([]model.Task, error) {
	return s.queryTasks(
		`SELECT `+taskCols+taskFrom+`
		 WHERE t.family_id = ? AND t.assigned_to = ? AND t.status = 'in_progress'
		 ORDER BY t.started_at DESC`,
		familyID, kidID,
	)
}

// ListFinishedForKid returns the kid's most recent completed, approved, and
// rejected tasks, newest completion first.
func (s *TaskStore) ListFinishedForKid(familyID, kidID int64, limit int) ([]model.Task, error) {
	return s.queryTasks(
		`SELECT `+taskCols+taskFrom+`
		 WHERE t.family_id = ? AND t.assigned_to = ? AND t.status IN ('completed', 'approved', 'rejected')
		 ORDER BY t.completed_at DESC LIMIT ?`,
		familyID, kidID, limit,
	)
}

// Start claims an available task for a kid. The status and assignment
// preconditions live in the WHERE clause so two kids racing for the same
// task cannot both win; the loser sees zero rows updated.
func (s *TaskStore) Start(id, kidID int64, startedAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE tasks SET status = 'in_progress', assigned_to = ?, started_at = ?,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'available'
		   AND (assigned_to IS NULL OR assigned_to = ?)`,
		kidID, startedAt.UTC(), id, kidID,
	)
	if err != nil {
		return false, fmt.Errorf("start task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Complete finishes an in-progress task with its final work time, notes,
// and photo references.
func (s *TaskStore) Complete(id int64, workTimeMS int64, notes string, photos []string, completedAt time.Time) (bool, error) {
	if photos == nil {
		photos = []string{}
	}
	encoded, err := json.Marshal(photos)
	if err != nil {
		return false, fmt.Errorf("encode work photos: %w", err)
	}

	result, err := s.db.Exec(
		`UPDATE tasks SET status = 'completed', completed_at = ?,
		 work_time_ms = MAX(work_time_ms, ?), completion_notes = ?, work_photos = ?,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'in_progress'`,
		completedAt.UTC(), workTimeMS, notes, string(encoded), id,
	)
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SetStatus transitions a task from one status to another. Returns false
// when the task is not currently in the from status.
func (s *TaskStore) SetStatus(id int64, from, to model.TaskStatus) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("set task status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SaveWorkTime persists the running work-time total. The MAX guard keeps
// the stored value monotonic when the periodic save, the teardown flush,
// and a manual pause race each other; all writers compute from the same
// persisted base, so last-write-wins is safe.
func (s *TaskStore) SaveWorkTime(id int64, workTimeMS int64) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET work_time_ms = MAX(work_time_ms, ?), updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		workTimeMS, id,
	)
	if err != nil {
		return fmt.Errorf("save work time: %w", err)
	}
	return nil
}

// CountApproved returns the number of approved tasks across all families.
func (s *TaskStore) CountApproved() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE status = 'approved'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count approved tasks: %w", err)
	}
	return n, nil
}

// SumApprovedRewards returns the total reward paid out across all families.
func (s *TaskStore) SumApprovedRewards() (decimal.Decimal, error) {
	rows, err := s.db.Query(`SELECT reward FROM tasks WHERE status = 'approved'`)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum approved rewards: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var reward string
		if err := rows.Scan(&reward); err != nil {
			return decimal.Zero, fmt.Errorf("scan reward: %w", err)
		}
		d, err := decimal.NewFromString(reward)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse reward %q: %w", reward, err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}
